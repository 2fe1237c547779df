package controllers_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionJSON struct {
	ID         uint    `json:"id"`
	TableID    uint    `json:"table_id"`
	CustomerID *uint   `json:"customer_id"`
	Status     string  `json:"status"`
	Minutes    int     `json:"minutes"`
	Cost       string  `json:"cost"`
	HourlyRate string  `json:"hourly_rate"`
	EndedAt    *string `json:"ended_at"`
}

func startSession(t *testing.T, s *testServer, tableID int, body interface{}) sessionJSON {
	t.Helper()
	code, resp := s.do(t, http.MethodPost, fmt.Sprintf("/api/tables/%d/start", tableID), body)
	require.Equal(t, http.StatusCreated, code, resp.Message)
	var session sessionJSON
	decode(t, resp.Data, &session)
	return session
}

func TestSessionLifecycleEndpoints(t *testing.T) {
	s := setupTestServer(t)
	session := startSession(t, s, 1, nil)
	base := fmt.Sprintf("/api/sessions/%d", session.ID)

	s.clock.Advance(20 * time.Minute)
	code, resp := s.do(t, http.MethodPost, base+"/pause", nil)
	require.Equal(t, http.StatusOK, code, resp.Message)
	var paused sessionJSON
	decode(t, resp.Data, &paused)
	assert.Equal(t, "paused", paused.Status)
	assert.Equal(t, 20, paused.Minutes)

	code, resp = s.do(t, http.MethodPost, base+"/pause", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "invalid_state", resp.Code)

	s.clock.Advance(time.Hour)
	code, resp = s.do(t, http.MethodPost, base+"/resume", nil)
	require.Equal(t, http.StatusOK, code, resp.Message)

	s.clock.Advance(10 * time.Minute)
	code, resp = s.do(t, http.MethodGet, base+"/time", nil)
	require.Equal(t, http.StatusOK, code)
	var live struct {
		Minutes int    `json:"minutes"`
		Cost    string `json:"cost"`
	}
	decode(t, resp.Data, &live)
	assert.Equal(t, 30, live.Minutes)
	assert.Equal(t, "7500", live.Cost)

	code, resp = s.do(t, http.MethodPost, base+"/finish", nil)
	require.Equal(t, http.StatusOK, code, resp.Message)
	assert.Equal(t, "Session finalized", resp.Message)
	var done sessionJSON
	decode(t, resp.Data, &done)
	assert.Equal(t, "finalized", done.Status)
	assert.Equal(t, 30, done.Minutes)
	assert.Equal(t, "7500", done.Cost)
	assert.Equal(t, "15000", done.HourlyRate)
	assert.NotNil(t, done.EndedAt)

	code, resp = s.do(t, http.MethodPost, base+"/finish", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "invalid_state", resp.Code)

	code, resp = s.do(t, http.MethodGet, "/api/tables/1", nil)
	require.Equal(t, http.StatusOK, code)
	var table tableJSON
	decode(t, resp.Data, &table)
	assert.Equal(t, "available", table.Status)
	assert.Nil(t, table.Session)
}

func TestCancelSessionEndpoint(t *testing.T) {
	s := setupTestServer(t)
	session := startSession(t, s, 2, nil)

	s.clock.Advance(45 * time.Minute)
	code, resp := s.do(t, http.MethodPost, fmt.Sprintf("/api/sessions/%d/cancel", session.ID), nil)
	require.Equal(t, http.StatusOK, code, resp.Message)
	var cancelled sessionJSON
	decode(t, resp.Data, &cancelled)
	assert.Equal(t, "cancelled", cancelled.Status)
	assert.Equal(t, "0", cancelled.Cost)
	assert.NotNil(t, cancelled.EndedAt)
}

func TestSessionNotFoundAndBadIDs(t *testing.T) {
	s := setupTestServer(t)

	code, resp := s.do(t, http.MethodGet, "/api/sessions/404", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", resp.Code)

	code, resp = s.do(t, http.MethodPost, "/api/sessions/404/finish", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, resp = s.do(t, http.MethodPost, "/api/sessions/-1/pause", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation_error", resp.Code)
}

func TestListSessionsEndpoint(t *testing.T) {
	s := setupTestServer(t)
	first := startSession(t, s, 1, nil)
	s.clock.Advance(time.Minute)
	startSession(t, s, 2, nil)
	code, _ := s.do(t, http.MethodPost, fmt.Sprintf("/api/sessions/%d/finish", first.ID), nil)
	require.Equal(t, http.StatusOK, code)

	code, resp := s.do(t, http.MethodGet, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, code)
	var all []sessionJSON
	decode(t, resp.Data, &all)
	require.Len(t, all, 2)
	assert.Equal(t, uint(2), all[0].TableID, "newest first")

	code, resp = s.do(t, http.MethodGet, "/api/sessions?status=finalized&table_id=1&limit=10", nil)
	require.Equal(t, http.StatusOK, code)
	var filtered []sessionJSON
	decode(t, resp.Data, &filtered)
	require.Len(t, filtered, 1)
	assert.Equal(t, first.ID, filtered[0].ID)

	code, resp = s.do(t, http.MethodGet, "/api/sessions?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, resp = s.do(t, http.MethodGet, "/api/sessions?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation_error", resp.Code)
}

func TestCollaboratorEndpoints(t *testing.T) {
	s := setupTestServer(t)
	session := startSession(t, s, 4, map[string]interface{}{"customer_id": 3})

	code, resp := s.do(t, http.MethodGet, fmt.Sprintf("/api/sessions/%d/attribution", session.ID), nil)
	require.Equal(t, http.StatusOK, code)
	var attr struct {
		TableID     uint  `json:"table_id"`
		TableNumber int   `json:"table_number"`
		CustomerID  *uint `json:"customer_id"`
	}
	decode(t, resp.Data, &attr)
	assert.Equal(t, uint(4), attr.TableID)
	require.NotNil(t, attr.CustomerID)
	assert.Equal(t, uint(3), *attr.CustomerID)

	s.clock.Advance(90 * time.Minute)
	code, _ = s.do(t, http.MethodPost, fmt.Sprintf("/api/sessions/%d/finish", session.ID), nil)
	require.Equal(t, http.StatusOK, code)

	code, resp = s.do(t, http.MethodGet, "/api/customers/3/sessions", nil)
	require.Equal(t, http.StatusOK, code)
	var tab []sessionJSON
	decode(t, resp.Data, &tab)
	require.Len(t, tab, 1)
	assert.Equal(t, "30000", tab[0].Cost)
}
