package controllers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/billiard-hall/models"
	"github.com/yeremiapane/billiard-hall/services"
	"github.com/yeremiapane/billiard-hall/utils"
)

type SessionController struct {
	Sessions *services.SessionStore
	Engine   *services.SessionEngine
}

func NewSessionController(sessions *services.SessionStore, engine *services.SessionEngine) *SessionController {
	return &SessionController{Sessions: sessions, Engine: engine}
}

// GetSessions -> newest sessions first, optionally filtered by status and table
func (sc *SessionController) GetSessions(c *gin.Context) {
	filter := services.SessionFilter{Status: c.Query("status")}
	if v := c.Query("table_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			respondValidation(c, fmt.Errorf("table_id must be a positive integer"))
			return
		}
		filter.TableID = uint(id)
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			respondValidation(c, fmt.Errorf("limit must be an integer"))
			return
		}
		filter.Limit = limit
	}

	sessions, err := sc.Sessions.List(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of sessions", sessions)
}

// GetSessionByID -> one session as stored
func (sc *SessionController) GetSessionByID(c *gin.Context) {
	id, ok := paramID(c, "session_id")
	if !ok {
		return
	}
	session, err := sc.Sessions.Get(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Session detail", session)
}

// GetSessionTime -> minutes and cost accrued so far
func (sc *SessionController) GetSessionTime(c *gin.Context) {
	id, ok := paramID(c, "session_id")
	if !ok {
		return
	}
	live, err := sc.Engine.Live(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Session time", live)
}

// GetSessionAttribution -> table and customer that consumption is charged to
func (sc *SessionController) GetSessionAttribution(c *gin.Context) {
	id, ok := paramID(c, "session_id")
	if !ok {
		return
	}
	attr, err := sc.Sessions.Attribution(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Session attribution", attr)
}

// GetCustomerSessions -> finalized sessions on a customer's tab
func (sc *SessionController) GetCustomerSessions(c *gin.Context) {
	id, ok := paramID(c, "customer_id")
	if !ok {
		return
	}
	sessions, err := sc.Sessions.FinalizedByCustomer(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Customer sessions", sessions)
}

func (sc *SessionController) PauseSession(c *gin.Context) {
	sc.transition(c, "Session paused", sc.Engine.Pause)
}

func (sc *SessionController) ResumeSession(c *gin.Context) {
	sc.transition(c, "Session resumed", sc.Engine.Resume)
}

func (sc *SessionController) FinishSession(c *gin.Context) {
	sc.transition(c, "Session finalized", sc.Engine.Finish)
}

func (sc *SessionController) CancelSession(c *gin.Context) {
	sc.transition(c, "Session cancelled", sc.Engine.Cancel)
}

func (sc *SessionController) transition(c *gin.Context, message string, fn func(context.Context, uint) (models.Session, error)) {
	id, ok := paramID(c, "session_id")
	if !ok {
		return
	}
	session, err := fn(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, message, session)
}
