package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/billiard-hall/services"
	"github.com/yeremiapane/billiard-hall/utils"
)

type TableController struct {
	Tables *services.TableRegistry
	Engine *services.SessionEngine
}

func NewTableController(tables *services.TableRegistry, engine *services.SessionEngine) *TableController {
	return &TableController{Tables: tables, Engine: engine}
}

// CreateTable -> adds a table to the floor
func (tc *TableController) CreateTable(c *gin.Context) {
	var req services.TableInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	table, err := tc.Tables.Create(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Table created successfully", table)
}

// GetAllTables -> every table with its open session and running cost
func (tc *TableController) GetAllTables(c *gin.Context) {
	views, err := tc.Tables.ListWithSessions(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of tables", views)
}

// GetTableByID -> one table with its open session
func (tc *TableController) GetTableByID(c *gin.Context) {
	id, ok := paramID(c, "table_id")
	if !ok {
		return
	}
	view, err := tc.Tables.View(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table detail", view)
}

// UpdateTable -> edits number, name, class, rate, status or color
func (tc *TableController) UpdateTable(c *gin.Context) {
	id, ok := paramID(c, "table_id")
	if !ok {
		return
	}
	var req services.TableInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	table, err := tc.Tables.Update(c.Request.Context(), id, req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.InfoLogger.Printf("Table %d updated (status=%s)", table.Number, table.Status)
	utils.RespondJSON(c, http.StatusOK, "Table updated", table)
}

// DeleteTable -> removes a table without an open session
func (tc *TableController) DeleteTable(c *gin.Context) {
	id, ok := paramID(c, "table_id")
	if !ok {
		return
	}
	if err := tc.Tables.Delete(c.Request.Context(), id); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table deleted", gin.H{
		"id": id,
	})
}

// GetTableStats -> number of tables per status for the dashboard
func (tc *TableController) GetTableStats(c *gin.Context) {
	counts, err := tc.Tables.CountByStatus(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	utils.RespondJSON(c, http.StatusOK, "Table stats", gin.H{
		"total":     total,
		"by_status": counts,
	})
}

// StartSession -> opens a session on an available table
func (tc *TableController) StartSession(c *gin.Context) {
	id, ok := paramID(c, "table_id")
	if !ok {
		return
	}
	var req struct {
		CustomerID *uint  `json:"customer_id"`
		Notes      string `json:"notes"`
	}
	if !bindOptionalJSON(c, &req) {
		return
	}

	session, err := tc.Engine.Start(c.Request.Context(), services.StartInput{
		TableID:    id,
		CustomerID: req.CustomerID,
		Notes:      req.Notes,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Session started", session)
}
