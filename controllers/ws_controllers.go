package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/billiard-hall/hub"
	"github.com/yeremiapane/billiard-hall/utils"
)

// WSHandler -> viewer websocket; every viewer joins the venue channel
func WSHandler(h *hub.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.ServeWS(c.Writer, c.Request)
	}
}

// HealthCheck -> liveness probe
func HealthCheck(c *gin.Context) {
	utils.RespondJSON(c, http.StatusOK, "OK", gin.H{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
