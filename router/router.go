package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/billiard-hall/controllers"
	"github.com/yeremiapane/billiard-hall/hub"
	"github.com/yeremiapane/billiard-hall/middlewares"
	"github.com/yeremiapane/billiard-hall/services"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	Tables   *services.TableRegistry
	Sessions *services.SessionStore
	Engine   *services.SessionEngine
	Hub      *hub.Hub

	CORSOrigin     string
	RateLimitRPS   float64
	RateLimitBurst int
}

func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares(d.CORSOrigin))

	tableCtrl := controllers.NewTableController(d.Tables, d.Engine)
	sessionCtrl := controllers.NewSessionController(d.Sessions, d.Engine)

	r.GET("/api/health", controllers.HealthCheck)

	// Viewers are long-lived and skip the rate limiter.
	if d.Hub != nil {
		r.GET("/ws", controllers.WSHandler(d.Hub))
	}

	api := r.Group("/api")
	if d.RateLimitRPS > 0 {
		api.Use(middlewares.NewRateLimiter(d.RateLimitRPS, d.RateLimitBurst).RateLimit())
	}

	// TABLES
	api.GET("/tables", tableCtrl.GetAllTables)
	api.GET("/tables/stats", tableCtrl.GetTableStats)
	api.POST("/tables", tableCtrl.CreateTable)
	api.GET("/tables/:table_id", tableCtrl.GetTableByID)
	api.PUT("/tables/:table_id", tableCtrl.UpdateTable)
	api.DELETE("/tables/:table_id", tableCtrl.DeleteTable)
	api.POST("/tables/:table_id/start", tableCtrl.StartSession)

	// SESSIONS
	api.GET("/sessions", sessionCtrl.GetSessions)
	api.GET("/sessions/:session_id", sessionCtrl.GetSessionByID)
	api.GET("/sessions/:session_id/time", sessionCtrl.GetSessionTime)
	api.GET("/sessions/:session_id/attribution", sessionCtrl.GetSessionAttribution)
	api.POST("/sessions/:session_id/pause", sessionCtrl.PauseSession)
	api.POST("/sessions/:session_id/resume", sessionCtrl.ResumeSession)
	api.POST("/sessions/:session_id/finish", sessionCtrl.FinishSession)
	api.POST("/sessions/:session_id/cancel", sessionCtrl.CancelSession)

	// CUSTOMER TAB
	api.GET("/customers/:customer_id/sessions", sessionCtrl.GetCustomerSessions)

	return r
}
