package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smartmailer/internal/orchestrator"
	"smartmailer/internal/store"
	"smartmailer/internal/transport"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	store  *store.Store
	orch   *orchestrator.Orchestrator
	alerts transport.AlertNotifier
}

// NewHandlers creates new HTTP handlers
func NewHandlers(st *store.Store, orch *orchestrator.Orchestrator, alerts transport.AlertNotifier) *Handlers {
	return &Handlers{store: st, orch: orch, alerts: alerts}
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	// Health check
	router.GET("/healthz", h.HealthCheck)

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	api := router.Group("/api/v1")
	{
		// Processing records
		api.GET("/records", h.GetRecords)
		api.GET("/records/:message_id", h.GetRecord)
		api.GET("/stats", h.GetStats)

		// Scheduler control
		api.POST("/scheduler/start", h.StartScheduler)
		api.POST("/scheduler/stop", h.StopScheduler)
		api.POST("/scheduler/run-once", h.RunOnce)
		api.GET("/scheduler/status", h.GetSchedulerStatus)

		// Maintenance
		api.POST("/notifications/test", h.TestNotification)
		api.POST("/maintenance/cleanup", h.Cleanup)
	}
}
