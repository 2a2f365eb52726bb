package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/qs3c/repo_scan_server/internal/pkg/response"
	"github.com/qs3c/repo_scan_server/internal/pkg/ws"
	"github.com/qs3c/repo_scan_server/internal/service"
)

type HealthHandler struct {
	jobService *service.JobService
	hub        *ws.Hub
	log        *zap.Logger
}

func NewHealthHandler(jobService *service.JobService, hub *ws.Hub, log *zap.Logger) *HealthHandler {
	return &HealthHandler{
		jobService: jobService,
		hub:        hub,
		log:        log,
	}
}

// Check reports database reachability with job counts per status
// GET /health
func (h *HealthHandler) Check(c *gin.Context) {
	stats, err := h.jobService.Stats()
	if err != nil {
		h.log.Error("health check failed", zap.Error(err))
		response.ServerError(c, "database unavailable")
		return
	}

	response.Success(c, gin.H{
		"status":   "ok",
		"jobs":     stats,
		"watchers": h.hub.ConnectionCount(),
	})
}
