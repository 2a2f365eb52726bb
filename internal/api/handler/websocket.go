package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/qs3c/repo_scan_server/internal/pkg/response"
	"github.com/qs3c/repo_scan_server/internal/pkg/ws"
	"github.com/qs3c/repo_scan_server/internal/service"
)

// MessageJobStatus first frame on a new connection: the job as stored
const MessageJobStatus = "job_status"

type WebSocketHandler struct {
	hub        *ws.Hub
	jobService *service.JobService
	upgrader   websocket.Upgrader
	log        *zap.Logger
}

func NewWebSocketHandler(hub *ws.Hub, jobService *service.JobService, allowedOrigins []string, log *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:        hub,
		jobService: jobService,
		upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(allowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: log,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// Handle streams progress of one job
// GET /api/v1/ws?job_id=xxx
func (h *WebSocketHandler) Handle(c *gin.Context) {
	jobID := c.Query("job_id")
	if jobID == "" {
		response.ParamError(c, "missing job_id")
		return
	}
	if _, err := h.jobService.GetJob(jobID); err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			response.NotFoundError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.String("job_id", jobID), zap.Error(err))
		return
	}

	client := &ws.Client{
		JobID: jobID,
		Conn:  conn,
	}
	h.hub.Register(client)

	// read after registering so a job finishing in between is not missed
	if job, err := h.jobService.GetJob(jobID); err == nil {
		if err := h.hub.Send(client, &ws.Message{Type: MessageJobStatus, Data: service.JobStatus(job)}); err != nil {
			h.log.Warn("job status write failed", zap.String("job_id", jobID), zap.Error(err))
		}
	}

	// reads only detect the peer going away
	go func() {
		defer func() {
			h.hub.Unregister(client)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
