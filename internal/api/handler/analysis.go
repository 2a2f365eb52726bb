package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/qs3c/repo_scan_server/internal/model/dto"
	"github.com/qs3c/repo_scan_server/internal/pkg/response"
	"github.com/qs3c/repo_scan_server/internal/service"
)

type AnalysisHandler struct {
	jobService *service.JobService
	log        *zap.Logger
}

func NewAnalysisHandler(jobService *service.JobService, log *zap.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		jobService: jobService,
		log:        log,
	}
}

// Submit queues a repository for analysis
// POST /api/v1/analyses
func (h *AnalysisHandler) Submit(c *gin.Context) {
	var req dto.SubmitAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	job, err := h.jobService.Enqueue(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRepoURL), errors.Is(err, service.ErrInvalidBranch):
			response.ParamError(c, err.Error())
		default:
			h.log.Error("submit analysis failed", zap.Error(err))
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, job.StatusMessage, dto.SubmitAnalysisResponse{
		JobID:  job.ID,
		Status: job.Status,
	})
}

// GetJob reports the state of one job
// GET /api/v1/analyses/jobs/:id
func (h *AnalysisHandler) GetJob(c *gin.Context) {
	job, err := h.jobService.GetJob(c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			response.NotFoundError(c, err.Error())
			return
		}
		h.log.Error("get job failed", zap.String("job_id", c.Param("id")), zap.Error(err))
		response.ServerError(c, "")
		return
	}

	response.Success(c, service.JobStatus(job))
}
