package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/qs3c/repo_scan_server/internal/model/dto"
	"github.com/qs3c/repo_scan_server/internal/pkg/response"
	"github.com/qs3c/repo_scan_server/internal/service"
)

type ProjectHandler struct {
	projectService *service.ProjectService
	log            *zap.Logger
}

func NewProjectHandler(projectService *service.ProjectService, log *zap.Logger) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
		log:            log,
	}
}

// Get returns the latest analysis outcome of a project
// GET /api/v1/projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	data, err := h.projectService.GetAnalysis(id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, data)
}

// ListLogStatements
// GET /api/v1/projects/:id/log-statements?level=INFO&risky=true
func (h *ProjectHandler) ListLogStatements(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	page, pageSize := pageQuery(c)

	items, total, err := h.projectService.ListLogStatements(id, page, pageSize, c.Query("level"), c.Query("risky") == "true")
	if err != nil {
		h.fail(c, err)
		return
	}
	page, pageSize = pageBounds(page, pageSize)
	response.SuccessPage(c, total, page, pageSize, items)
}

// ListFindings
// GET /api/v1/projects/:id/findings?type=PCI&include_ignored=true
func (h *ProjectHandler) ListFindings(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	page, pageSize := pageQuery(c)

	items, total, err := h.projectService.ListFindings(id, page, pageSize, c.Query("type"), c.Query("include_ignored") == "true")
	if err != nil {
		h.fail(c, err)
		return
	}
	page, pageSize = pageBounds(page, pageSize)
	response.SuccessPage(c, total, page, pageSize, items)
}

// UpdateFinding marks a finding as ignored or not
// PATCH /api/v1/projects/:id/findings/:findingId
func (h *ProjectHandler) UpdateFinding(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	findingID, ok := pathID(c, "findingId")
	if !ok {
		return
	}

	var req dto.UpdateFindingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	finding, err := h.projectService.SetFindingIgnored(id, findingID, *req.Ignored)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.SuccessWithMessage(c, "updated", finding)
}

func (h *ProjectHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrProjectNotFound), errors.Is(err, service.ErrFindingNotFound):
		response.NotFoundError(c, err.Error())
	default:
		h.log.Error("project request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		response.ServerError(c, "")
	}
}
