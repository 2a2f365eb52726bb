package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/repo_scan_server/internal/pkg/response"
	"github.com/qs3c/repo_scan_server/internal/risk"
)

type RulesHandler struct {
	classifier *risk.Classifier
}

func NewRulesHandler(classifier *risk.Classifier) *RulesHandler {
	return &RulesHandler{classifier: classifier}
}

// List shows the active PII/PCI rules and any that failed to compile
// GET /api/v1/rules
func (h *RulesHandler) List(c *gin.Context) {
	rules, problems := h.classifier.Rules()
	response.Success(c, gin.H{
		"rules":    rules,
		"problems": problems,
	})
}
