package handler

import (
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/qs3c/repo_scan_server/config"
	"github.com/qs3c/repo_scan_server/internal/pkg/response"
	"github.com/qs3c/repo_scan_server/internal/risk"
)

func TestRulesHandler_List(t *testing.T) {
	classifier := risk.New(config.ScanConfig{Rules: []config.RiskRule{
		{ID: "passport", Keyword: "passport", Type: "PII", Severity: "HIGH"},
		{ID: "broken", Regex: "("},
	}}, zaptest.NewLogger(t))

	router := gin.New()
	router.GET("/rules", NewRulesHandler(classifier).List)

	resp := parseResponse(t, performRequest(router, "GET", "/rules", nil))
	require.Equal(t, response.CodeSuccess, resp.Code)

	data := dataMap(t, resp)
	rules, ok := data["rules"].([]interface{})
	require.True(t, ok)
	require.Len(t, rules, 1)
	assert.Equal(t, "passport", rules[0].(map[string]interface{})["id"])
	assert.Len(t, data["problems"], 1)
}
