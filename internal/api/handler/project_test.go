package handler

import (
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/qs3c/repo_scan_server/internal/model"
	"github.com/qs3c/repo_scan_server/internal/pkg/response"
	"github.com/qs3c/repo_scan_server/internal/testutil"
)

func projectRouter(t *testing.T, env *testEnv) *gin.Engine {
	h := NewProjectHandler(env.Projects, zaptest.NewLogger(t))
	router := gin.New()
	router.GET("/projects/:id", h.Get)
	router.GET("/projects/:id/log-statements", h.ListLogStatements)
	router.GET("/projects/:id/findings", h.ListFindings)
	router.PATCH("/projects/:id/findings/:findingId", h.UpdateFinding)
	return router
}

func idPath(prefix string, id int64, suffix string) string {
	return prefix + itoa(id) + suffix
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestProjectHandler_Get(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()

	project := testutil.TestProject(t, env.DB, testutil.WithName("shop"))
	require.NoError(t, env.DB.Create(&model.ProjectSnapshot{
		ProjectID: project.ID,
		Payload:   `{"project_name":"shop","classes":[],"endpoints":[],"findings":[],"warnings":[]}`,
	}).Error)
	testutil.TestFinding(t, env.DB, project.ID, "a.yml", 1, false)

	router := projectRouter(t, env)

	resp := parseResponse(t, performRequest(router, "GET", idPath("/projects/", project.ID, ""), nil))
	require.Equal(t, response.CodeSuccess, resp.Code)

	data := dataMap(t, resp)
	assert.Equal(t, float64(project.ID), data["project_id"])
	assert.Equal(t, "shop", data["project_name"])
	findings, ok := data["findings"].([]interface{})
	require.True(t, ok)
	assert.Len(t, findings, 1)
}

func TestProjectHandler_Get_Errors(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()

	router := projectRouter(t, env)

	resp := parseResponse(t, performRequest(router, "GET", "/projects/abc", nil))
	assert.Equal(t, response.CodeParamError, resp.Code)

	resp = parseResponse(t, performRequest(router, "GET", "/projects/0", nil))
	assert.Equal(t, response.CodeParamError, resp.Code)

	resp = parseResponse(t, performRequest(router, "GET", "/projects/404", nil))
	assert.Equal(t, response.CodeResourceNotFound, resp.Code)
}

func TestProjectHandler_ListLogStatements(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()

	project := testutil.TestProject(t, env.DB)
	testutil.TestLogStatement(t, env.DB, project.ID, "INFO", true)
	testutil.TestLogStatement(t, env.DB, project.ID, "DEBUG", false)
	testutil.TestLogStatement(t, env.DB, project.ID, "INFO", false)

	router := projectRouter(t, env)

	resp := parseResponse(t, performRequest(router, "GET", idPath("/projects/", project.ID, "/log-statements?page=1&page_size=2"), nil))
	require.Equal(t, response.CodeSuccess, resp.Code)
	data := dataMap(t, resp)
	assert.Equal(t, float64(3), data["total"])
	assert.Equal(t, float64(2), data["page_size"])
	assert.Len(t, data["items"], 2)

	resp = parseResponse(t, performRequest(router, "GET", idPath("/projects/", project.ID, "/log-statements?risky=true"), nil))
	data = dataMap(t, resp)
	assert.Equal(t, float64(1), data["total"])

	resp = parseResponse(t, performRequest(router, "GET", "/projects/404/log-statements", nil))
	assert.Equal(t, response.CodeResourceNotFound, resp.Code)
}

func TestProjectHandler_Findings(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()

	project := testutil.TestProject(t, env.DB)
	finding := testutil.TestFinding(t, env.DB, project.ID, "a.yml", 1, false)
	testutil.TestFinding(t, env.DB, project.ID, "b.yml", 2, false)

	router := projectRouter(t, env)
	patch := idPath("/projects/", project.ID, "/findings/") + itoa(finding.ID)

	resp := parseResponse(t, performRequest(router, "PATCH", patch, map[string]bool{"ignored": true}))
	require.Equal(t, response.CodeSuccess, resp.Code)
	assert.Equal(t, true, dataMap(t, resp)["ignored"])

	resp = parseResponse(t, performRequest(router, "GET", idPath("/projects/", project.ID, "/findings"), nil))
	assert.Equal(t, float64(1), dataMap(t, resp)["total"])

	resp = parseResponse(t, performRequest(router, "GET", idPath("/projects/", project.ID, "/findings?include_ignored=true&type=pii"), nil))
	assert.Equal(t, float64(2), dataMap(t, resp)["total"])

	resp = parseResponse(t, performRequest(router, "PATCH", patch, map[string]string{}))
	assert.Equal(t, response.CodeParamError, resp.Code)

	resp = parseResponse(t, performRequest(router, "PATCH", idPath("/projects/", project.ID, "/findings/9999"), map[string]bool{"ignored": true}))
	assert.Equal(t, response.CodeResourceNotFound, resp.Code)
}
