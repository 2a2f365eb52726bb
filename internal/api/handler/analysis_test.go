package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/qs3c/repo_scan_server/internal/model"
	"github.com/qs3c/repo_scan_server/internal/model/dto"
	"github.com/qs3c/repo_scan_server/internal/pkg/queue"
	"github.com/qs3c/repo_scan_server/internal/pkg/response"
	"github.com/qs3c/repo_scan_server/internal/testutil"
)

func analysisRouter(t *testing.T, env *testEnv) *gin.Engine {
	h := NewAnalysisHandler(env.Jobs, zaptest.NewLogger(t))
	router := gin.New()
	router.POST("/analyses", h.Submit)
	router.GET("/analyses/jobs/:id", h.GetJob)
	return router
}

func TestAnalysisHandler_Submit_Success(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()

	w := performRequest(analysisRouter(t, env), "POST", "/analyses", dto.SubmitAnalysisRequest{
		RepoURL: "https://github.com/acme/shop.git",
	})
	resp := parseResponse(t, w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeSuccess, resp.Code)
	assert.Equal(t, model.MsgQueued, resp.Message)

	data := dataMap(t, resp)
	assert.NotEmpty(t, data["job_id"])
	assert.Equal(t, model.JobQueued, data["status"])

	require.Len(t, env.Dispatcher.sent, 1)
	assert.Equal(t, data["job_id"], env.Dispatcher.sent[0].JobID)
}

func TestAnalysisHandler_Submit_QueueFull(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	env.Dispatcher.err = queue.ErrQueueFull

	w := performRequest(analysisRouter(t, env), "POST", "/analyses", dto.SubmitAnalysisRequest{
		RepoURL: "https://github.com/acme/shop.git",
	})
	resp := parseResponse(t, w)

	assert.Equal(t, response.CodeSuccess, resp.Code)
	assert.Equal(t, model.MsgQueueFull, resp.Message)
	assert.Equal(t, model.JobFailed, dataMap(t, resp)["status"])
}

func TestAnalysisHandler_Submit_InvalidInput(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()

	router := analysisRouter(t, env)

	tests := []struct {
		name string
		body interface{}
	}{
		{"missing body", nil},
		{"missing url", map[string]string{"branch": "main"}},
		{"unsupported scheme", dto.SubmitAnalysisRequest{RepoURL: "ftp://example.com/repo"}},
		{"bad branch", dto.SubmitAnalysisRequest{RepoURL: "https://github.com/acme/shop", Branch: "a b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := parseResponse(t, performRequest(router, "POST", "/analyses", tt.body))
			assert.Equal(t, response.CodeParamError, resp.Code)
		})
	}
	assert.Empty(t, env.Dispatcher.sent)
}

func TestAnalysisHandler_GetJob(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()

	job := testutil.TestJob(t, env.DB, "https://github.com/acme/shop", model.JobRunning)
	router := analysisRouter(t, env)

	resp := parseResponse(t, performRequest(router, "GET", "/analyses/jobs/"+job.ID, nil))
	require.Equal(t, response.CodeSuccess, resp.Code)

	data := dataMap(t, resp)
	assert.Equal(t, job.ID, data["job_id"])
	assert.Equal(t, model.JobRunning, data["status"])
	assert.Equal(t, model.MsgRunning, data["status_message"])
	assert.NotEmpty(t, data["started_at"])

	resp = parseResponse(t, performRequest(router, "GET", "/analyses/jobs/missing", nil))
	assert.Equal(t, response.CodeResourceNotFound, resp.Code)
}
