package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"github.com/qs3c/repo_scan_server/internal/pkg/queue"
	"github.com/qs3c/repo_scan_server/internal/pkg/response"
	"github.com/qs3c/repo_scan_server/internal/repository"
	"github.com/qs3c/repo_scan_server/internal/service"
	"github.com/qs3c/repo_scan_server/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubDispatcher struct {
	err  error
	sent []*queue.JobMessage
}

func (d *stubDispatcher) Dispatch(ctx context.Context, msg *queue.JobMessage) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, msg)
	return nil
}

type testEnv struct {
	DB         *gorm.DB
	Dispatcher *stubDispatcher
	Jobs       *service.JobService
	Projects   *service.ProjectService
}

func setupEnv(t *testing.T) (*testEnv, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	log := zaptest.NewLogger(t)
	dispatcher := &stubDispatcher{}

	env := &testEnv{
		DB:         db,
		Dispatcher: dispatcher,
		Jobs:       service.NewJobService(repository.NewJobRepository(db), dispatcher, log),
		Projects:   service.NewProjectService(repository.NewProjectRepository(db), log),
	}
	return env, func() { testutil.CleanupTestDB(t, db) }
}

func performRequest(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	return resp
}

func dataMap(t *testing.T, resp response.Response) map[string]interface{} {
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok, "data is %T", resp.Data)
	return data
}
