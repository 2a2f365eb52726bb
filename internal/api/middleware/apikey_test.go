package middleware

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/qs3c/repo_scan_server/internal/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func hashKey(t *testing.T, key string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func apiKeyRouter(hashes []string) *gin.Engine {
	router := gin.New()
	router.Use(APIKey(hashes))
	router.GET("/test", func(c *gin.Context) {
		response.Success(c, nil)
	})
	return router
}

func call(router *gin.Engine, headers map[string]string) response.Response {
	req := httptest.NewRequest("GET", "/test", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp response.Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

func TestAPIKey_Disabled(t *testing.T) {
	router := apiKeyRouter(nil)

	resp := call(router, nil)
	assert.Equal(t, response.CodeSuccess, resp.Code)
}

func TestAPIKey(t *testing.T) {
	router := apiKeyRouter([]string{hashKey(t, "first-key"), hashKey(t, "second-key")})

	tests := []struct {
		name     string
		headers  map[string]string
		wantCode int
		wantMsg  string
	}{
		{"header key", map[string]string{APIKeyHeader: "first-key"}, response.CodeSuccess, ""},
		{"second key", map[string]string{APIKeyHeader: "second-key"}, response.CodeSuccess, ""},
		{"bearer token", map[string]string{"Authorization": "Bearer second-key"}, response.CodeSuccess, ""},
		{"missing", nil, response.CodeAuthFailed, "missing api key"},
		{"wrong key", map[string]string{APIKeyHeader: "nope"}, response.CodeAuthFailed, "invalid api key"},
		{"basic auth", map[string]string{"Authorization": "Basic Zmlyc3Qta2V5"}, response.CodeAuthFailed, "missing api key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := call(router, tt.headers)
			assert.Equal(t, tt.wantCode, resp.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, resp.Message)
			}
		})
	}
}

func TestAPIKey_RemembersVerifiedKey(t *testing.T) {
	router := apiKeyRouter([]string{hashKey(t, "first-key")})

	for i := 0; i < 3; i++ {
		resp := call(router, map[string]string{APIKeyHeader: "first-key"})
		assert.Equal(t, response.CodeSuccess, resp.Code)
	}

	resp := call(router, map[string]string{APIKeyHeader: "first-key-2"})
	assert.Equal(t, response.CodeAuthFailed, resp.Code)
}
