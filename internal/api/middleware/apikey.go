package middleware

import (
	"crypto/sha256"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/qs3c/repo_scan_server/internal/pkg/response"
)

const APIKeyHeader = "X-API-Key"

// APIKey admits requests carrying a key that matches one of the bcrypt
// hashes, in the X-API-Key header or as a bearer token. No hashes means the
// API is open.
func APIKey(hashes []string) gin.HandlerFunc {
	if len(hashes) == 0 {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	// bcrypt is slow on purpose; keys that passed once are remembered by digest
	var verified sync.Map

	return func(c *gin.Context) {
		key := requestKey(c)
		if key == "" {
			response.AuthError(c, "missing api key")
			c.Abort()
			return
		}

		digest := sha256.Sum256([]byte(key))
		if _, ok := verified.Load(digest); ok {
			c.Next()
			return
		}

		for _, h := range hashes {
			if bcrypt.CompareHashAndPassword([]byte(h), []byte(key)) == nil {
				verified.Store(digest, struct{}{})
				c.Next()
				return
			}
		}

		response.AuthError(c, "invalid api key")
		c.Abort()
	}
}

func requestKey(c *gin.Context) string {
	if key := strings.TrimSpace(c.GetHeader(APIKeyHeader)); key != "" {
		return key
	}
	auth := c.GetHeader("Authorization")
	if token := strings.TrimPrefix(auth, "Bearer "); token != auth {
		return strings.TrimSpace(token)
	}
	return ""
}
