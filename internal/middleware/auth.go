package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/kosarica/allocation-service/internal/optimizer"
)

// APIKeyHeader carries the service-to-service key
const APIKeyHeader = "X-Internal-API-Key"

// InternalAuthMiddleware accepts a request whose X-Internal-API-Key header,
// or bearer token, matches one of the comma-separated keys in apiKeys. Two
// keys may be configured while callers rotate. With no keys configured
// every request fails with 500.
func InternalAuthMiddleware(apiKeys string) gin.HandlerFunc {
	var keys [][]byte
	for _, k := range strings.Split(apiKeys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, []byte(k))
		}
	}
	if len(keys) == 0 {
		return func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "server misconfigured: internal API key not set",
			})
		}
	}

	return func(c *gin.Context) {
		presented := []byte(presentedKey(c.Request))
		match := 0
		for _, k := range keys {
			// Compare against every key.
			match |= subtle.ConstantTimeCompare(presented, k)
		}
		if match != 1 {
			log.Warn().
				Str("request_id", optimizer.RequestID(c.Request.Context())).
				Str("path", c.FullPath()).
				Str("client_ip", c.ClientIP()).
				Msg("Rejected request with invalid API key")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func presentedKey(r *http.Request) string {
	if k := r.Header.Get(APIKeyHeader); k != "" {
		return k
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
