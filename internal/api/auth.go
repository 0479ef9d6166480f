package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// AuthMiddleware validates "Authorization: Bearer <token>" against the
// configured token. An empty token disables auth entirely; that is the
// expected setup for gateways behind a trusted proxy, so it is only logged,
// not refused.
func AuthMiddleware(token string, log zerolog.Logger) gin.HandlerFunc {
	if token == "" {
		log.Warn().Msg("API_AUTH_TOKEN not set, inspect endpoints are unauthenticated")
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing Authorization header",
			})
			return
		}

		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "invalid Authorization header format",
			})
			return
		}

		// Constant-time comparison prevents timing-based token enumeration.
		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "invalid token",
			})
			return
		}
		c.Next()
	}
}
