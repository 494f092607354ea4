package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"github.com/commentkit/commentkit/internal/config"
)

const apiKeyTrustedKey = "apiKeyTrusted"

// APIKey marks requests carrying a configured X-API-Key as trusted
// server-to-server traffic. Attach it only to routes documented as
// API-key-eligible; downstream CSRF and origin-token checks consult the
// flag and step aside.
func APIKey(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		presented := c.GetHeader("X-API-Key")
		if presented != "" {
			for _, key := range cfg.APIKeys {
				if len(presented) == len(key) &&
					subtle.ConstantTimeCompare([]byte(presented), []byte(key)) == 1 {
					c.Set(apiKeyTrustedKey, true)
					break
				}
			}
		}
		c.Next()
	}
}

// IsAPIKeyTrusted reports whether the request authenticated with a valid
// API key.
func IsAPIKeyTrusted(c *gin.Context) bool {
	value, ok := c.Get(apiKeyTrustedKey)
	if !ok {
		return false
	}
	trusted, ok := value.(bool)
	return ok && trusted
}
