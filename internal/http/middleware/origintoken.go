package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/commentkit/commentkit/internal/config"
	"github.com/commentkit/commentkit/internal/token"
)

const originTokenDomainKey = "originTokenDomain"

// RequireOriginToken verifies the X-Origin-Token header on mutating widget
// traffic and stashes the embedded domain so handlers can match it against
// the domain claimed in the request body. The token proves only which
// origin fetched /widget/init; the body comparison is what stops a forged
// domain claim.
func RequireOriginToken(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsAPIKeyTrusted(c) {
			c.Next()
			return
		}

		domainName, err := token.VerifyOriginToken(c.GetHeader("X-Origin-Token"), cfg.TokenSecret, time.Now())
		if err != nil {
			zap.L().Warn("origin token verification failed",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(originTokenDomainKey, domainName)
		c.Next()
	}
}

// GetOriginTokenDomain returns the domain bound into the verified origin
// token, when present.
func GetOriginTokenDomain(c *gin.Context) (string, bool) {
	value, ok := c.Get(originTokenDomainKey)
	if !ok {
		return "", false
	}
	domainName, ok := value.(string)
	return domainName, ok
}
