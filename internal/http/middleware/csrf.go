package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/commentkit/commentkit/internal/config"
	"github.com/commentkit/commentkit/internal/token"
)

// CSRF enforces the double-submit token on mutating requests: the
// X-CSRF-Token header must carry a token minted for the live Origin.
//
// Requests whose Origin exactly equals the API's or the dashboard's own
// origin come from the widget's internal iframe bridge and skip the strict
// match; for those the security boundary is the origin-token check instead.
// The exemption is an exact string comparison on purpose so it cannot grow
// into a bypass.
func CSRF(cfg config.Config) gin.HandlerFunc {
	exempt := map[string]struct{}{}
	for _, o := range []string{cfg.APIBaseURL, cfg.FrontendURL} {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			exempt[o] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		if IsAPIKeyTrusted(c) {
			c.Next()
			return
		}

		requestOrigin := strings.TrimRight(c.GetHeader("Origin"), "/")
		if requestOrigin == "" {
			// No Origin header means no browser cross-site context; CSRF is
			// a browser attack vector and non-browser callers are covered by
			// the API key and origin token checks.
			c.Next()
			return
		}
		if _, ok := exempt[requestOrigin]; ok {
			c.Next()
			return
		}

		err := token.ValidateCSRFToken(c.GetHeader("X-CSRF-Token"), requestOrigin, cfg.TokenSecret, time.Now())
		if err != nil {
			zap.L().Warn("csrf validation failed",
				zap.String("origin", requestOrigin),
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Next()
	}
}
