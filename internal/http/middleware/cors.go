package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/commentkit/commentkit/internal/origin"
)

const (
	corsMethods = "GET, POST, PUT, DELETE, OPTIONS"
	corsHeaders = "Authorization, Content-Type, X-CSRF-Token, X-Origin-Token, X-API-Key"
)

// CORS emits cross-origin headers for origins the trust resolver allows:
// the dashboard/API's own origins unconditionally, customer domains once
// verified. A denied origin gets no Access-Control-Allow-Origin header at
// all; the browser enforces the block.
func CORS(resolver *origin.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestOrigin := c.GetHeader("Origin")
		if requestOrigin == "" {
			c.Next()
			return
		}

		if !resolver.IsAllowed(c.Request.Context(), requestOrigin) {
			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusNoContent)
				return
			}
			c.Next()
			return
		}

		header := c.Writer.Header()
		header.Set("Vary", "Origin")
		header.Set("Access-Control-Allow-Origin", requestOrigin)
		header.Set("Access-Control-Allow-Credentials", "true")
		header.Set("Access-Control-Allow-Methods", corsMethods)
		header.Set("Access-Control-Allow-Headers", corsHeaders)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
