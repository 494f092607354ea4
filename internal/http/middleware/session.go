package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/commentkit/commentkit/internal/domain"
	"github.com/commentkit/commentkit/internal/service"
)

const currentUserKey = "currentUser"

// Session resolves the login session (ck_auth cookie, then bearer header)
// and attaches the user.
type Session struct {
	Auth *service.AuthService
}

// RequireSession rejects unauthenticated requests with 401.
func (m *Session) RequireSession(c *gin.Context) {
	user := m.Auth.Authenticate(c.Request.Context(), c.Request)
	if user == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}
	c.Set(currentUserKey, user)
	c.Next()
}

// OptionalSession attaches the user when a valid credential is present and
// continues either way. Guest traffic stays anonymous.
func (m *Session) OptionalSession(c *gin.Context) {
	if user := m.Auth.Authenticate(c.Request.Context(), c.Request); user != nil {
		c.Set(currentUserKey, user)
	}
	c.Next()
}

// GetCurrentUser extracts the authenticated user from gin.
func GetCurrentUser(c *gin.Context) (*domain.User, bool) {
	value, ok := c.Get(currentUserKey)
	if !ok {
		return nil, false
	}
	user, ok := value.(*domain.User)
	return user, ok
}
