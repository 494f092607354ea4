package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/commentkit/commentkit/internal/config"
	"github.com/commentkit/commentkit/internal/domain"
	"github.com/commentkit/commentkit/internal/http/middleware"
	"github.com/commentkit/commentkit/internal/service"
)

// AuthHandler serves the passwordless login endpoints.
type AuthHandler struct {
	Auth *service.AuthService
	cfg  config.Config
}

// NewAuthHandler wires dependencies.
func NewAuthHandler(auth *service.AuthService, cfg config.Config) *AuthHandler {
	return &AuthHandler{Auth: auth, cfg: cfg}
}

type userResponse struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	IsSuperadmin bool   `json:"is_superadmin"`
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, IsSuperadmin: u.IsSuperadmin}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email       string `json:"email"`
		RedirectURL string `json:"redirect_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Valid email is required"})
		return
	}

	if err := h.Auth.RequestLogin(c.Request.Context(), req.Email, req.RedirectURL); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Check your email for a login link"})
}

// Verify handles GET /auth/verify?token=. Any token-level failure collapses
// into one generic 400 so redemption cannot be probed.
func (h *AuthHandler) Verify(c *gin.Context) {
	tokenValue := strings.TrimSpace(c.Query("token"))
	if tokenValue == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired token"})
		return
	}

	user, _, raw, err := h.Auth.Redeem(c.Request.Context(), tokenValue)
	if err != nil {
		if errors.Is(err, service.ErrLinkNotFound) || errors.Is(err, service.ErrLinkUsed) || errors.Is(err, service.ErrLinkExpired) {
			zap.L().Warn("magic link redemption rejected", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired token"})
			return
		}
		respondError(c, err)
		return
	}

	h.setSessionCookie(c, raw)
	c.JSON(http.StatusOK, gin.H{
		"token": raw,
		"user":  toUserResponse(user),
	})
}

// Me handles GET /auth/me. RequireSession has already resolved the user.
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.GetCurrentUser(c)
	if !ok || user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}
	c.JSON(http.StatusOK, toUserResponse(*user))
}

// Logout handles POST /auth/logout. Always 200, even with no session.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.Auth.Logout(c.Request.Context(), c.Request)
	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// The widget iframe is a cross-origin context, so the production cookie must
// be SameSite=None + Secure or browsers will drop it.
func (h *AuthHandler) setSessionCookie(c *gin.Context, value string) {
	prod := h.cfg.IsProduction()
	sameSite := http.SameSiteLaxMode
	if prod {
		sameSite = http.SameSiteNoneMode
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    value,
		Path:     "/",
		Domain:   h.cfg.CookieDomain,
		MaxAge:   int(h.cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   prod,
		SameSite: sameSite,
	})
}

func (h *AuthHandler) clearSessionCookie(c *gin.Context) {
	prod := h.cfg.IsProduction()
	sameSite := http.SameSiteLaxMode
	if prod {
		sameSite = http.SameSiteNoneMode
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.cfg.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   prod,
		SameSite: sameSite,
	})
}
