package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/commentkit/commentkit/internal/domain"
	"github.com/commentkit/commentkit/internal/http/middleware"
	"github.com/commentkit/commentkit/internal/repository"
	"github.com/commentkit/commentkit/internal/service"
)

// CommentHandler serves the guarded mutating bridge route. The route group
// carries the CSRF and origin-token middleware; this handler adds the
// domain-claim comparison that stops a token minted for one site from
// writing to another.
type CommentHandler struct {
	Comments  repository.CommentRepository
	Sites     repository.SiteRepository
	Auth      *service.AuthService
	Snowflake *snowflake.Node
}

// NewCommentHandler wires dependencies.
func NewCommentHandler(comments repository.CommentRepository, sites repository.SiteRepository, auth *service.AuthService, node *snowflake.Node) *CommentHandler {
	return &CommentHandler{Comments: comments, Sites: sites, Auth: auth, Snowflake: node}
}

// Create handles POST /comments.
func (h *CommentHandler) Create(c *gin.Context) {
	var req struct {
		Domain     string `json:"domain"`
		PageID     string `json:"page_id"`
		AuthorName string `json:"author_name"`
		Content    string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}

	req.Domain = strings.ToLower(strings.TrimSpace(req.Domain))
	req.PageID = strings.TrimSpace(req.PageID)
	if req.Domain == "" || req.PageID == "" || strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Domain, page_id and content are required"})
		return
	}

	// The domain claimed in the body must match the domain bound into the
	// verified origin token. Rejected here, before any persistence call.
	if !middleware.IsAPIKeyTrusted(c) {
		tokenDomain, ok := middleware.GetOriginTokenDomain(c)
		if !ok || tokenDomain != req.Domain {
			zap.L().Warn("origin token domain mismatch",
				zap.String("claimed", req.Domain),
				zap.String("token_domain", tokenDomain),
			)
			c.JSON(http.StatusForbidden, gin.H{"error": "Invalid or expired token"})
			return
		}
	}

	site, err := h.Sites.GetByDomain(c.Request.Context(), req.Domain)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Domain not registered"})
			return
		}
		respondError(c, fmt.Errorf("comment site lookup: %w", err))
		return
	}
	if !site.Verified {
		c.JSON(http.StatusForbidden, gin.H{"error": "Domain not verified"})
		return
	}

	comment := domain.Comment{
		ID:         h.Snowflake.Generate().Int64(),
		SiteID:     site.ID,
		PageID:     req.PageID,
		AuthorName: strings.TrimSpace(req.AuthorName),
		Body:       req.Content,
	}
	if user := h.Auth.Authenticate(c.Request.Context(), c.Request); user != nil {
		comment.AuthorID = &user.ID
		comment.AuthorName = user.Email
	}

	created, err := h.Comments.Create(c.Request.Context(), comment)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":          created.ID,
		"site_id":     created.SiteID,
		"page_id":     created.PageID,
		"author_name": created.AuthorName,
		"content":     created.Body,
		"created_at":  created.CreatedAt,
	})
}
