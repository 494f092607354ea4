package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/commentkit/commentkit/internal/service"
)

// WidgetHandler serves the widget bootstrap endpoint.
type WidgetHandler struct {
	Widget *service.WidgetService
}

// NewWidgetHandler wires dependencies.
func NewWidgetHandler(widget *service.WidgetService) *WidgetHandler {
	return &WidgetHandler{Widget: widget}
}

// Init handles GET /widget/init. The domain is taken from the Origin header
// the browser sets; the dev-only domain query parameter is honored by the
// service outside production.
func (h *WidgetHandler) Init(c *gin.Context) {
	result, err := h.Widget.Init(c.Request.Context(), c.GetHeader("Origin"), c.Query("domain"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func respondError(c *gin.Context, err error) {
	if apiErr, ok := err.(*service.APIError); ok {
		c.JSON(apiErr.Status, gin.H{"error": apiErr.Message})
		return
	}
	zap.L().Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}
