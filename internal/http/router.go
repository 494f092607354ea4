package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/commentkit/commentkit/internal/config"
	"github.com/commentkit/commentkit/internal/http/handler"
	httpmiddleware "github.com/commentkit/commentkit/internal/http/middleware"
	"github.com/commentkit/commentkit/internal/origin"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(
	cfg config.Config,
	widgetHandler *handler.WidgetHandler,
	authHandler *handler.AuthHandler,
	commentHandler *handler.CommentHandler,
	healthHandler *handler.HealthHandler,
	sessions *httpmiddleware.Session,
	resolver *origin.Resolver,
	rateLimiter *httpmiddleware.RateLimiter,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(httpmiddleware.CORS(resolver))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	r.GET("/healthz", healthHandler.Check)
	r.GET("/widget/init", widgetHandler.Init)

	// Login and logout are mutating; browser posts from customer origins
	// must echo the CSRF token minted at /widget/init, while the dashboard
	// and iframe bridge origins fall under the exemption.
	authGroup := r.Group("/auth", httpmiddleware.CSRF(cfg))
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.GET("/verify", authHandler.Verify)
		authGroup.GET("/me", sessions.RequireSession, authHandler.Me)
		authGroup.POST("/logout", authHandler.Logout)
	}

	// The one API-key-eligible route group. CSRF and origin-token checks
	// guard all mutating widget traffic here.
	comments := r.Group("/comments",
		httpmiddleware.APIKey(cfg),
		httpmiddleware.CSRF(cfg),
		httpmiddleware.RequireOriginToken(cfg),
	)
	{
		comments.POST("", commentHandler.Create)
	}

	return r
}
