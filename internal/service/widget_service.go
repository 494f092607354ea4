package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/commentkit/commentkit/internal/config"
	"github.com/commentkit/commentkit/internal/repository"
	"github.com/commentkit/commentkit/internal/token"
)

// InitResult is the /widget/init payload handed to the host-page script.
type InitResult struct {
	Token     string `json:"token"`
	CSRFToken string `json:"csrfToken"`
	Domain    string `json:"domain"`
	SiteID    int64  `json:"site_id"`
	Verified  bool   `json:"verified"`
	ExpiresIn int    `json:"expires_in"`
}

// WidgetService mints the origin and CSRF tokens that bootstrap the widget
// bridge.
type WidgetService struct {
	sites  repository.SiteRepository
	cfg    config.Config
	logger *zap.Logger
	tracer trace.Tracer
}

// NewWidgetService wires dependencies.
func NewWidgetService(sites repository.SiteRepository, cfg config.Config, logger *zap.Logger) *WidgetService {
	return &WidgetService{
		sites:  sites,
		cfg:    cfg,
		logger: logger,
		tracer: otel.Tracer("github.com/commentkit/commentkit/internal/service"),
	}
}

// Init validates the browser-supplied Origin against the site registry and
// issues both tokens. The domain bound into the origin token comes from the
// Origin header alone; a client-supplied domain parameter is honored only in
// development, a deliberately weaker guarantee for local iteration.
func (s *WidgetService) Init(ctx context.Context, originHeader, devDomain string) (*InitResult, error) {
	ctx, span := s.tracer.Start(ctx, "WidgetService.Init")
	defer span.End()

	domainName, csrfOrigin, err := s.resolveDomain(originHeader, devDomain)
	if err != nil {
		return nil, err
	}

	site, err := s.sites.GetByDomain(ctx, domainName)
	if err != nil {
		if isNotFound(err) {
			return nil, newAPIError("Domain not registered", http.StatusNotFound)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("widget init site lookup: %w", err)
	}
	if !site.Verified {
		return nil, newAPIError("Domain not verified", http.StatusForbidden)
	}

	now := time.Now()
	result := &InitResult{
		Token:     token.IssueOriginToken(domainName, s.cfg.TokenSecret, now),
		CSRFToken: token.IssueCSRFToken(csrfOrigin, s.cfg.TokenSecret, now),
		Domain:    domainName,
		SiteID:    site.ID,
		Verified:  site.Verified,
		ExpiresIn: int(token.OriginTokenTTL.Seconds()),
	}

	s.logger.Debug("widget init issued",
		zap.String("domain", domainName),
		zap.Int64("site_id", site.ID),
	)
	return result, nil
}

func (s *WidgetService) resolveDomain(originHeader, devDomain string) (domainName, csrfOrigin string, err error) {
	originHeader = strings.TrimSpace(originHeader)
	if originHeader != "" {
		u, parseErr := url.Parse(originHeader)
		if parseErr != nil || u.Hostname() == "" {
			return "", "", newAPIError("Invalid Origin header", http.StatusBadRequest)
		}
		return strings.ToLower(u.Hostname()), strings.TrimRight(originHeader, "/"), nil
	}

	// No Origin header. Fail closed in production; in development a domain
	// query parameter keeps local file:// and curl testing workable.
	if s.cfg.IsProduction() || strings.TrimSpace(devDomain) == "" {
		return "", "", newAPIError("Origin header is required", http.StatusBadRequest)
	}
	d := strings.ToLower(strings.TrimSpace(devDomain))
	return d, "http://" + d, nil
}
