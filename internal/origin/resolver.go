package origin

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/commentkit/commentkit/internal/config"
	"github.com/commentkit/commentkit/internal/repository"
)

const trustCacheTTL = 5 * time.Minute

// Resolver decides, per request, whether an Origin header is allowed:
// first an exact match against the statically configured origins, then a
// dynamic check against domains marked verified in the site registry.
// Verified customer domains receive CORS trust without per-customer config.
type Resolver struct {
	statics      map[string]struct{}
	devLocalhost bool
	sites        repository.SiteRepository
	cache        repository.DomainTrustCache
}

// NewResolver builds the static allow-set from configuration. cache may be
// nil; registry lookups then go to the repository every time.
func NewResolver(cfg config.Config, sites repository.SiteRepository, cache repository.DomainTrustCache) *Resolver {
	statics := make(map[string]struct{})
	for _, o := range append([]string{cfg.FrontendURL, cfg.APIBaseURL, cfg.WidgetBaseURL}, cfg.ExtraAllowedOrigins...) {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			statics[o] = struct{}{}
		}
	}
	return &Resolver{
		statics:      statics,
		devLocalhost: !cfg.IsProduction(),
		sites:        sites,
		cache:        cache,
	}
}

// IsAllowed reports whether origin may receive CORS trust. A denied origin
// gets no Access-Control-Allow-Origin header; the browser enforces the block.
func (r *Resolver) IsAllowed(ctx context.Context, origin string) bool {
	cleaned := strings.TrimRight(strings.TrimSpace(origin), "/")
	if cleaned == "" {
		return false
	}
	if _, ok := r.statics[cleaned]; ok {
		return true
	}

	u, err := url.Parse(cleaned)
	if err != nil || u.Hostname() == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())

	if r.devLocalhost && isLocalhost(host) {
		return true
	}

	if r.cache != nil {
		if trusted, err := r.cache.GetTrusted(ctx, host); err != nil {
			zap.L().Warn("domain trust cache read failed", zap.String("host", host), zap.Error(err))
		} else if trusted != nil {
			return *trusted
		}
	}

	site, err := r.sites.GetByDomain(ctx, host)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		// Transient registry failure. Deny this request but leave the cache
		// alone; a short outage must not poison trust for verified domains.
		zap.L().Warn("site registry lookup failed", zap.String("host", host), zap.Error(err))
		return false
	}
	trusted := err == nil && site.Verified

	if r.cache != nil {
		if err := r.cache.SetTrusted(ctx, host, trusted, trustCacheTTL); err != nil {
			zap.L().Warn("domain trust cache write failed", zap.String("host", host), zap.Error(err))
		}
	}
	return trusted
}

func isLocalhost(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1" ||
		strings.HasSuffix(host, ".localhost")
}
