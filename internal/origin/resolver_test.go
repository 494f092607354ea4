package origin_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/commentkit/commentkit/internal/config"
	"github.com/commentkit/commentkit/internal/domain"
	"github.com/commentkit/commentkit/internal/origin"
)

func testConfig(env string) config.Config {
	return config.Config{
		Environment:         env,
		FrontendURL:         "https://dash.commentkit.io",
		APIBaseURL:          "https://api.commentkit.io",
		WidgetBaseURL:       "https://widget.commentkit.io",
		ExtraAllowedOrigins: []string{"https://staging.commentkit.io"},
	}
}

func TestStaticAllowList(t *testing.T) {
	resolver := origin.NewResolver(testConfig("production"), &mockSiteRepo{}, nil)

	require.True(t, resolver.IsAllowed(context.Background(), "https://dash.commentkit.io"))
	require.True(t, resolver.IsAllowed(context.Background(), "https://api.commentkit.io"))
	require.True(t, resolver.IsAllowed(context.Background(), "https://staging.commentkit.io"))
	require.False(t, resolver.IsAllowed(context.Background(), ""))
	require.False(t, resolver.IsAllowed(context.Background(), "https://attacker.example"))
}

func TestVerifiedSiteAllowed(t *testing.T) {
	repo := &mockSiteRepo{sites: map[string]domain.Site{
		"blog.example.com": {ID: 1, Domain: "blog.example.com", Verified: true},
		"new.example.com":  {ID: 2, Domain: "new.example.com", Verified: false},
	}}
	resolver := origin.NewResolver(testConfig("production"), repo, nil)

	require.True(t, resolver.IsAllowed(context.Background(), "https://blog.example.com"))
	require.False(t, resolver.IsAllowed(context.Background(), "https://new.example.com"))
	require.False(t, resolver.IsAllowed(context.Background(), "https://unknown.example.com"))
}

func TestLocalhostOnlyInDevelopment(t *testing.T) {
	dev := origin.NewResolver(testConfig("development"), &mockSiteRepo{}, nil)
	prod := origin.NewResolver(testConfig("production"), &mockSiteRepo{}, nil)

	require.True(t, dev.IsAllowed(context.Background(), "http://localhost:5173"))
	require.True(t, dev.IsAllowed(context.Background(), "http://127.0.0.1:3000"))
	require.True(t, dev.IsAllowed(context.Background(), "http://demo.localhost:8000"))
	require.False(t, prod.IsAllowed(context.Background(), "http://localhost:5173"))
}

func TestTrustCachePreferred(t *testing.T) {
	repo := &mockSiteRepo{sites: map[string]domain.Site{
		"blog.example.com": {ID: 1, Domain: "blog.example.com", Verified: true},
	}}
	cache := &mockTrustCache{values: map[string]bool{}}
	resolver := origin.NewResolver(testConfig("production"), repo, cache)

	require.True(t, resolver.IsAllowed(context.Background(), "https://blog.example.com"))
	require.Equal(t, 1, repo.lookups)

	// Second check is served from the cache.
	require.True(t, resolver.IsAllowed(context.Background(), "https://blog.example.com"))
	require.Equal(t, 1, repo.lookups)
}

func TestRegistryOutageDoesNotPoisonCache(t *testing.T) {
	repo := &mockSiteRepo{
		sites: map[string]domain.Site{
			"blog.example.com": {ID: 1, Domain: "blog.example.com", Verified: true},
		},
		err: errors.New("connection refused"),
	}
	cache := &mockTrustCache{values: map[string]bool{}}
	resolver := origin.NewResolver(testConfig("production"), repo, cache)

	// Denied while the registry is down, but nothing is cached.
	require.False(t, resolver.IsAllowed(context.Background(), "https://blog.example.com"))
	require.Empty(t, cache.values)

	// Registry recovers; the verified domain is trusted again immediately.
	repo.err = nil
	require.True(t, resolver.IsAllowed(context.Background(), "https://blog.example.com"))
	require.Equal(t, map[string]bool{"blog.example.com": true}, cache.values)
}

func TestUnknownDomainIsCachedUntrusted(t *testing.T) {
	cache := &mockTrustCache{values: map[string]bool{}}
	resolver := origin.NewResolver(testConfig("production"), &mockSiteRepo{}, cache)

	require.False(t, resolver.IsAllowed(context.Background(), "https://unknown.example.com"))
	require.Equal(t, map[string]bool{"unknown.example.com": false}, cache.values)
}

type mockSiteRepo struct {
	sites   map[string]domain.Site
	lookups int
	err     error
}

func (m *mockSiteRepo) GetByDomain(ctx context.Context, host string) (domain.Site, error) {
	m.lookups++
	if m.err != nil {
		return domain.Site{}, m.err
	}
	if site, ok := m.sites[host]; ok {
		return site, nil
	}
	return domain.Site{}, pgx.ErrNoRows
}

type mockTrustCache struct {
	values map[string]bool
}

func (m *mockTrustCache) GetTrusted(ctx context.Context, host string) (*bool, error) {
	if v, ok := m.values[host]; ok {
		return &v, nil
	}
	return nil, nil
}

func (m *mockTrustCache) SetTrusted(ctx context.Context, host string, trusted bool, ttl time.Duration) error {
	m.values[host] = trusted
	return nil
}
