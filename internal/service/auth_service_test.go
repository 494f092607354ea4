package service_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/commentkit/commentkit/internal/config"
	"github.com/commentkit/commentkit/internal/domain"
	"github.com/commentkit/commentkit/internal/service"
)

func testConfig() config.Config {
	return config.Config{
		Environment:  "development",
		APIBaseURL:   "https://api.commentkit.test",
		FrontendURL:  "https://dash.commentkit.test",
		CookieName:   "ck_auth",
		TokenSecret:  "0123456789abcdef0123456789abcdef",
		MagicLinkTTL: 15 * time.Minute,
		SessionTTL:   30 * 24 * time.Hour,
	}
}

func newTestAuthService(t *testing.T) (*service.AuthService, *memoryStores, *memoryMailer) {
	t.Helper()
	stores := newMemoryStores()
	mailer := &memoryMailer{}
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	svc := service.NewAuthService(stores.users, stores.sessions, stores.links, mailer, node, testConfig(), zap.NewNop())
	return svc, stores, mailer
}

func TestRequestLoginCreatesLinkAndSendsMail(t *testing.T) {
	svc, stores, mailer := newTestAuthService(t)

	err := svc.RequestLogin(context.Background(), "A@B.com", "")
	require.NoError(t, err)

	require.Len(t, stores.links.rows, 1)
	var link domain.MagicLinkToken
	for _, l := range stores.links.rows {
		link = l
	}
	require.Equal(t, "a@b.com", link.Email)
	require.False(t, link.Used)
	require.WithinDuration(t, time.Now().Add(15*time.Minute), link.ExpiresAt, 5*time.Second)

	require.Len(t, mailer.sent, 1)
	require.Equal(t, "a@b.com", mailer.sent[0].to)
	require.Contains(t, mailer.sent[0].link, "https://api.commentkit.test/auth/verify?token="+link.Token)
}

func TestRequestLoginRejectsInvalidEmail(t *testing.T) {
	svc, _, _ := newTestAuthService(t)

	err := svc.RequestLogin(context.Background(), "not-an-email", "")
	apiErr, ok := err.(*service.APIError)
	require.True(t, ok)
	require.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestRequestLoginRejectsForeignRedirect(t *testing.T) {
	svc, _, _ := newTestAuthService(t)

	require.NoError(t, svc.RequestLogin(context.Background(), "a@b.com", "/dashboard"))
	require.NoError(t, svc.RequestLogin(context.Background(), "a@b.com", "https://dash.commentkit.test/sites"))

	err := svc.RequestLogin(context.Background(), "a@b.com", "https://evil.example/phish")
	apiErr, ok := err.(*service.APIError)
	require.True(t, ok)
	require.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestRedeemExactlyOnce(t *testing.T) {
	svc, stores, _ := newTestAuthService(t)
	require.NoError(t, svc.RequestLogin(context.Background(), "a@b.com", ""))
	tokenValue := stores.links.onlyToken()

	user, session, raw, err := svc.Redeem(context.Background(), tokenValue)
	require.NoError(t, err)
	require.Equal(t, "a@b.com", user.Email)
	require.NotEmpty(t, raw)
	require.NotEqual(t, raw, session.TokenHash)
	require.Len(t, stores.sessions.rows, 1)

	// Second redemption must fail and not mint a second session.
	_, _, _, err = svc.Redeem(context.Background(), tokenValue)
	require.ErrorIs(t, err, service.ErrLinkUsed)
	require.Len(t, stores.sessions.rows, 1)
}

func TestRedeemExpiredLink(t *testing.T) {
	svc, stores, _ := newTestAuthService(t)
	require.NoError(t, svc.RequestLogin(context.Background(), "a@b.com", ""))
	tokenValue := stores.links.onlyToken()
	stores.links.expire(tokenValue)

	_, _, _, err := svc.Redeem(context.Background(), tokenValue)
	require.ErrorIs(t, err, service.ErrLinkExpired)
}

func TestRedeemUnknownLink(t *testing.T) {
	svc, _, _ := newTestAuthService(t)

	_, _, _, err := svc.Redeem(context.Background(), "deadbeef")
	require.ErrorIs(t, err, service.ErrLinkNotFound)
}

func TestRedeemReusesExistingUser(t *testing.T) {
	svc, stores, _ := newTestAuthService(t)

	require.NoError(t, svc.RequestLogin(context.Background(), "a@b.com", ""))
	first, _, _, err := svc.Redeem(context.Background(), stores.links.onlyToken())
	require.NoError(t, err)

	require.NoError(t, svc.RequestLogin(context.Background(), "a@b.com", ""))
	second, _, _, err := svc.Redeem(context.Background(), stores.links.latestToken())
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	require.Len(t, stores.users.rows, 1)
}

func TestAuthenticateCookieAndBearerEquivalent(t *testing.T) {
	svc, stores, _ := newTestAuthService(t)
	require.NoError(t, svc.RequestLogin(context.Background(), "a@b.com", ""))
	user, _, raw, err := svc.Redeem(context.Background(), stores.links.onlyToken())
	require.NoError(t, err)

	withCookie := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	withCookie.AddCookie(&http.Cookie{Name: "ck_auth", Value: raw})
	got := svc.Authenticate(context.Background(), withCookie)
	require.NotNil(t, got)
	require.Equal(t, user.ID, got.ID)

	withBearer := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	withBearer.Header.Set("Authorization", "Bearer "+raw)
	got = svc.Authenticate(context.Background(), withBearer)
	require.NotNil(t, got)
	require.Equal(t, user.ID, got.ID)
}

func TestAuthenticateRejectsGarbage(t *testing.T) {
	svc, _, _ := newTestAuthService(t)

	anonymous := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	require.Nil(t, svc.Authenticate(context.Background(), anonymous))

	bogus := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	bogus.Header.Set("Authorization", "Bearer nonsense")
	require.Nil(t, svc.Authenticate(context.Background(), bogus))
}

func TestAuthenticateExpiredSession(t *testing.T) {
	svc, stores, _ := newTestAuthService(t)
	require.NoError(t, svc.RequestLogin(context.Background(), "a@b.com", ""))
	_, session, raw, err := svc.Redeem(context.Background(), stores.links.onlyToken())
	require.NoError(t, err)
	stores.sessions.expire(session.ID)

	r := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	r.Header.Set("Authorization", "Bearer "+raw)
	require.Nil(t, svc.Authenticate(context.Background(), r))
}

func TestLogoutIdempotent(t *testing.T) {
	svc, stores, _ := newTestAuthService(t)
	require.NoError(t, svc.RequestLogin(context.Background(), "a@b.com", ""))
	_, _, raw, err := svc.Redeem(context.Background(), stores.links.onlyToken())
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	r.AddCookie(&http.Cookie{Name: "ck_auth", Value: raw})
	svc.Logout(context.Background(), r)
	require.Empty(t, stores.sessions.rows)

	// Second logout and logout with no credential are both no-ops.
	svc.Logout(context.Background(), r)
	svc.Logout(context.Background(), httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
}

// In-memory stores.

type memoryStores struct {
	users    *memoryUserRepo
	sessions *memorySessionRepo
	links    *memoryLinkRepo
}

func newMemoryStores() *memoryStores {
	return &memoryStores{
		users:    &memoryUserRepo{rows: map[int64]domain.User{}},
		sessions: &memorySessionRepo{rows: map[int64]domain.Session{}},
		links:    &memoryLinkRepo{rows: map[string]domain.MagicLinkToken{}},
	}
}

type memoryUserRepo struct {
	rows map[int64]domain.User
}

func (m *memoryUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	for _, u := range m.rows {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (m *memoryUserRepo) GetByID(ctx context.Context, id int64) (domain.User, error) {
	if u, ok := m.rows[id]; ok {
		return u, nil
	}
	return domain.User{}, pgx.ErrNoRows
}

func (m *memoryUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.rows[user.ID] = user
	return user, nil
}

type memorySessionRepo struct {
	rows map[int64]domain.Session
}

func (m *memorySessionRepo) Create(ctx context.Context, session domain.Session) (domain.Session, error) {
	session.CreatedAt = time.Now()
	m.rows[session.ID] = session
	return session, nil
}

func (m *memorySessionRepo) GetByTokenHash(ctx context.Context, tokenHash string) (domain.Session, error) {
	for _, s := range m.rows {
		if s.TokenHash == tokenHash {
			return s, nil
		}
	}
	return domain.Session{}, pgx.ErrNoRows
}

func (m *memorySessionRepo) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	for id, s := range m.rows {
		if s.TokenHash == tokenHash {
			delete(m.rows, id)
		}
	}
	return nil
}

func (m *memorySessionRepo) expire(id int64) {
	s := m.rows[id]
	s.ExpiresAt = time.Now().Add(-time.Minute)
	m.rows[id] = s
}

type memoryLinkRepo struct {
	rows  map[string]domain.MagicLinkToken
	order []string
}

func (m *memoryLinkRepo) Create(ctx context.Context, link domain.MagicLinkToken) error {
	link.CreatedAt = time.Now()
	m.rows[link.Token] = link
	m.order = append(m.order, link.Token)
	return nil
}

func (m *memoryLinkRepo) Redeem(ctx context.Context, tokenValue string, now time.Time) (domain.MagicLinkToken, error) {
	l, ok := m.rows[tokenValue]
	if !ok || l.Used || now.After(l.ExpiresAt) {
		return domain.MagicLinkToken{}, pgx.ErrNoRows
	}
	l.Used = true
	m.rows[tokenValue] = l
	return l, nil
}

func (m *memoryLinkRepo) GetByToken(ctx context.Context, tokenValue string) (domain.MagicLinkToken, error) {
	if l, ok := m.rows[tokenValue]; ok {
		return l, nil
	}
	return domain.MagicLinkToken{}, pgx.ErrNoRows
}

func (m *memoryLinkRepo) onlyToken() string {
	return m.order[0]
}

func (m *memoryLinkRepo) latestToken() string {
	return m.order[len(m.order)-1]
}

func (m *memoryLinkRepo) expire(tokenValue string) {
	l := m.rows[tokenValue]
	l.ExpiresAt = time.Now().Add(-time.Minute)
	m.rows[tokenValue] = l
}

type memoryMailer struct {
	sent []sentMail
}

type sentMail struct {
	to   string
	link string
}

func (m *memoryMailer) SendMagicLink(ctx context.Context, to, link string, ttl time.Duration) error {
	m.sent = append(m.sent, sentMail{to: to, link: link})
	return nil
}
