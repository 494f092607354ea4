package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	netmail "net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/commentkit/commentkit/internal/adapter/mail"
	"github.com/commentkit/commentkit/internal/config"
	"github.com/commentkit/commentkit/internal/domain"
	"github.com/commentkit/commentkit/internal/repository"
)

const bearerSecretBytes = 32

// AuthService implements the passwordless login state machine:
// Requested -> (awaiting click) -> Verified -> Session.
type AuthService struct {
	users     repository.UserRepository
	sessions  repository.SessionRepository
	links     repository.MagicLinkRepository
	mailer    mail.Sender
	snowflake *snowflake.Node
	cfg       config.Config
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewAuthService wires dependencies.
func NewAuthService(users repository.UserRepository, sessions repository.SessionRepository, links repository.MagicLinkRepository, mailer mail.Sender, node *snowflake.Node, cfg config.Config, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:     users,
		sessions:  sessions,
		links:     links,
		mailer:    mailer,
		snowflake: node,
		cfg:       cfg,
		logger:    logger,
		tracer:    otel.Tracer("github.com/commentkit/commentkit/internal/service"),
	}
}

// RequestLogin generates and emails a single-use magic link. Send failure is
// surfaced, not retried.
func (s *AuthService) RequestLogin(ctx context.Context, email, redirectURL string) error {
	ctx, span := s.startSpan(ctx, "AuthService.RequestLogin")
	defer span.End()

	normalized := strings.ToLower(strings.TrimSpace(email))
	if _, err := netmail.ParseAddress(normalized); err != nil {
		return newAPIError("Valid email is required", http.StatusBadRequest)
	}

	redirect, ok := safeRedirect(redirectURL, s.cfg.FrontendURL)
	if !ok {
		return newAPIError("Invalid redirect URL", http.StatusBadRequest)
	}

	link := domain.MagicLinkToken{
		ID:          s.snowflake.Generate().Int64(),
		Email:       normalized,
		Token:       randomHex(bearerSecretBytes),
		RedirectURL: redirect,
		ExpiresAt:   time.Now().Add(s.cfg.MagicLinkTTL),
	}
	if err := s.links.Create(ctx, link); err != nil {
		span.RecordError(err)
		return fmt.Errorf("persist magic link: %w", err)
	}

	if err := s.mailer.SendMagicLink(ctx, normalized, s.buildVerifyLink(link), s.cfg.MagicLinkTTL); err != nil {
		span.RecordError(err)
		return fmt.Errorf("send magic link: %w", err)
	}

	s.audit("login.requested", "email", normalized)
	return nil
}

// Redeem consumes a magic link exactly once, lazily creates the user, and
// mints a session. The returned raw bearer secret is handed to the client
// once; only its SHA-256 hash is stored.
func (s *AuthService) Redeem(ctx context.Context, tokenValue string) (domain.User, domain.Session, string, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Redeem")
	defer span.End()

	now := time.Now()
	link, err := s.links.Redeem(ctx, tokenValue, now)
	if err != nil {
		span.RecordError(err)
		return domain.User{}, domain.Session{}, "", s.classifyRedeemFailure(ctx, tokenValue, now, err)
	}

	user, err := s.users.GetByEmail(ctx, link.Email)
	if err != nil {
		if !isNotFound(err) {
			span.RecordError(err)
			return domain.User{}, domain.Session{}, "", fmt.Errorf("redeem load user: %w", err)
		}
		user, err = s.users.Create(ctx, domain.User{
			ID:    s.snowflake.Generate().Int64(),
			Email: link.Email,
		})
		if err != nil {
			span.RecordError(err)
			return domain.User{}, domain.Session{}, "", fmt.Errorf("redeem create user: %w", err)
		}
		s.audit("user.created", "user_id", user.ID)
	}

	raw := randomHex(bearerSecretBytes)
	session, err := s.sessions.Create(ctx, domain.Session{
		ID:        s.snowflake.Generate().Int64(),
		UserID:    user.ID,
		TokenHash: hashBearer(raw),
		ExpiresAt: now.Add(s.cfg.SessionTTL),
	})
	if err != nil {
		span.RecordError(err)
		return domain.User{}, domain.Session{}, "", fmt.Errorf("create session: %w", err)
	}

	s.audit("login.verified", "user_id", user.ID, "session_id", session.ID)
	return user, session, raw, nil
}

// Authenticate resolves the current user from the ck_auth cookie first,
// then the Authorization: Bearer header. Missing or invalid credentials are
// the unauthenticated case, never an error.
func (s *AuthService) Authenticate(ctx context.Context, r *http.Request) *domain.User {
	raw := s.extractBearer(r)
	if raw == "" {
		return nil
	}

	session, err := s.sessions.GetByTokenHash(ctx, hashBearer(raw))
	if err != nil || time.Now().After(session.ExpiresAt) {
		if err != nil && !isNotFound(err) {
			s.log().Warn("session lookup failed", zap.Error(err))
		}
		return nil
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		s.log().Warn("session user lookup failed", zap.Int64("user_id", session.UserID), zap.Error(err))
		return nil
	}
	return &user
}

// Logout deletes the session for whichever credential accompanied the
// request. Idempotent; succeeds with no active session.
func (s *AuthService) Logout(ctx context.Context, r *http.Request) {
	raw := s.extractBearer(r)
	if raw == "" {
		return
	}
	if err := s.sessions.DeleteByTokenHash(ctx, hashBearer(raw)); err != nil && !isNotFound(err) {
		s.log().Warn("session delete failed", zap.Error(err))
	}
}

func (s *AuthService) extractBearer(r *http.Request) string {
	if c, err := r.Cookie(s.cfg.CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func (s *AuthService) classifyRedeemFailure(ctx context.Context, tokenValue string, now time.Time, redeemErr error) error {
	if !isNotFound(redeemErr) {
		return fmt.Errorf("redeem magic link: %w", redeemErr)
	}
	link, err := s.links.GetByToken(ctx, tokenValue)
	if err != nil {
		return ErrLinkNotFound
	}
	if link.Used {
		return ErrLinkUsed
	}
	if now.After(link.ExpiresAt) {
		return ErrLinkExpired
	}
	return ErrLinkNotFound
}

func (s *AuthService) buildVerifyLink(link domain.MagicLinkToken) string {
	u, err := url.Parse(s.cfg.APIBaseURL)
	if err != nil {
		u = &url.URL{Scheme: "https", Host: "api.commentkit.io"}
	}
	u.Path = "/auth/verify"
	q := u.Query()
	q.Set("token", link.Token)
	if link.RedirectURL != "" {
		q.Set("redirect", link.RedirectURL)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *AuthService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *AuthService) audit(event string, attrs ...any) {
	logger := s.log()
	if logger == nil {
		return
	}
	fields := make([]zap.Field, 0, len(attrs)/2+2)
	fields = append(fields, zap.String("event", event), zap.Time("timestamp", time.Now().UTC()))
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[i+1]))
	}
	logger.Info("audit", fields...)
}

func (s *AuthService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}

// safeRedirect accepts an empty value, a relative path, or an absolute URL
// on the dashboard origin. Anything else is rejected to keep magic links
// from becoming open redirects.
func safeRedirect(raw, frontendURL string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", true
	}
	if strings.HasPrefix(trimmed, "/") && !strings.HasPrefix(trimmed, "//") {
		return trimmed, true
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	front, err := url.Parse(frontendURL)
	if err == nil && strings.EqualFold(u.Host, front.Host) && u.Scheme == front.Scheme {
		return trimmed, true
	}
	return "", false
}

func hashBearer(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

func isNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
