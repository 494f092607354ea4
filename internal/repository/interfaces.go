package repository

import (
	"context"
	"time"

	"github.com/commentkit/commentkit/internal/domain"
)

// UserRepository exposes persistence for end users.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, id int64) (domain.User, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
}

// SiteRepository exposes the site registry read model.
type SiteRepository interface {
	GetByDomain(ctx context.Context, host string) (domain.Site, error)
}

// SessionRepository handles session persistence keyed by token hash.
type SessionRepository interface {
	Create(ctx context.Context, session domain.Session) (domain.Session, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (domain.Session, error)
	DeleteByTokenHash(ctx context.Context, tokenHash string) error
}

// MagicLinkRepository manages single-use email login tokens.
type MagicLinkRepository interface {
	Create(ctx context.Context, link domain.MagicLinkToken) error
	// Redeem atomically marks an unused, unexpired token as used and returns
	// it. The database is the sole serialization point; callers must not add
	// application-level locking.
	Redeem(ctx context.Context, tokenValue string, now time.Time) (domain.MagicLinkToken, error)
	GetByToken(ctx context.Context, tokenValue string) (domain.MagicLinkToken, error)
}

// CommentRepository is the opaque collaborator behind the guarded bridge
// route. The comment system proper (threading, moderation, search) lives in
// the dashboard service.
type CommentRepository interface {
	Create(ctx context.Context, comment domain.Comment) (domain.Comment, error)
}

// DomainTrustCache caches the verified flag for customer domains so the
// origin trust resolver does not hit the registry on every CORS decision.
// Get returns nil on a cache miss.
type DomainTrustCache interface {
	GetTrusted(ctx context.Context, host string) (*bool, error)
	SetTrusted(ctx context.Context, host string, trusted bool, ttl time.Duration) error
}
