package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/commentkit/commentkit/internal/domain"
)

// Compile-time interface assertions.
var (
	_ UserRepository      = (*PostgresUserRepo)(nil)
	_ SiteRepository      = (*PostgresSiteRepo)(nil)
	_ SessionRepository   = (*PostgresSessionRepo)(nil)
	_ MagicLinkRepository = (*PostgresMagicLinkRepo)(nil)
	_ CommentRepository   = (*PostgresCommentRepo)(nil)
)

// PostgresUserRepo implements UserRepository over pgx.
type PostgresUserRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{db: pool}
}

func (r *PostgresUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(ctx,
		`SELECT id, email, is_superadmin, created_at, updated_at FROM users WHERE email = $1`,
		email,
	).Scan(&u.ID, &u.Email, &u.IsSuperadmin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepo) GetByID(ctx context.Context, id int64) (domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(ctx,
		`SELECT id, email, is_superadmin, created_at, updated_at FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Email, &u.IsSuperadmin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	err := r.db.QueryRow(ctx,
		`INSERT INTO users (id, email, is_superadmin, created_at, updated_at)
		 VALUES ($1, $2, $3, now(), now())
		 RETURNING id, email, is_superadmin, created_at, updated_at`,
		user.ID, user.Email, user.IsSuperadmin,
	).Scan(&user.ID, &user.Email, &user.IsSuperadmin, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// PostgresSiteRepo implements SiteRepository.
type PostgresSiteRepo struct {
	db *pgxpool.Pool
}

func NewPostgresSiteRepo(pool *pgxpool.Pool) *PostgresSiteRepo {
	return &PostgresSiteRepo{db: pool}
}

func (r *PostgresSiteRepo) GetByDomain(ctx context.Context, host string) (domain.Site, error) {
	var s domain.Site
	err := r.db.QueryRow(ctx,
		`SELECT id, owner_id, domain, verified, verification_token, created_at, updated_at
		 FROM sites WHERE domain = $1`,
		host,
	).Scan(&s.ID, &s.OwnerID, &s.Domain, &s.Verified, &s.VerificationToken, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return domain.Site{}, fmt.Errorf("get site by domain: %w", err)
	}
	return s, nil
}

// PostgresSessionRepo implements SessionRepository.
type PostgresSessionRepo struct {
	db *pgxpool.Pool
}

func NewPostgresSessionRepo(pool *pgxpool.Pool) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: pool}
}

func (r *PostgresSessionRepo) Create(ctx context.Context, session domain.Session) (domain.Session, error) {
	err := r.db.QueryRow(ctx,
		`INSERT INTO sessions (id, user_id, token_hash, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, now())
		 RETURNING created_at`,
		session.ID, session.UserID, session.TokenHash, session.ExpiresAt,
	).Scan(&session.CreatedAt)
	if err != nil {
		return domain.Session{}, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

func (r *PostgresSessionRepo) GetByTokenHash(ctx context.Context, tokenHash string) (domain.Session, error) {
	var s domain.Session
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, token_hash, expires_at, created_at FROM sessions WHERE token_hash = $1`,
		tokenHash,
	).Scan(&s.ID, &s.UserID, &s.TokenHash, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

func (r *PostgresSessionRepo) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PostgresMagicLinkRepo implements MagicLinkRepository.
type PostgresMagicLinkRepo struct {
	db *pgxpool.Pool
}

func NewPostgresMagicLinkRepo(pool *pgxpool.Pool) *PostgresMagicLinkRepo {
	return &PostgresMagicLinkRepo{db: pool}
}

func (r *PostgresMagicLinkRepo) Create(ctx context.Context, link domain.MagicLinkToken) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO magic_link_tokens (id, email, token, redirect_url, expires_at, used, created_at)
		 VALUES ($1, $2, $3, $4, $5, false, now())`,
		link.ID, link.Email, link.Token, link.RedirectURL, link.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("create magic link: %w", err)
	}
	return nil
}

// Redeem flips used in a single statement so a token can be redeemed exactly
// once even under concurrent requests. pgx.ErrNoRows means the token was
// missing, already used, or expired; callers disambiguate via GetByToken.
func (r *PostgresMagicLinkRepo) Redeem(ctx context.Context, tokenValue string, now time.Time) (domain.MagicLinkToken, error) {
	var l domain.MagicLinkToken
	err := r.db.QueryRow(ctx,
		`UPDATE magic_link_tokens SET used = true
		 WHERE token = $1 AND used = false AND expires_at > $2
		 RETURNING id, email, token, redirect_url, expires_at, used, created_at`,
		tokenValue, now,
	).Scan(&l.ID, &l.Email, &l.Token, &l.RedirectURL, &l.ExpiresAt, &l.Used, &l.CreatedAt)
	if err != nil {
		return domain.MagicLinkToken{}, fmt.Errorf("redeem magic link: %w", err)
	}
	return l, nil
}

func (r *PostgresMagicLinkRepo) GetByToken(ctx context.Context, tokenValue string) (domain.MagicLinkToken, error) {
	var l domain.MagicLinkToken
	err := r.db.QueryRow(ctx,
		`SELECT id, email, token, redirect_url, expires_at, used, created_at
		 FROM magic_link_tokens WHERE token = $1`,
		tokenValue,
	).Scan(&l.ID, &l.Email, &l.Token, &l.RedirectURL, &l.ExpiresAt, &l.Used, &l.CreatedAt)
	if err != nil {
		return domain.MagicLinkToken{}, fmt.Errorf("get magic link: %w", err)
	}
	return l, nil
}

// PostgresCommentRepo implements CommentRepository.
type PostgresCommentRepo struct {
	db *pgxpool.Pool
}

func NewPostgresCommentRepo(pool *pgxpool.Pool) *PostgresCommentRepo {
	return &PostgresCommentRepo{db: pool}
}

func (r *PostgresCommentRepo) Create(ctx context.Context, comment domain.Comment) (domain.Comment, error) {
	err := r.db.QueryRow(ctx,
		`INSERT INTO comments (id, site_id, page_id, author_id, author_name, body, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())
		 RETURNING created_at`,
		comment.ID, comment.SiteID, comment.PageID, comment.AuthorID, comment.AuthorName, comment.Body,
	).Scan(&comment.CreatedAt)
	if err != nil {
		return domain.Comment{}, fmt.Errorf("create comment: %w", err)
	}
	return comment, nil
}
