package domain

import "time"

// Session is a 30-day login session. Only the SHA-256 hash of the bearer
// secret is stored; the raw secret is returned to the client exactly once
// at creation.
type Session struct {
	ID        int64
	UserID    int64
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// MagicLinkToken is a single-use email login token, redeemable once before
// its 15-minute expiry.
type MagicLinkToken struct {
	ID          int64
	Email       string
	Token       string
	RedirectURL string
	ExpiresAt   time.Time
	Used        bool
	CreatedAt   time.Time
}
