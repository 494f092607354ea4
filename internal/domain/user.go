package domain

import "time"

// User is an end user identified by email, created lazily on the first
// magic-link redemption.
type User struct {
	ID           int64
	Email        string
	IsSuperadmin bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
