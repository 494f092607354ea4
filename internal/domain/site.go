package domain

import "time"

// Site is a registered customer site. Only verified sites receive
// cross-origin trust for non-localhost domains. The verification workflow
// itself (file-based ownership proof) lives outside this service; its
// outcome is the Verified flag consumed here.
type Site struct {
	ID                int64
	OwnerID           int64
	Domain            string
	Verified          bool
	VerificationToken string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
