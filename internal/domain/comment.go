package domain

import "time"

// Comment is the minimal write model for the guarded widget bridge route.
// Threading, pagination, and moderation live in the dashboard service.
type Comment struct {
	ID         int64
	SiteID     int64
	PageID     string
	AuthorID   *int64
	AuthorName string
	Body       string
	CreatedAt  time.Time
}
