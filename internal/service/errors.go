package service

import (
	"errors"
	"fmt"
)

// APIError carries an HTTP status with a client-safe message. Anything more
// specific stays in the logs.
type APIError struct {
	Message string
	Status  int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func newAPIError(msg string, status int) *APIError {
	return &APIError{Message: msg, Status: status}
}

// Magic-link redemption failures. The HTTP surface collapses all three into
// one generic message so redemption errors cannot be used as an oracle.
var (
	ErrLinkNotFound = errors.New("magic link: not found")
	ErrLinkUsed     = errors.New("magic link: already used")
	ErrLinkExpired  = errors.New("magic link: expired")
)
