package token

import "errors"

// Verification failures are deliberately coarse on the wire (handlers
// collapse them into a generic "invalid or expired token" response) but
// precise internally so failures can be logged and tested.
var (
	ErrTokenMalformed = errors.New("token: malformed")
	ErrTokenExpired   = errors.New("token: expired")
	ErrTokenSignature = errors.New("token: bad signature")
	ErrTokenTimestamp = errors.New("token: timestamp in the future")
	ErrOriginMismatch = errors.New("token: origin mismatch")
)
