package token_test

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/commentkit/commentkit/internal/token"
)

func TestCSRFTokenRoundTrip(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	tok := token.IssueCSRFToken("https://blog.example.com", testSecret, now)

	err := token.ValidateCSRFToken(tok, "https://blog.example.com", testSecret, now)
	require.NoError(t, err)
}

func TestCSRFTokenOriginMismatch(t *testing.T) {
	now := time.Now()
	tok := token.IssueCSRFToken("https://a.example.com", testSecret, now)

	err := token.ValidateCSRFToken(tok, "https://b.example.com", testSecret, now)
	require.ErrorIs(t, err, token.ErrOriginMismatch)
}

func TestCSRFTokenExpiryBoundary(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	tok := token.IssueCSRFToken("https://blog.example.com", testSecret, now)

	require.NoError(t, token.ValidateCSRFToken(tok, "https://blog.example.com", testSecret, now.Add(24*time.Hour)))
	require.ErrorIs(t,
		token.ValidateCSRFToken(tok, "https://blog.example.com", testSecret, now.Add(24*time.Hour+time.Millisecond)),
		token.ErrTokenExpired)
}

func TestCSRFTokenFutureTimestamp(t *testing.T) {
	now := time.Now()
	tok := token.IssueCSRFToken("https://blog.example.com", testSecret, now.Add(time.Minute))

	err := token.ValidateCSRFToken(tok, "https://blog.example.com", testSecret, now)
	require.ErrorIs(t, err, token.ErrTokenTimestamp)
}

func TestCSRFTokenTamperedOrigin(t *testing.T) {
	now := time.Now()
	tok := token.IssueCSRFToken("https://blog.example.com", testSecret, now)

	raw, err := base64.StdEncoding.DecodeString(tok)
	require.NoError(t, err)
	tampered := strings.Replace(string(raw), "blog", "evil", 1)

	err = token.ValidateCSRFToken(base64.StdEncoding.EncodeToString([]byte(tampered)), "https://evil.example.com", testSecret, now)
	require.ErrorIs(t, err, token.ErrTokenSignature)
}

func TestCSRFTokenMalformed(t *testing.T) {
	now := time.Now()

	for _, tok := range []string{
		"",
		"%%%",
		base64.StdEncoding.EncodeToString([]byte("too:few:fields")),
		base64.StdEncoding.EncodeToString([]byte("https://a:notanumber:nonce:sig")),
	} {
		err := token.ValidateCSRFToken(tok, "https://a", testSecret, now)
		require.ErrorIs(t, err, token.ErrTokenMalformed, "token %q", tok)
	}
}

func TestCSRFTokenNoncesDiffer(t *testing.T) {
	now := time.Now()
	a := token.IssueCSRFToken("https://blog.example.com", testSecret, now)
	b := token.IssueCSRFToken("https://blog.example.com", testSecret, now)
	require.NotEqual(t, a, b)
}
