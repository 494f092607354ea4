package token_test

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/commentkit/commentkit/internal/token"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestOriginTokenRoundTrip(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	tok := token.IssueOriginToken("blog.example.com", testSecret, now)

	domain, err := token.VerifyOriginToken(tok, testSecret, now)
	require.NoError(t, err)
	require.Equal(t, "blog.example.com", domain)
}

func TestOriginTokenExpiryBoundary(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	tok := token.IssueOriginToken("blog.example.com", testSecret, now)

	// Valid at exactly one hour.
	_, err := token.VerifyOriginToken(tok, testSecret, now.Add(time.Hour))
	require.NoError(t, err)

	// Expired one millisecond past the hour.
	_, err = token.VerifyOriginToken(tok, testSecret, now.Add(time.Hour+time.Millisecond))
	require.ErrorIs(t, err, token.ErrTokenExpired)
}

func TestOriginTokenTamperedPayload(t *testing.T) {
	now := time.Now()
	tok := token.IssueOriginToken("blog.example.com", testSecret, now)

	raw, err := base64.StdEncoding.DecodeString(tok)
	require.NoError(t, err)
	tampered := strings.Replace(string(raw), "blog", "evil", 1)
	reencoded := base64.StdEncoding.EncodeToString([]byte(tampered))

	_, err = token.VerifyOriginToken(reencoded, testSecret, now)
	require.ErrorIs(t, err, token.ErrTokenSignature)
}

func TestOriginTokenTamperedSignature(t *testing.T) {
	now := time.Now()
	tok := token.IssueOriginToken("blog.example.com", testSecret, now)

	raw, _ := base64.StdEncoding.DecodeString(tok)
	s := string(raw)
	last := s[len(s)-1]
	if last == 'a' {
		s = s[:len(s)-1] + "b"
	} else {
		s = s[:len(s)-1] + "a"
	}
	_, err := token.VerifyOriginToken(base64.StdEncoding.EncodeToString([]byte(s)), testSecret, now)
	require.ErrorIs(t, err, token.ErrTokenSignature)
}

func TestOriginTokenMalformed(t *testing.T) {
	now := time.Now()

	for _, tok := range []string{
		"",
		"not-base64!!!",
		base64.StdEncoding.EncodeToString([]byte("no-separators")),
		base64.StdEncoding.EncodeToString([]byte("domain:notanumber:sig")),
		base64.StdEncoding.EncodeToString([]byte("a:b:c:d")),
	} {
		_, err := token.VerifyOriginToken(tok, testSecret, now)
		require.ErrorIs(t, err, token.ErrTokenMalformed, "token %q", tok)
	}
}
