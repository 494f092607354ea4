package token

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// OriginTokenTTL is the fixed lifetime of an origin token. Tokens are
// single-purpose and non-renewable; the widget requests a fresh one per
// page load.
const OriginTokenTTL = time.Hour

// IssueOriginToken binds a domain to an issuance timestamp under the server
// secret. The domain must come from a verified Origin header, never from a
// client-supplied field; that responsibility lives in the caller.
//
// Wire format: base64("domain:issuedAtMillis:sigHex").
func IssueOriginToken(domain, secret string, now time.Time) string {
	payload := fmt.Sprintf("%s:%d", domain, now.UnixMilli())
	sig := Sign(payload, secret)
	return base64.StdEncoding.EncodeToString([]byte(payload + ":" + sig))
}

// VerifyOriginToken validates the signature and age of tok and returns the
// embedded domain. A valid token proves only that the browser that requested
// it carried "Origin: https://<domain>" at mint time.
func VerifyOriginToken(tok, secret string, now time.Time) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(tok)
	if err != nil {
		return "", ErrTokenMalformed
	}
	parts := strings.Split(string(raw), ":")
	if len(parts) != 3 {
		return "", ErrTokenMalformed
	}
	domain, issuedRaw, sig := parts[0], parts[1], parts[2]
	issued, err := strconv.ParseInt(issuedRaw, 10, 64)
	if err != nil || domain == "" {
		return "", ErrTokenMalformed
	}
	if !Verify(domain+":"+issuedRaw, sig, secret) {
		return "", ErrTokenSignature
	}
	if now.UnixMilli()-issued > OriginTokenTTL.Milliseconds() {
		return "", ErrTokenExpired
	}
	return domain, nil
}
