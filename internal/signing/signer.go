// Package signing implements stateless, time-boxed access tokens for
// protected files. A token is a pure function of the resource path, the
// subject it was issued to, an expiry timestamp, and a server-held key;
// any instance holding the key can verify any token with no shared state.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Signer issues and verifies HMAC-SHA256 signatures over file URLs.
type Signer struct {
	key []byte
}

// Verification is the outcome of checking a presented token. Expired is
// only meaningful for logging; response surfaces must treat expired and
// tampered identically.
type Verification struct {
	Valid   bool
	Expired bool
}

func NewSigner(key []byte) *Signer {
	return &Signer{key: key}
}

// canonical builds the exact byte string covered by the signature. The
// newline separator prevents ambiguity between field boundaries
// (e.g. path "a" + subject "bc" vs path "ab" + subject "c").
func canonical(resourcePath, subjectID string, expiresMillis int64) []byte {
	return []byte(resourcePath + "\n" + subjectID + "\n" + strconv.FormatInt(expiresMillis, 10))
}

// Sign returns the hex-encoded signature for the given resource grant.
// expiresAt is truncated to millisecond precision, matching the expires
// query parameter carried in the URL.
func (s *Signer) Sign(resourcePath, subjectID string, expiresAt time.Time) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(canonical(resourcePath, subjectID, expiresAt.UnixMilli()))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a presented token. Expiry is evaluated first; a token past
// its window is rejected without recomputing the MAC. Signature comparison
// is constant-time.
func (s *Signer) Verify(resourcePath, subjectID string, expiresMillis int64, signature string, now time.Time) Verification {
	if expiresMillis < now.UnixMilli() {
		return Verification{Valid: false, Expired: true}
	}

	mac := hmac.New(sha256.New, s.key)
	mac.Write(canonical(resourcePath, subjectID, expiresMillis))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return Verification{Valid: false}
	}
	return Verification{Valid: true}
}

// SignedURL builds the full request path for a resource grant:
// /files/{path}?userId=&expires=&sig=
func (s *Signer) SignedURL(basePath, resourcePath, subjectID string, expiresAt time.Time) string {
	sig := s.Sign(resourcePath, subjectID, expiresAt)
	query := url.Values{}
	query.Set("userId", subjectID)
	query.Set("expires", strconv.FormatInt(expiresAt.UnixMilli(), 10))
	query.Set("sig", sig)
	return fmt.Sprintf("%s/%s?%s", basePath, resourcePath, query.Encode())
}
