package auth

import (
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// DerivedKeyLength is the length of derived keys in bytes (32 bytes = 256 bits for HMAC-SHA256)
	DerivedKeyLength = 32

	// Key derivation purpose strings for HKDF
	purposeURLSigning = "atelier-url-signing-v1"
	purposeAdminJWT   = "atelier-admin-jwt-v1"
)

// ErrInvalidMasterSecret is returned when the master secret is invalid
var ErrInvalidMasterSecret = errors.New("master secret cannot be empty")

// DeriveKey derives a cryptographic key from a master secret using HKDF-SHA256.
// Keys derived with different purpose strings are cryptographically independent,
// so compromise of the URL-signing key does not expose the JWT key or the
// master secret itself.
func DeriveKey(masterSecret []byte, purpose string) ([]byte, error) {
	if len(masterSecret) == 0 {
		return nil, ErrInvalidMasterSecret
	}

	// salt=nil is acceptable per RFC 5869 (defaults to zeros);
	// info=purpose provides domain separation between key uses
	hkdf := hkdf.New(sha256.New, masterSecret, nil, []byte(purpose))

	derivedKey := make([]byte, DerivedKeyLength)
	if _, err := io.ReadFull(hkdf, derivedKey); err != nil {
		return nil, err
	}

	return derivedKey, nil
}

// DeriveURLSigningKey derives the key used to sign time-boxed file URLs.
func DeriveURLSigningKey(masterSecret []byte) ([]byte, error) {
	return DeriveKey(masterSecret, purposeURLSigning)
}

// DeriveAdminJWTKey derives the key used to sign admin JWT tokens.
func DeriveAdminJWTKey(masterSecret []byte) ([]byte, error) {
	return DeriveKey(masterSecret, purposeAdminJWT)
}
