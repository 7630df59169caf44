package signing

import (
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	signer := NewSigner([]byte("test-signing-key"))
	now := time.Now()
	expires := now.Add(time.Hour)

	sig := signer.Sign("images/1/source.png", "user-42", expires)
	result := signer.Verify("images/1/source.png", "user-42", expires.UnixMilli(), sig, now)
	if !result.Valid {
		t.Fatal("freshly signed token must verify")
	}
	if result.Expired {
		t.Fatal("token inside its window must not report expired")
	}
}

func TestVerifyExpired(t *testing.T) {
	signer := NewSigner([]byte("test-signing-key"))
	now := time.Now()
	expires := now.Add(time.Hour)

	sig := signer.Sign("images/1/source.png", "user-42", expires)

	// one millisecond past the window
	later := expires.Add(time.Millisecond)
	result := signer.Verify("images/1/source.png", "user-42", expires.UnixMilli(), sig, later)
	if result.Valid {
		t.Fatal("expired token must not verify")
	}
	if !result.Expired {
		t.Fatal("expected expired=true")
	}
}

func TestVerifyTamperedSignature(t *testing.T) {
	signer := NewSigner([]byte("test-signing-key"))
	now := time.Now()
	expires := now.Add(time.Hour)

	sig := signer.Sign("images/1/source.png", "user-42", expires)

	// flip one character of the hex signature
	flipped := []byte(sig)
	if flipped[0] == 'a' {
		flipped[0] = 'b'
	} else {
		flipped[0] = 'a'
	}

	result := signer.Verify("images/1/source.png", "user-42", expires.UnixMilli(), string(flipped), now)
	if result.Valid {
		t.Fatal("tampered signature must not verify")
	}
	if result.Expired {
		t.Fatal("tampered token inside its window must not report expired")
	}
}

func TestVerifyWrongSubject(t *testing.T) {
	signer := NewSigner([]byte("test-signing-key"))
	now := time.Now()
	expires := now.Add(time.Hour)

	sig := signer.Sign("images/1/source.png", "user-42", expires)
	result := signer.Verify("images/1/source.png", "user-43", expires.UnixMilli(), sig, now)
	if result.Valid {
		t.Fatal("token issued for one subject must not verify for another")
	}
}

func TestVerifyFieldBoundary(t *testing.T) {
	// moving a byte between fields must change the signature
	signer := NewSigner([]byte("test-signing-key"))
	now := time.Now()
	expires := now.Add(time.Hour)

	sig := signer.Sign("images/1", "user-42", expires)
	result := signer.Verify("images/1u", "ser-42", expires.UnixMilli(), sig, now)
	if result.Valid {
		t.Fatal("field boundaries must be covered by the signature")
	}
}

func TestSignedURL(t *testing.T) {
	signer := NewSigner([]byte("test-signing-key"))
	expires := time.Now().Add(time.Hour)

	raw := signer.SignedURL("/files", "images/1/source.png", "user-42", expires)
	if !strings.HasPrefix(raw, "/files/images/1/source.png?") {
		t.Fatalf("unexpected url prefix: %s", raw)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse signed url: %v", err)
	}
	query := parsed.Query()
	if query.Get("userId") != "user-42" {
		t.Errorf("unexpected userId %q", query.Get("userId"))
	}
	if query.Get("sig") == "" || query.Get("expires") == "" {
		t.Error("signed url must carry sig and expires")
	}
}
