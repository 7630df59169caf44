package cmd

import (
	"bytes"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/openatelier/server/internal/auth"
	"github.com/openatelier/server/internal/signing"
)

func TestSignURLCommand(t *testing.T) {
	t.Setenv("MASTER_SECRET", "signurl-test-secret")
	signurlPath = "images/1/source.png"
	signurlUser = "user-42"
	signurlTTL = time.Hour

	var out bytes.Buffer
	signurlCmd.SetOut(&out)
	if err := runSignURL(signurlCmd, nil); err != nil {
		t.Fatalf("signurl: %v", err)
	}

	raw := strings.TrimSpace(out.String())
	if !strings.HasPrefix(raw, "/files/images/1/source.png?") {
		t.Fatalf("unexpected url: %s", raw)
	}

	// the issued URL must verify with the same derived key
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	key, err := auth.DeriveURLSigningKey([]byte("signurl-test-secret"))
	if err != nil {
		t.Fatalf("derive key: %v", err)
	}

	query := parsed.Query()
	expires, err := strconv.ParseInt(query.Get("expires"), 10, 64)
	if err != nil {
		t.Fatalf("parse expires: %v", err)
	}

	result := signing.NewSigner(key).Verify("images/1/source.png", "user-42", expires, query.Get("sig"), time.Now())
	if !result.Valid {
		t.Fatal("issued url must verify")
	}
}

func TestSignURLRequiresSecret(t *testing.T) {
	t.Setenv("MASTER_SECRET", "")
	signurlPath = "images/1/source.png"
	signurlUser = "user-42"

	if err := runSignURL(signurlCmd, nil); err == nil {
		t.Fatal("expected error without MASTER_SECRET")
	}
}
