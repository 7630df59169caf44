package auth

import (
	"errors"
	"testing"
	"time"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key, err := DeriveAdminJWTKey([]byte("test-master-secret"))
	if err != nil {
		t.Fatalf("derive key: %v", err)
	}
	return key
}

func TestJWTGenerateValidate(t *testing.T) {
	manager := NewJWTManager(testKey(t), time.Hour, "atelier")
	token, err := manager.Generate("admin-1", "admin")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := manager.Validate(token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.Subject != "admin-1" || claims.Role != "admin" {
		t.Fatalf("unexpected claims: %#v", claims)
	}
}

func TestJWTGenerateInvalid(t *testing.T) {
	manager := NewJWTManager(testKey(t), time.Hour, "atelier")
	if _, err := manager.Generate("", "admin"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token error, got %v", err)
	}
}

func TestJWTValidateMissing(t *testing.T) {
	manager := NewJWTManager(testKey(t), time.Hour, "atelier")
	if _, err := manager.Validate("  "); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected missing token error, got %v", err)
	}
}

func TestJWTValidateWrongKey(t *testing.T) {
	manager := NewJWTManager(testKey(t), time.Hour, "atelier")
	token, err := manager.Generate("admin-1", "admin")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	otherKey, err := DeriveAdminJWTKey([]byte("different-master-secret"))
	if err != nil {
		t.Fatalf("derive key: %v", err)
	}
	other := NewJWTManager(otherKey, time.Hour, "atelier")
	if _, err := other.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token error, got %v", err)
	}
}

func TestTokenFromHeader(t *testing.T) {
	if _, err := TokenFromHeader("nope"); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected missing token error, got %v", err)
	}
	if token, err := TokenFromHeader("Bearer token"); err != nil || token != "token" {
		t.Fatalf("expected token, got %s err %v", token, err)
	}
}
