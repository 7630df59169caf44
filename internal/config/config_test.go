package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/atelier")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("MASTER_SECRET", "test-master-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Redis.BroadcastChannel != "atelier:broadcast" {
		t.Errorf("unexpected broadcast channel %q", cfg.Redis.BroadcastChannel)
	}
	if cfg.Stream.HeartbeatInterval != 30*time.Second {
		t.Errorf("expected 30s heartbeat, got %s", cfg.Stream.HeartbeatInterval)
	}
	if cfg.Auth.JWTExpiry != 24*time.Hour {
		t.Errorf("expected 24h jwt expiry, got %s", cfg.Auth.JWTExpiry)
	}
}

func TestLoadMissingDatabaseURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing DATABASE_URL")
	}
}

func TestLoadMissingMasterSecret(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MASTER_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing MASTER_SECRET")
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STREAM_HEARTBEAT_SECONDS", "10")
	t.Setenv("LOG_FORMAT", "console")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Stream.HeartbeatInterval != 10*time.Second {
		t.Errorf("expected 10s heartbeat, got %s", cfg.Stream.HeartbeatInterval)
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("expected console format, got %q", cfg.Logging.Format)
	}
}

func TestGetEnvIntInvalid(t *testing.T) {
	t.Setenv("SOME_INT", "not-a-number")
	if got := getEnvInt("SOME_INT", 7); got != 7 {
		t.Errorf("expected fallback 7, got %d", got)
	}
}
