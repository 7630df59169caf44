package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Redis          RedisConfig
	Auth           AuthConfig
	Stream         StreamConfig
	Files          FilesConfig
	RateLimit      RateLimitConfig
	AdminBootstrap AdminBootstrapConfig
	Logging        LoggingConfig
	Environment    string
}

type ServerConfig struct {
	Host    string
	Port    int
	BaseURL string
}

type DatabaseConfig struct {
	URL            string
	MaxConnections int
}

type RedisConfig struct {
	URL              string
	BroadcastChannel string
}

type AuthConfig struct {
	MasterSecret string
	JWTExpiry    time.Duration
	Issuer       string
}

type StreamConfig struct {
	HeartbeatInterval time.Duration
	SendBuffer        int
}

type FilesConfig struct {
	Root          string
	DefaultExpiry time.Duration
}

type RateLimitConfig struct {
	PublicPerMinute int
	AdminPerMinute  int
}

type AdminBootstrapConfig struct {
	Username string
	Password string
	Email    string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host:    getEnv("SERVER_HOST", "0.0.0.0"),
			Port:    getEnvInt("SERVER_PORT", 8080),
			BaseURL: getEnv("SERVER_BASE_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConnections: getEnvInt("DATABASE_MAX_CONNECTIONS", 25),
		},
		Redis: RedisConfig{
			URL:              getEnv("REDIS_URL", ""),
			BroadcastChannel: getEnv("REDIS_BROADCAST_CHANNEL", "atelier:broadcast"),
		},
		Auth: AuthConfig{
			MasterSecret: getEnv("MASTER_SECRET", ""),
			JWTExpiry:    time.Duration(getEnvInt("JWT_EXPIRY_HOURS", 24)) * time.Hour,
			Issuer:       getEnv("JWT_ISSUER", "atelier"),
		},
		Stream: StreamConfig{
			HeartbeatInterval: time.Duration(getEnvInt("STREAM_HEARTBEAT_SECONDS", 30)) * time.Second,
			SendBuffer:        getEnvInt("STREAM_SEND_BUFFER", 16),
		},
		Files: FilesConfig{
			Root:          getEnv("FILES_ROOT", "./uploads"),
			DefaultExpiry: time.Duration(getEnvInt("FILES_URL_EXPIRY_MINUTES", 60)) * time.Minute,
		},
		RateLimit: RateLimitConfig{
			PublicPerMinute: getEnvInt("RATE_LIMIT_PUBLIC", 120),
			AdminPerMinute:  getEnvInt("RATE_LIMIT_ADMIN", 0),
		},
		AdminBootstrap: AdminBootstrapConfig{
			Username: getEnv("ADMIN_USERNAME", ""),
			Password: getEnv("ADMIN_PASSWORD", ""),
			Email:    getEnv("ADMIN_EMAIL", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Environment: getEnv("ENVIRONMENT", "development"),
	}

	if cfg.Database.URL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Redis.URL == "" {
		return Config{}, fmt.Errorf("REDIS_URL is required")
	}
	if cfg.Auth.MasterSecret == "" {
		return Config{}, fmt.Errorf("MASTER_SECRET is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
