package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openatelier/server/internal/realtime"
)

// Pinger covers *pgxpool.Pool for the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthChecker struct {
	db          Pinger
	redis       *redis.Client
	listener    *realtime.Listener
	broadcaster *realtime.Broadcaster
	registry    *realtime.Registry
}

func NewHealthChecker(db Pinger, redisClient *redis.Client, listener *realtime.Listener, broadcaster *realtime.Broadcaster, registry *realtime.Registry) *HealthChecker {
	return &HealthChecker{
		db:          db,
		redis:       redisClient,
		listener:    listener,
		broadcaster: broadcaster,
		registry:    registry,
	}
}

// Healthz is the liveness probe: the process is up.
func Healthz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
}

type readiness struct {
	Status      string          `json:"status"`
	Checks      map[string]bool `json:"checks"`
	Connections int             `json:"connections"`
}

// Readyz reports dependency health. The feed subscriptions are lazy, so
// "changefeed" and "broadcast" are informational until the first client
// connects; only database and redis connectivity gate readiness.
func (h *HealthChecker) Readyz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]bool{
			"database":   h.db.Ping(ctx) == nil,
			"redis":      h.redis.Ping(ctx).Err() == nil,
			"changefeed": h.listener.Listening(),
			"broadcast":  h.broadcaster.Listening(),
		}

		status := "ready"
		code := http.StatusOK
		if !checks["database"] || !checks["redis"] {
			status = "unavailable"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(readiness{
			Status:      status,
			Checks:      checks,
			Connections: h.registry.ConnectionCount(),
		})
	})
}
