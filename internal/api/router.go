package api

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/openatelier/server/internal/api/handlers"
	"github.com/openatelier/server/internal/api/middleware"
	"github.com/openatelier/server/internal/auth"
	"github.com/openatelier/server/internal/cache"
	"github.com/openatelier/server/internal/config"
	"github.com/openatelier/server/internal/metrics"
	"github.com/openatelier/server/internal/realtime"
	"github.com/openatelier/server/internal/signing"
	"github.com/openatelier/server/internal/storage"
)

// Deps carries everything the router needs, constructed once in serve and
// injected here; the router owns no state of its own.
type Deps struct {
	Config      config.Config
	Logger      zerolog.Logger
	Pool        *pgxpool.Pool
	Redis       *redis.Client
	Repo        storage.Repository
	Cache       *cache.Service
	Registry    *realtime.Registry
	Listener    *realtime.Listener
	Broadcaster *realtime.Broadcaster
	Signer      *signing.Signer
	JWT         *auth.JWTManager
	// Lifecycle bounds the lazily started subscriptions; cancelled on
	// shutdown.
	Lifecycle context.Context
}

func NewRouter(deps Deps) http.Handler {
	env := deps.Config.Environment

	streamHandler := handlers.NewStreamHandler(deps.Lifecycle, deps.Registry, deps.Listener, deps.Broadcaster, env)
	filesHandler := handlers.NewFilesHandler(deps.Signer, deps.Config.Files.Root, env)
	adminHandler := handlers.NewAdminHandler(deps.Repo, deps.Cache, deps.Broadcaster, env)
	announcementsHandler := handlers.NewAnnouncementsHandler(deps.Repo, deps.Cache, env)
	healthChecker := handlers.NewHealthChecker(deps.Pool, deps.Redis, deps.Listener, deps.Broadcaster, deps.Registry)

	adminAuth := middleware.AdminAuth(deps.JWT, env)
	adminTier := middleware.WithRateLimitTierHandler(middleware.TierAdmin)
	rateLimit := middleware.RateLimit(deps.Config.RateLimit)

	public := func(h http.HandlerFunc) http.Handler {
		return rateLimit(h)
	}
	adminOnly := func(h http.HandlerFunc) http.Handler {
		return adminTier(rateLimit(adminAuth(h)))
	}

	mux := http.NewServeMux()
	mux.Handle("/healthz", handlers.Healthz())
	mux.Handle("/readyz", healthChecker.Readyz())
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	mux.Handle("/api/v1/stream", methodMux(map[string]http.Handler{
		http.MethodGet: public(streamHandler.Stream),
	}))
	mux.Handle("/files/{path...}", methodMux(map[string]http.Handler{
		http.MethodGet: public(filesHandler.Get),
	}))
	mux.Handle("/api/v1/announcements", methodMux(map[string]http.Handler{
		http.MethodGet: public(announcementsHandler.List),
	}))
	mux.Handle("/api/v1/admin/announcements", methodMux(map[string]http.Handler{
		http.MethodPost: adminOnly(adminHandler.CreateAnnouncement),
	}))
	mux.Handle("/api/v1/admin/announcements/{id}", methodMux(map[string]http.Handler{
		http.MethodDelete: adminOnly(adminHandler.RemoveAnnouncement),
	}))
	mux.Handle("/api/v1/admin/users/{id}/suspend", methodMux(map[string]http.Handler{
		http.MethodPost: adminOnly(adminHandler.SuspendUser),
	}))

	var handler http.Handler = mux
	handler = middleware.SecurityHeaders(env == "production")(handler)
	handler = middleware.RequestLogging(deps.Logger)(handler)
	handler = middleware.CorrelationID(deps.Logger)(handler)
	return handler
}

func methodMux(byMethod map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := byMethod[r.Method]; ok {
			handler.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Allow", allowedMethods(byMethod))
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
}

func allowedMethods(byMethod map[string]http.Handler) string {
	methods := make([]string, 0, len(byMethod))
	for method := range byMethod {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}
