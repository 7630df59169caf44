package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/openatelier/server/internal/api"
	"github.com/openatelier/server/internal/auth"
	"github.com/openatelier/server/internal/cache"
	"github.com/openatelier/server/internal/config"
	"github.com/openatelier/server/internal/metrics"
	"github.com/openatelier/server/internal/realtime"
	"github.com/openatelier/server/internal/signing"
	"github.com/openatelier/server/internal/storage/postgres"
)

var (
	// Server flags (override config/env)
	serverHost string
	serverPort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Atelier HTTP server",
	Long: `Start the Atelier HTTP server and begin accepting requests.

The server will:
- Load configuration from environment variables
- Bootstrap an admin user if ADMIN_* env vars are set
- Serve the event stream, signed file URLs, and admin API
- Handle graceful shutdown on SIGINT/SIGTERM, closing the change-feed
  and broadcast subscriptions

Examples:
  # Start with default configuration (from env vars)
  server serve

  # Start on a specific host and port
  server serve --host 127.0.0.1 --port 9090

  # Start with debug logging
  server serve --log-level debug`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serverHost, "host", "", "server host address (default: 0.0.0.0)")
	serveCmd.Flags().IntVar(&serverPort, "port", 0, "server port (default: 8080)")
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	if serverHost != "" {
		cfg.Server.Host = serverHost
	}
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	logger := config.NewLogger(cfg.Logging)
	logger.Info().Msg("starting atelier server")

	metrics.Init(Version, GitCommit, BuildDate)

	urlKey, err := auth.DeriveURLSigningKey([]byte(cfg.Auth.MasterSecret))
	if err != nil {
		return fmt.Errorf("derive url signing key: %w", err)
	}
	jwtKey, err := auth.DeriveAdminJWTKey([]byte(cfg.Auth.MasterSecret))
	if err != nil {
		return fmt.Errorf("derive jwt key: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConnections)

	poolCtx, poolCancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := pgxpool.NewWithConfig(poolCtx, poolCfg)
	poolCancel()
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := bootstrapAdminUser(ctx, pool, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("admin bootstrap failed")
	}
	cancel()

	repo, err := postgres.NewRepository(pool)
	if err != nil {
		return fmt.Errorf("repository init failed: %w", err)
	}

	registry := realtime.NewRegistry(cfg.Stream.HeartbeatInterval, cfg.Stream.SendBuffer, logger)
	suspensions := realtime.NewSuspensionCache()
	listener := realtime.NewListener(realtime.PgxConnector(cfg.Database.URL), registry, suspensions, logger)
	broadcaster := realtime.NewBroadcaster(redisClient, cfg.Redis.BroadcastChannel, registry, logger)

	// bounds the change-feed and broadcast subscriptions; cancelled on
	// shutdown so neither outlives the server
	lifecycle, stopSubscriptions := context.WithCancel(context.Background())
	defer stopSubscriptions()

	router := api.NewRouter(api.Deps{
		Config:      cfg,
		Logger:      logger,
		Pool:        pool,
		Redis:       redisClient,
		Repo:        repo,
		Cache:       cache.NewService(redisClient, logger),
		Registry:    registry,
		Listener:    listener,
		Broadcaster: broadcaster,
		Signer:      signing.NewSigner(urlKey),
		JWT:         auth.NewJWTManager(jwtKey, cfg.Auth.JWTExpiry, cfg.Auth.Issuer),
		Lifecycle:   lifecycle,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		// no WriteTimeout: the stream endpoint holds connections open
		// indefinitely; per-handler deadlines protect the rest
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info().Msg("shutting down")

	// stop subscriptions first so no new events race the drain, then
	// close client connections and the http server
	stopSubscriptions()
	registry.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}

	logger.Info().Msg("server stopped")
	return nil
}

// bootstrapAdminUser creates the initial admin account when the ADMIN_*
// env vars are set and no matching user exists yet.
func bootstrapAdminUser(ctx context.Context, pool *pgxpool.Pool, cfg config.Config, logger zerolog.Logger) error {
	bootstrap := cfg.AdminBootstrap
	if bootstrap.Username == "" || bootstrap.Password == "" || bootstrap.Email == "" {
		logger.Debug().Msg("admin bootstrap env vars not set; skipping")
		return nil
	}

	const checkQuery = `SELECT id FROM users WHERE email = $1 OR username = $2 LIMIT 1`
	var existingID string
	err := pool.QueryRow(ctx, checkQuery, bootstrap.Email, bootstrap.Username).Scan(&existingID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("check admin user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(bootstrap.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	const insertQuery = `
		INSERT INTO users (id, username, email, password_hash, role, suspended, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, 'admin', false, now())`
	if _, err := pool.Exec(ctx, insertQuery, bootstrap.Username, bootstrap.Email, string(hash)); err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	logger.Info().Str("username", bootstrap.Username).Msg("admin user bootstrapped")
	return nil
}
