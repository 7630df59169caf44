package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/openatelier/server/internal/metrics"
)

// ModerationChannel is the Postgres notification channel carrying user
// suspension changes. Writers emit pg_notify on this channel in the same
// transaction as the row mutation.
const ModerationChannel = "user_moderation"

// moderationNotice is the change-feed payload: {userId, suspended, timestamp}.
type moderationNotice struct {
	UserID    string    `json:"userId"`
	Suspended bool      `json:"suspended"`
	Timestamp time.Time `json:"timestamp"`
}

// ListenerConn is the slice of *pgx.Conn the listener needs: a dedicated
// connection that can LISTEN and block waiting for notifications.
type ListenerConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

// PgxConnector returns a connect function dialing a fresh dedicated
// connection. The listener must not share a pooled connection: LISTEN state
// is per-connection and WaitForNotification blocks it indefinitely.
func PgxConnector(databaseURL string) func(context.Context) (ListenerConn, error) {
	return func(ctx context.Context) (ListenerConn, error) {
		conn, err := pgx.Connect(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// Listener is the per-process subscriber to the user moderation change
// feed. It is started lazily by the first client connection; Start is
// idempotent, so concurrent first connections spawn exactly one loop.
type Listener struct {
	connect     func(context.Context) (ListenerConn, error)
	registry    *Registry
	suspensions *SuspensionCache
	logger      zerolog.Logger

	started   atomic.Bool
	listening atomic.Bool
}

func NewListener(connect func(context.Context) (ListenerConn, error), registry *Registry, suspensions *SuspensionCache, logger zerolog.Logger) *Listener {
	return &Listener{
		connect:     connect,
		registry:    registry,
		suspensions: suspensions,
		logger:      logger.With().Str("component", "changefeed").Logger(),
	}
}

// Start launches the subscription loop. Only the first call does anything;
// the loop runs until ctx is cancelled.
func (l *Listener) Start(ctx context.Context) {
	if !l.started.CompareAndSwap(false, true) {
		return
	}
	go l.run(ctx)
}

// Listening reports whether the listener currently holds a live
// subscription. False while disconnected or reconnecting, so health checks
// never claim a feed that is not actually receiving.
func (l *Listener) Listening() bool {
	return l.listening.Load()
}

func (l *Listener) run(ctx context.Context) {
	defer l.listening.Store(false)

	delay := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := l.connect(ctx)
		if err != nil {
			l.logger.Error().Err(err).Dur("retry_in", delay).Msg("change feed connect failed")
			if !sleepCtx(ctx, delay) {
				return
			}
			delay = nextDelay(delay)
			continue
		}

		if _, err := conn.Exec(ctx, fmt.Sprintf("LISTEN %s", ModerationChannel)); err != nil {
			l.logger.Error().Err(err).Msg("LISTEN failed")
			_ = conn.Close(ctx)
			if !sleepCtx(ctx, delay) {
				return
			}
			delay = nextDelay(delay)
			continue
		}

		l.listening.Store(true)
		l.logger.Info().Str("channel", ModerationChannel).Msg("change feed subscribed")
		delay = time.Second

		err = l.receive(ctx, conn)
		l.listening.Store(false)

		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = conn.Close(closeCtx)
		cancel()

		if ctx.Err() != nil {
			return
		}
		l.logger.Error().Err(err).Dur("retry_in", delay).Msg("change feed connection lost")
		if !sleepCtx(ctx, delay) {
			return
		}
		delay = nextDelay(delay)
	}
}

// receive blocks on the subscription until the connection fails or ctx is
// cancelled. A malformed payload is logged and skipped; it never ends the
// loop.
func (l *Listener) receive(ctx context.Context, conn ListenerConn) error {
	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		l.handle(notification.Payload)
	}
}

func (l *Listener) handle(payload string) {
	var notice moderationNotice
	if err := json.Unmarshal([]byte(payload), &notice); err != nil || notice.UserID == "" {
		metrics.ChangefeedEvents.WithLabelValues("decode_error").Inc()
		l.logger.Warn().Err(err).Str("payload", payload).Msg("skipping malformed change feed message")
		return
	}
	metrics.ChangefeedEvents.WithLabelValues("ok").Inc()

	l.suspensions.Set(notice.UserID, notice.Suspended)

	eventType := EventUserUnbanned
	if notice.Suspended {
		eventType = EventUserBanned
	}
	l.registry.Push(notice.UserID, Event{
		Type:      eventType,
		UserID:    notice.UserID,
		Timestamp: time.Now(),
	})
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func nextDelay(d time.Duration) time.Duration {
	d *= 2
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}
