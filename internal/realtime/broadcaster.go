package realtime

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/openatelier/server/internal/metrics"
)

// broadcastMessage is the wire format on the distributed channel: {type, data}.
type broadcastMessage struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Broadcaster bridges the per-process registry to a Redis pub/sub channel
// so a global event published on any instance reaches clients on every
// instance. Delivery from Redis is at-least-once; the broadcaster does not
// deduplicate.
type Broadcaster struct {
	client   *redis.Client
	channel  string
	registry *Registry
	logger   zerolog.Logger

	started   atomic.Bool
	listening atomic.Bool
}

func NewBroadcaster(client *redis.Client, channel string, registry *Registry, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		client:   client,
		channel:  channel,
		registry: registry,
		logger:   logger.With().Str("component", "broadcaster").Logger(),
	}
}

// Start subscribes to the broadcast channel. Idempotent; only the first
// call spawns the receive loop, which runs until ctx is cancelled.
func (b *Broadcaster) Start(ctx context.Context) {
	if !b.started.CompareAndSwap(false, true) {
		return
	}
	go b.run(ctx)
}

// Listening reports whether the subscription is currently live.
func (b *Broadcaster) Listening() bool {
	return b.listening.Load()
}

// Publish sends a global event to every instance, including this one.
func (b *Broadcaster) Publish(ctx context.Context, eventType EventType, data json.RawMessage) error {
	payload, err := json.Marshal(broadcastMessage{Type: eventType, Data: data})
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

func (b *Broadcaster) run(ctx context.Context) {
	defer b.listening.Store(false)

	sub := b.client.Subscribe(ctx, b.channel)
	defer func() { _ = sub.Close() }()

	// confirm the subscription before reporting healthy
	if _, err := sub.Receive(ctx); err != nil {
		b.logger.Error().Err(err).Str("channel", b.channel).Msg("broadcast subscribe failed")
		return
	}
	b.listening.Store(true)
	b.logger.Info().Str("channel", b.channel).Msg("broadcast channel subscribed")

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				b.logger.Error().Str("channel", b.channel).Msg("broadcast subscription closed")
				return
			}
			b.handle(msg.Payload)
		}
	}
}

func (b *Broadcaster) handle(payload string) {
	var msg broadcastMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil || !knownBroadcastTypes[msg.Type] {
		metrics.BroadcastsReceived.WithLabelValues("decode_error").Inc()
		b.logger.Warn().Err(err).Str("payload", payload).Msg("skipping malformed broadcast message")
		return
	}
	metrics.BroadcastsReceived.WithLabelValues("ok").Inc()

	b.registry.Broadcast(Event{
		Type:      msg.Type,
		Data:      msg.Data,
		Timestamp: time.Now(),
	})
}
