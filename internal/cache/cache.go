// Package cache is a read-through, invalidation-driven wrapper over Redis.
//
// Entries have no TTL: a value stays cached until the code path that mutates
// the underlying source of truth deletes every key it affects, in the same
// logical operation. Keys follow the hierarchical convention
// "entity:id:subresource" so a mutation can clear a whole family with
// InvalidatePattern("entity:id:*").
//
// The cache must never become a correctness dependency: every backend error
// is logged and degraded to a miss (reads) or a no-op (writes), so callers
// always receive a usable value.
package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/openatelier/server/internal/metrics"
)

type Service struct {
	client *redis.Client
	logger zerolog.Logger
}

func NewService(client *redis.Client, logger zerolog.Logger) *Service {
	return &Service{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
	}
}

// GetOrSet returns the cached value for key, or invokes fetch on a miss,
// stores the result, and returns it. A failed store is logged and ignored;
// only fetch errors propagate to the caller.
func (s *Service) GetOrSet(ctx context.Context, key string, fetch func(context.Context) ([]byte, error)) ([]byte, error) {
	if value, ok := s.Get(ctx, key); ok {
		return value, nil
	}

	value, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache store failed")
		metrics.CacheRequests.WithLabelValues("set", "error").Inc()
	}
	return value, nil
}

// Get returns the cached value and whether it was present. Backend errors
// are reported as a miss.
func (s *Service) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("cache get failed")
			metrics.CacheRequests.WithLabelValues("get", "error").Inc()
		} else {
			metrics.CacheRequests.WithLabelValues("get", "miss").Inc()
		}
		return nil, false
	}
	metrics.CacheRequests.WithLabelValues("get", "hit").Inc()
	return value, true
}

// Set stores a value without expiry. Errors are logged, never returned.
func (s *Service) Set(ctx context.Context, key string, value []byte) {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache set failed")
		metrics.CacheRequests.WithLabelValues("set", "error").Inc()
		return
	}
	metrics.CacheRequests.WithLabelValues("set", "ok").Inc()
}

// Del removes a single key.
func (s *Service) Del(ctx context.Context, key string) {
	s.DelMany(ctx, key)
}

// DelMany removes a set of keys in one round trip.
func (s *Service) DelMany(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn().Err(err).Strs("keys", keys).Msg("cache delete failed")
		metrics.CacheRequests.WithLabelValues("del", "error").Inc()
		return
	}
	metrics.CacheRequests.WithLabelValues("del", "ok").Inc()
}

// InvalidatePattern removes every key matching a glob pattern such as
// "user:42:*". Uses SCAN rather than KEYS to avoid blocking the backend.
func (s *Service) InvalidatePattern(ctx context.Context, pattern string) {
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()

	batch := make([]string, 0, 64)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			s.DelMany(ctx, batch...)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn().Err(err).Str("pattern", pattern).Msg("cache scan failed")
		metrics.CacheRequests.WithLabelValues("invalidate", "error").Inc()
	}
	if len(batch) > 0 {
		s.DelMany(ctx, batch...)
	}
}

// MGet returns values for keys in order; missing or unreadable entries are nil.
func (s *Service) MGet(ctx context.Context, keys ...string) [][]byte {
	results := make([][]byte, len(keys))
	if len(keys) == 0 {
		return results
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		s.logger.Warn().Err(err).Strs("keys", keys).Msg("cache mget failed")
		metrics.CacheRequests.WithLabelValues("mget", "error").Inc()
		return results
	}

	for i, value := range values {
		if str, ok := value.(string); ok {
			results[i] = []byte(str)
		}
	}
	return results
}

// MSet stores multiple key/value pairs without expiry.
func (s *Service) MSet(ctx context.Context, pairs map[string][]byte) {
	if len(pairs) == 0 {
		return
	}

	flat := make([]interface{}, 0, len(pairs)*2)
	for key, value := range pairs {
		flat = append(flat, key, value)
	}
	if err := s.client.MSet(ctx, flat...).Err(); err != nil {
		s.logger.Warn().Err(err).Int("pairs", len(pairs)).Msg("cache mset failed")
		metrics.CacheRequests.WithLabelValues("mset", "error").Inc()
		return
	}
	metrics.CacheRequests.WithLabelValues("mset", "ok").Inc()
}
