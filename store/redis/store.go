// Package redis implements store.Store using Redis. Entities are stored
// as JSON strings, per-entity history indexes and the due-schedule queue
// use Sorted Sets, and the pending-schedule index is a Hash keyed by the
// entity+field key.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/transit/transition"
	"github.com/xraph/transit/workflow"
)

// Compile-time interface checks.
var (
	_ workflow.Store           = (*Store)(nil)
	_ transition.HistoryStore  = (*Store)(nil)
	_ transition.ScheduleStore = (*Store)(nil)
)

// errNotFound marks a missing entity inside this package; callers map it
// to the caller-facing sentinel for their entity kind.
var errNotFound = errors.New("transit/redis: not found")

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store implements the composite store.Store interface backed by Redis.
type Store struct {
	rdb    redis.Cmdable
	logger *slog.Logger
}

// New creates a new Redis-backed store. The caller owns the Redis client
// lifecycle.
func New(client redis.Cmdable, opts ...Option) *Store {
	s := &Store{rdb: client, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() redis.Cmdable { return s.rdb }

// Migrate is a no-op for Redis (schemaless).
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close is a no-op because the caller owns the Redis client lifecycle.
func (s *Store) Close() error { return nil }

// ── JSON entity helpers ──

func (s *Store) setEntity(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("transit/redis: marshal %s: %w", key, err)
	}
	return s.rdb.Set(ctx, key, data, 0).Err()
}

func (s *Store) getEntity(ctx context.Context, key string, v any) error {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if isRedisNil(err) {
			return errNotFound
		}
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("transit/redis: unmarshal %s: %w", key, err)
	}
	return nil
}

// isRedisNil reports whether err is the go-redis key-missing sentinel.
func isRedisNil(err error) bool { return errors.Is(err, redis.Nil) }

// isNotFound reports whether err marks a missing entity.
func isNotFound(err error) bool { return errors.Is(err, errNotFound) }
