// Package cache stores rendered API payloads keyed by resource, backed by
// Redis in production and an in-process map when Redis is not configured.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Store is the key/value surface services read through and the
// invalidation bus deletes from. Patterns use the glob form `prefix:*`.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePattern(ctx context.Context, pattern string) (int, error)
}
