// Package store provides counter storage backends for rate limiting.
package store

import (
	"context"
	"time"
)

// Store is the minimum counter surface the rate limiter needs. All
// implementations must make Increment/IncrementWithExpiry atomic per key.
type Store interface {
	// Increment increments the counter for the given key by delta and
	// returns the new value.
	Increment(ctx context.Context, key string, delta int64) (int64, error)

	// IncrementWithExpiry increments the counter and, if the increment
	// created the key, sets its expiration. The increment and the
	// conditional expiry must be a single atomic operation.
	IncrementWithExpiry(ctx context.Context, key string, delta int64, expiration time.Duration) (int64, error)

	// Keys returns all keys matching the glob pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Delete removes the given keys from the store.
	Delete(ctx context.Context, keys ...string) error

	// Close closes the store and releases resources.
	Close() error
}
