// Package ratelimit provides fixed-window admission control backed by an
// external counter store.
package ratelimit

import (
	"context"
	"time"
)

// Limit is the admission policy for a window: at most Max requests per
// key within each Window.
type Limit struct {
	// Max is the maximum number of requests allowed in the window.
	Max int

	// Window is the length of the counting window.
	Window time.Duration
}

// DefaultLimit returns the default admission policy.
func DefaultLimit() Limit {
	return Limit{
		Max:    100,
		Window: 15 * time.Minute,
	}
}

// Result is the outcome of an admission check.
type Result struct {
	// Allowed indicates whether the request is admitted.
	Allowed bool

	// Limit is the maximum number of requests allowed in the window.
	Limit int

	// Remaining is the number of requests left in the current window.
	Remaining int

	// RetryAfter is an upper bound on how long to wait before retrying
	// (only meaningful when not allowed).
	RetryAfter time.Duration

	// FailedOpen reports that the counter store was unreachable and the
	// request was admitted without counting.
	FailedOpen bool
}

// Limiter decides whether a request identified by a key is admitted.
type Limiter interface {
	// Allow checks and consumes one unit of quota for the given key.
	// Implementations must not return an error for a counter store
	// outage; they fail open and report it in the Result.
	Allow(ctx context.Context, key string) (*Result, error)

	// Sweep deletes every counter the limiter owns, resetting all
	// windows. It returns the number of counters removed.
	Sweep(ctx context.Context) (int, error)
}

// NoopLimiter admits every request. It is used when no counter store is
// available at startup, keeping the fail-open guarantee.
type NoopLimiter struct{}

// NewNoopLimiter creates a new noop limiter.
func NewNoopLimiter() *NoopLimiter {
	return &NoopLimiter{}
}

// Allow implements Limiter.
func (l *NoopLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	return &Result{Allowed: true, FailedOpen: true}, nil
}

// Sweep implements Limiter.
func (l *NoopLimiter) Sweep(ctx context.Context) (int, error) {
	return 0, nil
}
