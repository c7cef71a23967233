package ratelimit

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/assocnet/pipeline/internal/ratelimit/store"
)

// FixedWindowLimiter implements the fixed window algorithm over a
// counter store. The first request for a key creates its counter with a
// TTL of one window; the counter self-expires, starting a fresh window.
type FixedWindowLimiter struct {
	store  store.Store
	prefix string
	logger *zap.Logger

	mu    sync.RWMutex
	limit Limit
}

// FixedWindowOption is a functional option for the limiter.
type FixedWindowOption func(*FixedWindowLimiter)

// WithFixedWindowLogger sets the logger.
func WithFixedWindowLogger(logger *zap.Logger) FixedWindowOption {
	return func(l *FixedWindowLimiter) {
		l.logger = logger
	}
}

// NewFixedWindowLimiter creates a fixed window limiter. prefix namespaces
// this limiter's counters in the shared store.
func NewFixedWindowLimiter(s store.Store, prefix string, limit Limit, opts ...FixedWindowOption) *FixedWindowLimiter {
	l := &FixedWindowLimiter{
		store:  s,
		prefix: prefix,
		logger: zap.NewNop(),
		limit:  limit,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Limit returns the current admission policy.
func (l *FixedWindowLimiter) Limit() Limit {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.limit
}

// SetLimit replaces the admission policy. Counters already in flight
// keep their original TTL; only the max is re-evaluated immediately.
func (l *FixedWindowLimiter) SetLimit(limit Limit) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limit = limit
}

// Allow implements Limiter. A store failure admits the request: an
// unreachable limiter must never become a site outage.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	limit := l.Limit()

	count, err := l.store.IncrementWithExpiry(ctx, l.prefix+key, 1, limit.Window)
	if err != nil {
		l.logger.Warn("rate limit store unavailable, failing open",
			zap.String("key", key),
			zap.Error(err),
		)
		return &Result{
			Allowed:    true,
			Limit:      limit.Max,
			Remaining:  limit.Max,
			FailedOpen: true,
		}, nil
	}

	remaining := limit.Max - int(count)
	if remaining < 0 {
		remaining = 0
	}

	result := &Result{
		Allowed:   int(count) <= limit.Max,
		Limit:     limit.Max,
		Remaining: remaining,
	}
	if !result.Allowed {
		// The exact TTL of the counter is not tracked here; the window
		// length is a safe upper bound for the client to back off.
		result.RetryAfter = limit.Window
	}

	return result, nil
}

// Sweep implements Limiter. It enumerates and deletes every counter
// under the limiter's prefix, giving operators a manual reset that does
// not wait for per-key expiry.
func (l *FixedWindowLimiter) Sweep(ctx context.Context) (int, error) {
	keys, err := l.store.Keys(ctx, l.prefix+"*")
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := l.store.Delete(ctx, keys...); err != nil {
		return 0, err
	}
	return len(keys), nil
}
