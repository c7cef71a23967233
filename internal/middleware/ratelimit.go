package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/assocnet/pipeline/internal/envelope"
	"github.com/assocnet/pipeline/internal/ratelimit"
)

// RateLimitConfig holds configuration for the rate limit middleware.
type RateLimitConfig struct {
	// Limiter is the admission controller to consult.
	Limiter ratelimit.Limiter

	// KeyFunc extracts the client identity. Defaults to the forwarded
	// or socket address.
	KeyFunc ratelimit.KeyFunc

	// Logger for rate limit events.
	Logger *zap.Logger

	// IncludeHeaders adds X-RateLimit-* headers to the response.
	IncludeHeaders bool
}

// RateLimit returns a middleware that applies fixed-window admission
// control keyed by client identity.
func RateLimit(limiter ratelimit.Limiter, logger *zap.Logger) gin.HandlerFunc {
	return RateLimitWithConfig(RateLimitConfig{
		Limiter:        limiter,
		Logger:         logger,
		IncludeHeaders: true,
	})
}

// RateLimitWithConfig returns a rate limit middleware with custom
// configuration.
func RateLimitWithConfig(config RateLimitConfig) gin.HandlerFunc {
	if config.Limiter == nil {
		config.Limiter = ratelimit.NewNoopLimiter()
	}
	if config.KeyFunc == nil {
		config.KeyFunc = ratelimit.IPKeyFunc
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		key := config.KeyFunc(c.Request)

		result, err := config.Limiter.Allow(c.Request.Context(), key)
		if err != nil {
			// Limiter implementations fail open themselves; an error here
			// is unexpected, and blocking traffic on it would turn a
			// limiter bug into an outage.
			config.Logger.Warn("rate limit check failed, failing open",
				zap.String("key", key),
				zap.Error(err),
			)
			c.Next()
			return
		}

		if config.IncludeHeaders && !result.FailedOpen {
			c.Header(HeaderRateLimitLimit, strconv.Itoa(result.Limit))
			c.Header(HeaderRateLimitRemaining, strconv.Itoa(result.Remaining))
		}

		if !result.Allowed {
			rateLimitRejections.Inc()
			config.Logger.Warn("rate limit exceeded",
				zap.String("key", key),
				zap.String("path", c.Request.URL.Path),
				zap.Int("limit", result.Limit),
			)

			if config.IncludeHeaders {
				c.Header(HeaderRetryAfter, strconv.Itoa(int(result.RetryAfter.Seconds())))
			}
			envelope.Fail(c, envelope.RateLimited())
			return
		}

		c.Next()
	}
}
