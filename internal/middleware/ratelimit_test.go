package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assocnet/pipeline/internal/envelope"
	"github.com/assocnet/pipeline/internal/ratelimit"
	"github.com/assocnet/pipeline/internal/ratelimit/store"
)

func newTestLimiter(t *testing.T, limit ratelimit.Limit) (*ratelimit.FixedWindowLimiter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	config := store.DefaultRedisConfig()
	config.Address = mr.Addr()
	config.MaxRetries = 0
	config.DialTimeout = 100 * time.Millisecond
	config.ReadTimeout = 100 * time.Millisecond
	config.WriteTimeout = 100 * time.Millisecond

	s, err := store.NewRedisStore(config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return ratelimit.NewFixedWindowLimiter(s, "rl:", limit), mr
}

func newRateLimitRouter(limiter ratelimit.Limiter) *gin.Engine {
	router := gin.New()
	router.GET("/", RateLimit(limiter, nil), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestRateLimitAllowsAndCounts(t *testing.T) {
	t.Parallel()

	limiter, _ := newTestLimiter(t, ratelimit.Limit{Max: 2, Window: time.Minute})
	router := newRateLimitRouter(limiter)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "1.2.3.4:1234"
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get(HeaderRateLimitLimit))
	assert.Equal(t, "1", w.Header().Get(HeaderRateLimitRemaining))
}

func TestRateLimitRejectsOverLimit(t *testing.T) {
	t.Parallel()

	limiter, _ := newTestLimiter(t, ratelimit.Limit{Max: 2, Window: time.Minute})
	router := newRateLimitRouter(limiter)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = "1.2.3.4:1234"
		router.ServeHTTP(w, r)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "1.2.3.4:1234"
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get(HeaderRateLimitRemaining))
	assert.NotEmpty(t, w.Header().Get(HeaderRetryAfter))

	code, _ := decodeError(t, w.Body.Bytes())
	assert.Equal(t, string(envelope.CodeRateLimited), code)
}

func TestRateLimitKeysByForwardedClient(t *testing.T) {
	t.Parallel()

	limiter, _ := newTestLimiter(t, ratelimit.Limit{Max: 1, Window: time.Minute})
	router := newRateLimitRouter(limiter)

	send := func(forwardedFor string) int {
		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		r.Header.Set(HeaderXForwardedFor, forwardedFor)
		router.ServeHTTP(w, r)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("203.0.113.7"))
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.7"))

	// A different forwarded client has its own window even though the
	// socket address is shared.
	assert.Equal(t, http.StatusOK, send("203.0.113.8"))
}

func TestRateLimitFailsOpenOnStoreOutage(t *testing.T) {
	t.Parallel()

	limiter, mr := newTestLimiter(t, ratelimit.Limit{Max: 1, Window: time.Minute})
	router := newRateLimitRouter(limiter)

	mr.Close()

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = "1.2.3.4:1234"
		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get(HeaderRateLimitLimit), "no quota headers when failing open")
	}
}

// erroringLimiter violates the Limiter contract by returning an error.
type erroringLimiter struct{}

func (erroringLimiter) Allow(ctx context.Context, key string) (*ratelimit.Result, error) {
	return nil, context.DeadlineExceeded
}

func (erroringLimiter) Sweep(ctx context.Context) (int, error) { return 0, nil }

func TestRateLimitFailsOpenOnLimiterError(t *testing.T) {
	t.Parallel()

	router := newRateLimitRouter(erroringLimiter{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitNilLimiterAllowsEverything(t *testing.T) {
	t.Parallel()

	router := newRateLimitRouter(nil)

	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimitHeadersDisabled(t *testing.T) {
	t.Parallel()

	limiter, _ := newTestLimiter(t, ratelimit.Limit{Max: 5, Window: time.Minute})

	router := gin.New()
	router.GET("/", RateLimitWithConfig(RateLimitConfig{Limiter: limiter}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get(HeaderRateLimitLimit))
	assert.Empty(t, w.Header().Get(HeaderRateLimitRemaining))
}
