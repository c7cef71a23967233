// Package pipeline assembles the fixed-order middleware chain that
// wraps every API handler: request logging, panic recovery, security
// headers, tracing, metrics, rate limiting, the authentication gate,
// and schema validation. The order is built in exactly one place so a
// route cannot silently skip a stage.
package pipeline

import (
	"context"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/assocnet/pipeline/internal/envelope"
	"github.com/assocnet/pipeline/internal/middleware"
	"github.com/assocnet/pipeline/internal/ratelimit"
	"github.com/assocnet/pipeline/internal/ratelimit/store"
	"github.com/assocnet/pipeline/internal/session"
	"github.com/assocnet/pipeline/internal/validate"
)

// DefaultKeyPrefix namespaces rate limit counters in the shared store.
const DefaultKeyPrefix = "rl:"

// Handler is a business handler. data is the typed result of schema
// validation, nil when the route declares no schema; handlers must not
// re-read raw input once a schema validated it.
type Handler func(c *gin.Context, data validate.Data)

// RouteConfig is the declarative per-route policy consumed read-only by
// the composer.
type RouteConfig struct {
	// RequireAuth rejects anonymous callers with 401.
	RequireAuth bool

	// AllowedRoles restricts the route to the listed roles (403
	// otherwise). Empty allows any authenticated or anonymous caller,
	// subject to RequireAuth.
	AllowedRoles []session.Role

	// RateLimit overrides the composer's default admission policy for
	// this route. The route gets its own counter namespace.
	RateLimit *ratelimit.Limit

	// Schema validates the request input before the handler runs.
	Schema *validate.Schema
}

// Config holds the composer's injected dependencies. There are no
// package-level singletons; fakes slot in for tests.
type Config struct {
	// Store is the shared rate limit counter store. nil disables rate
	// limiting entirely (the fail-open path for an unreachable store at
	// startup).
	Store store.Store

	// SessionProvider resolves request credentials into a Principal.
	SessionProvider session.Provider

	// Logger for all pipeline stages.
	Logger *zap.Logger

	// Production suppresses stack traces in 500 envelopes.
	Production bool

	// DefaultLimit is the admission policy for routes without an
	// explicit override.
	DefaultLimit ratelimit.Limit

	// KeyPrefix namespaces counters in the store.
	KeyPrefix string

	// CookieName is the session cookie name.
	CookieName string

	// ServiceName names the tracer.
	ServiceName string
}

// Composer builds the middleware chain for every route. Stage order is
// fixed: logging -> recovery -> security headers -> tracing -> metrics
// -> rate limit -> auth gate -> validation -> handler. The rate limiter
// runs before the auth gate, so an anonymous flood consumes quota
// before being rejected with 401.
type Composer struct {
	cfg            Config
	logger         *zap.Logger
	defaultLimiter *ratelimit.FixedWindowLimiter

	mu      sync.RWMutex
	methods map[string][]string
}

// New creates a composer from its dependencies.
func New(cfg Config) *Composer {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	if cfg.DefaultLimit.Max == 0 {
		cfg.DefaultLimit = ratelimit.DefaultLimit()
	}
	if cfg.CookieName == "" {
		cfg.CookieName = session.DefaultCookieName
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "pipeline"
	}

	p := &Composer{
		cfg:     cfg,
		logger:  cfg.Logger,
		methods: make(map[string][]string),
	}

	if cfg.Store != nil {
		p.defaultLimiter = ratelimit.NewFixedWindowLimiter(
			cfg.Store,
			cfg.KeyPrefix,
			cfg.DefaultLimit,
			ratelimit.WithFixedWindowLogger(cfg.Logger),
		)
	} else {
		cfg.Logger.Warn("no counter store configured, rate limiting disabled")
	}

	return p
}

// Engine builds a gin engine carrying the always-on stages and the
// 404/405 fallbacks. Every route must be registered through the
// composer so the per-route stages keep their fixed order.
func (p *Composer) Engine() *gin.Engine {
	engine := gin.New()

	engine.Use(
		middleware.Logging(p.logger),
		middleware.RecoveryWithConfig(middleware.RecoveryConfig{
			Logger:      p.logger,
			ExposeStack: !p.cfg.Production,
		}),
		middleware.SecurityHeaders(),
		middleware.Tracing(p.cfg.ServiceName),
		middleware.Metrics(),
	)

	engine.HandleMethodNotAllowed = true
	engine.NoMethod(p.methodNotAllowed)
	engine.NoRoute(func(c *gin.Context) {
		envelope.Fail(c, envelope.NotFound(""))
	})

	return engine
}

// Handle registers a protected route: rate limit, auth gate, optional
// validation, then the handler.
func (p *Composer) Handle(engine *gin.Engine, method, path string, cfg RouteConfig, handler Handler) {
	p.register(engine, method, path, p.chain(method, path, cfg, true, handler))
}

// Public registers a route without the auth gate. The omission is
// static: the gate stage is never built, rather than being skipped at
// request time. Rate limiting and validation still apply.
func (p *Composer) Public(engine *gin.Engine, method, path string, cfg RouteConfig, handler Handler) {
	cfg.RequireAuth = false
	cfg.AllowedRoles = nil
	p.register(engine, method, path, p.chain(method, path, cfg, false, handler))
}

// Admin registers a route restricted to administrators regardless of
// what the route config says.
func (p *Composer) Admin(engine *gin.Engine, method, path string, cfg RouteConfig, handler Handler) {
	cfg.RequireAuth = true
	cfg.AllowedRoles = []session.Role{session.RoleAdmin}
	p.register(engine, method, path, p.chain(method, path, cfg, true, handler))
}

// chain builds the per-route stage list in the fixed order.
func (p *Composer) chain(method, path string, cfg RouteConfig, withGate bool, handler Handler) []gin.HandlerFunc {
	stages := make([]gin.HandlerFunc, 0, 4)

	stages = append(stages, middleware.RateLimitWithConfig(middleware.RateLimitConfig{
		Limiter:        p.routeLimiter(method, path, cfg.RateLimit),
		Logger:         p.logger,
		IncludeHeaders: true,
	}))

	if withGate {
		stages = append(stages, middleware.Gate(middleware.GateConfig{
			Provider:     p.cfg.SessionProvider,
			RequireAuth:  cfg.RequireAuth,
			AllowedRoles: cfg.AllowedRoles,
			CookieName:   p.cfg.CookieName,
			Logger:       p.logger,
		}))
	}

	if cfg.Schema != nil {
		stages = append(stages, middleware.Validate(cfg.Schema))
	}

	stages = append(stages, func(c *gin.Context) {
		handler(c, middleware.GetValidatedData(c))
	})

	return stages
}

// routeLimiter returns the admission controller for a route: the shared
// default limiter, or a dedicated one with its own counter namespace
// when the route overrides the policy.
func (p *Composer) routeLimiter(method, path string, override *ratelimit.Limit) ratelimit.Limiter {
	if p.cfg.Store == nil {
		return ratelimit.NewNoopLimiter()
	}
	if override == nil {
		return p.defaultLimiter
	}
	prefix := p.cfg.KeyPrefix + method + ":" + path + ":"
	return ratelimit.NewFixedWindowLimiter(
		p.cfg.Store,
		prefix,
		*override,
		ratelimit.WithFixedWindowLogger(p.logger),
	)
}

// register records the route in the method registry and mounts it.
func (p *Composer) register(engine *gin.Engine, method, path string, stages []gin.HandlerFunc) {
	p.mu.Lock()
	p.methods[path] = append(p.methods[path], method)
	p.mu.Unlock()

	engine.Handle(method, path, stages...)
}

// SetDefaultLimit replaces the default admission policy at runtime
// (config hot reload). Routes with explicit overrides are unaffected.
func (p *Composer) SetDefaultLimit(limit ratelimit.Limit) {
	if p.defaultLimiter != nil {
		p.defaultLimiter.SetLimit(limit)
	}
}

// Sweep deletes every rate limit counter under the composer's prefix,
// resetting all windows. It is the operator-facing manual reset.
func (p *Composer) Sweep(ctx context.Context) (int, error) {
	if p.cfg.Store == nil {
		return 0, nil
	}
	keys, err := p.cfg.Store.Keys(ctx, p.cfg.KeyPrefix+"*")
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := p.cfg.Store.Delete(ctx, keys...); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// methodNotAllowed answers requests whose path exists under another
// verb: 405 with an Allow header listing the registered verbs.
func (p *Composer) methodNotAllowed(c *gin.Context) {
	if allowed := p.allowedMethods(c.Request.URL.Path); len(allowed) > 0 {
		c.Header(middleware.HeaderAllow, strings.Join(allowed, ", "))
	}
	envelope.Fail(c, envelope.MethodNotAllowed())
}

// allowedMethods returns the verbs registered for the request path,
// matching :param and *wildcard segments of registered patterns.
func (p *Composer) allowedMethods(requestPath string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if methods, ok := p.methods[requestPath]; ok {
		return methods
	}

	segments := strings.Split(requestPath, "/")
	for pattern, methods := range p.methods {
		if matchPattern(strings.Split(pattern, "/"), segments) {
			return methods
		}
	}
	return nil
}

// matchPattern compares a registered route pattern against a concrete
// path, segment by segment.
func matchPattern(pattern, path []string) bool {
	for i, seg := range pattern {
		if strings.HasPrefix(seg, "*") {
			return true
		}
		if i >= len(path) {
			return false
		}
		if strings.HasPrefix(seg, ":") {
			continue
		}
		if seg != path[i] {
			return false
		}
	}
	return len(pattern) == len(path)
}
