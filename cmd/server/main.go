// Package main is the entry point for the API server. It wires the
// middleware pipeline around the platform's API routes: structured
// logging, security headers, Redis-backed rate limiting, session
// authentication, and schema validation.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/assocnet/pipeline/internal/config"
	"github.com/assocnet/pipeline/internal/envelope"
	"github.com/assocnet/pipeline/internal/middleware"
	"github.com/assocnet/pipeline/internal/observability"
	"github.com/assocnet/pipeline/internal/pipeline"
	"github.com/assocnet/pipeline/internal/ratelimit"
	"github.com/assocnet/pipeline/internal/ratelimit/store"
	"github.com/assocnet/pipeline/internal/session"
	"github.com/assocnet/pipeline/internal/validate"
)

// Version information (set at build time).
var (
	version   = "dev"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		fmt.Printf("apiserver version %s (%s)\n", version, gitCommit)
		return
	}

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Log.Format = flags.logFormat
	}

	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting api server",
		zap.String("version", version),
		zap.String("environment", cfg.Environment),
		zap.String("addr", cfg.Server.Addr),
	)

	run(cfg, flags.configPath, logger)
}

// parseFlags parses command line flags with environment fallbacks.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("PIPELINE_CONFIG_PATH", "configs/server.yaml"),
		"Path to configuration file")
	logLevel := flag.String("log-level", "", "Log level override (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "Log format override (json, console)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// run builds the pipeline and serves until interrupted.
func run(cfg *config.Config, configPath string, logger *zap.Logger) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	counterStore := connectStore(cfg, logger)
	if counterStore != nil {
		defer func() { _ = counterStore.Close() }()
	}

	composer := pipeline.New(pipeline.Config{
		Store:           counterStore,
		SessionProvider: buildSessionProvider(cfg, logger),
		Logger:          logger,
		Production:      cfg.Production(),
		DefaultLimit: ratelimit.Limit{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		},
		KeyPrefix:   cfg.Redis.Prefix,
		CookieName:  cfg.Session.CookieName,
		ServiceName: "apiserver",
	})

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := composer.Engine()
	mountRoutes(engine, composer)

	watcher := startWatcher(ctx, configPath, composer, logger)
	if watcher != nil {
		defer func() { _ = watcher.Stop() }()
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
		}
	}
}

// connectStore connects the Redis counter store. Connection failure is
// not fatal: the limiter fails open and the server still comes up.
func connectStore(cfg *config.Config, logger *zap.Logger) store.Store {
	redisCfg := store.DefaultRedisConfig()
	redisCfg.Address = cfg.Redis.Addr
	redisCfg.Password = cfg.Redis.Password
	redisCfg.DB = cfg.Redis.DB
	redisCfg.Logger = logger

	s, err := store.NewRedisStore(redisCfg)
	if err != nil {
		logger.Warn("counter store unavailable, rate limiting disabled",
			zap.String("addr", cfg.Redis.Addr),
			zap.Error(err),
		)
		return nil
	}
	return s
}

// buildSessionProvider builds the session token verifier. Without a
// secret every caller is anonymous.
func buildSessionProvider(cfg *config.Config, logger *zap.Logger) session.Provider {
	if cfg.Session.Secret == "" {
		logger.Warn("no session secret configured, all requests are anonymous")
		return nil
	}
	provider, err := session.NewJWTProvider(
		[]byte(cfg.Session.Secret),
		session.WithJWTProviderLogger(logger),
	)
	if err != nil {
		logger.Fatal("failed to build session provider", zap.Error(err))
	}
	return provider
}

// startWatcher hot-reloads rate limit defaults when the config file
// changes.
func startWatcher(ctx context.Context, configPath string, composer *pipeline.Composer, logger *zap.Logger) *config.Watcher {
	if configPath == "" {
		return nil
	}
	if _, err := os.Stat(configPath); err != nil {
		return nil
	}

	watcher, err := config.NewWatcher(configPath, func(next *config.Config) {
		composer.SetDefaultLimit(ratelimit.Limit{
			Max:    next.RateLimit.Max,
			Window: next.RateLimit.Window,
		})
	}, config.WithWatcherLogger(logger))
	if err != nil {
		logger.Warn("config watcher unavailable", zap.Error(err))
		return nil
	}
	if err := watcher.Start(ctx); err != nil {
		logger.Warn("config watcher failed to start", zap.Error(err))
		return nil
	}
	return watcher
}

// feedbackSchema validates the example feedback route.
var feedbackSchema = &validate.Schema{
	Fields: []validate.Field{
		{Name: "subject", Type: validate.TypeString, Required: true, MinLen: 3, MaxLen: 120},
		{Name: "message", Type: validate.TypeString, Required: true, MinLen: 1, MaxLen: 4000},
		{Name: "rating", Type: validate.TypeInt, Min: floatPtr(1), Max: floatPtr(5)},
	},
}

func floatPtr(f float64) *float64 { return &f }

// mountRoutes registers the server's routes through the composer.
// Business routes of the platform mount here the same way.
func mountRoutes(engine *gin.Engine, composer *pipeline.Composer) {
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	composer.Public(engine, http.MethodGet, "/healthz", pipeline.RouteConfig{},
		func(c *gin.Context, _ validate.Data) {
			envelope.OK(c, gin.H{"status": "ok"})
		})

	composer.Handle(engine, http.MethodGet, "/api/v1/whoami", pipeline.RouteConfig{},
		func(c *gin.Context, _ validate.Data) {
			if principal := middleware.GetPrincipal(c); principal != nil {
				envelope.OK(c, principal)
				return
			}
			envelope.OK(c, gin.H{"anonymous": true})
		})

	composer.Handle(engine, http.MethodPost, "/api/v1/feedback",
		pipeline.RouteConfig{RequireAuth: true, Schema: feedbackSchema},
		func(c *gin.Context, data validate.Data) {
			principal := middleware.GetPrincipal(c)
			envelope.Created(c, gin.H{
				"subject": data["subject"],
				"from":    principal.ID,
			})
		})

	composer.Admin(engine, http.MethodPost, "/api/v1/admin/ratelimit/reset", pipeline.RouteConfig{},
		func(c *gin.Context, _ validate.Data) {
			removed, err := composer.Sweep(c.Request.Context())
			if err != nil {
				envelope.Fail(c, envelope.Internal(nil))
				return
			}
			envelope.OKMessage(c, gin.H{"removed": removed}, "rate limit counters cleared")
		})
}
