// Package config loads the server configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment names.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config is the full server configuration.
type Config struct {
	// Environment is "development" or "production". Production
	// suppresses stack traces in error responses.
	Environment string `yaml:"environment"`

	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Session   SessionConfig   `yaml:"session"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// RedisConfig holds counter store connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// RateLimitConfig holds the default admission policy.
type RateLimitConfig struct {
	Window time.Duration `yaml:"window"`
	Max    int           `yaml:"max"`
}

// SessionConfig holds session verification settings.
type SessionConfig struct {
	Secret     string `yaml:"secret"`
	CookieName string `yaml:"cookieName"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "rl:",
		},
		RateLimit: RateLimitConfig{
			Window: 15 * time.Minute,
			Max:    100,
		},
		Session: SessionConfig{
			CookieName: "session",
		},
	}
}

// Load reads the configuration file at path, applies environment
// variable overrides, and validates the result. A missing file is not
// an error; defaults plus the environment apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Run on defaults.
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides config fields from PIPELINE_* environment variables.
func applyEnv(cfg *Config) {
	setString(&cfg.Environment, "PIPELINE_ENV")
	setString(&cfg.Server.Addr, "PIPELINE_SERVER_ADDR")
	setString(&cfg.Log.Level, "PIPELINE_LOG_LEVEL")
	setString(&cfg.Log.Format, "PIPELINE_LOG_FORMAT")
	setString(&cfg.Redis.Addr, "PIPELINE_REDIS_ADDR")
	setString(&cfg.Redis.Password, "PIPELINE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PIPELINE_REDIS_DB")
	setString(&cfg.Redis.Prefix, "PIPELINE_REDIS_PREFIX")
	setDuration(&cfg.RateLimit.Window, "PIPELINE_RATELIMIT_WINDOW")
	setInt(&cfg.RateLimit.Max, "PIPELINE_RATELIMIT_MAX")
	setString(&cfg.Session.Secret, "PIPELINE_SESSION_SECRET")
	setString(&cfg.Session.CookieName, "PIPELINE_SESSION_COOKIE")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Environment != EnvDevelopment && c.Environment != EnvProduction {
		return fmt.Errorf("config: unknown environment %q", c.Environment)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("config: server addr is required")
	}
	if c.RateLimit.Max <= 0 {
		return fmt.Errorf("config: rate limit max must be positive")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("config: rate limit window must be positive")
	}
	return nil
}

// Production reports whether the server runs in production mode.
func (c *Config) Production() bool {
	return c.Environment == EnvProduction
}
