package config

import (
	"fmt"

	"github.com/caarlos0/env/v9"
	"github.com/sheetserve/sheetserve/internal/quota"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" envDefault:"8080"`
}

// Addr returns the server address in host:port format.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Driver string `env:"DB_DRIVER" envDefault:"sqlite3"`
	DSN    string `env:"DB_DSN" envDefault:"data/sheetserve.db"`
}

// RedisConfig holds the optional Redis quota backend. When Addr is empty
// the quota counters live in the primary database instead.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// Enabled reports whether the Redis quota backend is configured.
func (c *RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// AuthConfig holds management API authentication configuration.
type AuthConfig struct {
	// AdminToken is accepted as a bearer token for the management API
	// when set, so a fresh deployment can mint its first API key.
	AdminToken string `env:"ADMIN_TOKEN"`
}

// RateLimitConfig holds the per-method daily limits for protected
// endpoints. Consumed by both the authenticator and usage reporting so the
// two can never disagree.
type RateLimitConfig struct {
	Get     int `env:"RATE_LIMIT_GET" envDefault:"100"`
	Post    int `env:"RATE_LIMIT_POST" envDefault:"20"`
	Patch   int `env:"RATE_LIMIT_PATCH" envDefault:"20"`
	Delete  int `env:"RATE_LIMIT_DELETE" envDefault:"20"`
	Default int `env:"RATE_LIMIT_DEFAULT" envDefault:"20"`
}

// Policy converts the config into the quota policy.
func (c *RateLimitConfig) Policy() quota.Policy {
	return quota.Policy{
		Get:         c.Get,
		Post:        c.Post,
		Patch:       c.Patch,
		Delete:      c.Delete,
		DefaultOver: c.Default,
	}
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(&cfg.Server); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}
	if err := env.Parse(&cfg.Database); err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	if err := env.Parse(&cfg.Redis); err != nil {
		return nil, fmt.Errorf("parsing redis config: %w", err)
	}
	if err := env.Parse(&cfg.Auth); err != nil {
		return nil, fmt.Errorf("parsing auth config: %w", err)
	}
	if err := env.Parse(&cfg.RateLimit); err != nil {
		return nil, fmt.Errorf("parsing rate limit config: %w", err)
	}
	if err := env.Parse(&cfg.Log); err != nil {
		return nil, fmt.Errorf("parsing log config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Database.Driver != "sqlite3" && c.Database.Driver != "postgres" {
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.RateLimit.Get < 1 || c.RateLimit.Post < 1 || c.RateLimit.Patch < 1 || c.RateLimit.Delete < 1 {
		return fmt.Errorf("rate limits must be positive")
	}
	return nil
}
