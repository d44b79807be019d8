package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Provider  ProviderConfig
	Render    RenderConfig
	Sandbox   SandboxConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8000"`
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	AllowOrigins    []string      `envconfig:"CORS_ORIGINS" default:"*"`
}

// ProviderConfig holds the hosts the document loads the widget from.
type ProviderConfig struct {
	ScriptDomain string `envconfig:"CAPTCHA_SCRIPT_DOMAIN" default:"www.google.com"`
	StaticDomain string `envconfig:"CAPTCHA_STATIC_DOMAIN" default:"www.gstatic.com"`
	// ProbeTTL is how long a reachability check of the provider scripts is
	// reused. Zero disables the probe endpoint.
	ProbeTTL     time.Duration `envconfig:"CAPTCHA_PROBE_TTL" default:"1m"`
	ProbeTimeout time.Duration `envconfig:"CAPTCHA_PROBE_TIMEOUT" default:"5s"`
	ProbeRetries int           `envconfig:"CAPTCHA_PROBE_RETRIES" default:"2"`
}

// RenderConfig holds default render switches. Requests may override them.
type RenderConfig struct {
	Enterprise     bool   `envconfig:"CAPTCHA_ENTERPRISE" default:"false"`
	HideBadge      bool   `envconfig:"CAPTCHA_HIDE_BADGE" default:"false"`
	StringifyUnset bool   `envconfig:"CAPTCHA_STRINGIFY_UNSET" default:"false"`
	Diagnostics    string `envconfig:"CAPTCHA_DIAGNOSTICS" default:"off"`
}

// SandboxConfig holds the settings of the simulation runtimes.
type SandboxConfig struct {
	PoolSize       int           `envconfig:"SANDBOX_POOL_SIZE" default:"4"`
	Timeout        time.Duration `envconfig:"SANDBOX_TIMEOUT" default:"5s"`
	AcquireTimeout time.Duration `envconfig:"SANDBOX_ACQUIRE_TIMEOUT" default:"5s"`
	// BreakerFailures is the number of consecutive failed runs that stops
	// simulations until BreakerCooldown has passed.
	BreakerFailures uint32        `envconfig:"SANDBOX_BREAKER_FAILURES" default:"5"`
	BreakerCooldown time.Duration `envconfig:"SANDBOX_BREAKER_COOLDOWN" default:"30s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "0.0.0.0",
			ShutdownTimeout: 10 * time.Second,
			AllowOrigins:    []string{"*"},
		},
		Provider: ProviderConfig{
			ScriptDomain: "www.google.com",
			StaticDomain: "www.gstatic.com",
			ProbeTTL:     time.Minute,
			ProbeTimeout: 5 * time.Second,
			ProbeRetries: 2,
		},
		Render: RenderConfig{
			Diagnostics: "off",
		},
		Sandbox: SandboxConfig{
			PoolSize:        4,
			Timeout:         5 * time.Second,
			AcquireTimeout:  5 * time.Second,
			BreakerFailures: 5,
			BreakerCooldown: 30 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}
