// Package config provides 12-factor configuration for the widget preview
// service.
//
// Configuration is loaded from environment variables with defaults. CLI
// flags in cmd/server override the environment.
//
// Configuration Sections:
//   - Server: HTTP listen address and shutdown grace period
//   - Provider: script and static hosts the document loads from
//   - Render: default render switches (enterprise, badge, diagnostics)
//   - Sandbox: runtime pool size, timeouts and circuit breaker
//   - Logging: log level and output format
//   - RateLimit: per-IP rate limiting
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Listening on %s\n", cfg.Server.Addr())
//
// Environment Variables:
//   - PORT, HOST, SHUTDOWN_TIMEOUT
//   - CAPTCHA_SCRIPT_DOMAIN, CAPTCHA_STATIC_DOMAIN
//   - CAPTCHA_ENTERPRISE, CAPTCHA_HIDE_BADGE, CAPTCHA_STRINGIFY_UNSET, CAPTCHA_DIAGNOSTICS
//   - SANDBOX_POOL_SIZE, SANDBOX_TIMEOUT, SANDBOX_ACQUIRE_TIMEOUT
//   - SANDBOX_BREAKER_FAILURES, SANDBOX_BREAKER_COOLDOWN
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
