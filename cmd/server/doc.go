// Package main is the entry point for the captchaview preview server.
//
// The server renders reCAPTCHA host documents for embedded web views and
// runs them against a simulated provider so hosts can check the lifecycle
// messages a page will post.
//
// Configuration:
//   - Environment variables (see internal/infrastructure/config)
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Production mode
//	./server -port 8000 -pool 8
//
//	# Enterprise widget, checkpoints on the console
//	./server -enterprise -diagnostics console
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
