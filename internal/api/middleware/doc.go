// Package middleware provides the HTTP middleware of the preview service.
//
//   - CORS: cross-origin access for browser-based hosts, exposing the
//     trace and provider script headers
//   - RateLimit: per-IP token buckets, idle clients evicted
//   - GlobalRateLimit: one token bucket for the whole service
//   - Compress: zstd or gzip response bodies, picked from Accept-Encoding
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig().WithOrigins(cfg.Server.AllowOrigins)))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
