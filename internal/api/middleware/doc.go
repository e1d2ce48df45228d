// Package middleware provides the HTTP middleware of the console API.
//
// Middleware stack includes:
//   - CORS: cross-origin access for the admin UI, exposing trace headers
//   - RateLimit: per-IP token bucket with idle client eviction
//   - GlobalRateLimit: one bucket for every caller
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
