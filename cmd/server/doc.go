// Package main is the entry point of the admin console module registry.
//
// The server discovers feature modules under the module root, validates
// them, and serves their lifecycle (import, activate, disable, remove,
// export) over HTTP. Active modules' routes and navigation are published
// for the console UI.
//
// Configuration:
//   - Environment variables (12-factor), see internal/infrastructure/config
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Production mode
//	./server -port 8000 -modules /srv/console/modules
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
