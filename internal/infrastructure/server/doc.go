// Package server wires the module registry into an HTTP process.
//
// It builds every component from config.Config:
//   - module source area, registry store, scanner, validator, packager
//   - lifecycle controller with the SQLite storage collaborator
//   - Gin router with tracing, metrics, CORS and rate limiting
//   - WebSocket event stream at /events, Prometheus at /metrics
//   - optional fsnotify watcher that triggers rediscovery
//
// Run performs startup recovery and the first scan before serving, and
// shuts down gracefully when its context is cancelled.
package server
