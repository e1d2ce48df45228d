// Package config provides 12-factor configuration management for the admin console.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Modules: module source area, host version, import limits, scan workers
//   - Storage: SQLite database holding module tables
//   - Watch: automatic rediscovery on filesystem changes
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s\n", cfg.Address())
//
// Environment Variables:
//   - PORT, HOST
//   - MODULES_ROOT, HOST_VERSION, MODULES_IGNORE, IMPORT_TIMEOUT, MAX_PACKAGE_BYTES, SCAN_WORKERS
//   - STORAGE_PATH, STORAGE_ENABLED
//   - WATCH_ENABLED, WATCH_DEBOUNCE
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
