// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output, lowercase levels, ISO8601 timestamps
//   - Development: coloured console output
//
// Domain packages take a plain *zap.Logger; this wrapper only builds one
// from configuration and hands out component and per-module children.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Server starting", zap.String("port", "8000"))
//	logger.Module("inventory").Warn("Scan failed", zap.Error(err))
package logging
