/*
Package monitoring provides Prometheus metrics for the admin console.

# Overview

Every Metrics value owns its registry, so tests and multiple servers in one
process never collide on registration. Metrics implements the lifecycle
observer, so the controller reports transitions, imports, exports and scans
directly.

# Metrics

  - modules_by_state{state}
  - module_transitions_total{from,to,result}
  - module_imports_total{result}, module_exports_total{result}
  - module_scan_duration_seconds, module_scan_errors_total
  - module_operation_duration_seconds{operation,result}
  - console_http_* request metrics, labelled by route template
  - console_ws_connections, console_ws_messages_total

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "activate")
	// ... perform operation ...
	timer.Stop("ok")
*/
package monitoring
