/*
Package monitoring provides Prometheus metrics for the widget host.

# Overview

Metrics cover the HTTP API, the widget lifecycle (mounts, events, renders,
patch ops, guest logs, persists), bundle and storage service calls, and
WebSocket streams. A MetricsSnapshot mirrors the headline numbers for the
JSON health endpoint.

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics()
	defer metrics.Close()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Record widget activity
	metrics.IncMountsTotal()
	metrics.RecordRender("ok", elapsed, map[string]int{"insert": 2})

	// Time operations
	timer := monitoring.NewTimer(metrics, "widget_manager", "mount")
	// ... perform operation ...
	timer.Stop("") // or an error type such as "invalid_bundle"

Tests should use NewMetricsWith(prometheus.NewRegistry()) so collectors
do not collide on the default registry.

# Metrics Endpoint

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
