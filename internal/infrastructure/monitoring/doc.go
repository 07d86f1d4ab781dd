/*
Package monitoring provides Prometheus metrics collection for the fabric.

# Overview

Tracks the call path (calls, retries, durations), circuit breaker
transitions and current state, registry lookups and background refresh
failures, health check latencies, and ops HTTP server traffic.

# Usage

	metrics := monitoring.NewMetrics()

	// Ops server
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// From the call path
	metrics.RecordCall("orders", "success", elapsed)
	metrics.RecordBreakerTransition("orders", "closed", "open")
*/
package monitoring
