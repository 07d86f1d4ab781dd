// Package main is the entry point for the fabric server.
//
// The server fronts a fleet of downstream services with a resilient
// communication layer: etcd-backed discovery with a TTL cache and
// stale fallback, per-service circuit breakers, retry with exponential
// backoff and jitter, and dependency health checks.
//
// It exposes an ops HTTP API:
//   - GET /health/live and /health/ready for orchestrator probes
//   - GET /breakers and /services for introspection
//   - GET /metrics for Prometheus scraping
//   - ANY /proxy/:service/*path to call a downstream through the fabric
//
// Configuration comes from environment variables (12-factor), with CLI
// flags overriding the basics.
//
// Signals:
//   - SIGINT, SIGTERM: graceful shutdown
package main
