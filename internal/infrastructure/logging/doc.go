// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: colored console output for human readability
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("resolved service", zap.String("service", "orders"))
//	logger.Warn("registry degraded, serving stale endpoints", zap.Error(err))
package logging
