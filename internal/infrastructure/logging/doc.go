// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output
//
// Components receive a *zap.Logger and name themselves (logger.Named("router")),
// so every line carries the component that produced it.
//
// Routing drops (unknown session, closed window) are logged at Debug; they are
// expected during close races and are not failures.
//
// Example Usage:
//
//	logger := logging.FromLevel(cfg.Logging.Level, cfg.Logging.Development)
//	logger.Info("Host starting", zap.String("addr", addr))
package logging
