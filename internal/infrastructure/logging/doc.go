// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Components get named child loggers, so lines from the sandbox, the
// renderer and the HTTP layer can be told apart:
//
//	logger := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)
//	sim := logger.Component("simulate")
//	sim.Info("Run finished", zap.String("run_id", id))
package logging
