// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing, sampled
//   - Development: Colored console output for human readability
//
// Widget console output arrives with its own levels (error, warn, info,
// debug, log) and is routed through Guest so it lands in the same stream
// tagged with the widget name.
//
// Example Usage:
//
//	logger, err := logging.New(logging.DefaultConfig())
//	logger.Info("Server starting", zap.String("port", "8000"))
//	logger.ForWidget("counter").Guest(types.LevelWarn, "Widget (counter)", zap.Any("content", args))
package logging
