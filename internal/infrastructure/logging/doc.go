// Package logging provides structured logging for recordstore.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the store, the migration
// controller and the optional MQTT/InfluxDB sinks.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("store opened", "path", path)
//	logger.Error("insert failed", "table", "users", "error", err)
//
// Never log record contents that may carry personal data; log table
// names, row counts and SQL text only.
package logging
