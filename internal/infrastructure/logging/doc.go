// Package logging provides structured logging for the field I/O core.
//
// It wraps log/slog: JSON output for production, text for development,
// service and version attributes on every entry, and level filtering.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	registry.SetLogger(logger.Component("driver-registry"))
//
// Never log secrets, tokens or passwords. Field values are logged at debug
// level only.
package logging
