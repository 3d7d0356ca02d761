// Package logging provides structured logging for the Lumen hub.
//
// It wraps log/slog so every component logs with the same handler,
// level filtering and default fields (service, version).
//
// Configuration lives in the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("device registered", "device_id", id)
//	logger.Component("router").Warn("fallback failed", "error", err)
//
// Field keys are snake_case. Never log secrets such as the MQTT password
// or the InfluxDB token.
package logging
