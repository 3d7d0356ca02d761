// Package config loads and validates the hub configuration.
//
// Configuration comes from, in order of precedence:
//   - LUMENHUB_* environment variables
//   - the YAML file passed to Load
//   - built-in defaults (see Default)
//
// Secrets such as the MQTT password and InfluxDB token should be supplied
// through the environment rather than the file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	timeout := cfg.Dispatch.FallbackTimeout()
package config
