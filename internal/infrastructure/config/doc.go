// Package config loads and validates NetRules Core configuration.
//
// Configuration comes from three layers, each overriding the last:
//
//  1. Hardcoded defaults
//  2. The YAML config file
//  3. NETRULES_* environment variables (secrets, deploy-time overrides)
//
// Durations in the YAML are plain seconds (integers); the accessor
// methods convert to time.Duration so callers never multiply by
// time.Second themselves.
//
// Secrets (controller password, MQTT password, InfluxDB token, JWT
// secret) should be supplied via environment variables rather than the
// file in production deployments.
package config
