// Package influxdb provides InfluxDB connectivity for NetRules Core.
//
// It wraps the official influxdb-client-go v2 library with NetRules-specific
// patterns for connection management, metric writing, and health monitoring.
//
// # Purpose
//
// This package handles time-series telemetry for:
//   - Poll cycle metrics (duration, change count, interval, tier)
//   - Change event counters per type and action
//   - Controller fetch health (failures, re-login events)
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "netrules",
//	    Bucket: "telemetry",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteCycleMetric(1250*time.Millisecond, 3, 10*time.Second, "realtime")
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly. Telemetry is
// best-effort: a failed write never blocks or fails a poll cycle.
package influxdb
