package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteCycleMetric records one completed poll cycle.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - duration: How long the fetch + detect + dispatch cycle took
//   - changeCount: Number of change records dispatched this cycle
//   - interval: The poll interval that scheduled this cycle
//   - tier: The polling tier name ("base", "active", "realtime")
func (c *Client) WriteCycleMetric(duration time.Duration, changeCount int, interval time.Duration, tier string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"poll_cycle",
		map[string]string{
			"tier": tier,
		},
		map[string]interface{}{
			"duration_ms":      float64(duration.Milliseconds()),
			"change_count":     changeCount,
			"interval_seconds": interval.Seconds(),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteChangeMetric records one dispatched change event.
//
// Tags keep cardinality low: change type and action only, never entity IDs.
func (c *Client) WriteChangeMetric(changeType, action string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"change_events",
		map[string]string{
			"type":   changeType,
			"action": action,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteFetchFailure records a failed controller fetch, tagged by failure
// class ("auth", "network", "validation").
func (c *Client) WriteFetchFailure(class string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"fetch_failures",
		map[string]string{
			"class": class,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
