// Package events publishes detected change records to the MQTT event bus.
//
// Each change becomes one JSON message on a per-entity topic
// (netrules/events/{change_type}/{entity_id}), so subscribers can filter
// with broker-side wildcards instead of client-side matching. Delivery is
// at-least-once: a change that fails to publish is logged and dropped, it
// is never re-detected on the next poll cycle.
package events
