// Package trigger fans detected rule changes out to automation
// subscribers.
//
// Consumers register a Filter and a Handler; every change record the
// detector dispatches is matched against all active filters and handed
// to the matching handlers. Filters can constrain entity ids, semantic
// change types, change actions (one or many), and a case-insensitive
// substring of the display name. Empty filter fields match everything.
//
// The registry implements rules.Dispatcher, so it plugs straight into
// the detector's dispatch fan-out alongside MQTT and history.
package trigger
