package mqtt

import "fmt"

// Topic prefixes for the NetRules MQTT namespace.
//
// Outbound events use: netrules/events/{change_type}/{entity_id}
// Inbound signals use: netrules/poll/...
const (
	// TopicPrefix is the base for all NetRules topics.
	TopicPrefix = "netrules"

	// TopicPrefixEvents is the base for change-event topics.
	TopicPrefixEvents = "netrules/events"

	// TopicPrefixPoll is the base for polling-control topics.
	TopicPrefixPoll = "netrules/poll"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "netrules/system"
)

// Topics provides builders for NetRules MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	eventTopic := topics.EventChange("firewall_policy", "68a1b2c3")
//	// Returns: "netrules/events/firewall_policy/68a1b2c3"
type Topics struct{}

// EventChange returns the topic for a detected change on a specific entity.
//
// Example: netrules/events/firewall_policy/68a1b2c3
func (Topics) EventChange(changeType, entityID string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixEvents, changeType, entityID)
}

// AllEvents returns a pattern matching every change event.
//
// Pattern: netrules/events/+/+
func (Topics) AllEvents() string {
	return fmt.Sprintf("%s/+/+", TopicPrefixEvents)
}

// EventsByType returns a pattern matching all events of one change type.
//
// Example: netrules/events/traffic_route/+
func (Topics) EventsByType(changeType string) string {
	return fmt.Sprintf("%s/%s/+", TopicPrefixEvents, changeType)
}

// PollRefresh returns the topic external systems publish to when they have
// changed something on the controller and want an immediate poll.
//
// Example: netrules/poll/refresh
func (Topics) PollRefresh() string {
	return fmt.Sprintf("%s/refresh", TopicPrefixPoll)
}

// PollStatus returns the topic NetRules publishes its polling tier to.
//
// Example: netrules/poll/status
func (Topics) PollStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixPoll)
}

// SystemStatus returns the system status topic (online/offline, LWT).
//
// Example: netrules/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllTopics returns a pattern matching all NetRules topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: netrules/#
func (Topics) AllTopics() string {
	return "netrules/#"
}
