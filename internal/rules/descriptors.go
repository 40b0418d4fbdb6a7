package rules

import (
	"fmt"
	"strings"
)

// childRule describes how a kind derives one synthetic child entity per
// parent. The child mirrors a single boolean-ish parent field into its own
// "enabled" field so it can be toggled and reported independently.
type childRule struct {
	// suffix is appended to the parent id to form the child id.
	suffix string

	// sourceField is the parent field mirrored into the child's "enabled".
	// The child is only synthesised when this field is present on the raw
	// parent entity.
	sourceField string

	// nameLabel is appended to the parent display name.
	nameLabel string

	// changeType is the semantic change type reported for the child.
	changeType string
}

// descriptor is the declarative per-kind table consulted by the snapshot
// builder and classifier. Keeping the special-casing here (rather than in
// scattered kind switches) keeps the enumeration closed and testable.
type descriptor struct {
	// changeType is the semantic entity kind used in change records,
	// e.g. "firewall_policy" for the "firewall_policies" collection.
	changeType string

	// label is the human-readable kind label for fallback display names.
	label string

	// computed lists fields overlaid onto the raw entity after copying.
	// Computed values win over raw values of the same key because they
	// encode normalised/typed logic the raw JSON lacks.
	computed map[string]func(RawEntity) (any, bool)

	// ignored lists fields that never count as user-meaningful
	// modifications (bookkeeping, counters, derived child sources).
	ignored map[string]struct{}

	// child, when set, enables synthetic child derivation for this kind.
	child *childRule

	// fallbackName builds a kind-specific display name when the entity has
	// neither "name" nor "description". May be nil.
	fallbackName func(f FieldMap, idPrefix string) string
}

// enabledBool normalises the raw "enabled" field to a typed bool.
func enabledBool(raw RawEntity) (any, bool) {
	v, ok := raw["enabled"]
	if !ok {
		return nil, false
	}
	return toBool(v), true
}

// killSwitchBool normalises the traffic-route kill switch field.
func killSwitchBool(raw RawEntity) (any, bool) {
	v, ok := raw["kill_switch_enabled"]
	if !ok {
		return nil, false
	}
	return toBool(v), true
}

// ledOverrideString normalises the device LED override to its tri-state
// string form ("on", "off", "default").
func ledOverrideString(raw RawEntity) (any, bool) {
	v, ok := raw["led_override"]
	if !ok {
		return nil, false
	}
	return strings.ToLower(toString(v)), true
}

// ignoreSet builds an ignore set from the always-ignored bookkeeping
// fields plus any kind-specific extras.
func ignoreSet(extra ...string) map[string]struct{} {
	base := []string{
		"_id", "_rev", "site_id", "parent_id",
		"attr_no_delete", "attr_no_edit",
		"setup_id", "origin_id",
	}
	set := make(map[string]struct{}, len(base)+len(extra))
	for _, f := range base {
		set[f] = struct{}{}
	}
	for _, f := range extra {
		set[f] = struct{}{}
	}
	return set
}

// descriptors is the closed per-kind table. Adding a kind means adding a
// row here; nothing else in the package enumerates kinds.
var descriptors = map[Kind]descriptor{
	KindFirewallPolicies: {
		changeType: "firewall_policy",
		label:      "Firewall Policy",
		computed:   map[string]func(RawEntity) (any, bool){"enabled": enabledBool},
		ignored:    ignoreSet("index"),
		fallbackName: func(f FieldMap, idPrefix string) string {
			action := strings.ToUpper(toString(f["action"]))
			if action == "" {
				return ""
			}
			return fmt.Sprintf("Firewall %s Rule %s", action, idPrefix)
		},
	},
	KindTrafficRules: {
		changeType: "traffic_rule",
		label:      "Traffic Rule",
		computed:   map[string]func(RawEntity) (any, bool){"enabled": enabledBool},
		ignored:    ignoreSet(),
	},
	KindTrafficRoutes: {
		changeType: "traffic_route",
		label:      "Traffic Route",
		computed: map[string]func(RawEntity) (any, bool){
			"enabled":             enabledBool,
			"kill_switch_enabled": killSwitchBool,
		},
		// kill_switch_enabled changes belong to the synthetic child, never
		// to the parent route.
		ignored: ignoreSet("kill_switch_enabled"),
		child: &childRule{
			suffix:      SuffixKillSwitch,
			sourceField: "kill_switch_enabled",
			nameLabel:   "Kill Switch",
			changeType:  "traffic_route_kill_switch",
		},
	},
	KindPortForwards: {
		changeType: "port_forward",
		label:      "Port Forward",
		computed:   map[string]func(RawEntity) (any, bool){"enabled": enabledBool},
		ignored:    ignoreSet(),
		fallbackName: func(f FieldMap, idPrefix string) string {
			dst := toString(f["dst_port"])
			fwd := toString(f["fwd_port"])
			if dst == "" && fwd == "" {
				return ""
			}
			return fmt.Sprintf("Port Forward %s → %s", dst, fwd)
		},
	},
	KindFirewallZones: {
		changeType: "firewall_zone",
		label:      "Firewall Zone",
		ignored:    ignoreSet("network_ids"),
	},
	KindWLANs: {
		changeType: "wlan",
		label:      "WLAN",
		computed:   map[string]func(RawEntity) (any, bool){"enabled": enabledBool},
		ignored:    ignoreSet(),
		fallbackName: func(f FieldMap, idPrefix string) string {
			ssid := toString(f["ssid"])
			if ssid == "" {
				return ""
			}
			return "WLAN: " + ssid
		},
	},
	KindQoSRules: {
		changeType: "qos_rule",
		label:      "QoS Rule",
		computed:   map[string]func(RawEntity) (any, bool){"enabled": enabledBool},
		ignored:    ignoreSet(),
	},
	KindVPNClients: {
		changeType: "vpn_client",
		label:      "VPN Client",
		computed:   map[string]func(RawEntity) (any, bool){"enabled": enabledBool},
		ignored:    ignoreSet(),
	},
	KindVPNServers: {
		changeType: "vpn_server",
		label:      "VPN Server",
		computed:   map[string]func(RawEntity) (any, bool){"enabled": enabledBool},
		ignored:    ignoreSet(),
	},
	KindDevices: {
		changeType: "device",
		label:      "Device",
		computed: map[string]func(RawEntity) (any, bool){
			"led_override": ledOverrideString,
		},
		// Devices carry volatile runtime stats that churn every poll; none
		// of them are user-meaningful rule changes. led_override belongs to
		// the synthetic LED child.
		ignored: ignoreSet(
			"led_override",
			"last_seen", "uptime", "state", "upgradable",
			"system_stats", "sys_stats", "stat", "uplink",
			"connect_request_ip", "connect_request_port",
			"next_interval", "considered_lost_at",
			"rx_bytes", "tx_bytes", "bytes",
			"satisfaction", "num_sta", "user_num_sta", "guest_num_sta",
			"startup_timestamp", "provisioned_at",
		),
		child: &childRule{
			suffix:      SuffixLED,
			sourceField: "led_override",
			nameLabel:   "LED",
			changeType:  "device_led",
		},
	},
	KindPortProfiles: {
		changeType: "port_profile",
		label:      "Port Profile",
		ignored:    ignoreSet(),
	},
	KindNetworks: {
		changeType: "network",
		label:      "Network",
		computed:   map[string]func(RawEntity) (any, bool){"enabled": enabledBool},
		ignored:    ignoreSet(),
	},
	KindStaticRoutes: {
		changeType: "static_route",
		label:      "Static Route",
		computed:   map[string]func(RawEntity) (any, bool){"enabled": enabledBool},
		ignored:    ignoreSet(),
	},
	KindNATRules: {
		changeType: "nat_rule",
		label:      "NAT Rule",
		computed:   map[string]func(RawEntity) (any, bool){"enabled": enabledBool},
		ignored:    ignoreSet(),
	},
	KindOONPolicies: {
		changeType: "oon_policy",
		label:      "Object Network Policy",
		computed:   map[string]func(RawEntity) (any, bool){"enabled": enabledBool},
		ignored:    ignoreSet(),
	},
}

// toBool coerces the loose boolean representations controllers emit
// (JSON bool, "true"/"false", 0/1) to a Go bool.
func toBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(t, "true") || t == "1" || strings.EqualFold(t, "on")
	case float64:
		return t != 0
	case int:
		return t != 0
	default:
		return false
	}
}

// toString coerces scalar JSON values to their display string form.
// Non-scalar values return "".
func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		// JSON numbers decode as float64; ports and indexes are integral.
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case int:
		return fmt.Sprintf("%d", t)
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}
