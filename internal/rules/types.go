package rules

// Kind identifies one rule collection fetched from the network controller.
// The set of kinds is closed: collections the controller returns under any
// other key are ignored by the snapshot builder (forward compatibility with
// controller schema drift).
type Kind string

// Recognised rule collections.
const (
	KindFirewallPolicies Kind = "firewall_policies"
	KindTrafficRules     Kind = "traffic_rules"
	KindTrafficRoutes    Kind = "traffic_routes"
	KindPortForwards     Kind = "port_forwards"
	KindFirewallZones    Kind = "firewall_zones"
	KindWLANs            Kind = "wlans"
	KindQoSRules         Kind = "qos_rules"
	KindVPNClients       Kind = "vpn_clients"
	KindVPNServers       Kind = "vpn_servers"
	KindDevices          Kind = "devices"
	KindPortProfiles     Kind = "port_profiles"
	KindNetworks         Kind = "networks"
	KindStaticRoutes     Kind = "static_routes"
	KindNATRules         Kind = "nat_rules"
	KindOONPolicies      Kind = "oon_policies"
)

// Synthetic child entity id suffixes. Children are peers of their parent in
// the same kind bucket; their ids are the parent id plus one of these.
const (
	SuffixKillSwitch = "_kill_switch"
	SuffixLED        = "_led"
)

// RawEntity is one decoded JSON object from a controller collection.
type RawEntity map[string]any

// FieldMap is the flattened, normalised view of one entity within a
// snapshot. Values are the raw JSON values overlaid with per-kind computed
// fields (normalised booleans, tri-state strings).
type FieldMap map[string]any

// Snapshot is the in-memory map of all currently known entities,
// grouped by kind then entity id.
type Snapshot map[Kind]map[string]FieldMap

// Action classifies one detected transition between two snapshots.
type Action string

// Change actions, in the order the classifier considers them.
const (
	ActionCreated  Action = "created"
	ActionDeleted  Action = "deleted"
	ActionEnabled  Action = "enabled"
	ActionDisabled Action = "disabled"
	ActionModified Action = "modified"
)

// Change is one detected semantic transition for one entity.
//
// Type is the semantic entity kind ("firewall_policy", "traffic_route",
// "device_led", ...), distinct from the raw collection kind. Old and New
// carry the flattened field maps from the previous and current snapshot;
// Old is nil for created entities, New is nil for deleted ones.
type Change struct {
	EntityID string   `json:"entity_id"`
	Type     string   `json:"type"`
	Action   Action   `json:"action"`
	Name     string   `json:"name"`
	Old      FieldMap `json:"old,omitempty"`
	New      FieldMap `json:"new,omitempty"`
}

// Fields returns whichever field map is populated, preferring the new
// state. Used when callers need a representative view regardless of the
// change direction (deletions only carry Old).
func (c Change) Fields() FieldMap {
	if c.New != nil {
		return c.New
	}
	return c.Old
}

// AllKinds returns every recognised kind. The returned slice is a copy;
// callers may reorder it freely.
func AllKinds() []Kind {
	kinds := make([]Kind, 0, len(descriptors))
	for k := range descriptors {
		kinds = append(kinds, k)
	}
	return kinds
}

// KnownKind reports whether k is part of the recognised enumeration.
func KnownKind(k Kind) bool {
	_, ok := descriptors[k]
	return ok
}

// ChangeType returns the semantic change type for a raw kind
// (e.g. "firewall_policy" for KindFirewallPolicies). Returns "" for
// unrecognised kinds.
func ChangeType(k Kind) string {
	return descriptors[k].changeType
}
