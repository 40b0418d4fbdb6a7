package rules

import (
	"fmt"
	"reflect"
)

// LED override tri-state values as reported by device payloads.
const (
	ledOn      = "on"
	ledOff     = "off"
	ledDefault = "default"
)

// classifyChange compares the previous and current field maps of one
// entity and returns the semantic action, or ok=false when nothing
// user-meaningful changed.
//
// Priority order:
//  1. presence: created / deleted
//  2. synthetic children: per-suffix derived-field transition
//  3. "enabled" flip: enabled / disabled (wins over cosmetic changes)
//  4. any non-ignored field difference: modified
func classifyChange(kind Kind, id string, old, updated FieldMap) (Action, bool) {
	switch {
	case old == nil && updated == nil:
		return "", false
	case old == nil:
		return ActionCreated, true
	case updated == nil:
		return ActionDeleted, true
	}

	// Synthetic children are classified on their mirrored derived field,
	// not on ordinary map comparison. The parent's own comparison below
	// never sees the derived source field (it sits in the ignore set), so
	// one toggle produces exactly one record, attributed to the child.
	if _, rule := parseChildID(kind, id); rule != nil {
		switch rule.suffix {
		case SuffixLED:
			return ledTransition(toString(old["enabled"]), toString(updated["enabled"]))
		default:
			return boolTransition(old["enabled"], updated["enabled"])
		}
	}

	// Rule 3 of the classifier: an enable/disable toggle is reported as
	// such even when other fields changed in the same cycle.
	oldEnabled, hasOld := old["enabled"]
	newEnabled, hasNew := updated["enabled"]
	if hasOld && hasNew && !valuesEqual(oldEnabled, newEnabled) {
		if toBool(newEnabled) {
			return ActionEnabled, true
		}
		return ActionDisabled, true
	}

	if fieldsDiffer(kind, old, updated) {
		return ActionModified, true
	}
	return "", false
}

// boolTransition maps a boolean derived-field flip (kill switch) to
// enabled/disabled. No flip means no change.
func boolTransition(old, updated any) (Action, bool) {
	ob, nb := toBool(old), toBool(updated)
	if ob == nb {
		return "", false
	}
	if nb {
		return ActionEnabled, true
	}
	return ActionDisabled, true
}

// ledTransition maps LED override transitions to actions:
// on→off disabled, off→on enabled, any transition to or from the neutral
// "default" value modified, no change none.
func ledTransition(old, updated string) (Action, bool) {
	if old == updated {
		return "", false
	}
	if old == ledOn && updated == ledOff {
		return ActionDisabled, true
	}
	if old == ledOff && updated == ledOn {
		return ActionEnabled, true
	}
	if old == ledDefault || updated == ledDefault {
		return ActionModified, true
	}
	return ActionModified, true
}

// fieldsDiffer reports whether any field outside the kind's ignore set
// differs between the two maps. Keys present on only one side count as a
// difference.
func fieldsDiffer(kind Kind, old, updated FieldMap) bool {
	ignored := descriptors[kind].ignored

	for key, oldVal := range old {
		if _, skip := ignored[key]; skip {
			continue
		}
		newVal, ok := updated[key]
		if !ok || !valuesEqual(oldVal, newVal) {
			return true
		}
	}
	for key := range updated {
		if _, skip := ignored[key]; skip {
			continue
		}
		if _, ok := old[key]; !ok {
			return true
		}
	}
	return false
}

// valuesEqual compares two decoded JSON values, including nested maps
// and slices.
func valuesEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// displayName derives the user-facing name for an entity:
// "name", else "description", else the kind's synthesised label, else a
// generic "{Kind label} {id prefix}" fallback.
func displayName(desc descriptor, id string, fields FieldMap) string {
	if fields != nil {
		if name := toString(fields["name"]); name != "" {
			return name
		}
		if name := toString(fields["description"]); name != "" {
			return name
		}
		if desc.fallbackName != nil {
			if name := desc.fallbackName(fields, idPrefix(id)); name != "" {
				return name
			}
		}
	}
	return fmt.Sprintf("%s %s", desc.label, idPrefix(id))
}

// idPrefix returns the short id form used in synthesised names.
func idPrefix(id string) string {
	const prefixLen = 8
	if len(id) <= prefixLen {
		return id
	}
	return id[:prefixLen]
}

// changeName resolves the display name for a change, preferring the new
// state and falling back to the old one (deletion case).
func changeName(kind Kind, id string, old, updated FieldMap) string {
	desc := descriptors[kind]
	if updated != nil {
		return displayName(desc, id, updated)
	}
	return displayName(desc, id, old)
}

// changeTypeFor resolves the semantic change type for an entity id within
// a kind, taking synthetic child suffixes into account.
func changeTypeFor(kind Kind, id string) string {
	if _, rule := parseChildID(kind, id); rule != nil {
		return rule.changeType
	}
	return descriptors[kind].changeType
}
