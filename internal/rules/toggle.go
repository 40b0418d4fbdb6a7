package rules

// ToggleWrite resolves which entity and field an enable/disable request
// for id actually writes on the controller, and the value to write.
//
// Synthetic children never exist on the controller: a toggle on a
// "{parent}_kill_switch" id becomes a boolean write to the parent's
// kill_switch_enabled, and a "{parent}_led" toggle becomes a tri-state
// write ("on"/"off") to the parent's led_override. Plain entities write
// their own "enabled" flag.
func ToggleWrite(kind Kind, id string, enabled bool) (entityID, field string, value any) {
	parentID, rule := parseChildID(kind, id)
	if rule == nil {
		return id, "enabled", enabled
	}

	switch rule.suffix {
	case SuffixLED:
		state := "off"
		if enabled {
			state = "on"
		}
		return parentID, rule.sourceField, state
	default:
		return parentID, rule.sourceField, enabled
	}
}
