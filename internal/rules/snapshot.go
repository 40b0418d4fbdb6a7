package rules

// BuildSnapshot flattens raw per-kind collections into a Snapshot.
//
// For each recognised kind it extracts every entity's id (raw "_id",
// falling back to "id"), copies the raw object into a FieldMap, overlays
// the kind's computed fields, and synthesises child entities where the
// kind defines a child rule and the triggering field is present.
//
// Entities without an id are dropped silently. Unrecognised kinds are
// omitted entirely. This function never fails: entities that do not fit
// the expected shape are included with whatever fields could be extracted.
func BuildSnapshot(data map[Kind][]RawEntity) Snapshot {
	snap := make(Snapshot, len(data))

	for kind, entities := range data {
		desc, ok := descriptors[kind]
		if !ok {
			continue
		}

		bucket := make(map[string]FieldMap, len(entities))
		for _, raw := range entities {
			id := entityID(raw)
			if id == "" {
				continue
			}

			fields := flatten(raw, desc)
			bucket[id] = fields

			if child := synthesiseChild(id, raw, fields, desc); child != nil {
				bucket[id+desc.child.suffix] = child
			}
		}
		snap[kind] = bucket
	}

	return snap
}

// entityID extracts the entity id from a raw object. Controllers use
// "_id" on v1 payloads and "id" on v2 payloads.
func entityID(raw RawEntity) string {
	if v, ok := raw["_id"]; ok {
		if s := toString(v); s != "" {
			return s
		}
	}
	if v, ok := raw["id"]; ok {
		return toString(v)
	}
	return ""
}

// flatten copies the raw object and overlays the kind's computed fields.
// Computed values win over raw values of the same key.
func flatten(raw RawEntity, desc descriptor) FieldMap {
	fields := make(FieldMap, len(raw)+len(desc.computed))
	for k, v := range raw {
		fields[k] = v
	}
	for name, compute := range desc.computed {
		if v, ok := compute(raw); ok {
			fields[name] = v
		}
	}
	return fields
}

// synthesiseChild derives the kind's synthetic child entity from a parent,
// or returns nil when the kind has no child rule or the triggering field
// is absent from the raw parent.
//
// The child's "enabled" mirrors the parent's source field (post-overlay,
// so it carries the normalised value), never the parent's own "enabled".
func synthesiseChild(parentID string, raw RawEntity, parent FieldMap, desc descriptor) FieldMap {
	rule := desc.child
	if rule == nil {
		return nil
	}
	if _, ok := raw[rule.sourceField]; !ok {
		return nil
	}

	name := displayName(desc, parentID, parent)
	return FieldMap{
		"_id":       parentID + rule.suffix,
		"parent_id": parentID,
		"enabled":   parent[rule.sourceField],
		"name":      name + " " + rule.nameLabel,
	}
}

// parseChildID splits a possibly-synthetic entity id into the parent id
// and the matching child rule. Returns rule == nil for plain entities or
// kinds without a child rule.
func parseChildID(kind Kind, id string) (parentID string, rule *childRule) {
	desc, ok := descriptors[kind]
	if !ok || desc.child == nil {
		return "", nil
	}
	suffix := desc.child.suffix
	if len(id) <= len(suffix) || id[len(id)-len(suffix):] != suffix {
		return "", nil
	}
	return id[:len(id)-len(suffix)], desc.child
}
