package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/nerrad567/netrules-core/internal/rules"
)

// endpoint maps one rule kind to its controller API paths. The
// controller exposes two API generations: v1 ("rest") endpoints wrap
// collections in {"meta":..., "data":[...]}, v2 endpoints return bare
// arrays (or an object holding one under "data").
type endpoint struct {
	// list is the collection path template. {site} is substituted.
	list string

	// item is the single-entity path template. {site} and {id} are
	// substituted. Empty when the kind is read-only for this client.
	item string
}

// endpoints is the per-kind path table. Kinds absent here cannot be
// fetched and make FetchAll skip them.
var endpoints = map[rules.Kind]endpoint{
	rules.KindFirewallPolicies: {
		list: "/proxy/network/v2/api/site/{site}/firewall-policies",
		item: "/proxy/network/v2/api/site/{site}/firewall-policies/{id}",
	},
	rules.KindTrafficRules: {
		list: "/proxy/network/v2/api/site/{site}/trafficrules",
		item: "/proxy/network/v2/api/site/{site}/trafficrules/{id}",
	},
	rules.KindTrafficRoutes: {
		list: "/proxy/network/v2/api/site/{site}/trafficroutes",
		item: "/proxy/network/v2/api/site/{site}/trafficroutes/{id}",
	},
	rules.KindPortForwards: {
		list: "/proxy/network/api/s/{site}/rest/portforward",
		item: "/proxy/network/api/s/{site}/rest/portforward/{id}",
	},
	rules.KindFirewallZones: {
		list: "/proxy/network/v2/api/site/{site}/firewall/zones",
		item: "/proxy/network/v2/api/site/{site}/firewall/zones/{id}",
	},
	rules.KindWLANs: {
		list: "/proxy/network/api/s/{site}/rest/wlanconf",
		item: "/proxy/network/api/s/{site}/rest/wlanconf/{id}",
	},
	rules.KindQoSRules: {
		list: "/proxy/network/v2/api/site/{site}/qos-rules",
		item: "/proxy/network/v2/api/site/{site}/qos-rules/{id}",
	},
	rules.KindVPNClients: {
		list: "/proxy/network/api/s/{site}/rest/networkconf?purpose=vpn-client",
	},
	rules.KindVPNServers: {
		list: "/proxy/network/api/s/{site}/rest/networkconf?purpose=vpn-server",
	},
	rules.KindDevices: {
		list: "/proxy/network/api/s/{site}/stat/device",
		item: "/proxy/network/api/s/{site}/rest/device/{id}",
	},
	rules.KindPortProfiles: {
		list: "/proxy/network/api/s/{site}/rest/portconf",
		item: "/proxy/network/api/s/{site}/rest/portconf/{id}",
	},
	rules.KindNetworks: {
		list: "/proxy/network/api/s/{site}/rest/networkconf",
		item: "/proxy/network/api/s/{site}/rest/networkconf/{id}",
	},
	rules.KindStaticRoutes: {
		list: "/proxy/network/api/s/{site}/rest/routing",
		item: "/proxy/network/api/s/{site}/rest/routing/{id}",
	},
	rules.KindNATRules: {
		list: "/proxy/network/v2/api/site/{site}/nat-rules",
		item: "/proxy/network/v2/api/site/{site}/nat-rules/{id}",
	},
	rules.KindOONPolicies: {
		list: "/proxy/network/v2/api/site/{site}/object-only-networks",
		item: "/proxy/network/v2/api/site/{site}/object-only-networks/{id}",
	},
}

// FetchAll fetches every supported rule collection from the controller.
//
// The result maps kind to the raw decoded entities. A failure on any
// kind aborts the whole fetch: the coordinator treats partial data as no
// data, since a half-populated snapshot would report mass deletions.
func (c *Client) FetchAll(ctx context.Context) (map[rules.Kind][]rules.RawEntity, error) {
	data := make(map[rules.Kind][]rules.RawEntity, len(endpoints))

	for kind := range endpoints {
		entities, err := c.fetchKind(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", kind, err)
		}
		data[kind] = entities
	}

	return data, nil
}

// fetchKind fetches and decodes one collection.
func (c *Client) fetchKind(ctx context.Context, kind rules.Kind) ([]rules.RawEntity, error) {
	ep, ok := endpoints[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKindNotSupported, kind)
	}

	body, err := c.do(ctx, http.MethodGet, c.expand(ep.list, ""), nil)
	if err != nil {
		return nil, err
	}

	entities, err := decodeCollection(body)
	if err != nil {
		return nil, fmt.Errorf("decoding %s collection: %w", kind, err)
	}
	return entities, nil
}

// GetEntity fetches one entity's current raw state.
func (c *Client) GetEntity(ctx context.Context, kind rules.Kind, id string) (rules.RawEntity, error) {
	ep, ok := endpoints[kind]
	if !ok || ep.item == "" {
		return nil, fmt.Errorf("%w: %s", ErrKindNotSupported, kind)
	}

	body, err := c.do(ctx, http.MethodGet, c.expand(ep.item, id), nil)
	if err != nil {
		return nil, err
	}

	entities, err := decodeCollection(body)
	if err != nil {
		return nil, fmt.Errorf("decoding %s entity: %w", kind, err)
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, kind, id)
	}
	return entities[0], nil
}

// SetField updates one field on an entity via read-modify-write: the
// current raw state is fetched, the field replaced, and the whole object
// PUT back (the controller rejects partial updates on rule endpoints).
func (c *Client) SetField(ctx context.Context, kind rules.Kind, id, field string, value any) error {
	ep, ok := endpoints[kind]
	if !ok || ep.item == "" {
		return fmt.Errorf("%w: %s is read-only", ErrKindNotSupported, kind)
	}

	entity, err := c.GetEntity(ctx, kind, id)
	if err != nil {
		return err
	}
	entity[field] = value

	if _, err := c.do(ctx, http.MethodPut, c.expand(ep.item, id), entity); err != nil {
		return fmt.Errorf("updating %s/%s: %w", kind, id, err)
	}
	return nil
}

// SetEnabled toggles an entity's enabled flag.
func (c *Client) SetEnabled(ctx context.Context, kind rules.Kind, id string, enabled bool) error {
	return c.SetField(ctx, kind, id, "enabled", enabled)
}

// expand substitutes {site} and {id} into a path template.
func (c *Client) expand(template, id string) string {
	path := strings.ReplaceAll(template, "{site}", c.cfg.Site)
	return strings.ReplaceAll(path, "{id}", id)
}

// decodeCollection decodes either API generation's collection shape:
// a bare JSON array, an object with a "data" array, or a single object
// (treated as a one-element collection).
func decodeCollection(body []byte) ([]rules.RawEntity, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil, nil
	}

	if strings.HasPrefix(trimmed, "[") {
		var entities []rules.RawEntity
		if err := json.Unmarshal(body, &entities); err != nil {
			return nil, err
		}
		return entities, nil
	}

	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, err
	}

	if len(wrapper.Data) > 0 && strings.TrimSpace(string(wrapper.Data))[0] == '[' {
		var entities []rules.RawEntity
		if err := json.Unmarshal(wrapper.Data, &entities); err != nil {
			return nil, err
		}
		return entities, nil
	}

	// Single object: either the raw body or a single wrapped entity.
	var entity rules.RawEntity
	payload := body
	if len(wrapper.Data) > 0 {
		payload = wrapper.Data
	}
	if err := json.Unmarshal(payload, &entity); err != nil {
		return nil, err
	}
	if entity == nil {
		// JSON null ({"data":null}): a legitimately empty collection,
		// not a one-element collection holding nothing.
		return nil, nil
	}
	return []rules.RawEntity{entity}, nil
}
