package rules

import "testing"

func TestToggleWrite(t *testing.T) {
	tests := []struct {
		name      string
		kind      Kind
		id        string
		enabled   bool
		wantID    string
		wantField string
		wantValue any
	}{
		{
			name:      "plain entity writes enabled",
			kind:      KindFirewallPolicies,
			id:        "abc123",
			enabled:   false,
			wantID:    "abc123",
			wantField: "enabled",
			wantValue: false,
		},
		{
			name:      "kill switch child writes parent boolean",
			kind:      KindTrafficRoutes,
			id:        "route1_kill_switch",
			enabled:   true,
			wantID:    "route1",
			wantField: "kill_switch_enabled",
			wantValue: true,
		},
		{
			name:      "led child on",
			kind:      KindDevices,
			id:        "dev1_led",
			enabled:   true,
			wantID:    "dev1",
			wantField: "led_override",
			wantValue: "on",
		},
		{
			name:      "led child off",
			kind:      KindDevices,
			id:        "dev1_led",
			enabled:   false,
			wantID:    "dev1",
			wantField: "led_override",
			wantValue: "off",
		},
		{
			name:      "suffix on kind without child rule is literal",
			kind:      KindWLANs,
			id:        "wlan1_kill_switch",
			enabled:   true,
			wantID:    "wlan1_kill_switch",
			wantField: "enabled",
			wantValue: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, field, value := ToggleWrite(tt.kind, tt.id, tt.enabled)
			if id != tt.wantID || field != tt.wantField || value != tt.wantValue {
				t.Errorf("ToggleWrite(%s, %s, %v) = (%s, %s, %v), want (%s, %s, %v)",
					tt.kind, tt.id, tt.enabled, id, field, value, tt.wantID, tt.wantField, tt.wantValue)
			}
		})
	}
}
