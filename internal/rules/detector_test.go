package rules

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// recordingDispatcher collects dispatched changes for assertions.
type recordingDispatcher struct {
	mu      sync.Mutex
	changes []Change
	err     error
}

func (r *recordingDispatcher) Dispatch(_ context.Context, change Change) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change)
	return r.err
}

func (r *recordingDispatcher) dispatched() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Change, len(r.changes))
	copy(out, r.changes)
	return out
}

func policyData(enabled bool) map[Kind][]RawEntity {
	return map[Kind][]RawEntity{
		KindFirewallPolicies: {
			{"_id": "p1", "name": "Block X", "enabled": enabled, "action": "block"},
		},
	}
}

func TestDetectorColdStart(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	detector := NewDetector(dispatcher)

	if detector.HasBaseline() {
		t.Fatal("fresh detector must not have a baseline")
	}

	changes := detector.DetectAndDispatch(context.Background(), policyData(true))
	if len(changes) != 0 {
		t.Errorf("cold start returned %d changes, want 0", len(changes))
	}
	if !detector.HasBaseline() {
		t.Error("baseline not established after first cycle")
	}
	if len(dispatcher.dispatched()) != 0 {
		t.Error("cold start must not dispatch anything")
	}
}

func TestDetectorIdempotence(t *testing.T) {
	detector := NewDetector(nil)

	detector.DetectAndDispatch(context.Background(), policyData(true))
	changes := detector.DetectAndDispatch(context.Background(), policyData(true))

	if len(changes) != 0 {
		t.Errorf("identical data produced %d changes, want 0", len(changes))
	}
}

func TestDetectorFirewallPolicyDisabled(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	detector := NewDetector(dispatcher)

	detector.DetectAndDispatch(context.Background(), policyData(true))
	changes := detector.DetectAndDispatch(context.Background(), policyData(false))

	if len(changes) != 1 {
		t.Fatalf("got %d changes, want 1", len(changes))
	}
	change := changes[0]
	if change.Type != "firewall_policy" {
		t.Errorf("type = %q, want firewall_policy", change.Type)
	}
	if change.Action != ActionDisabled {
		t.Errorf("action = %v, want disabled", change.Action)
	}
	if change.Name != "Block X" {
		t.Errorf("name = %q, want 'Block X'", change.Name)
	}
	if change.EntityID != "p1" {
		t.Errorf("entity id = %q, want p1", change.EntityID)
	}

	dispatched := dispatcher.dispatched()
	if len(dispatched) != 1 {
		t.Fatalf("dispatched %d changes, want exactly 1", len(dispatched))
	}
}

func TestDetectorCreatedAndDeleted(t *testing.T) {
	detector := NewDetector(nil)
	ctx := context.Background()

	detector.DetectAndDispatch(ctx, policyData(true))

	// Add a second policy.
	data := policyData(true)
	data[KindFirewallPolicies] = append(data[KindFirewallPolicies],
		RawEntity{"_id": "p2", "name": "Allow Y", "enabled": true})

	changes := detector.DetectAndDispatch(ctx, data)
	if len(changes) != 1 || changes[0].Action != ActionCreated || changes[0].EntityID != "p2" {
		t.Fatalf("expected one created change for p2, got %+v", changes)
	}

	// Remove it again.
	changes = detector.DetectAndDispatch(ctx, policyData(true))
	if len(changes) != 1 || changes[0].Action != ActionDeleted || changes[0].EntityID != "p2" {
		t.Fatalf("expected one deleted change for p2, got %+v", changes)
	}
	if changes[0].Name != "Allow Y" {
		t.Errorf("deleted name = %q, want old-state name 'Allow Y'", changes[0].Name)
	}
}

func TestDetectorKillSwitchIsolation(t *testing.T) {
	routeData := func(killSwitch bool) map[Kind][]RawEntity {
		return map[Kind][]RawEntity{
			KindTrafficRoutes: {
				{"_id": "r1", "name": "VPN Route", "enabled": true, "kill_switch_enabled": killSwitch},
			},
		}
	}

	dispatcher := &recordingDispatcher{}
	detector := NewDetector(dispatcher)
	ctx := context.Background()

	detector.DetectAndDispatch(ctx, routeData(false))
	changes := detector.DetectAndDispatch(ctx, routeData(true))

	if len(changes) != 1 {
		t.Fatalf("got %d changes, want exactly 1 (child only)", len(changes))
	}
	change := changes[0]
	if change.EntityID != "r1"+SuffixKillSwitch {
		t.Errorf("entity id = %q, want the synthetic child id", change.EntityID)
	}
	if change.Type != "traffic_route_kill_switch" {
		t.Errorf("type = %q", change.Type)
	}
	if change.Action != ActionEnabled {
		t.Errorf("action = %v, want enabled", change.Action)
	}

	// And back off again.
	changes = detector.DetectAndDispatch(ctx, routeData(false))
	if len(changes) != 1 || changes[0].Action != ActionDisabled {
		t.Fatalf("reverse toggle: got %+v, want one disabled change", changes)
	}
}

func TestDetectorDispatchFailureStillCommitsSnapshot(t *testing.T) {
	dispatcher := &recordingDispatcher{err: errors.New("broker down")}
	detector := NewDetector(dispatcher)
	ctx := context.Background()

	detector.DetectAndDispatch(ctx, policyData(true))
	changes := detector.DetectAndDispatch(ctx, policyData(false))
	if len(changes) != 1 {
		t.Fatalf("got %d changes, want 1", len(changes))
	}

	// The failed dispatch must not cause re-detection: the new snapshot
	// was committed before dispatching.
	changes = detector.DetectAndDispatch(ctx, policyData(false))
	if len(changes) != 0 {
		t.Errorf("change re-detected after dispatch failure: %+v", changes)
	}
}

func TestDetectorPanickingDispatcherIsIsolated(t *testing.T) {
	calls := 0
	detector := NewDetector(DispatcherFunc(func(context.Context, Change) error {
		calls++
		panic("bad handler")
	}))
	ctx := context.Background()

	data := policyData(true)
	data[KindWLANs] = []RawEntity{{"_id": "w1", "ssid": "Guest", "enabled": true}}
	detector.DetectAndDispatch(ctx, data)

	// Flip both entities; both dispatches panic, both must be attempted.
	data = policyData(false)
	data[KindWLANs] = []RawEntity{{"_id": "w1", "ssid": "Guest", "enabled": false}}

	changes := detector.DetectAndDispatch(ctx, data)
	if len(changes) != 2 {
		t.Fatalf("got %d changes, want 2", len(changes))
	}
	if calls != 2 {
		t.Errorf("dispatcher called %d times, want 2 (panic must not abort the batch)", calls)
	}
}

func TestMultiDispatcherFansOut(t *testing.T) {
	first := &recordingDispatcher{err: errors.New("first fails")}
	second := &recordingDispatcher{}
	multi := MultiDispatcher{first, second}

	change := Change{EntityID: "p1", Type: "firewall_policy", Action: ActionEnabled}
	err := multi.Dispatch(context.Background(), change)

	if err == nil {
		t.Error("expected first dispatcher's error to surface")
	}
	if len(second.dispatched()) != 1 {
		t.Error("second dispatcher must still receive the change")
	}
}
