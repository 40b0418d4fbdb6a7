package history

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nerrad567/netrules-core/internal/rules"
)

// newTestDB opens an in-memory SQLite database with the change_events
// schema applied.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	schema := `
		CREATE TABLE change_events (
			id            TEXT PRIMARY KEY,
			entity_id     TEXT NOT NULL,
			change_type   TEXT NOT NULL,
			change_action TEXT NOT NULL,
			entity_name   TEXT NOT NULL DEFAULT '',
			old_state     TEXT,
			new_state     TEXT,
			created_at    TIMESTAMP NOT NULL
		);`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating schema: %v", err)
	}
	return db
}

func TestCreateAndListRoundTrip(t *testing.T) {
	repo := NewSQLiteRepository(newTestDB(t))
	ctx := context.Background()

	event := &Event{
		EntityID: "p1",
		Type:     "firewall_policy",
		Action:   rules.ActionDisabled,
		Name:     "Block X",
		Old:      map[string]any{"enabled": true},
		New:      map[string]any{"enabled": false},
	}
	if err := repo.Create(ctx, event); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if event.ID == "" {
		t.Error("Create must generate an id")
	}
	if event.CreatedAt.IsZero() {
		t.Error("Create must set created_at")
	}

	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if result.Total != 1 || len(result.Events) != 1 {
		t.Fatalf("total = %d, events = %d, want 1/1", result.Total, len(result.Events))
	}

	got := result.Events[0]
	if got.Name != "Block X" || got.Action != rules.ActionDisabled {
		t.Errorf("round-trip event = %+v", got)
	}
	if got.Old["enabled"] != true || got.New["enabled"] != false {
		t.Errorf("state maps did not survive the round trip: old=%v new=%v", got.Old, got.New)
	}
}

func TestListFilters(t *testing.T) {
	repo := NewSQLiteRepository(newTestDB(t))
	ctx := context.Background()

	seed := []Event{
		{EntityID: "p1", Type: "firewall_policy", Action: rules.ActionDisabled, Name: "Block X"},
		{EntityID: "p1", Type: "firewall_policy", Action: rules.ActionEnabled, Name: "Block X"},
		{EntityID: "w1", Type: "wlan", Action: rules.ActionModified, Name: "Guest"},
	}
	for i := range seed {
		if err := repo.Create(ctx, &seed[i]); err != nil {
			t.Fatalf("seeding: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"no filter", Filter{}, 3},
		{"by entity", Filter{EntityID: "p1"}, 2},
		{"by type", Filter{Type: "wlan"}, 1},
		{"by action", Filter{Action: rules.ActionEnabled}, 1},
		{"combined", Filter{EntityID: "p1", Action: rules.ActionDisabled}, 1},
		{"no match", Filter{EntityID: "missing"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if result.Total != tt.want {
				t.Errorf("total = %d, want %d", result.Total, tt.want)
			}
		})
	}
}

func TestListPagination(t *testing.T) {
	repo := NewSQLiteRepository(newTestDB(t))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		event := &Event{EntityID: "p1", Type: "firewall_policy", Action: rules.ActionModified}
		if err := repo.Create(ctx, event); err != nil {
			t.Fatalf("seeding: %v", err)
		}
	}

	result, err := repo.List(ctx, Filter{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if result.Total != 5 {
		t.Errorf("total = %d, want 5", result.Total)
	}
	if len(result.Events) != 1 {
		t.Errorf("page size = %d, want 1 (last page)", len(result.Events))
	}
}

func TestRecorderDispatch(t *testing.T) {
	repo := NewSQLiteRepository(newTestDB(t))
	recorder := NewRecorder(repo)
	ctx := context.Background()

	change := rules.Change{
		EntityID: "r1" + rules.SuffixKillSwitch,
		Type:     "traffic_route_kill_switch",
		Action:   rules.ActionEnabled,
		Name:     "VPN Route Kill Switch",
		New:      rules.FieldMap{"enabled": true},
	}
	if err := recorder.Dispatch(ctx, change); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	result, err := repo.List(ctx, Filter{Type: "traffic_route_kill_switch"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if result.Total != 1 {
		t.Fatalf("total = %d, want 1", result.Total)
	}
	if result.Events[0].EntityID != change.EntityID {
		t.Errorf("entity id = %q", result.Events[0].EntityID)
	}
}
