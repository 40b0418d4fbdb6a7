// Package history persists dispatched change events to SQLite for
// querying past rule activity.
//
// History is an audit trail, not reconciliation state: snapshots are
// never stored and the detector rebuilds its baseline from a full fetch
// on every process start regardless of what history holds.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/netrules-core/internal/rules"
)

// Event is one recorded change, as stored in the change_events table.
type Event struct {
	ID        string         `json:"id"`
	EntityID  string         `json:"entity_id"`
	Type      string         `json:"type"`
	Action    rules.Action   `json:"action"`
	Name      string         `json:"name"`
	Old       map[string]any `json:"old,omitempty"`
	New       map[string]any `json:"new,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Filter controls which events List returns.
type Filter struct {
	EntityID string       // optional: exact entity id
	Type     string       // optional: semantic change type
	Action   rules.Action // optional: change action
	Limit    int          // default 50, max 200
	Offset   int          // pagination offset
}

// ListResult contains paginated event results.
type ListResult struct {
	Events []Event `json:"events"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// Repository defines change-event persistence operations.
type Repository interface {
	Create(ctx context.Context, event *Event) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// Default and maximum page sizes for List.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// SQLiteRepository stores change events in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a change-event repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts one event. ID and CreatedAt are generated when empty.
func (r *SQLiteRepository) Create(ctx context.Context, event *Event) error {
	if event.ID == "" {
		event.ID = "evt-" + uuid.NewString()[:8]
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	oldJSON, err := marshalState(event.Old)
	if err != nil {
		return fmt.Errorf("marshalling old state: %w", err)
	}
	newJSON, err := marshalState(event.New)
	if err != nil {
		return fmt.Errorf("marshalling new state: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO change_events (id, entity_id, change_type, change_action, entity_name, old_state, new_state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.EntityID, event.Type, string(event.Action),
		event.Name, oldJSON, newJSON, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting change event: %w", err)
	}
	return nil
}

// List returns events matching the filter, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}

	where, args := buildWhere(filter)

	var total int
	countQuery := "SELECT COUNT(*) FROM change_events" + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting change events: %w", err)
	}

	query := `
		SELECT id, entity_id, change_type, change_action, entity_name, old_state, new_state, created_at
		FROM change_events` + where + `
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("querying change events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, filter.Limit)
	for rows.Next() {
		event, scanErr := scanEvent(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating change events: %w", err)
	}

	return &ListResult{
		Events: events,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

// buildWhere assembles the WHERE clause for a filter.
func buildWhere(filter Filter) (string, []any) {
	var clauses []string
	var args []any

	if filter.EntityID != "" {
		clauses = append(clauses, "entity_id = ?")
		args = append(args, filter.EntityID)
	}
	if filter.Type != "" {
		clauses = append(clauses, "change_type = ?")
		args = append(args, filter.Type)
	}
	if filter.Action != "" {
		clauses = append(clauses, "change_action = ?")
		args = append(args, string(filter.Action))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// scanEvent reads one row into an Event.
func scanEvent(rows *sql.Rows) (Event, error) {
	var event Event
	var action string
	var oldJSON, newJSON sql.NullString

	if err := rows.Scan(&event.ID, &event.EntityID, &event.Type, &action,
		&event.Name, &oldJSON, &newJSON, &event.CreatedAt); err != nil {
		return Event{}, fmt.Errorf("scanning change event: %w", err)
	}
	event.Action = rules.Action(action)

	if oldJSON.Valid && oldJSON.String != "" {
		if err := json.Unmarshal([]byte(oldJSON.String), &event.Old); err != nil {
			return Event{}, fmt.Errorf("decoding old state: %w", err)
		}
	}
	if newJSON.Valid && newJSON.String != "" {
		if err := json.Unmarshal([]byte(newJSON.String), &event.New); err != nil {
			return Event{}, fmt.Errorf("decoding new state: %w", err)
		}
	}
	return event, nil
}

// marshalState encodes a field map as JSON, or NULL when absent.
func marshalState(state map[string]any) (any, error) {
	if state == nil {
		return nil, nil
	}
	b, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Recorder adapts a Repository to rules.Dispatcher, recording every
// dispatched change.
type Recorder struct {
	repo Repository
}

// NewRecorder wraps a repository for use on the dispatch path.
func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo}
}

// Dispatch implements rules.Dispatcher.
func (r *Recorder) Dispatch(ctx context.Context, change rules.Change) error {
	return r.repo.Create(ctx, &Event{
		EntityID: change.EntityID,
		Type:     change.Type,
		Action:   change.Action,
		Name:     change.Name,
		Old:      change.Old,
		New:      change.New,
	})
}
