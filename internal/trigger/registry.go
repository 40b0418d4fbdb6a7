package trigger

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/nerrad567/netrules-core/internal/rules"
)

// Logger is the minimal logging interface the registry needs.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Filter selects which change records a subscription receives.
// Empty fields match everything; populated fields must all match.
type Filter struct {
	// EntityIDs restricts to specific entity ids (exact match, any of).
	EntityIDs []string `json:"entity_ids,omitempty"`

	// Types restricts to semantic change types, e.g. "firewall_policy".
	Types []string `json:"types,omitempty"`

	// Actions restricts to change actions (single value or list).
	Actions []rules.Action `json:"actions,omitempty"`

	// NameContains matches case-insensitively against the display name.
	NameContains string `json:"name_contains,omitempty"`
}

// Matches reports whether a change record passes the filter.
func (f Filter) Matches(change rules.Change) bool {
	if len(f.EntityIDs) > 0 && !containsString(f.EntityIDs, change.EntityID) {
		return false
	}
	if len(f.Types) > 0 && !containsString(f.Types, change.Type) {
		return false
	}
	if len(f.Actions) > 0 && !containsAction(f.Actions, change.Action) {
		return false
	}
	if f.NameContains != "" &&
		!strings.Contains(strings.ToLower(change.Name), strings.ToLower(f.NameContains)) {
		return false
	}
	return true
}

// Handler receives matching change records. Handlers run inline on the
// dispatch path and should hand heavy work off to their own goroutines.
type Handler func(change rules.Change)

// subscription pairs a filter with its handler.
type subscription struct {
	filter  Filter
	handler Handler
}

// Registry holds active trigger subscriptions.
//
// Thread Safety: all methods are safe for concurrent use. Dispatch may
// run while subscriptions are added or removed.
type Registry struct {
	mu   sync.RWMutex
	subs map[string]subscription

	logger Logger
}

// NewRegistry creates an empty trigger registry.
func NewRegistry() *Registry {
	return &Registry{
		subs:   make(map[string]subscription),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for handler panics.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Subscribe registers a handler for changes matching the filter and
// returns the subscription id used to unsubscribe.
func (r *Registry) Subscribe(filter Filter, handler Handler) string {
	id := "trg-" + uuid.NewString()[:8]

	r.mu.Lock()
	r.subs[id] = subscription{filter: filter, handler: handler}
	r.mu.Unlock()

	return id
}

// Unsubscribe removes a subscription. Unknown ids are a no-op.
func (r *Registry) Unsubscribe(id string) {
	r.mu.Lock()
	delete(r.subs, id)
	r.mu.Unlock()
}

// Count returns the number of active subscriptions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Dispatch implements rules.Dispatcher: the change is matched against
// every subscription and handed to the matching handlers. A panicking
// handler is logged and does not affect the others.
func (r *Registry) Dispatch(_ context.Context, change rules.Change) error {
	r.mu.RLock()
	handlers := make([]Handler, 0, len(r.subs))
	for _, sub := range r.subs {
		if sub.filter.Matches(change) {
			handlers = append(handlers, sub.handler)
		}
	}
	r.mu.RUnlock()

	for _, handler := range handlers {
		r.invoke(handler, change)
	}
	return nil
}

// invoke runs one handler with panic isolation.
func (r *Registry) invoke(handler Handler, change rules.Change) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("trigger handler panic recovered",
				"entity_id", change.EntityID,
				"type", change.Type,
				"panic", rec,
			)
		}
	}()
	handler(change)
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func containsAction(haystack []rules.Action, needle rules.Action) bool {
	for _, a := range haystack {
		if a == needle {
			return true
		}
	}
	return false
}
