package rules

import (
	"context"
	"sort"
)

// Logger is the minimal logging interface the detector needs.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Dispatcher receives one notification per detected change.
//
// Dispatch may perform I/O (publish to MQTT, fan out to triggers, persist
// history). Errors are logged per change and never abort the batch or
// roll back the snapshot swap: dispatch is a notification side effect,
// not a source of truth.
type Dispatcher interface {
	Dispatch(ctx context.Context, change Change) error
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, change Change) error

// Dispatch implements Dispatcher.
func (f DispatcherFunc) Dispatch(ctx context.Context, change Change) error {
	return f(ctx, change)
}

// MultiDispatcher fans each change out to every wrapped dispatcher.
// Individual dispatcher errors are collected per change but do not stop
// the remaining dispatchers from receiving it.
type MultiDispatcher []Dispatcher

// Dispatch implements Dispatcher. Returns the first error encountered,
// after all dispatchers have been invoked.
func (m MultiDispatcher) Dispatch(ctx context.Context, change Change) error {
	var first error
	for _, d := range m {
		if err := d.Dispatch(ctx, change); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Detector drives snapshot build, diff, dedupe, and dispatch, and owns
// the previous-snapshot lifecycle.
//
// A Detector has two states: no baseline (first cycle) and baselined.
// The first observation establishes the baseline and reports nothing, so
// a cold start never floods consumers with phantom "created" events.
//
// Ownership: a Detector is mutated by exactly one update cycle at a time.
// It is not safe for concurrent DetectAndDispatch calls; the coordinator
// guarantees cycles never overlap.
type Detector struct {
	prev       Snapshot
	dispatcher Dispatcher
	logger     Logger
}

// NewDetector creates a detector dispatching through d. A nil dispatcher
// is allowed; changes are then only returned, not delivered.
func NewDetector(d Dispatcher) *Detector {
	return &Detector{
		dispatcher: d,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger used for per-entity dispatch failures.
func (d *Detector) SetLogger(logger Logger) {
	d.logger = logger
}

// HasBaseline reports whether a previous snapshot has been established.
func (d *Detector) HasBaseline() bool {
	return d.prev != nil
}

// DetectAndDispatch builds a snapshot from data, diffs it against the
// stored previous snapshot, dispatches every detected change exactly
// once, replaces the previous snapshot wholesale, and returns the change
// records (for logging and metrics).
//
// The first call ever returns an empty list and establishes the baseline
// regardless of input content. Dispatch failures are logged per entity
// and never prevent the snapshot swap.
func (d *Detector) DetectAndDispatch(ctx context.Context, data map[Kind][]RawEntity) []Change {
	next := BuildSnapshot(data)

	if d.prev == nil {
		d.prev = next
		d.logger.Debug("baseline established", "kinds", len(next))
		return nil
	}

	changes := d.diff(next)

	// Commit the new snapshot before dispatching: a downstream dispatch
	// failure must not cause the same change to be re-detected next cycle.
	d.prev = next

	for _, change := range changes {
		d.dispatchOne(ctx, change)
	}

	return changes
}

// diff runs the classifier over the union of entities in the previous and
// next snapshot, deduplicated per cycle, in deterministic order.
func (d *Detector) diff(next Snapshot) []Change {
	var changes []Change

	for _, kind := range sortedKinds(d.prev, next) {
		prevBucket := d.prev[kind]
		nextBucket := next[kind]

		for _, id := range sortedIDs(prevBucket, nextBucket) {
			old, hadOld := prevBucket[id]
			updated, hasNew := nextBucket[id]
			if !hadOld {
				old = nil
			}
			if !hasNew {
				updated = nil
			}

			action, ok := classifyChange(kind, id, old, updated)
			if !ok {
				continue
			}

			changes = append(changes, Change{
				EntityID: id,
				Type:     changeTypeFor(kind, id),
				Action:   action,
				Name:     changeName(kind, id, old, updated),
				Old:      old,
				New:      updated,
			})
		}
	}

	return changes
}

// dispatchOne delivers a single change, isolating failures and handler
// panics so one bad record cannot abort the rest of the batch.
func (d *Detector) dispatchOne(ctx context.Context, change Change) {
	if d.dispatcher == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("change dispatch panic recovered",
				"entity_id", change.EntityID,
				"type", change.Type,
				"panic", r,
			)
		}
	}()

	if err := d.dispatcher.Dispatch(ctx, change); err != nil {
		d.logger.Warn("change dispatch failed",
			"entity_id", change.EntityID,
			"type", change.Type,
			"action", change.Action,
			"error", err,
		)
	}
}

// sortedKinds returns the union of kinds across two snapshots in stable
// order. Each (kind, id) pair is visited at most once per cycle, which is
// what deduplicates notifications.
func sortedKinds(a, b Snapshot) []Kind {
	seen := make(map[Kind]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}
	kinds := make([]Kind, 0, len(seen))
	for k := range seen {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// sortedIDs returns the union of entity ids across two kind buckets in
// stable order.
func sortedIDs(a, b map[string]FieldMap) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for id := range a {
		seen[id] = struct{}{}
	}
	for id := range b {
		seen[id] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
