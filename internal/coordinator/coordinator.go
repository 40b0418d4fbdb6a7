package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/netrules-core/internal/poll"
	"github.com/nerrad567/netrules-core/internal/rules"
)

// Fetcher retrieves every rule collection from the network controller.
type Fetcher interface {
	FetchAll(ctx context.Context) (map[rules.Kind][]rules.RawEntity, error)
}

// Writer pushes single-field updates to the network controller.
type Writer interface {
	SetField(ctx context.Context, kind rules.Kind, id, field string, value any) error
}

// AuthState exposes the controller session's authentication state so the
// coordinator can skip cycles during re-login and recover from expired
// sessions.
type AuthState interface {
	AuthInProgress() bool
	IsAuthError(err error) bool
	HandleAuthError(ctx context.Context, err error) bool
}

// Lifecycle receives the full validated data set after every successful
// cycle, before change dispatch completes. Implementations must not block.
type Lifecycle interface {
	EntitiesUpdated(data map[rules.Kind][]rules.RawEntity)
}

// LifecycleFunc adapts a function to the Lifecycle interface.
type LifecycleFunc func(data map[rules.Kind][]rules.RawEntity)

// EntitiesUpdated implements Lifecycle.
func (f LifecycleFunc) EntitiesUpdated(data map[rules.Kind][]rules.RawEntity) {
	f(data)
}

// Metrics records cycle telemetry. Implementations must be non-blocking.
type Metrics interface {
	WriteCycleMetric(duration time.Duration, changeCount int, interval time.Duration, tier string)
	WriteFetchFailure(class string)
}

// Logger is the minimal logging interface the coordinator needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Status is a point-in-time view of the coordinator for observability.
type Status struct {
	Poll        poll.Status `json:"poll"`
	HasData     bool        `json:"has_data"`
	EntityCount int         `json:"entity_count"`
	LastCycle   time.Time   `json:"last_cycle,omitempty"`
	LastError   string      `json:"last_error,omitempty"`
	CycleCount  uint64      `json:"cycle_count"`
}

// Coordinator owns the cached controller data and drives poll cycles.
//
// Thread Safety: Run executes cycles from a single goroutine. Data,
// Snapshot, Status, and SetRuleEnabled are safe to call concurrently with
// a running cycle.
type Coordinator struct {
	fetcher   Fetcher
	writer    Writer
	auth      AuthState
	validator Validator
	detector  *rules.Detector
	poller    *poll.Controller
	lifecycle Lifecycle
	metrics   Metrics
	logger    Logger

	mu         sync.RWMutex
	data       map[rules.Kind][]rules.RawEntity
	snapshot   rules.Snapshot
	lastCycle  time.Time
	lastError  error
	cycleCount uint64

	closeOnce sync.Once
}

// Option configures optional collaborators.
type Option func(*Coordinator)

// WithLifecycle sets the per-cycle entity listener.
func WithLifecycle(l Lifecycle) Option {
	return func(c *Coordinator) { c.lifecycle = l }
}

// WithMetrics sets the telemetry sink.
func WithMetrics(m Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithValidator replaces the default shape validator.
func WithValidator(v Validator) Option {
	return func(c *Coordinator) { c.validator = v }
}

// SetLifecycle sets the per-cycle entity listener after construction, for
// collaborators that need the coordinator itself. Must be called before
// Run.
func (c *Coordinator) SetLifecycle(l Lifecycle) {
	c.lifecycle = l
}

// New creates a coordinator around its required collaborators. The
// detector and poll controller are owned by the coordinator from here on;
// Close releases the poll controller.
func New(fetcher Fetcher, writer Writer, auth AuthState, detector *rules.Detector, poller *poll.Controller, opts ...Option) *Coordinator {
	c := &Coordinator{
		fetcher:   fetcher,
		writer:    writer,
		auth:      auth,
		validator: DefaultValidator(),
		detector:  detector,
		poller:    poller,
		logger:    noopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UpdateData runs one fetch-detect-dispatch cycle and returns the data
// set now considered current (fresh on success, cached on recoverable
// failure).
//
// Failure handling, in order:
//   - login in flight: skip the fetch, return cache untouched
//   - fetch auth error: attempt re-login, return cache (retry next cycle)
//   - fetch hard error or invalid shape: return cache if present
//   - any of the above with no cache: error
func (c *Coordinator) UpdateData(ctx context.Context) (map[rules.Kind][]rules.RawEntity, error) {
	started := time.Now()

	if c.auth.AuthInProgress() {
		c.logger.Debug("skipping cycle, re-authentication in progress")
		return c.cachedOr(ErrNoData)
	}

	data, err := c.fetcher.FetchAll(ctx)
	if err != nil {
		return c.handleFetchError(ctx, err)
	}

	if !c.validator.Validate(data) {
		c.logger.Warn("controller data failed validation, serving cached data")
		c.recordFailure("validation")
		return c.cachedOr(ErrInvalidData)
	}

	changes := c.detector.DetectAndDispatch(ctx, data)
	c.poller.ObserveCycle(len(changes))

	if c.lifecycle != nil {
		c.lifecycle.EntitiesUpdated(data)
	}

	snapshot := rules.BuildSnapshot(data)

	c.mu.Lock()
	c.data = data
	c.snapshot = snapshot
	c.lastCycle = time.Now()
	c.lastError = nil
	c.cycleCount++
	c.mu.Unlock()

	status := c.poller.Status()
	if c.metrics != nil {
		c.metrics.WriteCycleMetric(time.Since(started), len(changes), status.NextInterval, string(status.Tier))
	}

	if len(changes) > 0 {
		c.logger.Info("cycle complete",
			"changes", len(changes),
			"tier", status.Tier,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	} else {
		c.logger.Debug("cycle complete, no changes", "tier", status.Tier)
	}

	return data, nil
}

// handleFetchError classifies a fetch failure and applies the cache
// fallback policy.
func (c *Coordinator) handleFetchError(ctx context.Context, err error) (map[rules.Kind][]rules.RawEntity, error) {
	if c.auth.IsAuthError(err) {
		c.recordFailure("auth")
		if c.auth.HandleAuthError(ctx, err) {
			c.logger.Info("controller session restored, retrying next cycle")
		} else {
			c.logger.Warn("controller session recovery failed", "error", err)
		}
		return c.cachedOr(fmt.Errorf("%w: %w", ErrNoData, err))
	}

	c.recordFailure("network")
	c.logger.Warn("controller fetch failed, serving cached data", "error", err)
	return c.cachedOr(fmt.Errorf("%w: %w", ErrNoData, err))
}

// cachedOr returns the cached data set, or fallback when none exists.
// The failure is recorded either way for Status reporting.
func (c *Coordinator) cachedOr(fallback error) (map[rules.Kind][]rules.RawEntity, error) {
	c.mu.Lock()
	c.lastError = fallback
	data := c.data
	c.mu.Unlock()

	if data == nil {
		return nil, fallback
	}
	return data, nil
}

func (c *Coordinator) recordFailure(class string) {
	if c.metrics != nil {
		c.metrics.WriteFetchFailure(class)
	}
}

// Run executes the scheduler loop until ctx is cancelled. The first cycle
// runs immediately; each following timer is armed only after the previous
// cycle completes, so cycles never overlap. Refresh signals from the poll
// controller cut a waiting timer short.
func (c *Coordinator) Run(ctx context.Context) error {
	c.logger.Info("coordinator started")

	for {
		if _, err := c.UpdateData(ctx); err != nil {
			c.logger.Warn("cycle failed with no cached data", "error", err)
		}

		timer := time.NewTimer(c.poller.NextInterval())
		select {
		case <-ctx.Done():
			timer.Stop()
			c.logger.Info("coordinator stopping")
			return ctx.Err()
		case <-timer.C:
		case <-c.poller.Refresh():
			timer.Stop()
		}
	}
}

// SetRuleEnabled toggles one entity's enabled state on the controller.
//
// Synthetic child ids are translated to the parent entity and derived
// field before the write. On success an optimistic update is registered
// so the next polls run at the realtime tier until the change is observed.
func (c *Coordinator) SetRuleEnabled(ctx context.Context, kind rules.Kind, id string, enabled bool) error {
	if !rules.KnownKind(kind) {
		return fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	targetID, field, value := rules.ToggleWrite(kind, id, enabled)

	err := c.writer.SetField(ctx, kind, targetID, field, value)
	if err != nil && c.auth.IsAuthError(err) && c.auth.HandleAuthError(ctx, err) {
		err = c.writer.SetField(ctx, kind, targetID, field, value)
	}
	if err != nil {
		return fmt.Errorf("toggling %s/%s: %w", kind, id, err)
	}

	c.poller.RegisterOptimisticUpdate()
	c.logger.Info("entity toggled",
		"kind", kind,
		"entity_id", id,
		"target_id", targetID,
		"field", field,
		"enabled", enabled,
	)
	return nil
}

// Data returns the current data set (fresh or cached). Callers must not
// mutate the returned map.
func (c *Coordinator) Data() map[rules.Kind][]rules.RawEntity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data
}

// Snapshot returns the flattened entity view built from the current data
// set. Callers must not mutate the returned snapshot.
func (c *Coordinator) Snapshot() rules.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Status returns the coordinator and polling state for observability.
func (c *Coordinator) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := Status{
		Poll:       c.poller.Status(),
		HasData:    c.data != nil,
		LastCycle:  c.lastCycle,
		CycleCount: c.cycleCount,
	}
	for _, bucket := range c.snapshot {
		status.EntityCount += len(bucket)
	}
	if c.lastError != nil {
		status.LastError = c.lastError.Error()
	}
	return status
}

// RegisterExternalChange forwards an external change signal (MQTT refresh
// request, webhook) to the polling controller.
func (c *Coordinator) RegisterExternalChange(ctx context.Context) {
	c.poller.RegisterExternalChange(ctx)
}

// Close releases the polling controller. Idempotent; an in-flight cycle
// is allowed to finish (Run returns once its context is cancelled).
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		c.poller.Close()
	})
}
