package poll

import (
	"context"
	"sync"
	"time"
)

// Tier identifies the current polling frequency tier.
type Tier string

// Polling tiers, from slowest to fastest.
const (
	TierBase     Tier = "base"
	TierActive   Tier = "active"
	TierRealtime Tier = "realtime"
)

// Default intervals, applied by New when the corresponding Config field
// is zero.
const (
	defaultBaseInterval     = 5 * time.Minute
	defaultActiveInterval   = 30 * time.Second
	defaultRealtimeInterval = 10 * time.Second
	defaultActivityTimeout  = 5 * time.Minute
	defaultRealtimeHold     = 30 * time.Second
	defaultDebounce         = 10 * time.Second
	defaultOptimistic       = 15 * time.Second
)

// Config holds the polling controller tuning knobs. Zero values are
// replaced with defaults.
type Config struct {
	// BaseInterval is the steady-state poll interval with no recent
	// activity.
	BaseInterval time.Duration

	// ActiveInterval is used while activity was observed within the
	// activity timeout.
	ActiveInterval time.Duration

	// RealtimeInterval is the minimum interval, used immediately after a
	// change or while an optimistic update awaits confirmation.
	RealtimeInterval time.Duration

	// ActivityTimeout is how long after the last observed change the
	// controller keeps polling at the active tier before decaying to base.
	ActivityTimeout time.Duration

	// RealtimeHold is how long after the last observed change the
	// controller stays at the realtime tier.
	RealtimeHold time.Duration

	// Debounce is the minimum spacing enforced between externally
	// signalled refresh requests; signals inside the window collapse.
	Debounce time.Duration

	// OptimisticTimeout is how long the realtime tier is held after this
	// service pushes a write, waiting to confirm it landed.
	OptimisticTimeout time.Duration
}

// Status is a point-in-time view of the controller, for observability.
type Status struct {
	Tier         Tier          `json:"tier"`
	NextInterval time.Duration `json:"next_interval"`
	IdleCycles   int           `json:"idle_cycles"`
	LastActivity time.Time     `json:"last_activity,omitempty"`
}

// Controller tracks activity and idle periods and computes the delay
// before the next fetch cycle.
//
// Thread Safety: all methods are safe for concurrent use. The coordinator
// calls ObserveCycle from the single active cycle; RegisterExternalChange
// and RegisterOptimisticUpdate may be called concurrently from other
// goroutines.
type Controller struct {
	cfg Config

	mu              sync.Mutex
	lastActivity    time.Time // zero until the first observed change
	lastSignal      time.Time // last accepted external refresh signal
	optimisticUntil time.Time // realtime held until here after a local write
	idleCycles      int

	refresh chan struct{}
	done    chan struct{}
	once    sync.Once

	// now is swapped out by tests.
	now func() time.Time
}

// New creates a polling controller, filling zero config fields with
// defaults.
func New(cfg Config) *Controller {
	if cfg.BaseInterval <= 0 {
		cfg.BaseInterval = defaultBaseInterval
	}
	if cfg.ActiveInterval <= 0 {
		cfg.ActiveInterval = defaultActiveInterval
	}
	if cfg.RealtimeInterval <= 0 {
		cfg.RealtimeInterval = defaultRealtimeInterval
	}
	if cfg.ActivityTimeout <= 0 {
		cfg.ActivityTimeout = defaultActivityTimeout
	}
	if cfg.RealtimeHold <= 0 {
		cfg.RealtimeHold = defaultRealtimeHold
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}
	if cfg.OptimisticTimeout <= 0 {
		cfg.OptimisticTimeout = defaultOptimistic
	}

	return &Controller{
		cfg:     cfg,
		refresh: make(chan struct{}, 1),
		done:    make(chan struct{}),
		now:     time.Now,
	}
}

// ObserveCycle records the outcome of one completed fetch-detect cycle.
//
// Cycles with detected changes reset the idle counter, record the
// activity timestamp, and clear any pending optimistic hold (the write
// has been confirmed by observation). Quiet cycles increment the idle
// counter; once the idle duration exceeds the activity timeout the
// computed interval decays back to base.
func (c *Controller) ObserveCycle(changeCount int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if changeCount > 0 {
		c.idleCycles = 0
		c.lastActivity = c.now()
		c.optimisticUntil = time.Time{}
		return
	}
	c.idleCycles++
}

// RegisterExternalChange signals that something changed outside the
// normal poll (push notification, webhook). It forces the next interval
// down to the realtime tier and wakes the scheduler via the Refresh
// channel. Multiple signals within the debounce window collapse into a
// single accelerated poll.
//
// Safe to call concurrently with a running cycle; only interval state is
// touched, never snapshot data.
func (c *Controller) RegisterExternalChange(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-c.done:
		return
	default:
	}

	c.mu.Lock()
	now := c.now()
	if !c.lastSignal.IsZero() && now.Sub(c.lastSignal) < c.cfg.Debounce {
		c.mu.Unlock()
		return
	}
	c.lastSignal = now
	c.lastActivity = now
	c.mu.Unlock()

	// Non-blocking: a pending wake-up already covers this signal.
	select {
	case c.refresh <- struct{}{}:
	default:
	}
}

// RegisterOptimisticUpdate marks that this service just pushed a write to
// the controller and wants the next polls at the realtime tier until the
// write is observed or the optimistic timeout lapses.
func (c *Controller) RegisterOptimisticUpdate() {
	c.mu.Lock()
	c.optimisticUntil = c.now().Add(c.cfg.OptimisticTimeout)
	c.mu.Unlock()

	select {
	case c.refresh <- struct{}{}:
	default:
	}
}

// Refresh returns the channel the scheduler selects on to poll ahead of
// the armed timer. At most one wake-up is pending at a time.
func (c *Controller) Refresh() <-chan struct{} {
	return c.refresh
}

// NextInterval computes the delay before the next fetch cycle from the
// current tier.
func (c *Controller) NextInterval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.tierLocked() {
	case TierRealtime:
		return c.cfg.RealtimeInterval
	case TierActive:
		return c.cfg.ActiveInterval
	default:
		return c.cfg.BaseInterval
	}
}

// Status returns the current tier and computed next interval.
// Pure read, no side effects.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	tier := c.tierLocked()
	status := Status{
		Tier:         tier,
		IdleCycles:   c.idleCycles,
		LastActivity: c.lastActivity,
	}
	switch tier {
	case TierRealtime:
		status.NextInterval = c.cfg.RealtimeInterval
	case TierActive:
		status.NextInterval = c.cfg.ActiveInterval
	default:
		status.NextInterval = c.cfg.BaseInterval
	}
	return status
}

// tierLocked computes the current tier. Caller must hold c.mu.
func (c *Controller) tierLocked() Tier {
	now := c.now()

	if !c.optimisticUntil.IsZero() && now.Before(c.optimisticUntil) {
		return TierRealtime
	}
	if c.lastActivity.IsZero() {
		return TierBase
	}

	idle := now.Sub(c.lastActivity)
	switch {
	case idle <= c.cfg.RealtimeHold:
		return TierRealtime
	case idle <= c.cfg.ActivityTimeout:
		return TierActive
	default:
		return TierBase
	}
}

// Close releases the controller. Pending refresh signals are discarded
// and later signals are ignored. Idempotent.
func (c *Controller) Close() {
	c.once.Do(func() {
		close(c.done)
	})
}
