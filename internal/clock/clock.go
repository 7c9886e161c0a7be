package clock

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
)

// Listener is a participant in a clock's barrier.
//
// WaitUntilReady blocks until the participant can absorb a new tick.
// OnTick is called after the tick advances. Implementations must never
// block in OnTick waiting for the clock that called it.
//
// Listeners are compared by identity, so implementations should be
// pointer types.
type Listener interface {
	WaitUntilReady()
	OnTick()
}

// Ticker is anything that can be asked to issue one tick.
// *Clock satisfies it; bridges and stopwatches accept it for their parent.
type Ticker interface {
	Tick() bool
}

const unbounded = -1

// Clock is a barrier-synchronised logical clock.
//
// Thread-safety: all methods are safe for concurrent use. Tick calls are
// serialised; listener membership is guarded by a separate mutex so that
// Add/RemoveListener never wait on a tick that is blocked in the barrier.
type Clock struct {
	name   string
	logger *slog.Logger

	listenersMu sync.Mutex
	listeners   []Listener

	tickMu   sync.Mutex
	ticks    atomic.Int64
	maxTicks atomic.Int64
	issuing  atomic.Bool

	done     chan struct{}
	doneOnce sync.Once

	startOnce  sync.Once
	started    atomic.Bool
	driverDone chan struct{}
}

// Option configures a Clock.
type Option func(*Clock)

// WithMaxTicks bounds the clock. The clock will never advance past n.
func WithMaxTicks(n int64) Option {
	return func(c *Clock) {
		if n < 0 {
			n = 0
		}
		c.maxTicks.Store(n)
	}
}

// WithName sets the name used in logs and String.
func WithName(name string) Option {
	return func(c *Clock) {
		c.name = name
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Clock) {
		c.logger = logger
	}
}

// New creates a clock at tick zero with issuance enabled.
//
// Example:
//
//	seconds := clock.New(clock.WithName("seconds"), clock.WithMaxTicks(3600))
func New(opts ...Option) *Clock {
	c := &Clock{
		logger:     slog.Default(),
		done:       make(chan struct{}),
		driverDone: make(chan struct{}),
	}
	c.maxTicks.Store(unbounded)
	c.issuing.Store(true)

	for _, opt := range opts {
		opt(c)
	}

	// A zero bound is exhausted before the first tick.
	if !c.WillTickAgain() {
		c.markDone()
	}
	return c
}

// Name returns the clock's name, which may be empty.
func (c *Clock) Name() string {
	return c.name
}

// Current returns the current tick.
func (c *Clock) Current() int64 {
	return c.ticks.Load()
}

// MaxTicks returns the bound and whether one is set.
func (c *Clock) MaxTicks() (int64, bool) {
	limit := c.maxTicks.Load()
	if limit == unbounded {
		return 0, false
	}
	return limit, true
}

// WillTickAgain reports whether at least one more tick may be issued.
//
// Once false it stays false: the tick only grows, the bound only shrinks
// and issuance is never re-enabled.
func (c *Clock) WillTickAgain() bool {
	return c.WillTickAnother(1)
}

// WillTickAnother reports whether the clock can still reach current+delay.
func (c *Clock) WillTickAnother(delay int64) bool {
	if !c.issuing.Load() {
		return false
	}
	limit := c.maxTicks.Load()
	return limit == unbounded || c.Current()+delay <= limit
}

// Done returns a channel closed once WillTickAgain has become false.
func (c *Clock) Done() <-chan struct{} {
	return c.done
}

// AddListener registers l for subsequent ticks.
func (c *Clock) AddListener(l Listener) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, l)
}

// RemoveListener deregisters l. A tick already in its barrier keeps using
// the snapshot it took; the removal applies from the next tick.
//
// Returns ErrListenerNotFound if l is not registered.
func (c *Clock) RemoveListener(l Listener) error {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()

	for i, existing := range c.listeners {
		if existing == l {
			// Copy so an in-flight snapshot never shares the backing array.
			next := make([]Listener, 0, len(c.listeners)-1)
			next = append(next, c.listeners[:i]...)
			next = append(next, c.listeners[i+1:]...)
			c.listeners = next
			return nil
		}
	}
	return fmt.Errorf("remove from %s: %w", c, ErrListenerNotFound)
}

// ListenerCount returns the number of registered listeners.
func (c *Clock) ListenerCount() int {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	return len(c.listeners)
}

func (c *Clock) snapshot() []Listener {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	return append([]Listener(nil), c.listeners...)
}

// Tick issues exactly one tick if WillTickAgain holds and reports whether
// it did. It blocks until every listener in the snapshot is ready.
func (c *Clock) Tick() bool {
	c.tickMu.Lock()
	defer c.tickMu.Unlock()

	if !c.WillTickAgain() {
		c.markDone()
		return false
	}

	snapshot := c.snapshot()
	for _, l := range snapshot {
		l.WaitUntilReady()
	}

	// Issuance may have been stopped or clamped while the barrier was held.
	if !c.WillTickAgain() {
		c.markDone()
		return false
	}

	tick := c.ticks.Add(1)
	c.logger.Debug("tick issued",
		"clock", c.name,
		"tick", tick,
		"listeners", len(snapshot))

	for _, l := range snapshot {
		l.OnTick()
	}

	if !c.WillTickAgain() {
		c.logger.Debug("clock exhausted", "clock", c.name, "tick", tick)
		c.markDone()
	}
	return true
}

// RunToCompletion ticks until WillTickAgain no longer holds.
func (c *Clock) RunToCompletion() {
	for c.Tick() {
	}
}

// Start runs RunToCompletion on a driver goroutine. Calling Start more
// than once has no further effect. Cancelling ctx stops issuance.
func (c *Clock) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		c.started.Store(true)
		stop := context.AfterFunc(ctx, c.stopIssuing)

		go func() {
			defer close(c.driverDone)
			defer stop()
			c.logger.Debug("clock driver started", "clock", c.name)
			c.RunToCompletion()
			c.logger.Debug("clock driver stopped", "clock", c.name, "tick", c.Current())
		}()
	})
}

// Shutdown stops issuance and waits for the driver goroutine, if any.
//
// Must not be called from a listener callback on the driver goroutine.
func (c *Clock) Shutdown() {
	c.stopIssuing()
	if c.started.Load() {
		<-c.driverDone
	}
}

// WaitForLastTick blocks until the clock will issue no more ticks: the
// driver has exited, or for a manually ticked clock, issuance has ended.
func (c *Clock) WaitForLastTick(ctx context.Context) error {
	wait := c.done
	if c.started.Load() {
		wait = c.driverDone
	}

	select {
	case <-wait:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Clamp lowers the bound to limit, or to the current tick if limit is
// already behind it. A clamp never raises an existing bound.
func (c *Clock) Clamp(limit int64) {
	for {
		current := c.maxTicks.Load()
		if now := c.Current(); limit < now {
			limit = now
		}
		if current != unbounded && current <= limit {
			break
		}
		if c.maxTicks.CompareAndSwap(current, limit) {
			c.logger.Debug("clock clamped", "clock", c.name, "max_ticks", limit)
			break
		}
	}

	if !c.WillTickAgain() {
		c.markDone()
	}
}

func (c *Clock) stopIssuing() {
	c.issuing.Store(false)
	c.markDone()
}

func (c *Clock) markDone() {
	c.doneOnce.Do(func() {
		close(c.done)
	})
}

// String renders the clock as c(<current> of <max>).
func (c *Clock) String() string {
	limit := "∞"
	if n, ok := c.MaxTicks(); ok {
		limit = strconv.FormatInt(n, 10)
	}
	return fmt.Sprintf("c(%d of %s)", c.Current(), limit)
}
