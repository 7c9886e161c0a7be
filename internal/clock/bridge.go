package clock

import "sync"

// PrecisionFunc perturbs a granularity for one period, e.g. to model
// jitter or to force an early parent tick.
type PrecisionFunc func(granularity int64) int64

// Identity is the default PrecisionFunc.
func Identity(granularity int64) int64 {
	return granularity
}

// Offset returns a PrecisionFunc that adds delta to the granularity.
func Offset(delta int64) PrecisionFunc {
	return func(granularity int64) int64 {
		return granularity + delta
	}
}

// Bridge is a Listener that ticks a parent once every granularity ticks
// of the clock it listens to.
//
// A bridge is always ready: advancing the parent is a side effect of the
// child's tick, never a precondition for it.
type Bridge struct {
	parent      Ticker
	granularity int64
	precision   PrecisionFunc

	mu        sync.Mutex
	countdown int64
	issued    int64
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithPrecision sets the precision function applied to the granularity at
// the start of every period.
func WithPrecision(fn PrecisionFunc) BridgeOption {
	return func(b *Bridge) {
		if fn != nil {
			b.precision = fn
		}
	}
}

// NewBridge creates a bridge that ticks parent every granularity ticks.
// The bridge is not registered anywhere; see Link.
func NewBridge(parent Ticker, granularity int64, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		parent:      parent,
		granularity: granularity,
		precision:   Identity,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.countdown = b.nextPeriod()
	return b
}

func (b *Bridge) nextPeriod() int64 {
	return max(b.precision(b.granularity), 1)
}

// WaitUntilReady is a no-op.
func (b *Bridge) WaitUntilReady() {}

// OnTick counts down and ticks the parent when the period ends.
func (b *Bridge) OnTick() {
	b.mu.Lock()
	b.countdown--
	fire := b.countdown <= 0
	if fire {
		b.countdown = b.nextPeriod()
		b.issued++
	}
	b.mu.Unlock()

	if fire {
		b.parent.Tick()
	}
}

// Issued returns how many parent ticks the bridge has requested.
func (b *Bridge) Issued() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.issued
}

// Link creates a bridge from child to parent and registers it on child.
//
// Example:
//
//	seconds := clock.New(clock.WithMaxTicks(3600))
//	minutes := clock.New()
//	clock.Link(seconds, minutes, 60)
func Link(child, parent *Clock, granularity int64, opts ...BridgeOption) *Bridge {
	b := NewBridge(parent, granularity, opts...)
	child.AddListener(b)
	return b
}

// Chain links each clock to the next with the same granularity, finest
// first, and returns the bridges in order.
func Chain(granularity int64, clocks ...*Clock) []*Bridge {
	if len(clocks) < 2 {
		return nil
	}
	bridges := make([]*Bridge, 0, len(clocks)-1)
	for i := 0; i+1 < len(clocks); i++ {
		bridges = append(bridges, Link(clocks[i], clocks[i+1], granularity))
	}
	return bridges
}
