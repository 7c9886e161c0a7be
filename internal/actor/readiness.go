package actor

import "sync"

// readiness is an actor's side of the clock barrier.
//
// The actor parks before waiting for a tick; the clock's WaitUntilReady
// returns once the actor is parked. OnTick unparks the actor and hands it
// the tick. After the actor exits it stays ready forever so it can never
// stall a snapshot that still contains it.
type readiness struct {
	mu       sync.Mutex
	parked   bool
	exited   bool
	parkedCh chan struct{}

	tick chan struct{}
}

func newReadiness() *readiness {
	return &readiness{
		parkedCh: make(chan struct{}),
		tick:     make(chan struct{}, 1),
	}
}

// wait blocks until the actor is parked or has exited.
func (r *readiness) wait() {
	r.mu.Lock()
	ch := r.parkedCh
	r.mu.Unlock()
	<-ch
}

// park declares the actor ready for the next tick.
func (r *readiness) park() {
	// Drop a tick delivered after the actor stopped waiting for it.
	select {
	case <-r.tick:
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.parked {
		r.parked = true
		close(r.parkedCh)
	}
}

// notify unparks the actor and delivers the tick.
func (r *readiness) notify() {
	r.mu.Lock()
	if r.parked && !r.exited {
		r.parked = false
		r.parkedCh = make(chan struct{})
	}
	r.mu.Unlock()

	select {
	case r.tick <- struct{}{}:
	default:
	}
}

// release makes the actor permanently ready.
func (r *readiness) release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exited = true
	if !r.parked {
		r.parked = true
		close(r.parkedCh)
	}
}
