// Package cast groups actors that share a lifecycle and assembles them
// with a clock into a performance.
//
// A Cast has no scheduling logic of its own: every operation fans out to
// its members.
package cast

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/theatre/internal/trace"
)

// Member is the lifecycle and accounting surface of a schedulable actor.
// *actor.Actor satisfies it.
type Member interface {
	Name() string
	Start(ctx context.Context)
	InitiateShutdown()
	WaitForShutdown(ctx context.Context) error
	LastTick() int64
	TaskCount(filter func(*trace.Task) bool) int
}

// Cast is an ordered set of actors.
//
// Thread-safety: all methods are safe for concurrent use.
type Cast struct {
	mu      sync.RWMutex
	members []Member
}

// New creates a cast with the given members.
func New(members ...Member) *Cast {
	c := &Cast{}
	for _, m := range members {
		c.AddMember(m)
	}
	return c
}

// AddMember adds m. Adding the same member twice has no effect.
func (c *Cast) AddMember(m Member) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.members {
		if existing == m {
			return
		}
	}
	c.members = append(c.members, m)
}

// Members returns the members in insertion order.
func (c *Cast) Members() []Member {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Member(nil), c.members...)
}

// Member returns the first member named name, or nil.
func (c *Cast) Member(name string) Member {
	for _, m := range c.Members() {
		if m.Name() == name {
			return m
		}
	}
	return nil
}

// MemberNames returns the sorted member names.
func (c *Cast) MemberNames() []string {
	members := c.Members()
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Name()
	}
	sort.Strings(names)
	return names
}

// Len returns the number of members.
func (c *Cast) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.members)
}

// Start starts every member.
func (c *Cast) Start(ctx context.Context) {
	for _, m := range c.Members() {
		m.Start(ctx)
	}
}

// InitiateShutdown asks every member to stop once its queue drains.
func (c *Cast) InitiateShutdown() {
	for _, m := range c.Members() {
		m.InitiateShutdown()
	}
}

// WaitForShutdown blocks until every member has stopped. The first error,
// such as ctx expiring, is returned.
func (c *Cast) WaitForShutdown(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, m := range c.Members() {
		g.Go(func() error {
			if err := m.WaitForShutdown(ctx); err != nil {
				return fmt.Errorf("member %s: %w", m.Name(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Shutdown is InitiateShutdown followed by WaitForShutdown. It is only
// safe when the clock is driven on another goroutine.
func (c *Cast) Shutdown(ctx context.Context) error {
	c.InitiateShutdown()
	return c.WaitForShutdown(ctx)
}

// LastTick returns the latest LastTick over all members, or 0 for an
// empty cast.
func (c *Cast) LastTick() int64 {
	var last int64
	for _, m := range c.Members() {
		last = max(last, m.LastTick())
	}
	return last
}

// TaskCount sums TaskCount over all members.
func (c *Cast) TaskCount(filter func(*trace.Task) bool) int {
	n := 0
	for _, m := range c.Members() {
		n += m.TaskCount(filter)
	}
	return n
}
