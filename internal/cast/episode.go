package cast

import (
	"context"
	"fmt"
)

// Clock is the part of a clock a performance drives.
// *clock.Clock satisfies it.
type Clock interface {
	Start(ctx context.Context)
	WaitForLastTick(ctx context.Context) error
	Shutdown()
}

// Directions allocate work to the members before a performance starts.
type Directions func(members []Member)

// Episode is a performance with a definite end: the clock's bound.
type Episode struct {
	Clock Clock
	Cast  *Cast

	// Directions, when set, run once before the clock starts.
	Directions Directions
}

// Perform gives the directions, starts the clock and the cast, then waits
// for the clock's last tick and for every member to stop.
//
// Members still waiting for directions run out of turns once the clock is
// exhausted, so an episode on a bounded clock always ends.
func (e *Episode) Perform(ctx context.Context) error {
	if e.Directions != nil {
		e.Directions(e.Cast.Members())
	}
	e.Clock.Start(ctx)
	e.Cast.Start(ctx)

	if err := e.Clock.WaitForLastTick(ctx); err != nil {
		return fmt.Errorf("episode: wait for last tick: %w", err)
	}
	if err := e.Cast.WaitForShutdown(ctx); err != nil {
		return fmt.Errorf("episode: wait for cast: %w", err)
	}
	return nil
}

// Improv is a performance with no definite end.
type Improv struct {
	Clock Clock
	Cast  *Cast
}

// Perform starts the clock and the cast and returns immediately.
func (i *Improv) Perform(ctx context.Context) {
	i.Clock.Start(ctx)
	i.Cast.Start(ctx)
}

// Stop ends an improvised performance: issuance stops, so every member
// runs out of turns, and Stop waits for them.
func (i *Improv) Stop(ctx context.Context) error {
	i.Cast.InitiateShutdown()
	i.Clock.Shutdown()
	return i.Cast.WaitForShutdown(ctx)
}
