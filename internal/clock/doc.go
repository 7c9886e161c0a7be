// Package clock implements the barrier-synchronised tick source that drives
// every simulation.
//
// ARCHITECTURE:
//
// A Clock issues discrete, monotonically increasing integer ticks to a
// dynamic set of Listeners. A tick is released only once every listener
// has reported itself ready:
//
//  1. Snapshot the listener set (under the listener mutex)
//  2. WaitUntilReady() on every snapshot member, in order
//  3. Increment the tick counter
//  4. OnTick() on every snapshot member, in order
//
// No listener is notified before all of them are ready, and every listener
// in a round observes the same tick value. Add/RemoveListener may be called
// from any goroutine at any time; changes take effect on the next round.
//
// Bounds and shutdown:
// A clock may carry a maximum tick. Once the bound is reached, or issuance
// is stopped via Shutdown or Clamp, WillTickAgain reports false forever and
// the Done channel is closed. Listeners blocked waiting for a future tick
// must select on Done so that an exhausted clock never strands them.
//
// Hierarchies:
// A Bridge is a listener that ticks a coarser parent clock once every
// granularity child ticks. Bridges are always ready, so they never hold up
// the child clock's barrier. Link and Chain build seconds → minutes → hours
// style hierarchies.
package clock
