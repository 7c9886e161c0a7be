// Package actor implements actors: goroutines that execute cost-bearing
// workflow tasks in lock-step with a clock.
//
// ARCHITECTURE:
//
// Each Actor owns one goroutine, one task queue and its turn state. The
// loop dequeues a task (or substitutes an idle task of cost 1 while it is
// still waiting for directions) and runs it through the instrumentation
// sequence:
//
//  1. Initiate: append a subtask to the open task, or start the allocated
//     top-level task, at the clock's current tick
//  2. Incur delay: next_turn = max(next_turn, current) + cost
//  3. Wait for turn: park on the clock barrier until current ≥ next_turn
//  4. Dispatch the method body, which may Invoke further methods
//  5. Complete at the current tick and pop to the parent task
//
// Workflows:
// Task-bearing objects implement Schedulable: an explicit Dispatch entry
// point plus a *Workflow carrying the method cost table and the nested
// workflows declared at construction. Binding to an actor happens once,
// by compare-and-swap, and is never changed afterwards.
//
// Termination:
// When the clock is exhausted while the actor still owes a turn, the
// in-flight chain is left open and the loop ends with an OutOfTurnsError.
// Task bodies that fail or panic are logged and the loop continues. On
// exit the actor removes itself from the clock before releasing anyone
// waiting on it.
//
// A Stopwatch is an actor whose only job is to tick a parent clock once
// per granularity ticks of its own clock.
package actor
