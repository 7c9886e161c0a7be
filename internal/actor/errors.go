package actor

import (
	"errors"
	"fmt"
)

// ErrNotStarted is returned when waiting on an actor that was never started.
var ErrNotStarted = errors.New("actor: not started")

// ErrNoActor is returned by operations that can only make progress on an
// actor's own goroutine.
var ErrNoActor = errors.New("actor: no actor in context")

// OutOfTurnsError reports that an actor still owed a turn its clock will
// never issue.
//
// This is a normal termination signal for bounded clocks, not a bug. It is
// caught at the actor's loop boundary and ends the loop; the in-flight
// tasks stay open in the trace as evidence of truncation.
type OutOfTurnsError struct {
	// Actor is the name of the actor that ran out of turns.
	Actor string

	// Tick is the clock's tick when the condition was detected.
	Tick int64

	// Turn is the tick the actor was waiting for.
	Turn int64
}

func (e *OutOfTurnsError) Error() string {
	return fmt.Sprintf("actor %s out of turns after %d ticks (waiting for %d)", e.Actor, e.Tick, e.Turn)
}

// IsOutOfTurns reports whether err is, or wraps, an OutOfTurnsError.
func IsOutOfTurns(err error) bool {
	var oot *OutOfTurnsError
	return errors.As(err, &oot)
}

// UnknownMethodError is returned by Dispatch for a method the workflow
// does not define.
type UnknownMethodError struct {
	Workflow string
	Method   string
}

func (e *UnknownMethodError) Error() string {
	return fmt.Sprintf("workflow %s has no method %q", e.Workflow, e.Method)
}

// IsUnknownMethod reports whether err is, or wraps, an UnknownMethodError.
func IsUnknownMethod(err error) bool {
	var um *UnknownMethodError
	return errors.As(err, &um)
}

// PanicError wraps a value recovered from a panicking task body.
type PanicError struct {
	Task  string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task %s panicked: %v", e.Task, e.Value)
}
