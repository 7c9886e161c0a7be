package scenario

import (
	"fmt"

	"github.com/roach88/theatre/internal/trace"
)

// counter is what task_count, trace_contains and last_tick query: one
// actor or the whole cast.
type counter interface {
	TaskCount(filter func(*trace.Task) bool) int
	LastTick() int64
}

// EvaluateAssertions checks every assertion against a finished run and
// returns one AssertionError per failure, in assertion order.
func EvaluateAssertions(r *Result, assertions []Assertion) []error {
	var errs []error
	for i, a := range assertions {
		if err := evaluateAssertion(r, i, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func evaluateAssertion(r *Result, index int, a Assertion) error {
	fail := func(subject string, expected, actual any) error {
		return &AssertionError{Index: index, Type: a.Type, Subject: subject, Expected: expected, Actual: actual}
	}

	var subject counter = r.players
	subjectName := "cast"
	if a.Actor != "" {
		act := r.Actor(a.Actor)
		if act == nil {
			return fail("actor "+a.Actor, "declared actor", "none")
		}
		subject = act
		subjectName = act.String()
	}

	switch a.Type {
	case AssertFinishTick:
		tasks := r.Allocated(a.Actor)
		name := fmt.Sprintf("%s task %d", subjectName, a.Task)
		if a.Task >= len(tasks) {
			return fail(name, "allocated task", fmt.Sprintf("%d tasks", len(tasks)))
		}
		finish, ok := tasks[a.Task].FinishTick()
		switch {
		case a.Tick == nil && ok:
			return fail(name, "unfinished", finish)
		case a.Tick != nil && !ok:
			return fail(name, *a.Tick, "unfinished")
		case a.Tick != nil && finish != *a.Tick:
			return fail(name, *a.Tick, finish)
		}

	case AssertLastTask:
		last := r.Actor(a.Actor).LastTask()
		got := "none"
		if last != nil {
			got = last.String()
		}
		if got != a.Expect {
			return fail(subjectName, a.Expect, got)
		}

	case AssertClockTick:
		got := r.Clock(a.Clock).Current()
		if got != *a.Tick {
			return fail("clock "+a.Clock, *a.Tick, got)
		}

	case AssertTaskCount:
		var filter func(*trace.Task) bool
		if a.Method != "" {
			filter = func(t *trace.Task) bool { return t.Method() == a.Method }
			subjectName += " " + a.Method
		}
		if got := subject.TaskCount(filter); got != *a.Count {
			return fail(subjectName, *a.Count, got)
		}

	case AssertTraceContains:
		n := subject.TaskCount(func(t *trace.Task) bool { return t.String() == a.Expect })
		if n == 0 {
			return fail(subjectName, a.Expect, "no such task")
		}

	case AssertLastTick:
		if got := subject.LastTick(); got != *a.Tick {
			return fail(subjectName, *a.Tick, got)
		}

	default:
		return fail(subjectName, "known assertion type", a.Type)
	}
	return nil
}
