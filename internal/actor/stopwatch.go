package actor

import (
	"context"

	"github.com/roach88/theatre/internal/clock"
	"github.com/roach88/theatre/internal/trace"
)

// MethodIssueTick is the stopwatch's repeated task.
const MethodIssueTick = "issue_tick"

// ParentClock is the clock a stopwatch advances.
type ParentClock interface {
	Tick() bool
	Current() int64
	Clamp(limit int64)
}

// stopwatchWorkflow spends one period of child ticks, then ticks the
// parent. issue_tick costs one turn and then idles precision(g-1) times,
// so an unperturbed period is exactly granularity child ticks.
type stopwatchWorkflow struct {
	wf          *Workflow
	parent      ParentClock
	granularity int64
	precision   clock.PrecisionFunc
	idling      *Idling
}

func (s *stopwatchWorkflow) Workflow() *Workflow {
	return s.wf
}

func (s *stopwatchWorkflow) Dispatch(ctx context.Context, method string, _ []any) error {
	if method != MethodIssueTick {
		return &UnknownMethodError{Workflow: s.wf.Name(), Method: method}
	}
	if err := s.idling.IdleFor(ctx, s.precision(s.granularity-1)); err != nil {
		return err
	}
	s.parent.Tick()
	return nil
}

// stopwatchSource serves allocated work first and otherwise repeats
// issue_tick forever.
type stopwatchSource struct {
	queue    TaskSource
	workflow *stopwatchWorkflow
}

func (s *stopwatchSource) Next() (Job, bool) {
	if job, ok := s.queue.Next(); ok {
		return job, true
	}
	return Job{
		Task:   trace.New(s.workflow.wf, MethodIssueTick),
		Target: s.workflow,
	}, true
}

func (s *stopwatchSource) Waiting() bool {
	return true
}

// NewStopwatch creates an actor on clk that ticks parent once every
// granularity ticks of clk. A nil precision is the identity.
//
// A stopwatch never idles out on shutdown; it runs until clk is
// exhausted. Before exiting it clamps parent's bound to parent's current
// tick, so actors waiting on parent run out of turns instead of waiting
// forever.
//
// Example:
//
//	seconds := clock.New(clock.WithMaxTicks(3600))
//	minutes := clock.New()
//	sw := actor.NewStopwatch("seconds_to_minutes", seconds, minutes, 60, nil)
//	sw.Start(ctx)
func NewStopwatch(name string, clk *clock.Clock, parent ParentClock, granularity int64, precision clock.PrecisionFunc, opts ...Option) *Actor {
	if precision == nil {
		precision = clock.Identity
	}

	idling := NewIdling()
	workflow := &stopwatchWorkflow{
		wf: NewWorkflow("stopwatch",
			WithCost(MethodIssueTick, 1),
			WithNested(idling),
		),
		parent:      parent,
		granularity: granularity,
		precision:   precision,
		idling:      idling,
	}

	opts = append(opts,
		WithExitHook(func() {
			parent.Clamp(parent.Current())
		}),
		WithTaskSource(func(allocated TaskSource) TaskSource {
			return &stopwatchSource{queue: allocated, workflow: workflow}
		}),
	)

	a := New(name, clk, opts...)
	workflow.wf.bind(a)
	return a
}
