package actor

import (
	"context"
	"sync/atomic"
)

// Schedulable is a stateful object whose methods are units of cost-bearing
// work. Implementations hold a *Workflow and route method names to their
// bodies in Dispatch. Bodies call further instrumented methods through
// Invoke so that nesting is traced.
type Schedulable interface {
	Workflow() *Workflow
	Dispatch(ctx context.Context, method string, args []any) error
}

// Workflow is the per-instance scheduling state of a Schedulable: its
// name, method cost table, declared nested workflows, and the actor it is
// bound to.
//
// *Workflow implements trace.Producer.
type Workflow struct {
	name   string
	costs  map[string]int64
	nested []Schedulable
	idling bool

	actor atomic.Pointer[Actor]
}

// WorkflowOption configures a Workflow.
type WorkflowOption func(*Workflow)

// WithCost sets the scheduling cost of method, in ticks. Methods default
// to zero.
func WithCost(method string, cost int64) WorkflowOption {
	return func(w *Workflow) {
		w.costs[method] = cost
	}
}

// WithNested declares workflows that this one invokes. They are bound to
// the same actor the first time this workflow is bound.
func WithNested(children ...Schedulable) WorkflowOption {
	return func(w *Workflow) {
		w.nested = append(w.nested, children...)
	}
}

// AsIdling marks the workflow as idle work. Its tasks are excluded from
// LastNonIdlingTick.
func AsIdling() WorkflowOption {
	return func(w *Workflow) {
		w.idling = true
	}
}

// NewWorkflow creates unbound workflow state.
//
// Example:
//
//	wf := actor.NewWorkflow("example",
//	    actor.WithCost("task_a", 1),
//	    actor.WithNested(idling),
//	)
func NewWorkflow(name string, opts ...WorkflowOption) *Workflow {
	w := &Workflow{
		name:  name,
		costs: make(map[string]int64),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Name implements trace.Producer.
func (w *Workflow) Name() string {
	return w.name
}

// Idling implements trace.Producer.
func (w *Workflow) Idling() bool {
	return w.idling
}

// Cost returns the declared cost of method.
func (w *Workflow) Cost(method string) int64 {
	return w.costs[method]
}

// Nested returns the declared nested workflows.
func (w *Workflow) Nested() []Schedulable {
	return append([]Schedulable(nil), w.nested...)
}

// Actor returns the bound actor, or nil.
func (w *Workflow) Actor() *Actor {
	return w.actor.Load()
}

// bind attaches the workflow, and recursively its nested workflows, to a.
// A workflow already bound elsewhere is left alone. Reports whether the
// workflow is bound to a afterwards.
func (w *Workflow) bind(a *Actor) bool {
	if w.actor.CompareAndSwap(nil, a) {
		for _, child := range w.nested {
			child.Workflow().bind(a)
		}
		return true
	}
	return w.actor.Load() == a
}

// Invoke runs method on s as an instrumented task of the actor carried by
// ctx: the task is traced, its cost is added to the actor's next turn and
// the call blocks until the clock reaches that turn.
//
// Without an actor in ctx the method is dispatched directly, untraced.
func Invoke(ctx context.Context, s Schedulable, method string, args ...any) error {
	a := FromContext(ctx)
	if a == nil {
		return s.Dispatch(ctx, method, args)
	}
	return a.invoke(ctx, s, method, args)
}

type contextKey struct{}

// WithActor returns a context carrying a. Actors install themselves on
// the context their loop passes to task bodies.
func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

// FromContext returns the actor carried by ctx, or nil.
func FromContext(ctx context.Context) *Actor {
	a, _ := ctx.Value(contextKey{}).(*Actor)
	return a
}
