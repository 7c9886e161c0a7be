package actor

import (
	"context"
	"fmt"

	"github.com/roach88/theatre/internal/trace"
)

// Idling method names.
const (
	MethodIdle         = "idle"
	MethodIdleFor      = "idle_for"
	MethodIdleUntil    = "idle_until"
	MethodWaitForTasks = "wait_for_tasks"
)

// Idling is the workflow that lets an actor waste turns. Idle costs one
// tick; the composite methods cost nothing themselves and are made of
// idles.
type Idling struct {
	wf *Workflow
}

// NewIdling creates an idling workflow.
func NewIdling() *Idling {
	return &Idling{
		wf: NewWorkflow("idling", AsIdling(), WithCost(MethodIdle, 1)),
	}
}

// Workflow implements Schedulable.
func (i *Idling) Workflow() *Workflow {
	return i.wf
}

// Dispatch implements Schedulable.
func (i *Idling) Dispatch(ctx context.Context, method string, args []any) error {
	switch method {
	case MethodIdle:
		return nil

	case MethodIdleFor:
		n, err := IntArg(args, 0)
		if err != nil {
			return fmt.Errorf("%s: %w", method, err)
		}
		for j := int64(0); j < n; j++ {
			if err := i.Idle(ctx); err != nil {
				return err
			}
		}
		return nil

	case MethodIdleUntil:
		task, err := taskArg(args, 0)
		if err != nil {
			return fmt.Errorf("%s: %w", method, err)
		}
		return i.idleUntil(ctx, task)

	case MethodWaitForTasks:
		for j := range args {
			task, err := taskArg(args, j)
			if err != nil {
				return fmt.Errorf("%s: %w", method, err)
			}
			if err := i.IdleUntil(ctx, task); err != nil {
				return err
			}
		}
		return nil
	}
	return &UnknownMethodError{Workflow: i.wf.Name(), Method: method}
}

func (i *Idling) idleUntil(ctx context.Context, task *trace.Task) error {
	if FromContext(ctx) == nil && !task.Completed() {
		return fmt.Errorf("%s %s: %w", MethodIdleUntil, task, ErrNoActor)
	}
	for !task.Completed() {
		if err := i.Idle(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Idle wastes one turn.
func (i *Idling) Idle(ctx context.Context) error {
	return Invoke(ctx, i, MethodIdle)
}

// IdleFor idles n times.
func (i *Idling) IdleFor(ctx context.Context, n int64) error {
	return Invoke(ctx, i, MethodIdleFor, n)
}

// IdleUntil idles until task has completed.
func (i *Idling) IdleUntil(ctx context.Context, task *trace.Task) error {
	return Invoke(ctx, i, MethodIdleUntil, task)
}

// WaitForTasks idles until every task has completed.
func (i *Idling) WaitForTasks(ctx context.Context, tasks ...*trace.Task) error {
	args := make([]any, len(tasks))
	for j, t := range tasks {
		args[j] = t
	}
	return Invoke(ctx, i, MethodWaitForTasks, args...)
}

// IntArg returns args[idx] as an integer. Integral values of any numeric
// kind are accepted so decoded configuration can be passed straight
// through.
func IntArg(args []any, idx int) (int64, error) {
	if idx >= len(args) {
		return 0, fmt.Errorf("missing argument %d", idx)
	}
	switch v := args[idx].(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float64:
		if v == float64(int64(v)) {
			return int64(v), nil
		}
	}
	return 0, fmt.Errorf("argument %d: want integer, got %T", idx, args[idx])
}

func taskArg(args []any, idx int) (*trace.Task, error) {
	if idx >= len(args) {
		return nil, fmt.Errorf("missing argument %d", idx)
	}
	task, ok := args[idx].(*trace.Task)
	if !ok {
		return nil, fmt.Errorf("argument %d: want *trace.Task, got %T", idx, args[idx])
	}
	return task, nil
}
