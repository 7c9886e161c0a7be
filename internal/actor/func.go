package actor

import "context"

// FuncWorkflow is an anonymous workflow with a single method whose name
// is the workflow's name. It lets a plain function be allocated as a task.
type FuncWorkflow struct {
	wf *Workflow
	fn func(ctx context.Context, args []any) error
}

// Func wraps fn as a single-method workflow of the given cost.
//
// Example:
//
//	task := a.AllocateTask(actor.Func("example_task", 1, body), "example_task")
func Func(name string, cost int64, fn func(ctx context.Context, args []any) error) *FuncWorkflow {
	return &FuncWorkflow{
		wf: NewWorkflow(name, WithCost(name, cost)),
		fn: fn,
	}
}

// Workflow implements Schedulable.
func (f *FuncWorkflow) Workflow() *Workflow {
	return f.wf
}

// Method returns the single method name.
func (f *FuncWorkflow) Method() string {
	return f.wf.Name()
}

// Dispatch implements Schedulable.
func (f *FuncWorkflow) Dispatch(ctx context.Context, method string, args []any) error {
	if method != f.wf.Name() {
		return &UnknownMethodError{Workflow: f.wf.Name(), Method: method}
	}
	if f.fn == nil {
		return nil
	}
	return f.fn(ctx, args)
}
