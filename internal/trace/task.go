package trace

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// Producer identifies what ran a task: a workflow instance.
//
// Idling reports whether the producer is an idle workflow; idle work is
// recorded but never counted as substantive progress.
type Producer interface {
	Name() string
	Idling() bool
}

// unset marks a tick that has not been recorded yet.
const unset = -1

// Task is one node of an execution trace.
//
// Ticks are stored atomically so other goroutines can poll Completed on an
// allocated task. The subtask list is only appended to by the owning
// actor; the mutex lets readers walk a tree that is still growing.
type Task struct {
	producer Producer
	method   string
	args     []any
	parent   *Task

	start  atomic.Int64
	finish atomic.Int64

	mu       sync.RWMutex
	subTasks []*Task
}

// New creates an uninitiated top-level task.
func New(p Producer, method string, args ...any) *Task {
	t := &Task{
		producer: p,
		method:   method,
		args:     args,
	}
	t.start.Store(unset)
	t.finish.Store(unset)
	return t
}

// Producer returns the workflow instance that ran the task.
func (t *Task) Producer() Producer {
	return t.producer
}

// Method returns the entry point name.
func (t *Task) Method() string {
	return t.method
}

// Args returns the invocation arguments.
func (t *Task) Args() []any {
	return t.args
}

// Parent returns the enclosing task, or nil for a top-level task.
func (t *Task) Parent() *Task {
	return t.parent
}

// Initiate records the start tick.
func (t *Task) Initiate(tick int64) {
	t.start.Store(tick)
}

// Complete records the finish tick.
func (t *Task) Complete(tick int64) {
	t.finish.Store(tick)
}

// Initiated reports whether the start tick is set.
func (t *Task) Initiated() bool {
	return t.start.Load() != unset
}

// Completed reports whether the finish tick is set.
func (t *Task) Completed() bool {
	return t.finish.Load() != unset
}

// StartTick returns the start tick and whether it is set.
func (t *Task) StartTick() (int64, bool) {
	v := t.start.Load()
	return v, v != unset
}

// FinishTick returns the finish tick and whether it is set.
func (t *Task) FinishTick() (int64, bool) {
	v := t.finish.Load()
	return v, v != unset
}

// AppendSubTask creates a child task and appends it in order.
func (t *Task) AppendSubTask(p Producer, method string, args ...any) *Task {
	child := New(p, method, args...)
	child.parent = t

	t.mu.Lock()
	t.subTasks = append(t.subTasks, child)
	t.mu.Unlock()
	return child
}

// SubTasks returns a copy of the ordered children.
func (t *Task) SubTasks() []*Task {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]*Task(nil), t.subTasks...)
}

// Idling reports whether the task was produced by an idle workflow.
func (t *Task) Idling() bool {
	return t.producer != nil && t.producer.Idling()
}

// LastNonIdlingTick returns the latest tick at which substantive work is
// known to have happened within this task.
//
// A completed task reports its finish tick. An open task defers to its last
// non-idling subtask, or reports its own start tick when there is none.
// The bool is false only for a task that was never initiated.
func (t *Task) LastNonIdlingTick() (int64, bool) {
	if finish, ok := t.FinishTick(); ok {
		return finish, true
	}

	subTasks := t.SubTasks()
	for i := len(subTasks) - 1; i >= 0; i-- {
		if !subTasks[i].Idling() {
			return subTasks[i].LastNonIdlingTick()
		}
	}
	return t.StartTick()
}

// Count returns the number of tasks in this tree that satisfy filter. A
// nil filter counts every task.
func (t *Task) Count(filter func(*Task) bool) int {
	n := 0
	if filter == nil || filter(t) {
		n++
	}
	for _, child := range t.SubTasks() {
		n += child.Count(filter)
	}
	return n
}

// String renders method(args)[start->finish] with ? for unset ticks.
func (t *Task) String() string {
	args := make([]string, len(t.args))
	for i, a := range t.args {
		args[i] = fmt.Sprint(a)
	}
	return fmt.Sprintf("%s(%s)[%s->%s]",
		t.method,
		strings.Join(args, ","),
		formatTick(t.StartTick()),
		formatTick(t.FinishTick()))
}

func formatTick(tick int64, ok bool) string {
	if !ok {
		return "?"
	}
	return fmt.Sprintf("%d", tick)
}
