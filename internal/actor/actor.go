package actor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/theatre/internal/clock"
	"github.com/roach88/theatre/internal/trace"
)

// DelayFunc computes the number of ticks a method invocation costs.
type DelayFunc func(method string, w *Workflow, args []any) int64

// DefaultDelay charges the workflow's declared cost for the method.
func DefaultDelay(method string, w *Workflow, _ []any) int64 {
	return w.Cost(method)
}

// Actor executes tasks on its own goroutine in lock-step with a clock.
//
// Lifecycle: created → running (Start) → draining (InitiateShutdown; the
// queue is finished but no longer idle-filled) → stopped. An actor also
// stops when it runs out of turns on an exhausted clock.
//
// Thread-safety: AllocateTask, the lifecycle methods and the history
// queries are safe for concurrent use. The trace is only mutated by the
// actor's goroutine.
type Actor struct {
	name   string
	clock  *clock.Clock
	logger *slog.Logger
	delay  DelayFunc
	onExit []func()

	queue  *taskQueue
	source TaskSource
	idling *Idling

	ready      *readiness
	nextTurn   atomic.Int64
	outOfTurns atomic.Pointer[OutOfTurnsError]
	directions atomic.Bool

	// current is the innermost open task. Owned by the actor goroutine.
	current *trace.Task

	historyMu sync.RWMutex
	history   []*trace.Task

	startOnce sync.Once
	started   atomic.Bool
	done      chan struct{}
}

// Option configures an Actor.
type Option func(*Actor)

// WithDelayFunc overrides how task costs are computed.
func WithDelayFunc(fn DelayFunc) Option {
	return func(a *Actor) {
		if fn != nil {
			a.delay = fn
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Actor) {
		a.logger = logger
	}
}

// WithExitHook registers fn to run on the actor's goroutine after it has
// left the clock barrier and before waiters are released.
func WithExitHook(fn func()) Option {
	return func(a *Actor) {
		a.onExit = append(a.onExit, fn)
	}
}

// WithTaskSource replaces where the actor's loop takes its work from.
// fn receives the actor's allocation queue so the new source can still
// serve tasks handed to AllocateTask.
func WithTaskSource(fn func(allocated TaskSource) TaskSource) Option {
	return func(a *Actor) {
		if fn != nil {
			a.source = fn(a.queue)
		}
	}
}

// New creates an actor on clk and registers it as a clock listener.
//
// The clock will not tick past an actor that has been created but not
// started; start actors before driving their clock.
func New(name string, clk *clock.Clock, opts ...Option) *Actor {
	a := &Actor{
		name:   name,
		clock:  clk,
		logger: slog.Default(),
		delay:  DefaultDelay,
		queue:  newTaskQueue(),
		idling: NewIdling(),
		ready:  newReadiness(),
		done:   make(chan struct{}),
	}
	a.source = a.queue
	a.directions.Store(true)

	for _, opt := range opts {
		opt(a)
	}

	a.idling.Workflow().bind(a)
	clk.AddListener(a)
	return a
}

// Name returns the actor's name.
func (a *Actor) Name() string {
	return a.name
}

// Clock returns the clock the actor is synchronised with.
func (a *Actor) Clock() *clock.Clock {
	return a.clock
}

// Idling returns the actor's own idling workflow.
func (a *Actor) Idling() *Idling {
	return a.idling
}

// NextTurn returns the earliest tick at which the actor may next execute.
func (a *Actor) NextTurn() int64 {
	return a.nextTurn.Load()
}

// String renders the actor as a_<name>.
func (a *Actor) String() string {
	return "a_" + a.name
}

// AllocateTask queues method of s for execution and returns its trace
// node, which can be polled with Completed from any goroutine.
//
// s is bound to this actor unless it is already bound to another one.
func (a *Actor) AllocateTask(s Schedulable, method string, args ...any) *trace.Task {
	w := s.Workflow()
	task := trace.New(w, method, args...)

	if !w.bind(a) {
		a.logger.Debug("workflow already bound elsewhere",
			"actor", a.name,
			"workflow", w.Name(),
			"bound_to", w.Actor().Name())
	}

	if !a.queue.Enqueue(Job{Task: task, Target: s}) {
		a.logger.Warn("task allocated after actor stopped",
			"actor", a.name,
			"task", task.String())
	}
	return task
}

// Start launches the actor's goroutine. Later calls have no effect.
// Cancelling ctx initiates shutdown; it never interrupts a task body.
func (a *Actor) Start(ctx context.Context) {
	a.startOnce.Do(func() {
		a.started.Store(true)
		stop := context.AfterFunc(ctx, a.InitiateShutdown)

		go func() {
			defer stop()
			a.perform(WithActor(ctx, a))
		}()
	})
}

// InitiateShutdown stops idle-filling; the loop exits once queued work
// has drained.
func (a *Actor) InitiateShutdown() {
	a.directions.Store(false)
}

// WaitForShutdown blocks until the actor's goroutine has exited.
//
// When the caller also drives the clock manually, call InitiateShutdown,
// issue enough ticks, then WaitForShutdown; Shutdown alone would deadlock.
func (a *Actor) WaitForShutdown(ctx context.Context) error {
	if !a.started.Load() {
		return fmt.Errorf("wait for %s: %w", a, ErrNotStarted)
	}
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown is InitiateShutdown followed by WaitForShutdown.
func (a *Actor) Shutdown(ctx context.Context) error {
	a.InitiateShutdown()
	return a.WaitForShutdown(ctx)
}

// Done returns a channel closed when the actor's goroutine exits.
func (a *Actor) Done() <-chan struct{} {
	return a.done
}

// WaitUntilReady implements clock.Listener.
func (a *Actor) WaitUntilReady() {
	a.ready.wait()
}

// OnTick implements clock.Listener.
func (a *Actor) OnTick() {
	a.ready.notify()
}

// perform is the execution loop.
func (a *Actor) perform(ctx context.Context) {
	defer a.exit()

	a.logger.Debug("actor started", "actor", a.name, "clock", a.clock.Name())

	for a.directions.Load() || a.source.Waiting() {
		job, ok := a.source.Next()
		if !ok {
			job = Job{
				Task:   trace.New(a.idling.Workflow(), MethodIdle),
				Target: a.idling,
			}
		}

		a.record(job.Task)
		a.current = job.Task
		err := a.invoke(ctx, job.Target, job.Task.Method(), job.Task.Args())
		a.current = nil

		if IsOutOfTurns(err) {
			a.logger.Debug("actor out of turns",
				"actor", a.name,
				"tick", a.clock.Current(),
				"task", job.Task.String())
			break
		}
		if err != nil {
			// Log and continue - one failing task never stops the actor
			a.logger.Warn("task failed",
				"actor", a.name,
				"error", err,
				"task", job.Task.String())
		}
	}
}

// exit leaves the barrier, then releases waiters.
func (a *Actor) exit() {
	if err := a.clock.RemoveListener(a); err != nil {
		a.logger.Error("actor deregistration failed",
			"actor", a.name,
			"error", err)
	}
	a.ready.release()

	for _, job := range a.queue.Close() {
		a.logger.Debug("task abandoned",
			"actor", a.name,
			"task", job.Task.String())
	}
	for _, fn := range a.onExit {
		fn()
	}

	a.logger.Debug("actor stopped",
		"actor", a.name,
		"tick", a.clock.Current(),
		"tasks", len(a.TaskHistory()))
	close(a.done)
}

func (a *Actor) record(task *trace.Task) {
	a.historyMu.Lock()
	defer a.historyMu.Unlock()
	a.history = append(a.history, task)
}

// invoke is the instrumentation sequence: initiate, incur delay, wait for
// the turn, run the body, complete.
//
// An out-of-turns condition leaves every task on the open chain
// unfinished. A failing or panicking body still completes its task.
func (a *Actor) invoke(ctx context.Context, s Schedulable, method string, args []any) error {
	if oot := a.outOfTurns.Load(); oot != nil {
		return oot
	}

	w := s.Workflow()
	w.bind(a)

	task := a.initiate(w, method, args)

	a.incurDelay(method, w, args)
	if err := a.waitForTurn(); err != nil {
		return err
	}

	err := dispatch(ctx, s, task, method, args)
	if oot := a.outOfTurns.Load(); oot != nil {
		return oot
	}

	task.Complete(a.clock.Current())
	a.current = task.Parent()
	return err
}

func (a *Actor) initiate(w *Workflow, method string, args []any) *trace.Task {
	task := a.current
	switch {
	case task == nil:
		// Invoked outside the loop's bookkeeping; record as a new root.
		task = trace.New(w, method, args...)
		a.record(task)
	case task.Initiated():
		task = task.AppendSubTask(w, method, args...)
	}

	task.Initiate(a.clock.Current())
	a.current = task
	return task
}

func (a *Actor) incurDelay(method string, w *Workflow, args []any) {
	delay := a.delay(method, w, args)
	turn := max(a.nextTurn.Load(), a.clock.Current()) + delay
	a.nextTurn.Store(turn)
}

// waitForTurn blocks until the clock reaches the actor's next turn.
func (a *Actor) waitForTurn() error {
	for a.clock.Current() < a.nextTurn.Load() {
		if !a.clock.WillTickAgain() {
			oot := &OutOfTurnsError{
				Actor: a.name,
				Tick:  a.clock.Current(),
				Turn:  a.nextTurn.Load(),
			}
			a.outOfTurns.Store(oot)
			return oot
		}

		a.ready.park()
		select {
		case <-a.ready.tick:
		case <-a.clock.Done():
		}
	}
	return nil
}

func dispatch(ctx context.Context, s Schedulable, task *trace.Task, method string, args []any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Task: task.String(), Value: r}
		}
	}()
	return s.Dispatch(ctx, method, args)
}

// TaskHistory returns the top-level tasks the actor has recorded, without
// the idle rounds it filled in itself.
func (a *Actor) TaskHistory() []*trace.Task {
	a.historyMu.RLock()
	defer a.historyMu.RUnlock()

	own := a.idling.Workflow()
	history := make([]*trace.Task, 0, len(a.history))
	for _, task := range a.history {
		if task.Producer() == trace.Producer(own) {
			continue
		}
		history = append(history, task)
	}
	return history
}

// RawHistory returns every recorded top-level task, idle fills included.
func (a *Actor) RawHistory() []*trace.Task {
	a.historyMu.RLock()
	defer a.historyMu.RUnlock()
	return append([]*trace.Task(nil), a.history...)
}

// LastTask returns the most recent task in TaskHistory, or nil.
func (a *Actor) LastTask() *trace.Task {
	history := a.TaskHistory()
	if len(history) == 0 {
		return nil
	}
	return history[len(history)-1]
}

// LastTick returns the last tick of substantive work, or 0 if the actor
// has no history.
func (a *Actor) LastTick() int64 {
	last := a.LastTask()
	if last == nil {
		return 0
	}
	tick, _ := last.LastNonIdlingTick()
	return tick
}

// TaskCount counts tasks in TaskHistory, recursively, that satisfy filter.
// A nil filter counts every task.
func (a *Actor) TaskCount(filter func(*trace.Task) bool) int {
	n := 0
	for _, task := range a.TaskHistory() {
		n += task.Count(filter)
	}
	return n
}
