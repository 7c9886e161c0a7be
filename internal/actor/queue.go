package actor

import (
	"sync"

	"github.com/roach88/theatre/internal/trace"
)

// Job is one allocated unit of work: a pre-built top-level trace node and
// the workflow whose method it names.
type Job struct {
	Task   *trace.Task
	Target Schedulable
}

// TaskSource supplies an actor's loop with work. Install one with
// WithTaskSource.
//
// Next must not block; it reports false when nothing is ready, in which
// case the actor idles. Waiting reports whether work remains, and keeps
// the loop alive after shutdown has been initiated.
type TaskSource interface {
	Next() (Job, bool)
	Waiting() bool
}

// taskQueue is a thread-safe FIFO queue of jobs.
//
// Any goroutine may enqueue; only the owning actor dequeues. The queue is
// unbounded so allocation never blocks the caller.
type taskQueue struct {
	mu     sync.Mutex
	jobs   []Job
	closed bool
}

func newTaskQueue() *taskQueue {
	return &taskQueue{
		jobs: make([]Job, 0, 16),
	}
}

// Enqueue adds a job to the back of the queue.
// Returns false if the queue is closed.
func (q *taskQueue) Enqueue(j Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.jobs = append(q.jobs, j)
	return true
}

// Next removes and returns the front job without blocking.
func (q *taskQueue) Next() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return Job{}, false
	}

	j := q.jobs[0]

	// Nil out the slot so the backing array does not retain the trace.
	q.jobs[0] = Job{}
	if len(q.jobs) == 1 {
		q.jobs = q.jobs[:0]
	} else {
		q.jobs = q.jobs[1:]
	}
	return j, true
}

// Waiting reports whether jobs are queued.
func (q *taskQueue) Waiting() bool {
	return q.Len() > 0
}

// Len returns the current queue length.
func (q *taskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Close rejects further jobs and returns any still queued.
func (q *taskQueue) Close() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	remaining := q.jobs
	q.jobs = nil
	return remaining
}
