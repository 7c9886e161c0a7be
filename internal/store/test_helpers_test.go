package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/theatre/internal/trace"
)

// createTestStore creates a new temp-dir store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var (
	exampleProducer = trace.NamedProducer{ProducerName: "example"}
	idlingProducer  = trace.NamedProducer{ProducerName: "idling", IsIdling: true}
)

func span(task *trace.Task, start, finish int64) *trace.Task {
	task.Initiate(start)
	if finish >= 0 {
		task.Complete(finish)
	}
	return task
}

// createTestRun builds a two-actor run:
//
//	a: task_a()[0->3] > task_b()[1->3] > idle()[2->3]
//	   task_c(x,5)[3->?]
//	b: idle_for(2)[0->2] > idle()[0->1], idle()[1->2]
func createTestRun(id string) *Run {
	taskA := span(trace.New(exampleProducer, "task_a"), 0, 3)
	taskB := span(taskA.AppendSubTask(exampleProducer, "task_b"), 1, 3)
	span(taskB.AppendSubTask(idlingProducer, "idle"), 2, 3)
	taskC := span(trace.New(exampleProducer, "task_c", "x", 5), 3, -1)

	idleFor := span(trace.New(idlingProducer, "idle_for", 2), 0, 2)
	span(idleFor.AppendSubTask(idlingProducer, "idle"), 0, 1)
	span(idleFor.AppendSubTask(idlingProducer, "idle"), 1, 2)

	return &Run{
		ID:        id,
		Scenario:  "example",
		FinalTick: 4,
		Actors: []ActorTrace{
			{Actor: "a", Tasks: []*trace.Task{taskA, taskC}},
			{Actor: "b", Tasks: []*trace.Task{idleFor}},
		},
	}
}
