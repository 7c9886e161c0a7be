package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	work = NamedProducer{ProducerName: "example"}
	idle = NamedProducer{ProducerName: "idling", IsIdling: true}
)

func lastNonIdling(t *testing.T, task *Task) int64 {
	t.Helper()
	tick, ok := task.LastNonIdlingTick()
	require.True(t, ok)
	return tick
}

func TestTask_NewIsOpen(t *testing.T) {
	task := New(work, "example_task")

	assert.False(t, task.Initiated())
	assert.False(t, task.Completed())
	assert.Nil(t, task.Parent())

	_, ok := task.LastNonIdlingTick()
	assert.False(t, ok)
}

func TestTask_String(t *testing.T) {
	task := New(work, "task_c")
	assert.Equal(t, "task_c()[?->?]", task.String())

	task.Initiate(0)
	assert.Equal(t, "task_c()[0->?]", task.String())

	task.Complete(1)
	assert.Equal(t, "task_c()[0->1]", task.String())
}

func TestTask_StringWithArgs(t *testing.T) {
	task := New(idle, "idle_for", 5, "x")
	task.Initiate(2)
	assert.Equal(t, "idle_for(5,x)[2->?]", task.String())
}

func TestTask_AppendSubTask(t *testing.T) {
	task := New(work, "task_a")
	child := task.AppendSubTask(work, "task_b")

	assert.Same(t, task, child.Parent())
	assert.Equal(t, []*Task{child}, task.SubTasks())
}

func TestTask_LastNonIdlingTick(t *testing.T) {
	tests := []struct {
		name  string
		build func() *Task
		want  int64
	}{
		{
			name: "initiated",
			build: func() *Task {
				task := New(work, "example_task")
				task.Initiate(1)
				return task
			},
			want: 1,
		},
		{
			name: "completed",
			build: func() *Task {
				task := New(work, "example_task")
				task.Initiate(1)
				task.Complete(2)
				return task
			},
			want: 2,
		},
		{
			name: "open with initiated subtask",
			build: func() *Task {
				task := New(work, "example_task")
				task.Initiate(1)
				task.AppendSubTask(work, "example_sub_task").Initiate(2)
				return task
			},
			want: 2,
		},
		{
			name: "open with completed subtask",
			build: func() *Task {
				task := New(work, "example_task")
				task.Initiate(1)
				sub := task.AppendSubTask(work, "example_sub_task")
				sub.Initiate(2)
				sub.Complete(3)
				return task
			},
			want: 3,
		},
		{
			name: "completed with completed subtask",
			build: func() *Task {
				task := New(work, "example_task")
				task.Initiate(1)
				sub := task.AppendSubTask(work, "example_sub_task")
				sub.Initiate(2)
				sub.Complete(3)
				task.Complete(4)
				return task
			},
			want: 4,
		},
		{
			name: "open with idle subtask",
			build: func() *Task {
				task := New(work, "example_task")
				task.Initiate(1)
				sub := task.AppendSubTask(idle, "idle")
				sub.Initiate(2)
				sub.Complete(3)
				return task
			},
			want: 1,
		},
		{
			name: "completed with idle subtask",
			build: func() *Task {
				task := New(work, "example_task")
				task.Initiate(1)
				sub := task.AppendSubTask(idle, "idle")
				sub.Initiate(2)
				sub.Complete(3)
				task.Complete(4)
				return task
			},
			want: 4,
		},
		{
			name: "idle then initiated subtask",
			build: func() *Task {
				task := New(work, "example_task")
				task.Initiate(1)
				idling := task.AppendSubTask(idle, "idle")
				idling.Initiate(2)
				idling.Complete(3)
				task.AppendSubTask(work, "example_sub_task").Initiate(4)
				return task
			},
			want: 4,
		},
		{
			name: "completed subtask then idle",
			build: func() *Task {
				task := New(work, "example_task")
				task.Initiate(1)
				sub := task.AppendSubTask(work, "example_sub_task")
				sub.Initiate(2)
				sub.Complete(3)
				idling := task.AppendSubTask(idle, "idle")
				idling.Initiate(4)
				idling.Complete(5)
				return task
			},
			want: 3,
		},
		{
			name: "idle nested under completed subtask",
			build: func() *Task {
				task := New(work, "example_task")
				task.Initiate(1)
				sub := task.AppendSubTask(work, "example_sub_task")
				sub.Initiate(2)
				sub.Complete(3)
				idling := sub.AppendSubTask(idle, "idle")
				idling.Initiate(4)
				idling.Complete(5)
				return task
			},
			want: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, lastNonIdling(t, tt.build()))
		})
	}
}

func TestTask_Count(t *testing.T) {
	task := New(work, "task_a")
	b := task.AppendSubTask(work, "task_b")
	b.AppendSubTask(idle, "idle")
	task.AppendSubTask(idle, "idle")

	assert.Equal(t, 4, task.Count(nil))
	assert.Equal(t, 2, task.Count(func(t *Task) bool { return t.Idling() }))
	assert.Equal(t, 1, task.Count(func(t *Task) bool { return t.Method() == "task_b" }))
}
