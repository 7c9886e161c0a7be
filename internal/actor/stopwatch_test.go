package actor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/theatre/internal/clock"
)

func TestStopwatch_OneMinuteAfter60Seconds(t *testing.T) {
	seconds := clock.New(clock.WithName("seconds"), clock.WithMaxTicks(60))
	minutes := clock.New(clock.WithName("minutes"))

	sw := NewStopwatch("seconds_to_minutes", seconds, minutes, 60, nil)

	ctx := testContext(t)
	sw.Start(ctx)
	for i := 0; i < 60; i++ {
		seconds.Tick()
	}
	seconds.Tick()

	// The final parent tick is released before the stopwatch exits.
	require.NoError(t, sw.Shutdown(ctx))

	assert.Equal(t, int64(60), seconds.Current())
	assert.Equal(t, int64(1), minutes.Current())
}

func TestStopwatch_OneHourAfter3600Seconds(t *testing.T) {
	seconds := clock.New(clock.WithName("seconds"), clock.WithMaxTicks(3600))
	minutes := clock.New(clock.WithName("minutes"))
	hours := clock.New(clock.WithName("hours"))

	toMinutes := NewStopwatch("seconds_to_minutes", seconds, minutes, 60, nil)
	toHours := NewStopwatch("minutes_to_hours", minutes, hours, 60, nil)

	ctx := testContext(t)
	toMinutes.Start(ctx)
	toHours.Start(ctx)

	for i := 0; i < 3600; i++ {
		seconds.Tick()
	}

	toMinutes.InitiateShutdown()
	toHours.InitiateShutdown()
	require.NoError(t, toMinutes.WaitForShutdown(ctx))
	require.NoError(t, toHours.WaitForShutdown(ctx))

	assert.Equal(t, int64(3600), seconds.Current())
	assert.Equal(t, int64(60), minutes.Current())
	assert.Equal(t, int64(1), hours.Current())
}

func TestStopwatch_30MinutesAnd0HoursAfter1800Seconds(t *testing.T) {
	seconds := clock.New(clock.WithName("seconds"), clock.WithMaxTicks(3600))
	minutes := clock.New(clock.WithName("minutes"))
	hours := clock.New(clock.WithName("hours"))

	toMinutes := NewStopwatch("seconds_to_minutes", seconds, minutes, 60, nil)
	toHours := NewStopwatch("minutes_to_hours", minutes, hours, 60, nil)

	ctx := testContext(t)
	toMinutes.Start(ctx)
	toHours.Start(ctx)

	for i := 0; i < 1800; i++ {
		seconds.Tick()
	}
	seconds.Shutdown()

	toMinutes.InitiateShutdown()
	toHours.InitiateShutdown()
	require.NoError(t, toMinutes.WaitForShutdown(ctx))
	require.NoError(t, toHours.WaitForShutdown(ctx))

	assert.Equal(t, int64(1800), seconds.Current())
	assert.Equal(t, int64(30), minutes.Current())
	assert.Equal(t, int64(0), hours.Current())
}

func TestStopwatch_ClampsParentOnExit(t *testing.T) {
	seconds := clock.New(clock.WithMaxTicks(90))
	minutes := clock.New()

	sw := NewStopwatch("seconds_to_minutes", seconds, minutes, 60, nil)

	ctx := testContext(t)
	sw.Start(ctx)
	seconds.Start(ctx)
	require.NoError(t, sw.WaitForShutdown(ctx))

	limit, ok := minutes.MaxTicks()
	require.True(t, ok)
	assert.Equal(t, int64(1), limit)
	assert.False(t, minutes.WillTickAgain())
}

func TestStopwatch_Precision(t *testing.T) {
	seconds := clock.New(clock.WithMaxTicks(120))
	minutes := clock.New()

	// One turn for issue_tick plus 54 idles: a 55 tick period.
	sw := NewStopwatch("seconds_to_minutes", seconds, minutes, 60, clock.Offset(-5))

	ctx := testContext(t)
	sw.Start(ctx)
	seconds.Start(ctx)
	require.NoError(t, sw.WaitForShutdown(ctx))

	assert.Equal(t, int64(2), minutes.Current())
}

func TestStopwatch_RunsAllocatedWorkFirst(t *testing.T) {
	seconds := clock.New(clock.WithMaxTicks(10))
	minutes := clock.New()

	sw := NewStopwatch("seconds_to_minutes", seconds, minutes, 5, nil)
	idling := NewIdling()
	task := sw.AllocateTask(idling, MethodIdleFor, 2)

	ctx := testContext(t)
	sw.Start(ctx)
	seconds.Start(ctx)
	require.NoError(t, sw.WaitForShutdown(ctx))

	assert.Equal(t, "idle_for(2)[0->2]", task.String())

	// Periods of 5 from tick 2: the parent ticks at 7 only.
	assert.Equal(t, int64(1), minutes.Current())
}

// pairWorkflow is task_a calling task_b, one tick each.
type pairWorkflow struct {
	wf *Workflow
}

func newPairWorkflow() *pairWorkflow {
	return &pairWorkflow{
		wf: NewWorkflow("pair", WithCost("task_a", 1), WithCost("task_b", 1)),
	}
}

func (p *pairWorkflow) Workflow() *Workflow { return p.wf }

func (p *pairWorkflow) Dispatch(ctx context.Context, method string, _ []any) error {
	switch method {
	case "task_a":
		return Invoke(ctx, p, "task_b")
	case "task_b":
		return nil
	}
	return &UnknownMethodError{Workflow: p.wf.Name(), Method: method}
}

func TestActor_NonBlockingUnderBridges(t *testing.T) {
	seconds := clock.New(clock.WithName("seconds"), clock.WithMaxTicks(3600))
	minutes := clock.New(clock.WithName("minutes"))
	hours := clock.New(clock.WithName("hours"))
	clock.Link(seconds, minutes, 60)
	clock.Link(minutes, hours, 60)

	a := New("0", minutes)
	a.AllocateTask(newPairWorkflow(), "task_a")
	a.InitiateShutdown()

	ctx := testContext(t)
	a.Start(ctx)

	for hours.Current() < 1 {
		seconds.Tick()
	}
	require.NoError(t, a.WaitForShutdown(ctx))

	assert.Equal(t, int64(2), finish(t, a.LastTask()))
	assert.Equal(t, int64(3600), seconds.Current())
	assert.Equal(t, int64(60), minutes.Current())
	assert.Equal(t, int64(1), hours.Current())
}
