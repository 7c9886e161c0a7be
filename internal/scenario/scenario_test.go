package scenario

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValidFile(t *testing.T) {
	sc, err := Load("testdata/scenarios/office.yaml")
	require.NoError(t, err)

	assert.Equal(t, "office", sc.Name)
	assert.Equal(t, "run-office", sc.RunID)
	require.Len(t, sc.Clocks, 1)
	require.NotNil(t, sc.Clocks[0].MaxTicks)
	assert.Equal(t, int64(8), *sc.Clocks[0].MaxTicks)

	require.Len(t, sc.Actors, 2)
	clerk := sc.Actors[0]
	assert.Equal(t, "clerk", clerk.Name)
	assert.True(t, clerk.Shutdown)
	assert.Equal(t, []TaskSpec{{Call: "office.review"}, {Call: "example.task_c"}}, clerk.Tasks)
	assert.False(t, sc.Actors[1].Shutdown)

	assert.Len(t, sc.Assertions, 9)
	assert.Equal(t, AssertFinishTick, sc.Assertions[0].Type)
}

func TestLoad_TaskWithArgs(t *testing.T) {
	sc, err := Load("testdata/scenarios/truncated.yaml")
	require.NoError(t, err)

	require.Len(t, sc.Actors[0].Tasks, 1)
	task := sc.Actors[0].Tasks[0]
	assert.Equal(t, "idling.idle_for", task.Call)
	assert.Equal(t, []any{5}, task.Args)

	wf, method, ok := task.Target()
	assert.True(t, ok)
	assert.Equal(t, "idling", wf)
	assert.Equal(t, "idle_for", method)
}

func TestLoad_Links(t *testing.T) {
	sc, err := Load("testdata/scenarios/clockwork.yaml")
	require.NoError(t, err)

	require.Len(t, sc.Links, 2)
	assert.False(t, sc.Links[0].Stopwatch)
	assert.True(t, sc.Links[1].Stopwatch)
	assert.Equal(t, "minutes_to_hours", sc.Links[1].Name())
	assert.Equal(t, []string{"seconds", "minutes", "hours"}, sc.shutdownOrder())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/scenario.yaml")
	requireCode(t, err, ErrCodeReadFailed)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoad_PathInError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("clocks: []\n"), 0644))

	_, err := Load(path)
	requireCode(t, err, ErrCodeMissingField)
	assert.Contains(t, err.Error(), path)
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte(`
name: typo
clockz:
  - name: c
`))
	requireCode(t, err, ErrCodeParseFailed)
	assert.Contains(t, err.Error(), "clockz")
}

func TestParse_ValidationErrors(t *testing.T) {
	const base = `
name: s
clocks:
  - name: c
    max_ticks: 3
  - name: d
`
	tests := []struct {
		name string
		yaml string
		code string
	}{
		{
			name: "missing name",
			yaml: "clocks: [{name: c, max_ticks: 1}]\ndrive: {clock: c}\n",
			code: ErrCodeMissingField,
		},
		{
			name: "no clocks",
			yaml: "name: s\ndrive: {clock: c}\n",
			code: ErrCodeMissingField,
		},
		{
			name: "duplicate clock",
			yaml: "name: s\nclocks: [{name: c}, {name: c}]\ndrive: {clock: c, ticks: 1}\n",
			code: ErrCodeDuplicateName,
		},
		{
			name: "negative max ticks",
			yaml: "name: s\nclocks: [{name: c, max_ticks: -1}]\ndrive: {clock: c}\n",
			code: ErrCodeInvalidValue,
		},
		{
			name: "link to unknown clock",
			yaml: base + "links: [{child: c, parent: ghost, granularity: 2}]\ndrive: {clock: c}\n",
			code: ErrCodeUnknownClock,
		},
		{
			name: "self link",
			yaml: base + "links: [{child: c, parent: c, granularity: 2}]\ndrive: {clock: c}\n",
			code: ErrCodeInvalidValue,
		},
		{
			name: "zero granularity",
			yaml: base + "links: [{child: c, parent: d, granularity: 0}]\ndrive: {clock: c}\n",
			code: ErrCodeInvalidValue,
		},
		{
			name: "link cycle",
			yaml: base + "links: [{child: c, parent: d, granularity: 2}, {child: d, parent: c, granularity: 2}]\ndrive: {clock: c}\n",
			code: ErrCodeCallCycle,
		},
		{
			name: "actor on unknown clock",
			yaml: base + "actors: [{name: a, clock: ghost}]\ndrive: {clock: c}\n",
			code: ErrCodeUnknownClock,
		},
		{
			name: "duplicate actor",
			yaml: base + "actors: [{name: a, clock: c}, {name: a, clock: d}]\ndrive: {clock: c}\n",
			code: ErrCodeDuplicateName,
		},
		{
			name: "actor named like a stopwatch",
			yaml: base + "links: [{child: c, parent: d, granularity: 2, stopwatch: true}]\nactors: [{name: c_to_d, clock: c}]\ndrive: {clock: c}\n",
			code: ErrCodeDuplicateName,
		},
		{
			name: "task without workflow",
			yaml: base + "actors: [{name: a, clock: c, tasks: [task_a]}]\ndrive: {clock: c}\n",
			code: ErrCodeInvalidValue,
		},
		{
			name: "missing drive",
			yaml: base,
			code: ErrCodeMissingField,
		},
		{
			name: "drive unknown clock",
			yaml: base + "drive: {clock: ghost}\n",
			code: ErrCodeUnknownClock,
		},
		{
			name: "unbounded drive",
			yaml: base + "drive: {clock: d}\n",
			code: ErrCodeUnboundedDrive,
		},
		{
			name: "negative drive ticks",
			yaml: base + "drive: {clock: d, ticks: -1}\n",
			code: ErrCodeInvalidValue,
		},
		{
			name: "until unknown clock",
			yaml: base + "drive: {clock: d, until: {clock: ghost, tick: 1}}\n",
			code: ErrCodeUnknownClock,
		},
		{
			name: "unknown assertion type",
			yaml: base + "drive: {clock: c}\nassertions: [{type: eventually}]\n",
			code: ErrCodeInvalidAssert,
		},
		{
			name: "assertion without type",
			yaml: base + "drive: {clock: c}\nassertions: [{tick: 1}]\n",
			code: ErrCodeInvalidAssert,
		},
		{
			name: "finish_tick without actor",
			yaml: base + "drive: {clock: c}\nassertions: [{type: finish_tick, tick: 1}]\n",
			code: ErrCodeInvalidAssert,
		},
		{
			name: "assertion on unknown actor",
			yaml: base + "drive: {clock: c}\nassertions: [{type: last_tick, actor: ghost, tick: 1}]\n",
			code: ErrCodeInvalidAssert,
		},
		{
			name: "clock_tick on unknown clock",
			yaml: base + "drive: {clock: c}\nassertions: [{type: clock_tick, clock: ghost, tick: 1}]\n",
			code: ErrCodeInvalidAssert,
		},
		{
			name: "task_count without count",
			yaml: base + "drive: {clock: c}\nassertions: [{type: task_count}]\n",
			code: ErrCodeInvalidAssert,
		},
		{
			name: "trace_contains without expect",
			yaml: base + "drive: {clock: c}\nassertions: [{type: trace_contains}]\n",
			code: ErrCodeInvalidAssert,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			requireCode(t, err, tt.code)
		})
	}
}

func TestParse_BoundedByDriveTicks(t *testing.T) {
	sc, err := Parse([]byte(`
name: s
clocks: [{name: c}]
drive: {clock: c, ticks: 5}
`))
	require.NoError(t, err)
	require.NotNil(t, sc.Drive.Ticks)
	assert.Equal(t, int64(5), *sc.Drive.Ticks)
	assert.Nil(t, sc.Clocks[0].MaxTicks)
}

func TestCheckWorkflows(t *testing.T) {
	lib, err := CompileWorkflows("testdata/workflows")
	require.NoError(t, err)

	sc, err := Parse([]byte(`
name: s
clocks: [{name: c, max_ticks: 3}]
actors:
  - name: a
    clock: c
    tasks: [example.task_a, idling.idle, example.review]
drive: {clock: c}
`))
	require.NoError(t, err)

	err = sc.CheckWorkflows(lib)
	requireCode(t, err, ErrCodeUnknownTarget)
	assert.Contains(t, err.Error(), "actors[0].tasks[2]")
	assert.Contains(t, err.Error(), "example.review")
}

func TestShutdownOrder_ChildrenFirst(t *testing.T) {
	sc := &Scenario{
		Clocks: []ClockSpec{{Name: "days"}, {Name: "hours"}, {Name: "minutes"}, {Name: "other"}},
		Links: []LinkSpec{
			{Child: "hours", Parent: "days", Granularity: 24},
			{Child: "minutes", Parent: "hours", Granularity: 60},
		},
	}
	assert.Equal(t, []string{"minutes", "other", "hours", "days"}, sc.shutdownOrder())
}

func TestErrorCode_Generic(t *testing.T) {
	assert.Equal(t, ErrCodeGeneric, ErrorCode(assert.AnError))
}

func TestLoadError_Format(t *testing.T) {
	err := loadErrorf(ErrCodeUnknownClock, "drive.clock", "unknown clock %q", "x")
	assert.Equal(t, `E006: drive.clock: unknown clock "x"`, err.Error())
}
