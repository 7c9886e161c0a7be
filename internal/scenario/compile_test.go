package scenario

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/theatre/internal/actor"
)

func compileTestWorkflows(t *testing.T, src string) (*Library, error) {
	t.Helper()
	return CompileString("test.cue", src)
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, ErrorCode(err), "error: %v", err)
}

func TestCompileWorkflows_Directory(t *testing.T) {
	lib, err := CompileWorkflows("testdata/workflows")
	require.NoError(t, err)

	assert.Equal(t, []string{"example", "office"}, lib.Names())

	example, ok := lib.Lookup("example")
	require.True(t, ok)
	assert.Equal(t, []string{"task_a", "task_b", "task_c"}, example.MethodNames())
	assert.Equal(t, []Step{{Kind: StepCall, Method: "task_b"}}, example.Methods["task_a"].Steps)
	assert.Equal(t, []Step{{Kind: StepIdle, N: 1}}, example.Methods["task_b"].Steps)
	assert.Equal(t, []Step{{Kind: StepFail, Message: "an expected failure"}}, example.Methods["task_c"].Steps)

	office, ok := lib.Lookup("office")
	require.True(t, ok)
	assert.Equal(t, []string{"example"}, office.Nested)
	review := office.Methods["review"]
	assert.Equal(t, int64(2), review.Cost)
	assert.Equal(t, []Step{
		{Kind: StepCall, Workflow: "example", Method: "task_a"},
		{Kind: StepIdleFor, N: 2},
	}, review.Steps)
}

func TestCompileWorkflows_MissingDirectory(t *testing.T) {
	_, err := CompileWorkflows(filepath.Join(t.TempDir(), "missing"))
	requireCode(t, err, ErrCodeReadFailed)
}

func TestCompileWorkflows_NotADirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.cue")
	require.NoError(t, os.WriteFile(path, []byte("package x\n"), 0644))

	_, err := CompileWorkflows(path)
	requireCode(t, err, ErrCodeReadFailed)
}

func TestCompileWorkflows_EmptyDirectory(t *testing.T) {
	_, err := CompileWorkflows(t.TempDir())
	requireCode(t, err, ErrCodeNoWorkflows)
}

func TestCompileWorkflows_CallCycle(t *testing.T) {
	_, err := CompileWorkflows("testdata/broken")
	requireCode(t, err, ErrCodeCallCycle)
	assert.Contains(t, err.Error(), "loop.ping")
	assert.Contains(t, err.Error(), "loop.pong")
}

func TestCompileString_SyntaxError(t *testing.T) {
	_, err := compileTestWorkflows(t, `workflow: {`)
	requireCode(t, err, ErrCodeParseFailed)

	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.True(t, le.Pos.IsValid())
	assert.Contains(t, err.Error(), "test.cue")
}

func TestCompileString_NoWorkflows(t *testing.T) {
	_, err := compileTestWorkflows(t, `other: 1`)
	requireCode(t, err, ErrCodeNoWorkflows)
}

func TestCompileString_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code string
	}{
		{
			name: "no methods",
			src:  `workflow: w: {}`,
			code: ErrCodeMissingField,
		},
		{
			name: "unknown local method",
			src:  `workflow: w: method: m: steps: [{call: "missing"}]`,
			code: ErrCodeUnknownTarget,
		},
		{
			name: "call into workflow that is not nested",
			src: `
workflow: a: method: m: steps: [{call: "b.n"}]
workflow: b: method: n: {}
`,
			code: ErrCodeUnknownTarget,
		},
		{
			name: "unknown nested method",
			src: `
workflow: a: {
	nested: ["b"]
	method: m: steps: [{call: "b.missing"}]
}
workflow: b: method: n: {}
`,
			code: ErrCodeUnknownTarget,
		},
		{
			name: "unknown nested workflow",
			src:  `workflow: a: {nested: ["ghost"], method: m: {}}`,
			code: ErrCodeUnknownTarget,
		},
		{
			name: "nested twice",
			src: `
workflow: a: {nested: ["b", "b"], method: m: {}}
workflow: b: method: n: {}
`,
			code: ErrCodeDuplicateName,
		},
		{
			name: "nesting cycle",
			src: `
workflow: a: {nested: ["b"], method: m: {}}
workflow: b: {nested: ["a"], method: n: {}}
`,
			code: ErrCodeCallCycle,
		},
		{
			name: "self call",
			src:  `workflow: w: method: m: steps: [{call: "m"}]`,
			code: ErrCodeCallCycle,
		},
		{
			name: "negative cost",
			src:  `workflow: w: method: m: cost: -1`,
			code: ErrCodeInvalidValue,
		},
		{
			name: "negative idle",
			src:  `workflow: w: method: m: steps: [{idle: -2}]`,
			code: ErrCodeInvalidValue,
		},
		{
			name: "two keys in one step",
			src:  `workflow: w: method: m: steps: [{idle: 1, fail: "x"}]`,
			code: ErrCodeInvalidValue,
		},
		{
			name: "unknown step kind",
			src:  `workflow: w: method: m: steps: [{sleep: 1}]`,
			code: ErrCodeInvalidValue,
		},
		{
			name: "string cost",
			src:  `workflow: w: method: m: cost: "one"`,
			code: ErrCodeInvalidValue,
		},
		{
			name: "empty fail message",
			src:  `workflow: w: method: m: steps: [{fail: ""}]`,
			code: ErrCodeMissingField,
		},
		{
			name: "reserved name",
			src:  `workflow: idling: method: idle: {}`,
			code: ErrCodeDuplicateName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileTestWorkflows(t, tt.src)
			requireCode(t, err, tt.code)
		})
	}
}

func TestLibrary_HasMethod(t *testing.T) {
	lib, err := CompileWorkflows("testdata/workflows")
	require.NoError(t, err)

	assert.True(t, lib.HasMethod("example", "task_a"))
	assert.True(t, lib.HasMethod("office", "review"))
	assert.True(t, lib.HasMethod(BuiltinIdling, actor.MethodIdle))
	assert.True(t, lib.HasMethod(BuiltinIdling, actor.MethodIdleFor))

	assert.False(t, lib.HasMethod("example", "review"))
	assert.False(t, lib.HasMethod("ghost", "task_a"))
	assert.False(t, lib.HasMethod(BuiltinIdling, "task_a"))
}

func TestLibrary_InstantiateIsFresh(t *testing.T) {
	lib, err := CompileWorkflows("testdata/workflows")
	require.NoError(t, err)

	first, err := lib.Instantiate("office")
	require.NoError(t, err)
	second, err := lib.Instantiate("office")
	require.NoError(t, err)

	assert.NotSame(t, first.Workflow(), second.Workflow())
	assert.NotSame(t, first.(*Scripted).Nested("example"), second.(*Scripted).Nested("example"))
	assert.Equal(t, int64(2), first.Workflow().Cost("review"))

	idle, err := lib.Instantiate(BuiltinIdling)
	require.NoError(t, err)
	assert.IsType(t, &actor.Idling{}, idle)

	_, err = lib.Instantiate("ghost")
	requireCode(t, err, ErrCodeUnknownTarget)
}

func TestScripted_UnknownMethod(t *testing.T) {
	lib, err := CompileWorkflows("testdata/workflows")
	require.NoError(t, err)

	inst, err := lib.Instantiate("example")
	require.NoError(t, err)

	err = inst.Dispatch(context.Background(), "review", nil)
	var unknown *actor.UnknownMethodError
	assert.ErrorAs(t, err, &unknown)
}

func TestScripted_FailStep(t *testing.T) {
	lib, err := CompileWorkflows("testdata/workflows")
	require.NoError(t, err)

	inst, err := lib.Instantiate("example")
	require.NoError(t, err)

	// Unbound workflows dispatch directly, without an actor.
	err = inst.Dispatch(context.Background(), "task_c", nil)
	var script *ScriptError
	require.ErrorAs(t, err, &script)
	assert.Equal(t, "example.task_c: an expected failure", script.Error())
}

func TestStep_String(t *testing.T) {
	assert.Equal(t, "call task_b", Step{Kind: StepCall, Method: "task_b"}.String())
	assert.Equal(t, "call example.task_a", Step{Kind: StepCall, Workflow: "example", Method: "task_a"}.String())
	assert.Equal(t, "idle 2", Step{Kind: StepIdle, N: 2}.String())
	assert.Equal(t, "idle_for 3", Step{Kind: StepIdleFor, N: 3}.String())
	assert.Equal(t, `fail "boom"`, Step{Kind: StepFail, Message: "boom"}.String())
}

func TestFindCycles(t *testing.T) {
	g := graph{
		"a": {"b"},
		"b": {"c"},
		"c": {"a"},
		"d": {"d"},
		"e": {"a"},
	}
	cycles := findCycles(g)
	require.Len(t, cycles, 2)
	assert.Equal(t, []string{"a", "b", "c", "a"}, cycles[0])
	assert.Equal(t, []string{"d", "d"}, cycles[1])

	assert.Empty(t, findCycles(graph{"a": {"b"}, "b": nil}))
}
