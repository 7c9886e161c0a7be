package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const testWorkflows = `
package workflows

workflow: example: {
	method: {
		task_a: {cost: 1, steps: [{call: "task_b"}]}
		task_b: {cost: 1, steps: [{idle: 1}]}
		task_c: {cost: 1, steps: [{fail: "an expected failure"}]}
	}
}
`

const passingScenario = `
name: nested
run_id: run-nested
clocks: [{name: c, max_ticks: 10}]
actors:
  - name: "0"
    clock: c
    tasks: [example.task_a]
    shutdown: true
drive: {clock: c}
assertions:
  - {type: finish_tick, actor: "0", tick: 3}
`

const failingScenario = `
name: wrong
run_id: run-wrong
clocks: [{name: c, max_ticks: 4}]
actors:
  - name: "0"
    clock: c
    tasks: [example.task_c]
    shutdown: true
drive: {clock: c}
assertions:
  - {type: finish_tick, actor: "0", tick: 3}
`

const nestedGolden = `scenario nested
clock c c(10 of 10)
a_0
--+-> task_a()[0->3]
  +-+-> task_b()[1->3]
    +---> idle()[2->3]
`

// createTestWorkflows writes the example workflows into dir/workflows.
func createTestWorkflows(t *testing.T, dir string) string {
	t.Helper()
	workflowsDir := filepath.Join(dir, "workflows")
	require.NoError(t, os.MkdirAll(workflowsDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(workflowsDir, "example.cue"), []byte(testWorkflows), 0644))
	return workflowsDir
}

// createTestScenario writes a scenario file into dir/scenarios.
func createTestScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	scenariosDir := filepath.Join(dir, "scenarios")
	require.NoError(t, os.MkdirAll(scenariosDir, 0755))
	path := filepath.Join(scenariosDir, name+".yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs cmd with args and returns its stdout.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
