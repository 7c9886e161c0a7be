package scenario

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario describes one simulation run: its clocks, how they are
// linked, the actors and their directions, how the run is driven, and
// what must hold afterwards.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario demonstrates.
	Description string `yaml:"description,omitempty"`

	Clocks     []ClockSpec `yaml:"clocks"`
	Links      []LinkSpec  `yaml:"links,omitempty"`
	Actors     []ActorSpec `yaml:"actors"`
	Drive      DriveSpec   `yaml:"drive"`
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// RunID is an optional fixed run id for deterministic exports.
	RunID string `yaml:"run_id,omitempty"`
}

// ClockSpec declares a clock. A nil MaxTicks means unbounded.
type ClockSpec struct {
	Name     string `yaml:"name"`
	MaxTicks *int64 `yaml:"max_ticks,omitempty"`
}

// LinkSpec makes Parent tick once per Granularity ticks of Child, either
// through a bridge listener or, with Stopwatch set, through a stopwatch
// actor on the child clock.
type LinkSpec struct {
	Child           string `yaml:"child"`
	Parent          string `yaml:"parent"`
	Granularity     int64  `yaml:"granularity"`
	PrecisionOffset int64  `yaml:"precision_offset,omitempty"`
	Stopwatch       bool   `yaml:"stopwatch,omitempty"`
}

// Name is the stopwatch actor name for a stopwatch link.
func (l LinkSpec) Name() string {
	return l.Child + "_to_" + l.Parent
}

// ActorSpec declares an actor and the tasks allocated to it before the run.
type ActorSpec struct {
	Name  string     `yaml:"name"`
	Clock string     `yaml:"clock"`
	Tasks []TaskSpec `yaml:"tasks,omitempty"`

	// Shutdown asks the actor to stop once its tasks have drained instead
	// of idling until the clock runs out.
	Shutdown bool `yaml:"shutdown,omitempty"`
}

// TaskSpec is a "workflow.method" task, optionally with arguments.
// In YAML it is either a plain string or a {call, args} mapping.
type TaskSpec struct {
	Call string `yaml:"call"`
	Args []any  `yaml:"args,omitempty"`
}

// UnmarshalYAML accepts the scalar shorthand.
func (t *TaskSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		t.Call = node.Value
		return nil
	}
	type plain TaskSpec
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*t = TaskSpec(p)
	return nil
}

// Target splits Call into workflow and method.
func (t TaskSpec) Target() (workflow, method string, ok bool) {
	workflow, method, ok = strings.Cut(t.Call, ".")
	return workflow, method, ok && workflow != "" && method != ""
}

// DriveSpec says how the run is driven. With neither Ticks nor Until, the
// drive clock must be bounded and runs to completion on its own driver.
type DriveSpec struct {
	Clock string     `yaml:"clock"`
	Ticks *int64     `yaml:"ticks,omitempty"`
	Until *UntilSpec `yaml:"until,omitempty"`
}

// UntilSpec stops a manual drive once Clock has reached Tick.
type UntilSpec struct {
	Clock string `yaml:"clock"`
	Tick  int64  `yaml:"tick"`
}

// Assertion type constants.
const (
	AssertFinishTick    = "finish_tick"
	AssertLastTask      = "last_task"
	AssertClockTick     = "clock_tick"
	AssertTaskCount     = "task_count"
	AssertTraceContains = "trace_contains"
	AssertLastTick      = "last_tick"
)

// Assertion validates the outcome of a run.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Actor scopes the assertion; empty means the whole cast where that
	// makes sense (task_count, trace_contains, last_tick).
	Actor string `yaml:"actor,omitempty"`

	// Clock is the subject of clock_tick.
	Clock string `yaml:"clock,omitempty"`

	// Task indexes the actor's allocated tasks (finish_tick).
	Task int `yaml:"task,omitempty"`

	// Method filters task_count by method name.
	Method string `yaml:"method,omitempty"`

	// Expect is the rendered task, e.g. "task_b()[0->2]" (last_task,
	// trace_contains).
	Expect string `yaml:"expect,omitempty"`

	// Tick is the expected tick (finish_tick, clock_tick, last_tick). For
	// finish_tick, a missing tick asserts the task never finished.
	Tick *int64 `yaml:"tick,omitempty"`

	// Count is the expected count (task_count).
	Count *int `yaml:"count,omitempty"`
}

// Load reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or fails validation.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, loadErrorf(ErrCodeReadFailed, "", "failed to read scenario file: %v", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Parse decodes and validates scenario YAML.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&sc); err != nil {
		return nil, loadErrorf(ErrCodeParseFailed, "", "failed to parse YAML: %v", err)
	}

	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}
