package scenario

import (
	"fmt"
	"strings"
)

// Validate checks required fields and references between the scenario's
// own sections. Workflow references are checked by CheckWorkflows.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return loadErrorf(ErrCodeMissingField, "name", "name is required")
	}
	if len(s.Clocks) == 0 {
		return loadErrorf(ErrCodeMissingField, "clocks", "at least one clock is required")
	}

	clocks := make(map[string]ClockSpec, len(s.Clocks))
	for i, c := range s.Clocks {
		field := fmt.Sprintf("clocks[%d]", i)
		if c.Name == "" {
			return loadErrorf(ErrCodeMissingField, field+".name", "name is required")
		}
		if _, dup := clocks[c.Name]; dup {
			return loadErrorf(ErrCodeDuplicateName, field+".name", "clock %q declared twice", c.Name)
		}
		if c.MaxTicks != nil && *c.MaxTicks < 0 {
			return loadErrorf(ErrCodeInvalidValue, field+".max_ticks", "must be non-negative, got %d", *c.MaxTicks)
		}
		clocks[c.Name] = c
	}

	names := make(map[string]bool)
	links := graph{}
	for i, l := range s.Links {
		field := fmt.Sprintf("links[%d]", i)
		for _, ref := range []string{l.Child, l.Parent} {
			if _, ok := clocks[ref]; !ok {
				return loadErrorf(ErrCodeUnknownClock, field, "unknown clock %q", ref)
			}
		}
		if l.Child == l.Parent {
			return loadErrorf(ErrCodeInvalidValue, field, "clock %q cannot drive itself", l.Child)
		}
		if l.Granularity < 1 {
			return loadErrorf(ErrCodeInvalidValue, field+".granularity", "must be at least 1, got %d", l.Granularity)
		}
		links[l.Child] = append(links[l.Child], l.Parent)
		if l.Stopwatch {
			if names[l.Name()] {
				return loadErrorf(ErrCodeDuplicateName, field, "actor %q declared twice", l.Name())
			}
			names[l.Name()] = true
		}
	}

	if cycles := findCycles(links); len(cycles) > 0 {
		return loadErrorf(ErrCodeCallCycle, "links", "clock cycle: %s", strings.Join(cycles[0], " -> "))
	}

	for i, a := range s.Actors {
		field := fmt.Sprintf("actors[%d]", i)
		if a.Name == "" {
			return loadErrorf(ErrCodeMissingField, field+".name", "name is required")
		}
		if names[a.Name] {
			return loadErrorf(ErrCodeDuplicateName, field+".name", "actor %q declared twice", a.Name)
		}
		names[a.Name] = true
		if _, ok := clocks[a.Clock]; !ok {
			return loadErrorf(ErrCodeUnknownClock, field+".clock", "unknown clock %q", a.Clock)
		}
		for j, t := range a.Tasks {
			if _, _, ok := t.Target(); !ok {
				return loadErrorf(ErrCodeInvalidValue, fmt.Sprintf("%s.tasks[%d]", field, j),
					"task %q must be workflow.method", t.Call)
			}
		}
	}

	if err := s.validateDrive(clocks); err != nil {
		return err
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, clocks, names); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scenario) validateDrive(clocks map[string]ClockSpec) error {
	d := s.Drive
	if d.Clock == "" {
		return loadErrorf(ErrCodeMissingField, "drive.clock", "drive clock is required")
	}
	c, ok := clocks[d.Clock]
	if !ok {
		return loadErrorf(ErrCodeUnknownClock, "drive.clock", "unknown clock %q", d.Clock)
	}
	if d.Ticks != nil && *d.Ticks < 0 {
		return loadErrorf(ErrCodeInvalidValue, "drive.ticks", "must be non-negative, got %d", *d.Ticks)
	}
	if d.Until != nil {
		if _, ok := clocks[d.Until.Clock]; !ok {
			return loadErrorf(ErrCodeUnknownClock, "drive.until.clock", "unknown clock %q", d.Until.Clock)
		}
	}
	if d.Ticks == nil && d.Until == nil && c.MaxTicks == nil {
		return loadErrorf(ErrCodeUnboundedDrive, "drive",
			"clock %q has no max_ticks; give drive.ticks or drive.until", d.Clock)
	}
	return nil
}

func validateAssertion(index int, a Assertion, clocks map[string]ClockSpec, actors map[string]bool) error {
	field := fmt.Sprintf("assertions[%d]", index)
	requireActor := func() error {
		if a.Actor == "" {
			return loadErrorf(ErrCodeInvalidAssert, field+".actor", "actor is required for %s", a.Type)
		}
		return nil
	}

	switch a.Type {
	case AssertFinishTick:
		if err := requireActor(); err != nil {
			return err
		}
		if a.Task < 0 {
			return loadErrorf(ErrCodeInvalidAssert, field+".task", "task index must be non-negative")
		}
	case AssertLastTask:
		if err := requireActor(); err != nil {
			return err
		}
	case AssertClockTick:
		if _, ok := clocks[a.Clock]; !ok {
			return loadErrorf(ErrCodeInvalidAssert, field+".clock", "unknown clock %q", a.Clock)
		}
		if a.Tick == nil {
			return loadErrorf(ErrCodeInvalidAssert, field+".tick", "tick is required for %s", a.Type)
		}
	case AssertTaskCount:
		if a.Count == nil {
			return loadErrorf(ErrCodeInvalidAssert, field+".count", "count is required for %s", a.Type)
		}
	case AssertTraceContains:
		if a.Expect == "" {
			return loadErrorf(ErrCodeInvalidAssert, field+".expect", "expect is required for %s", a.Type)
		}
	case AssertLastTick:
		if a.Tick == nil {
			return loadErrorf(ErrCodeInvalidAssert, field+".tick", "tick is required for %s", a.Type)
		}
	case "":
		return loadErrorf(ErrCodeInvalidAssert, field+".type", "type is required")
	default:
		return loadErrorf(ErrCodeInvalidAssert, field+".type", "unknown assertion type %q", a.Type)
	}

	if a.Actor != "" && !actors[a.Actor] {
		return loadErrorf(ErrCodeInvalidAssert, field+".actor", "unknown actor %q", a.Actor)
	}
	return nil
}

// CheckWorkflows verifies that every allocated task names a method in lib.
func (s *Scenario) CheckWorkflows(lib *Library) error {
	for i, a := range s.Actors {
		for j, t := range a.Tasks {
			wf, method, _ := t.Target()
			if !lib.HasMethod(wf, method) {
				return loadErrorf(ErrCodeUnknownTarget, fmt.Sprintf("actors[%d].tasks[%d]", i, j),
					"unknown task %q", t.Call)
			}
		}
	}
	return nil
}

// shutdownOrder lists clock names so that every clock comes after all the
// clocks linked into it as children. Declaration order breaks ties.
func (s *Scenario) shutdownOrder() []string {
	pending := make(map[string]int, len(s.Clocks))
	parents := map[string][]string{}
	for _, l := range s.Links {
		pending[l.Parent]++
		parents[l.Child] = append(parents[l.Child], l.Parent)
	}

	order := make([]string, 0, len(s.Clocks))
	done := make(map[string]bool, len(s.Clocks))
	for len(order) < len(s.Clocks) {
		progressed := false
		for _, c := range s.Clocks {
			if done[c.Name] || pending[c.Name] > 0 {
				continue
			}
			done[c.Name] = true
			order = append(order, c.Name)
			for _, p := range parents[c.Name] {
				pending[p]--
			}
			progressed = true
		}
		if !progressed {
			// Only reachable for cyclic links, which Validate rejects.
			for _, c := range s.Clocks {
				if !done[c.Name] {
					done[c.Name] = true
					order = append(order, c.Name)
				}
			}
		}
	}
	return order
}
