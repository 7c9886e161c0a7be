package scenario

import (
	"fmt"
	"strings"
)

// validate checks every cross-reference in the library. It stops at the
// first problem.
func (l *Library) validate() error {
	nesting := graph{}
	calls := graph{}

	for _, name := range l.Names() {
		def := l.defs[name]
		field := "workflow." + name

		if len(def.Methods) == 0 {
			return loadErrorf(ErrCodeMissingField, field+".method", "at least one method is required")
		}

		nested := make(map[string]bool, len(def.Nested))
		nesting[name] = nil
		for _, child := range def.Nested {
			if _, ok := l.defs[child]; !ok {
				return loadErrorf(ErrCodeUnknownTarget, field+".nested", "unknown workflow %q", child)
			}
			if nested[child] {
				return loadErrorf(ErrCodeDuplicateName, field+".nested", "%q nested twice", child)
			}
			nested[child] = true
			nesting[name] = append(nesting[name], child)
		}

		for _, mname := range def.MethodNames() {
			m := def.Methods[mname]
			node := name + "." + mname
			mfield := field + ".method." + mname
			calls[node] = nil

			if m.Cost < 0 {
				return loadErrorf(ErrCodeInvalidValue, mfield+".cost", "cost must be non-negative, got %d", m.Cost)
			}

			for i, step := range m.Steps {
				sfield := fmt.Sprintf("%s.steps[%d]", mfield, i)
				switch step.Kind {
				case StepCall:
					target := name
					if step.Workflow != "" {
						if !nested[step.Workflow] {
							return loadErrorf(ErrCodeUnknownTarget, sfield,
								"%q is not a nested workflow of %s", step.Workflow, name)
						}
						target = step.Workflow
					}
					if _, ok := l.defs[target].Methods[step.Method]; !ok {
						return loadErrorf(ErrCodeUnknownTarget, sfield,
							"unknown method %s.%s", target, step.Method)
					}
					calls[node] = append(calls[node], target+"."+step.Method)
				case StepIdle, StepIdleFor:
					if step.N < 0 {
						return loadErrorf(ErrCodeInvalidValue, sfield, "%s must be non-negative, got %d", step.Kind, step.N)
					}
				case StepFail:
					if step.Message == "" {
						return loadErrorf(ErrCodeMissingField, sfield, "fail message is required")
					}
				default:
					return loadErrorf(ErrCodeInvalidValue, sfield, "unknown step kind %q", step.Kind)
				}
			}
		}
	}

	if cycles := findCycles(nesting); len(cycles) > 0 {
		return loadErrorf(ErrCodeCallCycle, "nested", "nesting cycle: %s", strings.Join(cycles[0], " -> "))
	}
	if cycles := findCycles(calls); len(cycles) > 0 {
		return loadErrorf(ErrCodeCallCycle, "steps", "call cycle: %s", strings.Join(cycles[0], " -> "))
	}
	return nil
}
