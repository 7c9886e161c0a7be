package scenario

import (
	"context"
	"fmt"
	"sort"

	"github.com/roach88/theatre/internal/actor"
)

// BuiltinIdling is the workflow name scenarios use to allocate idle tasks
// directly, e.g. "idling.idle_for". It cannot be redefined.
const BuiltinIdling = "idling"

// StepKind identifies what a scripted step does.
type StepKind string

// Step kinds.
const (
	StepCall    StepKind = "call"
	StepIdle    StepKind = "idle"
	StepIdleFor StepKind = "idle_for"
	StepFail    StepKind = "fail"
)

// Step is one instruction of a scripted method.
type Step struct {
	Kind StepKind

	// Workflow is the nested workflow a call targets; empty for the
	// workflow's own methods.
	Workflow string
	Method   string

	// N is the idle count for idle and idle_for.
	N int64

	// Message is the error text of a fail step.
	Message string
}

func (s Step) String() string {
	switch s.Kind {
	case StepCall:
		if s.Workflow != "" {
			return fmt.Sprintf("call %s.%s", s.Workflow, s.Method)
		}
		return "call " + s.Method
	case StepIdle, StepIdleFor:
		return fmt.Sprintf("%s %d", s.Kind, s.N)
	case StepFail:
		return fmt.Sprintf("fail %q", s.Message)
	}
	return string(s.Kind)
}

// MethodDef is a compiled scripted method.
type MethodDef struct {
	Name  string
	Cost  int64
	Steps []Step
}

// WorkflowDef is a compiled workflow definition.
type WorkflowDef struct {
	Name    string
	Nested  []string
	Methods map[string]*MethodDef
}

// MethodNames returns the sorted method names.
func (d *WorkflowDef) MethodNames() []string {
	names := make([]string, 0, len(d.Methods))
	for name := range d.Methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Library is a validated set of workflow definitions.
type Library struct {
	defs map[string]*WorkflowDef
}

// NewLibrary validates defs and returns a library of them.
func NewLibrary(defs ...*WorkflowDef) (*Library, error) {
	lib := &Library{defs: make(map[string]*WorkflowDef, len(defs))}
	for _, d := range defs {
		if d.Name == BuiltinIdling {
			return nil, loadErrorf(ErrCodeDuplicateName, "workflow."+d.Name, "%q is reserved", d.Name)
		}
		if _, dup := lib.defs[d.Name]; dup {
			return nil, loadErrorf(ErrCodeDuplicateName, "workflow."+d.Name, "workflow defined twice")
		}
		lib.defs[d.Name] = d
	}
	if err := lib.validate(); err != nil {
		return nil, err
	}
	return lib, nil
}

// Names returns the sorted workflow names.
func (l *Library) Names() []string {
	names := make([]string, 0, len(l.defs))
	for name := range l.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the named definition.
func (l *Library) Lookup(name string) (*WorkflowDef, bool) {
	d, ok := l.defs[name]
	return d, ok
}

// HasMethod reports whether workflow.method can be allocated as a task.
// The built-in idling workflow is always available.
func (l *Library) HasMethod(workflow, method string) bool {
	if workflow == BuiltinIdling {
		switch method {
		case actor.MethodIdle, actor.MethodIdleFor:
			return true
		}
		return false
	}
	d, ok := l.defs[workflow]
	if !ok {
		return false
	}
	_, ok = d.Methods[method]
	return ok
}

// Instantiate creates a fresh scripted workflow with fresh nested
// instances. Each instance binds to the first actor that runs it.
func (l *Library) Instantiate(name string) (actor.Schedulable, error) {
	if name == BuiltinIdling {
		return actor.NewIdling(), nil
	}
	return l.instantiate(name)
}

func (l *Library) instantiate(name string) (*Scripted, error) {
	def, ok := l.defs[name]
	if !ok {
		return nil, loadErrorf(ErrCodeUnknownTarget, "workflow", "unknown workflow %q", name)
	}

	s := &Scripted{
		def:    def,
		idling: actor.NewIdling(),
		nested: make(map[string]*Scripted, len(def.Nested)),
	}

	opts := []actor.WorkflowOption{actor.WithNested(s.idling)}
	for _, child := range def.Nested {
		inst, err := l.instantiate(child)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		s.nested[child] = inst
		opts = append(opts, actor.WithNested(inst))
	}
	for _, m := range def.Methods {
		opts = append(opts, actor.WithCost(m.Name, m.Cost))
	}
	s.wf = actor.NewWorkflow(name, opts...)
	return s, nil
}

// Scripted is a workflow instance whose methods run compiled steps.
type Scripted struct {
	def    *WorkflowDef
	wf     *actor.Workflow
	idling *actor.Idling
	nested map[string]*Scripted
}

// Workflow implements actor.Schedulable.
func (s *Scripted) Workflow() *actor.Workflow {
	return s.wf
}

// Nested returns the nested instance named name, or nil.
func (s *Scripted) Nested(name string) *Scripted {
	return s.nested[name]
}

// Dispatch implements actor.Schedulable. A failing step, including a
// failing nested call, ends the method with that error.
func (s *Scripted) Dispatch(ctx context.Context, method string, _ []any) error {
	m, ok := s.def.Methods[method]
	if !ok {
		return &actor.UnknownMethodError{Workflow: s.def.Name, Method: method}
	}

	for _, step := range m.Steps {
		var err error
		switch step.Kind {
		case StepCall:
			var target actor.Schedulable = s
			if step.Workflow != "" {
				target = s.nested[step.Workflow]
			}
			err = actor.Invoke(ctx, target, step.Method)
		case StepIdle:
			for i := int64(0); i < step.N && err == nil; i++ {
				err = s.idling.Idle(ctx)
			}
		case StepIdleFor:
			err = s.idling.IdleFor(ctx, step.N)
		case StepFail:
			err = &ScriptError{Workflow: s.def.Name, Method: method, Message: step.Message}
		}
		if err != nil {
			return err
		}
	}
	return nil
}
