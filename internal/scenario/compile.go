package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
)

// CompileWorkflows loads the CUE package in dir and compiles every entry
// under its top-level workflow struct:
//
//	workflow: example: {
//		nested: ["helper"]
//		method: task_a: {
//			cost: 1
//			steps: [{call: "task_b"}, {call: "helper.assist"}, {idle: 2}]
//		}
//	}
//
// A step holds exactly one of call, idle, idle_for or fail.
func CompileWorkflows(dir string) (*Library, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, loadErrorf(ErrCodeReadFailed, "", "workflows directory: %v", err)
	}
	if !info.IsDir() {
		return nil, loadErrorf(ErrCodeReadFailed, "", "not a directory: %s", dir)
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, loadErrorf(ErrCodeReadFailed, "", "scanning %s: %v", dir, err)
	}
	if len(files) == 0 {
		return nil, loadErrorf(ErrCodeNoWorkflows, "", "no CUE files found in %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, loadErrorf(ErrCodeParseFailed, "", "no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return compileValue(value)
}

// CompileString compiles workflow definitions from CUE source text.
func CompileString(filename, src string) (*Library, error) {
	value := cuecontext.New().CompileString(src, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return compileValue(value)
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func compileValue(v cue.Value) (*Library, error) {
	wfs := v.LookupPath(cue.ParsePath("workflow"))
	if !wfs.Exists() {
		return nil, loadErrorf(ErrCodeNoWorkflows, "workflow", "no workflow definitions found")
	}

	iter, err := wfs.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var defs []*WorkflowDef
	for iter.Next() {
		def, err := compileWorkflow(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	if len(defs) == 0 {
		return nil, loadErrorf(ErrCodeNoWorkflows, "workflow", "no workflow definitions found")
	}
	return NewLibrary(defs...)
}

func compileWorkflow(name string, v cue.Value) (*WorkflowDef, error) {
	def := &WorkflowDef{Name: name, Methods: map[string]*MethodDef{}}
	field := "workflow." + name

	if nestedVal := v.LookupPath(cue.ParsePath("nested")); nestedVal.Exists() {
		list, err := nestedVal.List()
		if err != nil {
			return nil, positioned(ErrCodeInvalidValue, field+".nested", "must be a list of workflow names", nestedVal)
		}
		for list.Next() {
			child, err := list.Value().String()
			if err != nil {
				return nil, positioned(ErrCodeInvalidValue, field+".nested", "must be a list of workflow names", list.Value())
			}
			def.Nested = append(def.Nested, child)
		}
	}

	methodsVal := v.LookupPath(cue.ParsePath("method"))
	if !methodsVal.Exists() {
		return nil, positioned(ErrCodeMissingField, field+".method", "at least one method is required", v)
	}
	iter, err := methodsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		m, err := compileMethod(field, iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		def.Methods[m.Name] = m
	}
	return def, nil
}

func compileMethod(parent, name string, v cue.Value) (*MethodDef, error) {
	m := &MethodDef{Name: name}
	field := parent + ".method." + name

	if costVal := v.LookupPath(cue.ParsePath("cost")); costVal.Exists() {
		cost, err := costVal.Int64()
		if err != nil {
			return nil, positioned(ErrCodeInvalidValue, field+".cost", "cost must be an integer", costVal)
		}
		m.Cost = cost
	}

	stepsVal := v.LookupPath(cue.ParsePath("steps"))
	if !stepsVal.Exists() {
		return m, nil
	}
	list, err := stepsVal.List()
	if err != nil {
		return nil, positioned(ErrCodeInvalidValue, field+".steps", "steps must be a list", stepsVal)
	}
	for i := 0; list.Next(); i++ {
		step, err := compileStep(fmt.Sprintf("%s.steps[%d]", field, i), list.Value())
		if err != nil {
			return nil, err
		}
		m.Steps = append(m.Steps, step)
	}
	return m, nil
}

func compileStep(field string, v cue.Value) (Step, error) {
	iter, err := v.Fields()
	if err != nil {
		return Step{}, positioned(ErrCodeInvalidValue, field, "step must be a struct", v)
	}

	var (
		step  Step
		count int
	)
	for iter.Next() {
		count++
		val := iter.Value()
		switch kind := StepKind(iter.Label()); kind {
		case StepCall:
			target, err := val.String()
			if err != nil {
				return Step{}, positioned(ErrCodeInvalidValue, field+".call", "call target must be a string", val)
			}
			step = parseCall(target)
			if step.Method == "" {
				return Step{}, positioned(ErrCodeInvalidValue, field+".call", "empty call target", val)
			}
		case StepIdle, StepIdleFor:
			n, err := val.Int64()
			if err != nil {
				return Step{}, positioned(ErrCodeInvalidValue, field+"."+string(kind), "idle count must be an integer", val)
			}
			step = Step{Kind: kind, N: n}
		case StepFail:
			msg, err := val.String()
			if err != nil {
				return Step{}, positioned(ErrCodeInvalidValue, field+".fail", "fail message must be a string", val)
			}
			step = Step{Kind: StepFail, Message: msg}
		default:
			return Step{}, positioned(ErrCodeInvalidValue, field, fmt.Sprintf("unknown step kind %q", kind), val)
		}
	}
	if count != 1 {
		return Step{}, positioned(ErrCodeInvalidValue, field, "a step holds exactly one of call, idle, idle_for or fail", v)
	}
	return step, nil
}

// parseCall splits "workflow.method" or a bare "method".
func parseCall(target string) Step {
	if wf, method, ok := strings.Cut(target, "."); ok {
		return Step{Kind: StepCall, Workflow: wf, Method: method}
	}
	return Step{Kind: StepCall, Method: target}
}

func positioned(code, field, msg string, v cue.Value) *LoadError {
	return &LoadError{Code: code, Field: field, Message: msg, Pos: v.Pos()}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: ErrCodeParseFailed, Message: err.Error()}
	}

	first := errs[0]
	le := &LoadError{Code: ErrCodeParseFailed, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}
