package scenario

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"
)

// Error code constants - shared by workflow compilation and scenario
// loading, and surfaced unchanged by the CLI.
const (
	ErrCodeGeneric        = "E001" // Generic/unknown error
	ErrCodeReadFailed     = "E002" // File or directory not readable
	ErrCodeParseFailed    = "E003" // YAML or CUE syntax/build error
	ErrCodeNoWorkflows    = "E004" // No CUE files or no workflow definitions
	ErrCodeMissingField   = "E005" // Required field missing
	ErrCodeUnknownClock   = "E006" // Reference to an undeclared clock
	ErrCodeUnknownTarget  = "E007" // Reference to an unknown workflow or method
	ErrCodeDuplicateName  = "E008" // Duplicate clock, actor or workflow name
	ErrCodeInvalidValue   = "E009" // Out-of-range or malformed value
	ErrCodeCallCycle      = "E010" // Workflow nesting or call cycle
	ErrCodeInvalidAssert  = "E011" // Unknown assertion type or missing assertion field
	ErrCodeUnboundedDrive = "E012" // Drive clock has no bound and no tick count
)

// LoadError is a workflow or scenario definition error.
type LoadError struct {
	Code    string
	Field   string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func loadErrorf(code, field, format string, args ...any) *LoadError {
	return &LoadError{Code: code, Field: field, Message: fmt.Sprintf(format, args...)}
}

// ErrorCode returns the code of the first LoadError in err's chain, or
// ErrCodeGeneric.
func ErrorCode(err error) string {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	return ErrCodeGeneric
}

// AssertionError is a failed scenario assertion.
type AssertionError struct {
	Index    int
	Type     string
	Subject  string
	Expected any
	Actual   any
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertions[%d] %s %s: expected %v, got %v",
		e.Index, e.Type, e.Subject, e.Expected, e.Actual)
}

// ScriptError is a fail step reached in a scripted workflow.
type ScriptError struct {
	Workflow string
	Method   string
	Message  string
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Workflow, e.Method, e.Message)
}
