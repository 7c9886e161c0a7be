package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/theatre/internal/scenario"
)

// ValidationError is one problem found by validate.
type ValidationError struct {
	File    string `json:"file,omitempty"`
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool              `json:"valid"`
	Workflows []string          `json:"workflows,omitempty"`
	Scenarios []string          `json:"scenarios,omitempty"`
	Errors    []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <workflows-dir> [scenario.yaml...]",
		Short: "Validate workflows and scenarios without running them",
		Long: `Compile the CUE workflows in a directory and check any given
scenarios against them.

Workflows are checked for unknown call targets, nesting and call
cycles, and malformed steps. Scenarios are checked for unknown clocks,
actors and tasks, link cycles, unbounded drives and bad assertions.

Examples:
  theatre validate ./workflows
  theatre validate ./workflows ./scenarios/office.yaml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], args[1:], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, workflowsDir string, scenarioFiles []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	lib, err := scenario.CompileWorkflows(workflowsDir)
	if err != nil {
		var le *scenario.LoadError
		if errors.As(err, &le) && isCommandLevel(le.Code) {
			return loadFailure(formatter, "failed to load workflows", err)
		}
		return outputValidationErrors(formatter, []ValidationError{toValidationError(workflowsDir, err)})
	}
	formatter.VerboseLog("Compiled %d workflow(s) from %s", len(lib.Names()), workflowsDir)

	result := ValidationResult{Workflows: lib.Names()}
	for _, path := range scenarioFiles {
		formatter.VerboseLog("Validating scenario: %s", path)

		sc, err := scenario.Load(path)
		if err == nil {
			err = sc.CheckWorkflows(lib)
		}
		if err != nil {
			result.Errors = append(result.Errors, toValidationError(path, err))
			continue
		}
		result.Scenarios = append(result.Scenarios, sc.Name)
	}

	if len(result.Errors) > 0 {
		return outputValidationErrors(formatter, result.Errors)
	}

	result.Valid = true
	return outputValidateSuccess(formatter, result)
}

// isCommandLevel reports whether a load error means the input could not
// be read at all, as opposed to being read and found invalid.
func isCommandLevel(code string) bool {
	return code == scenario.ErrCodeReadFailed || code == scenario.ErrCodeNoWorkflows
}

func toValidationError(file string, err error) ValidationError {
	ve := ValidationError{File: file, Code: scenario.ErrorCode(err), Message: err.Error()}
	var le *scenario.LoadError
	if errors.As(err, &le) {
		ve.Field = le.Field
		ve.Message = le.Message
		if le.Pos.IsValid() {
			ve.Line = le.Pos.Line()
		}
	}
	return ve
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ %d workflow(s) valid\n", len(result.Workflows))
	for _, name := range result.Scenarios {
		fmt.Fprintf(formatter.Writer, "✓ scenario %s valid\n", name)
	}
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []ValidationError) error {
	if formatter.Format == "json" {
		err := formatter.JSON(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		})
		if err != nil {
			return err
		}
		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		location := err.File
		if err.Line > 0 {
			location = fmt.Sprintf("%s line %d", location, err.Line)
		}
		fmt.Fprintln(formatter.Writer, location)
		if err.Field != "" {
			fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
		} else {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
		}
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
