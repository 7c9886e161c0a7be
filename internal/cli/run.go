package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/theatre/internal/scenario"
	"github.com/roach88/theatre/internal/store"
	"github.com/roach88/theatre/internal/trace"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Tree     bool

	// RunIDGenerator allows overriding the run id generator (for testing).
	// If nil, defaults to store.UUIDv7Generator.
	RunIDGenerator store.RunIDGenerator
}

// RunSummary is the run command's output.
type RunSummary struct {
	Scenario  string           `json:"scenario"`
	RunID     string           `json:"run_id"`
	Pass      bool             `json:"pass"`
	FinalTick int64            `json:"final_tick"`
	Stored    bool             `json:"stored,omitempty"`
	Errors    []string         `json:"errors,omitempty"`
	Actors    []ActorTaskTrees `json:"actors,omitempty"`
}

// ActorTaskTrees is one actor's task history in JSON output.
type ActorTaskTrees struct {
	Actor string           `json:"actor"`
	Tasks []map[string]any `json:"tasks"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <workflows-dir> <scenario.yaml>",
		Short: "Run a scenario",
		Long: `Run one scenario against the CUE workflows in a directory.

The scenario's clocks are driven to the end, every actor is shut down,
and the assertions are evaluated. With --db the run's task trees are
written to a SQLite database (created if it doesn't exist).

Exit codes:
  0 - All assertions held
  1 - One or more assertions failed
  2 - Command error (invalid paths, bad definitions, etc.)

Examples:
  theatre run ./workflows ./scenarios/office.yaml --tree
  theatre run ./workflows ./scenarios/office.yaml --db ./runs.db`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database to record the run in")
	cmd.Flags().BoolVar(&opts.Tree, "tree", false, "print every actor's task trees")

	return cmd
}

func runScenarioFile(opts *RunOptions, workflowsDir, scenarioFile string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions)

	lib, err := scenario.CompileWorkflows(workflowsDir)
	if err != nil {
		return loadFailure(formatter, "failed to load workflows", err)
	}
	sc, err := scenario.Load(scenarioFile)
	if err != nil {
		return loadFailure(formatter, "failed to load scenario", err)
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runOpts := []scenario.RunOption{scenario.WithLogger(logger)}
	if opts.RunIDGenerator != nil {
		runOpts = append(runOpts, scenario.WithRunIDGenerator(opts.RunIDGenerator))
	}
	result, err := scenario.Run(ctx, lib, sc, runOpts...)
	if err != nil {
		return loadFailure(formatter, "failed to run scenario", err)
	}

	summary := RunSummary{
		Scenario:  result.Scenario,
		RunID:     result.RunID,
		Pass:      result.Pass,
		FinalTick: result.FinalTick(),
	}
	for _, e := range result.Errors {
		summary.Errors = append(summary.Errors, e.Error())
	}

	if opts.Database != "" {
		stored, err := recordRun(ctx, logger, opts.Database, result)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
		summary.Stored = stored
	}

	if opts.Format == "json" {
		if opts.Tree {
			summary.Actors = actorTaskTrees(result.Export().Actors)
		}
		if err := formatter.JSON(CLIResponse{Status: passStatus(result.Pass), Data: summary, RunID: result.RunID}); err != nil {
			return err
		}
	} else {
		outputRunText(cmd, opts, result, summary)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("%d assertion(s) failed", len(result.Errors)))
	}
	return nil
}

// recordRun writes the run's task trees to the database at path.
func recordRun(ctx context.Context, logger *slog.Logger, path string, result *scenario.Result) (bool, error) {
	st, err := store.Open(path)
	if err != nil {
		return false, err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	inserted, err := st.WriteRun(ctx, result.Export())
	if err != nil {
		return false, err
	}
	if !inserted {
		logger.Warn("run already recorded", "run_id", result.RunID)
	}
	return inserted, nil
}

func actorTaskTrees(actors []store.ActorTrace) []ActorTaskTrees {
	out := make([]ActorTaskTrees, 0, len(actors))
	for _, a := range actors {
		trees := make([]map[string]any, 0, len(a.Tasks))
		for _, task := range a.Tasks {
			trees = append(trees, trace.ToMap(task))
		}
		out = append(out, ActorTaskTrees{Actor: a.Actor, Tasks: trees})
	}
	return out
}

func outputRunText(cmd *cobra.Command, opts *RunOptions, result *scenario.Result, summary RunSummary) {
	w := cmd.OutOrStdout()

	if opts.Tree {
		fmt.Fprint(w, result.Render())
		fmt.Fprintln(w)
	}

	mark := "✓"
	if !summary.Pass {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s (run %s, final tick %d)\n", mark, summary.Scenario, summary.RunID, summary.FinalTick)
	for _, e := range summary.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
	if summary.Stored {
		fmt.Fprintf(w, "Recorded in %s\n", opts.Database)
	}
}

func passStatus(pass bool) string {
	if pass {
		return "ok"
	}
	return "error"
}
