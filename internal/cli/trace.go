package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/theatre/internal/store"
	"github.com/roach88/theatre/internal/trace"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - defaults to the latest run
	Actor    string // optional - filter to one actor
	List     bool
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	RunID     string           `json:"run_id"`
	Scenario  string           `json:"scenario"`
	FinalTick int64            `json:"final_tick"`
	Digest    string           `json:"digest"`
	Actors    []ActorTaskTrees `json:"actors"`
	Stats     TraceStats       `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Actors     int `json:"actors"`
	Tasks      int `json:"tasks"`
	Unfinished int `json:"unfinished"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show a recorded run's task trees",
		Long: `Show the task trees of a run recorded with 'theatre run --db'.

Without --run the most recently recorded run is shown. Unfinished
tasks, cut off when their clock ran out, are shown with a ? finish.

Examples:
  theatre trace --db ./runs.db
  theatre trace --db ./runs.db --run 0192... --actor clerk
  theatre trace --db ./runs.db --list --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to show (default: latest)")
	cmd.Flags().StringVar(&opts.Actor, "actor", "", "filter to one actor")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list recorded runs instead")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	// Opening would create an empty database; a missing file is a typo.
	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.List {
		return listRuns(ctx, st, formatter)
	}

	runID := opts.RunID
	if runID == "" {
		runID, err = st.LatestRunID(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			fmt.Fprintln(formatter.Writer, "No runs recorded.")
			return nil
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to find latest run", err)
		}
	}

	run, err := st.ReadRun(ctx, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", runID))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	result := buildTraceResult(run, opts.Actor)
	if opts.Format == "json" {
		return formatter.JSON(CLIResponse{Status: "ok", Data: result, RunID: run.ID})
	}
	return outputTraceText(formatter.Writer, run, opts.Actor, result.Stats)
}

func buildTraceResult(run *store.Run, actorFilter string) TraceResult {
	actors := filterActors(run.Actors, actorFilter)
	return TraceResult{
		RunID:     run.ID,
		Scenario:  run.Scenario,
		FinalTick: run.FinalTick,
		Digest:    run.Digest,
		Actors:    actorTaskTrees(actors),
		Stats:     traceStats(actors),
	}
}

func filterActors(actors []store.ActorTrace, name string) []store.ActorTrace {
	if name == "" {
		return actors
	}
	for _, a := range actors {
		if a.Actor == name {
			return []store.ActorTrace{a}
		}
	}
	return []store.ActorTrace{}
}

func traceStats(actors []store.ActorTrace) TraceStats {
	stats := TraceStats{Actors: len(actors)}
	unfinished := func(t *trace.Task) bool { return !t.Completed() }
	for _, a := range actors {
		for _, task := range a.Tasks {
			stats.Tasks += task.Count(nil)
			stats.Unfinished += task.Count(unfinished)
		}
	}
	return stats
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, run *store.Run, actorFilter string, stats TraceStats) error {
	fmt.Fprintf(w, "Run: %s\n", run.ID)
	fmt.Fprintf(w, "Scenario: %s (final tick %d)\n", run.Scenario, run.FinalTick)
	fmt.Fprintf(w, "Digest: %s\n", run.Digest)
	fmt.Fprintln(w)

	actors := filterActors(run.Actors, actorFilter)
	if len(actors) == 0 {
		fmt.Fprintln(w, "  (no tasks)")
	}
	for _, a := range actors {
		fmt.Fprintf(w, "=== %s ===\n", a.Actor)
		fmt.Fprint(w, trace.FormatTrees(a.Tasks))
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Actors:     %d\n", stats.Actors)
	fmt.Fprintf(w, "  Tasks:      %d\n", stats.Tasks)
	fmt.Fprintf(w, "  Unfinished: %d\n", stats.Unfinished)
	return nil
}

func listRuns(ctx context.Context, st *store.Store, formatter *OutputFormatter) error {
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	if formatter.Format == "json" {
		return formatter.JSON(CLIResponse{Status: "ok", Data: runs})
	}

	if len(runs) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(formatter.Writer, "%3d  %s  %-16s tick %-6d tasks %-4d %s\n",
			r.Seq, r.ID, r.Scenario, r.FinalTick, r.TaskCount, truncateID(r.Digest))
	}
	return nil
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
