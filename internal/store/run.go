package store

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/theatre/internal/trace"
)

// RunIDGenerator produces identifiers for exported runs.
type RunIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run ids.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// ActorTrace is the task history of one actor.
type ActorTrace struct {
	Actor string
	Tasks []*trace.Task
}

// Run is a finished performance as exported to the store.
type Run struct {
	ID        string
	Scenario  string
	FinalTick int64
	Actors    []ActorTrace

	// Digest is filled in by WriteRun and ReadRun.
	Digest string
}

// Tasks returns every top-level task of the run, actor by actor.
func (r *Run) Tasks() []*trace.Task {
	var tasks []*trace.Task
	for _, a := range r.Actors {
		tasks = append(tasks, a.Tasks...)
	}
	return tasks
}

// ComputeDigest returns the trace digest over all actors' task trees.
func (r *Run) ComputeDigest() (string, error) {
	digest, err := trace.Digest(r.Tasks())
	if err != nil {
		return "", fmt.Errorf("run %s: %w", r.ID, err)
	}
	return digest, nil
}

// RunSummary is a row of ListRuns.
type RunSummary struct {
	ID        string `json:"id"`
	Seq       int64  `json:"seq"`
	Scenario  string `json:"scenario"`
	FinalTick int64  `json:"final_tick"`
	Digest    string `json:"digest"`
	TaskCount int    `json:"task_count"`
}
