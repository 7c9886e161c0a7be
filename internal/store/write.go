package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/theatre/internal/trace"
)

// ErrEmptyRunID is returned when a run without an id is written.
var ErrEmptyRunID = errors.New("store: run id is empty")

// WriteRun inserts a finished run and all its task trees.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - writing a run id that
// already exists is silently ignored and reports inserted=false.
//
// The run's Digest is computed and set before writing.
func (s *Store) WriteRun(ctx context.Context, run *Run) (inserted bool, err error) {
	if run.ID == "" {
		return false, ErrEmptyRunID
	}

	digest, err := run.ComputeDigest()
	if err != nil {
		return false, fmt.Errorf("write run: %w", err)
	}
	run.Digest = digest

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, seq, scenario, digest, final_tick)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM runs), ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, run.ID, run.Scenario, run.Digest, run.FinalTick)
	if err != nil {
		return false, fmt.Errorf("write run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write run: rows affected: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	w := &taskWriter{ctx: ctx, tx: tx, runID: run.ID}
	for _, a := range run.Actors {
		for _, task := range a.Tasks {
			if err := w.write(a.Actor, task, sql.NullInt64{}); err != nil {
				return false, fmt.Errorf("write run %s: %w", run.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("write run: commit: %w", err)
	}
	return true, nil
}

// taskWriter flattens task trees in pre-order.
type taskWriter struct {
	ctx   context.Context
	tx    *sql.Tx
	runID string
	next  int64
}

func (w *taskWriter) write(actor string, task *trace.Task, parent sql.NullInt64) error {
	idx := w.next
	w.next++

	argsJSON, err := marshalArgs(task.Args())
	if err != nil {
		return err
	}

	producer := ""
	if p := task.Producer(); p != nil {
		producer = p.Name()
	}

	_, err = w.tx.ExecContext(w.ctx, `
		INSERT INTO tasks
		(run_id, idx, parent_idx, actor, producer, idling, method, args, start_tick, finish_tick)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		w.runID,
		idx,
		parent,
		actor,
		producer,
		boolToInt(task.Idling()),
		task.Method(),
		argsJSON,
		nullTick(task.StartTick()),
		nullTick(task.FinishTick()),
	)
	if err != nil {
		return fmt.Errorf("task %d %s: %w", idx, task, err)
	}

	for _, child := range task.SubTasks() {
		if err := w.write(actor, child, sql.NullInt64{Int64: idx, Valid: true}); err != nil {
			return err
		}
	}
	return nil
}

func nullTick(tick int64, ok bool) sql.NullInt64 {
	return sql.NullInt64{Int64: tick, Valid: ok}
}
