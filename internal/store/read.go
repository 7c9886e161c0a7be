package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/theatre/internal/trace"
)

// ReadRun rebuilds a stored run and its task trees.
// Returns an error wrapping sql.ErrNoRows if the run does not exist.
//
// Producers are restored as trace.NamedProducer values: the live
// workflows are gone, but names and idling flags survive.
func (s *Store) ReadRun(ctx context.Context, id string) (*Run, error) {
	run := &Run{ID: id}
	err := s.db.QueryRowContext(ctx, `
		SELECT scenario, digest, final_tick
		FROM runs
		WHERE id = ?
	`, id).Scan(&run.Scenario, &run.Digest, &run.FinalTick)
	if err != nil {
		return nil, fmt.Errorf("read run %s: %w", id, err)
	}

	actors, err := s.readTasks(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read run %s: %w", id, err)
	}
	run.Actors = actors
	return run, nil
}

// readTasks rebuilds the task trees of a run, grouped by actor in order of
// first appearance.
func (s *Store) readTasks(ctx context.Context, runID string) ([]ActorTrace, error) {
	// Pre-order: a parent row always precedes its children.
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, parent_idx, actor, producer, idling, method, args, start_tick, finish_tick
		FROM tasks
		WHERE run_id = ?
		ORDER BY idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	byIdx := make(map[int64]*trace.Task)
	actorPos := make(map[string]int)
	actors := []ActorTrace{}

	for rows.Next() {
		var (
			idx           int64
			parentIdx     sql.NullInt64
			actor         string
			producer      string
			idling        int
			method        string
			argsJSON      string
			start, finish sql.NullInt64
		)
		if err := rows.Scan(&idx, &parentIdx, &actor, &producer, &idling, &method, &argsJSON, &start, &finish); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}

		args, err := unmarshalArgs(argsJSON)
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", idx, err)
		}
		p := trace.NamedProducer{ProducerName: producer, IsIdling: idling == 1}

		var task *trace.Task
		if parentIdx.Valid {
			parent, ok := byIdx[parentIdx.Int64]
			if !ok {
				return nil, fmt.Errorf("task %d: parent %d not found", idx, parentIdx.Int64)
			}
			task = parent.AppendSubTask(p, method, args...)
		} else {
			task = trace.New(p, method, args...)
			pos, ok := actorPos[actor]
			if !ok {
				pos = len(actors)
				actorPos[actor] = pos
				actors = append(actors, ActorTrace{Actor: actor})
			}
			actors[pos].Tasks = append(actors[pos].Tasks, task)
		}

		if start.Valid {
			task.Initiate(start.Int64)
		}
		if finish.Valid {
			task.Complete(finish.Int64)
		}
		byIdx[idx] = task
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return actors, nil
}

// ListRuns returns a summary of every stored run, oldest first.
// Returns an empty slice (not nil) if the store holds no runs.
func (s *Store) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.seq, r.scenario, r.final_tick, r.digest, COUNT(t.idx)
		FROM runs r
		LEFT JOIN tasks t ON t.run_id = r.id
		GROUP BY r.id
		ORDER BY r.seq ASC, r.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.Seq, &r.Scenario, &r.FinalTick, &r.Digest, &r.TaskCount); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LatestRunID returns the id of the most recently written run.
// Returns an error wrapping sql.ErrNoRows if the store is empty.
func (s *Store) LatestRunID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM runs ORDER BY seq DESC LIMIT 1
	`).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("latest run: %w", err)
	}
	return id, nil
}
