package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/theatre/internal/trace"
)

func TestReadRun_RebuildsTrees(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	original := createTestRun("run-1")
	_, err := s.WriteRun(ctx, original)
	require.NoError(t, err)

	got, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)

	assert.Equal(t, "example", got.Scenario)
	assert.Equal(t, int64(4), got.FinalTick)
	require.Len(t, got.Actors, 2)
	assert.Equal(t, "a", got.Actors[0].Actor)
	assert.Equal(t, "b", got.Actors[1].Actor)

	assert.Equal(t, trace.FormatTrees(original.Tasks()), trace.FormatTrees(got.Tasks()))
	assert.Equal(t, "task_c(x,5)[3->?]", got.Actors[0].Tasks[1].String())
}

func TestReadRun_DigestSurvivesRoundtrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	original := createTestRun("run-1")
	_, err := s.WriteRun(ctx, original)
	require.NoError(t, err)

	got, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, original.Digest, got.Digest)

	recomputed, err := got.ComputeDigest()
	require.NoError(t, err)
	assert.Equal(t, original.Digest, recomputed)
}

func TestReadRun_RestoresIdlingProducers(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.WriteRun(ctx, createTestRun("run-1"))
	require.NoError(t, err)

	got, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)

	taskA := got.Actors[0].Tasks[0]
	assert.False(t, taskA.Idling())
	idle := taskA.SubTasks()[0].SubTasks()[0]
	assert.True(t, idle.Idling())
	assert.Equal(t, "idling", idle.Producer().Name())

	open := got.Actors[0].Tasks[1]
	tick, ok := open.LastNonIdlingTick()
	assert.True(t, ok)
	assert.Equal(t, int64(3), tick)
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadRun(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestListRuns_Empty(t *testing.T) {
	s := createTestStore(t)

	runs, err := s.ListRuns(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestListRuns_InsertionOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"zeta", "alpha", "mid"} {
		_, err := s.WriteRun(ctx, createTestRun(id))
		require.NoError(t, err)
	}

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "zeta", runs[0].ID)
	assert.Equal(t, "alpha", runs[1].ID)
	assert.Equal(t, "mid", runs[2].ID)
	assert.Equal(t, []int64{1, 2, 3}, []int64{runs[0].Seq, runs[1].Seq, runs[2].Seq})

	latest, err := s.LatestRunID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "mid", latest)
}

func TestLatestRunID_Empty(t *testing.T) {
	s := createTestStore(t)

	_, err := s.LatestRunID(context.Background())
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
