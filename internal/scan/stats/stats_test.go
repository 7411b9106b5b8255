package stats_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-admission/internal/scan/stats"
)

func setupTestRedis(t *testing.T) (*stats.Redis, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return stats.NewRedis(client), mr
}

func TestIncrementAndSnapshot(t *testing.T) {
	agg, _ := setupTestRedis(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, agg.Increment(ctx, "event-1", "gate-A", stats.ClassValid))
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, agg.Increment(ctx, "event-1", "gate-A", stats.ClassInvalid))
	}

	snapshot, err := agg.Snapshot(ctx, "event-1", "gate-A")
	require.NoError(t, err)
	assert.EqualValues(t, 3, snapshot.ValidCount)
	assert.EqualValues(t, 2, snapshot.InvalidCount)
	assert.EqualValues(t, 5, snapshot.TotalCount)
	assert.Equal(t, snapshot.ValidCount+snapshot.InvalidCount, snapshot.TotalCount)
}

func TestSnapshotEmptySession(t *testing.T) {
	agg, _ := setupTestRedis(t)

	snapshot, err := agg.Snapshot(context.Background(), "event-1", "gate-A")
	require.NoError(t, err)
	assert.Zero(t, snapshot.ValidCount)
	assert.Zero(t, snapshot.InvalidCount)
	assert.Zero(t, snapshot.TotalCount)
}

func TestSessionsAreScopedPerGate(t *testing.T) {
	agg, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, agg.Increment(ctx, "event-1", "gate-A", stats.ClassValid))
	require.NoError(t, agg.Increment(ctx, "event-1", "gate-B", stats.ClassInvalid))

	a, err := agg.Snapshot(ctx, "event-1", "gate-A")
	require.NoError(t, err)
	b, err := agg.Snapshot(ctx, "event-1", "gate-B")
	require.NoError(t, err)

	assert.EqualValues(t, 1, a.ValidCount)
	assert.EqualValues(t, 0, a.InvalidCount)
	assert.EqualValues(t, 0, b.ValidCount)
	assert.EqualValues(t, 1, b.InvalidCount)
}

func TestCountersSurviveRestart(t *testing.T) {
	agg, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, agg.Increment(ctx, "event-1", "gate-A", stats.ClassValid))
	require.NoError(t, agg.Increment(ctx, "event-1", "gate-A", stats.ClassInvalid))

	// A device restart builds a fresh client; the write-through counters are
	// still there.
	reloaded := stats.NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	snapshot, err := reloaded.Snapshot(ctx, "event-1", "gate-A")
	require.NoError(t, err)
	assert.EqualValues(t, 1, snapshot.ValidCount)
	assert.EqualValues(t, 1, snapshot.InvalidCount)
	assert.EqualValues(t, 2, snapshot.TotalCount)
}

func TestResetClearsSession(t *testing.T) {
	agg, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, agg.Increment(ctx, "event-1", "gate-A", stats.ClassValid))
	require.NoError(t, agg.Reset(ctx, "event-1", "gate-A"))

	snapshot, err := agg.Snapshot(ctx, "event-1", "gate-A")
	require.NoError(t, err)
	assert.Zero(t, snapshot.TotalCount)
}
