package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"craft-optimizer/internal/sim"
)

func openTemp(t *testing.T) (*Cache, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache", "solutions.db")
	c, err := Open(path)
	require.NoError(t, err)
	return c, path
}

func TestPutGet(t *testing.T) {
	ctx := context.Background()
	c, _ := openTemp(t)
	defer c.Close()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	created := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	rec := Record{
		Actions:   []sim.Action{sim.MuscleMemory, sim.Veneration, sim.TrainedPerfection, sim.ByregotsBlessing},
		Quality:   4321,
		Progress:  2000,
		Optimal:   true,
		Nodes:     98765,
		CreatedAt: created,
	}
	require.NoError(t, c.Put(ctx, "k1", rec))

	got, ok, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec, got)

	n, err := c.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPutReplaces(t *testing.T) {
	ctx := context.Background()
	c, _ := openTemp(t)
	defer c.Close()

	require.NoError(t, c.Put(ctx, "k", Record{Actions: []sim.Action{sim.BasicSynthesis}, Quality: 1}))
	require.NoError(t, c.Put(ctx, "k", Record{Actions: []sim.Action{sim.CarefulSynthesis}, Quality: 2, Optimal: true}))

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []sim.Action{sim.CarefulSynthesis}, got.Actions)
	assert.EqualValues(t, 2, got.Quality)
	assert.True(t, got.Optimal)
	assert.False(t, got.CreatedAt.IsZero())

	n, err := c.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReopenKeepsEntries(t *testing.T) {
	ctx := context.Background()
	c, path := openTemp(t)
	require.NoError(t, c.Put(ctx, "k", Record{Actions: []sim.Action{sim.Groundwork}, Progress: 300}))
	require.NoError(t, c.Close())

	c, err := Open(path)
	require.NoError(t, err)
	defer c.Close()
	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []sim.Action{sim.Groundwork}, got.Actions)
	assert.EqualValues(t, 300, got.Progress)
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}
