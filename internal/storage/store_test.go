package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/optilab/internal/experiment"
)

func newRecord(id, begin string) *experiment.Results {
	r := experiment.NewResults(experiment.Metadata{
		ID:            id,
		MethodName:    "lmm-cma-es",
		BenchmarkName: "rosenbrock",
		TimeBegin:     begin,
	})
	r.AddData("lmm-cma-es", 2, [][]float64{{3, 2, 1}})
	return r
}

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": NewSQLiteStore(filepath.Join(t.TempDir(), "optilab.db")),
	}
}

func TestStores(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Init(ctx))
			t.Cleanup(func() { _ = store.Close() })

			_, ok, err := store.GetResults(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			second := newRecord("b", "2026-01-02T00:00:00Z")
			first := newRecord("a", "2026-01-01T00:00:00Z")
			require.NoError(t, store.SaveResults(ctx, second))
			require.NoError(t, store.SaveResults(ctx, first))

			got, ok, err := store.GetResults(ctx, "a")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, first.Metadata.MethodName, got.Metadata.MethodName)
			assert.Equal(t, first.Data, got.Data)

			first.AddData("cma-es", 2, [][]float64{{1}})
			require.NoError(t, store.SaveResults(ctx, first))

			list, err := store.ListResults(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "a", list[0].ID)
			assert.Equal(t, 2, list[0].Series)
			assert.Equal(t, "rosenbrock", list[1].Benchmark)

			assert.Error(t, store.SaveResults(ctx, &experiment.Results{}))
		})
	}
}

func TestStoreIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Init(ctx))

	r := newRecord("a", "")
	require.NoError(t, store.SaveResults(ctx, r))
	r.Data[0].Logs[0][0] = 100

	got, _, err := store.GetResults(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 3.0, got.Data[0].Logs[0][0])
}

func TestUninitialized(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.ListResults(ctx)
			assert.Error(t, err)
			assert.Error(t, store.SaveResults(ctx, newRecord("a", "")))
			assert.NoError(t, store.Close())
		})
	}

	assert.Error(t, NewSQLiteStore("").Init(ctx))
}

func TestNewStore(t *testing.T) {
	s, err := NewStore("memory", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = NewStore("sqlite", "file::memory:")
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)

	_, err = NewStore("postgres", "")
	assert.Error(t, err)
}
