package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"segweaver/internal/cluster"
	"segweaver/internal/core"
)

func testModel(t *testing.T, k int) *cluster.Model {
	t.Helper()
	x := [][]float64{{0, 0}, {0.1, 0.2}, {5, 5}, {5.2, 4.9}, {-5, 5}, {-4.8, 5.1}}
	m, err := cluster.Fit(x, cluster.KMeans, k, cluster.DefaultOptions())
	require.NoError(t, err)
	m.Components = []string{"pc1", "pc2"}
	return m
}

func runRegistryContract(t *testing.T, r Registry) {
	t.Helper()
	ctx := context.Background()

	_, err := r.Load(ctx, "absent")
	assert.ErrorIs(t, err, core.ErrNotFound)

	first := testModel(t, 2)
	require.NoError(t, r.Save(ctx, first, "segments"))
	got, err := r.Load(ctx, "segments")
	require.NoError(t, err)
	assert.Equal(t, first.Algorithm, got.Algorithm)
	assert.Equal(t, first.K, got.K)
	assert.Equal(t, first.Components, got.Components)
	assert.Equal(t, first.Centroids, got.Centroids)
	assert.Equal(t, first.Inertia, got.Inertia)
	assert.True(t, got.NativePredict)
	assert.Nil(t, got.Labels)

	second := testModel(t, 3)
	require.NoError(t, r.Save(ctx, second, "segments"))
	got, err = r.Load(ctx, "segments")
	require.NoError(t, err)
	assert.Equal(t, 3, got.K)
	assert.Equal(t, second.Centroids, got.Centroids)

	require.NoError(t, r.Save(ctx, first, "archive"))
	names, err := r.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"archive", "segments"}, names)

	assert.ErrorIs(t, r.Save(ctx, first, "../escape"), core.ErrInvalidParameter)
	assert.ErrorIs(t, r.Save(ctx, first, ""), core.ErrInvalidParameter)
	assert.ErrorIs(t, r.Save(ctx, nil, "x"), core.ErrInvalidParameter)
	assert.ErrorIs(t, r.Save(ctx, &cluster.Model{Algorithm: "gmm", K: 1, Centroids: [][]float64{{0}}}, "x"), core.ErrUnsupportedAlgorithm)
}

func TestFileRegistry_Contract(t *testing.T) {
	runRegistryContract(t, NewFileRegistry(t.TempDir()))
}

func TestFileRegistry_Durable(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	m := testModel(t, 2)
	require.NoError(t, NewFileRegistry(dir).Save(ctx, m, "segments"))

	got, err := NewFileRegistry(dir).Load(ctx, "segments")
	require.NoError(t, err)
	assert.Equal(t, m.Centroids, got.Centroids)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "segments.json", entries[0].Name())
}

func TestFileRegistry_RejectsTamperedDocument(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{"name":"bad","model":{"algorithm":"kmeans","k":2,"centroids":[[1]]}}`), 0o644))
	_, err := NewFileRegistry(dir).Load(context.Background(), "bad")
	assert.ErrorIs(t, err, core.ErrShapeMismatch)
}

func TestFileRegistry_ListEmpty(t *testing.T) {
	names, err := NewFileRegistry(filepath.Join(t.TempDir(), "missing")).List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}
