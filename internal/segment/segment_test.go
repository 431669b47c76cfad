package segment

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"segweaver/internal/artifact"
	"segweaver/internal/cluster"
	"segweaver/internal/core"
	"segweaver/internal/dag"
	"segweaver/internal/registry"
	"segweaver/internal/table"
)

// customers returns 3 well separated groups of perGroup customers described
// by five numeric features and an id column, and the group of each row.
func customers(t *testing.T, perGroup int) (*table.Frame, []int) {
	t.Helper()
	centres := [][]float64{
		{20, 1, 3, 40, 5},
		{60, 9, 1, 10, 30},
		{35, 4, 12, 80, 15},
	}
	rng := rand.New(rand.NewPCG(21, 4))
	features := []string{"income", "visits", "kids", "spend", "tenure"}
	cols := make([][]float64, len(features))
	var ids []string
	var truth []int
	for g, c := range centres {
		for i := 0; i < perGroup; i++ {
			for j := range features {
				cols[j] = append(cols[j], c[j]+0.5*rng.NormFloat64())
			}
			ids = append(ids, fmt.Sprintf("c%03d", len(ids)))
			truth = append(truth, g)
		}
	}
	all := []table.Column{table.CategoricalColumn("id", ids)}
	for j, name := range features {
		all = append(all, table.NumericColumn(name, cols[j]))
	}
	f, err := table.New(all...)
	require.NoError(t, err)
	return f, truth
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.KRange = KRange(2, 6)
	cfg.ModelName = "segments"
	return cfg
}

func TestRun_EndToEnd(t *testing.T) {
	data, truth := customers(t, 12)
	reg := registry.NewFileRegistry(t.TempDir())

	res, err := Run(context.Background(), data, testConfig(), reg)
	require.NoError(t, err)

	require.NotNil(t, res.Reduced)
	assert.Equal(t, data.Len(), res.Reduced.Len())
	assert.Equal(t, []string{"col1", "col2", "col3"}, res.Reduced.Names())

	require.NotNil(t, res.Projection)
	assert.Equal(t, []string{"x", "y", "z"}, res.Projection.Names())

	require.NotNil(t, res.Selection)
	assert.Equal(t, 3, res.Selection.K)
	assert.Len(t, res.Selection.Curve, 5)

	require.NotNil(t, res.Model)
	assert.Equal(t, cluster.KMeans, res.Model.Algorithm)
	assert.Equal(t, 3, res.Model.K)

	require.Len(t, res.Clusters, data.Len())
	assert.True(t, cluster.SamePartition(truth, res.Clusters))

	require.NotNil(t, res.Segmented)
	assert.Equal(t, append(data.Names(), ClustersColumn), res.Segmented.Names())
	col, ok := res.Segmented.Column(ClustersColumn)
	require.True(t, ok)
	for i, v := range col.Nums {
		assert.Equal(t, float64(res.Clusters[i]), v)
	}

	saved, err := reg.Load(context.Background(), "segments")
	require.NoError(t, err)
	assert.Equal(t, res.Model.Centroids, saved.Centroids)

	for name, st := range res.Graph.FinalState {
		assert.Equal(t, dag.TaskCompleted, st, name)
	}
}

func TestRun_EveryAlgorithm(t *testing.T) {
	data, truth := customers(t, 10)
	for _, alg := range []string{"k-means", "AgglomerativeClustering", "spectral"} {
		t.Run(alg, func(t *testing.T) {
			cfg := testConfig()
			cfg.Algorithm = alg
			cfg.Metric = string(cluster.CalinskiHarabasz)
			res, err := Run(context.Background(), data, cfg, registry.NewFileRegistry(t.TempDir()))
			require.NoError(t, err)
			assert.Equal(t, 3, res.Selection.K)
			assert.True(t, cluster.SamePartition(truth, res.Clusters))
			assert.Equal(t, alg == "k-means", res.Model.NativePredict)
		})
	}
}

func TestRun_SecondRunReusesEveryArtifact(t *testing.T) {
	data, _ := customers(t, 8)
	store := artifact.NewFileStore(t.TempDir())
	reg := registry.NewFileRegistry(t.TempDir())
	ctx := context.Background()

	first, err := Run(ctx, data, testConfig(), reg, dag.WithStore(store))
	require.NoError(t, err)
	second, err := Run(ctx, data, testConfig(), reg, dag.WithStore(store))
	require.NoError(t, err)

	for _, name := range []string{NodeReduce, NodeProjection, NodeBestK, NodeClusterModel, NodePredict, NodeInsertClusters} {
		assert.Equal(t, dag.TaskCached, second.Graph.FinalState[name], name)
	}
	// The source and the registry write are never served from cache.
	assert.Equal(t, []string{NodeData, NodeSaveModel}, second.Graph.ExecutionOrder)

	assert.Equal(t, first.Graph.Fingerprints, second.Graph.Fingerprints)
	assert.True(t, table.Equal(first.Segmented, second.Segmented))
	assert.True(t, table.Equal(first.Reduced, second.Reduced))
	assert.Equal(t, first.Clusters, second.Clusters)
	assert.Equal(t, first.Selection, second.Selection)
}

func TestRun_ChangingComponentsInvalidatesDownstreamOnly(t *testing.T) {
	data, _ := customers(t, 8)
	store := artifact.NewMemoryStore()
	ctx := context.Background()
	reg := registry.NewFileRegistry(t.TempDir())

	first, err := Run(ctx, data, testConfig(), reg, dag.WithStore(store))
	require.NoError(t, err)
	before := store.Keys()

	cfg := testConfig()
	cfg.NComponents = 4
	cfg.Columns = []string{"col1", "col2", "col3", "col4"}
	second, err := Run(ctx, data, cfg, reg, dag.WithStore(store))
	require.NoError(t, err)

	assert.Equal(t, first.Graph.Fingerprints[NodeData], second.Graph.Fingerprints[NodeData])
	for _, name := range []string{NodeReduce, NodeProjection, NodeBestK, NodeClusterModel, NodePredict, NodeInsertClusters} {
		assert.NotEqual(t, first.Graph.Fingerprints[name], second.Graph.Fingerprints[name], name)
		assert.Equal(t, dag.TaskCompleted, second.Graph.FinalState[name], name)
	}

	after := make(map[core.Fingerprint]bool)
	for _, k := range store.Keys() {
		after[k] = true
	}
	for _, k := range before {
		assert.True(t, after[k], "entry %s from the first run was dropped", k.Short())
	}
	assert.Equal(t, 2*len(before), store.Len())
}

func TestRun_ChangingOnlyTheModelNameKeepsTheCache(t *testing.T) {
	data, _ := customers(t, 8)
	store := artifact.NewMemoryStore()
	reg := registry.NewFileRegistry(t.TempDir())
	ctx := context.Background()

	_, err := Run(ctx, data, testConfig(), reg, dag.WithStore(store))
	require.NoError(t, err)

	cfg := testConfig()
	cfg.ModelName = "segments-v2"
	res, err := Run(ctx, data, cfg, reg, dag.WithStore(store))
	require.NoError(t, err)
	assert.Equal(t, dag.TaskCached, res.Graph.FinalState[NodeClusterModel])

	names, err := reg.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"segments", "segments-v2"}, names)
}

func TestRun_UnsupportedAlgorithmWritesNothing(t *testing.T) {
	data, _ := customers(t, 5)
	store := artifact.NewMemoryStore()
	reg := registry.NewFileRegistry(t.TempDir())

	cfg := testConfig()
	cfg.Algorithm = "DBSCAN"
	res, err := Run(context.Background(), data, cfg, reg, dag.WithStore(store))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUnsupportedAlgorithm), err.Error())
	assert.Nil(t, res)
	assert.Zero(t, store.Len())

	names, err := reg.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestRun_RejectsBadConfig(t *testing.T) {
	data, _ := customers(t, 5)
	reg := registry.NewFileRegistry(t.TempDir())

	cases := map[string]func(*Config){
		"unknown metric": func(c *Config) { c.Metric = "inertia" },
		"short k range":  func(c *Config) { c.KRange = []int{2, 3} },
		"no components":  func(c *Config) { c.NComponents = 0 },
		"no model name":  func(c *Config) { c.ModelName = "" },
		"bad tolerance":  func(c *Config) { c.Tolerance = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig()
			mutate(&cfg)
			_, err := Run(context.Background(), data, cfg, reg)
			assert.True(t, errors.Is(err, core.ErrInvalidParameter), "got %v", err)
		})
	}

	_, err := Run(context.Background(), data, testConfig(), nil)
	assert.True(t, errors.Is(err, core.ErrInvalidParameter))
}

func TestRun_ColumnNameMismatchFailsAtReduce(t *testing.T) {
	data, _ := customers(t, 5)
	cfg := testConfig()
	cfg.Columns = []string{"a", "b"}

	res, err := Run(context.Background(), data, cfg, registry.NewFileRegistry(t.TempDir()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrShapeMismatch))

	var ne *dag.NodeError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, NodeReduce, ne.Node)
	require.NotNil(t, res)
	assert.Nil(t, res.Reduced)
	assert.Equal(t, dag.TaskSkipped, res.Graph.FinalState[NodeSaveModel])
}

func TestRun_FailedSelectionKeepsEarlierArtifacts(t *testing.T) {
	data, _ := customers(t, 5)
	store := artifact.NewMemoryStore()
	reg := registry.NewFileRegistry(t.TempDir())
	ctx := context.Background()

	cfg := testConfig()
	cfg.KRange = KRange(2, data.Len()+1)
	res, err := Run(ctx, data, cfg, reg, dag.WithStore(store))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidParameter))
	var ne *dag.NodeError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, NodeBestK, ne.Node)
	assert.Equal(t, dag.TaskCompleted, res.Graph.FinalState[NodeReduce])
	assert.Nil(t, res.Model)

	_, err = reg.Load(ctx, cfg.ModelName)
	assert.True(t, errors.Is(err, core.ErrNotFound))

	res, err = Run(ctx, data, testConfig(), reg, dag.WithStore(store))
	require.NoError(t, err)
	assert.Equal(t, dag.TaskCached, res.Graph.FinalState[NodeReduce])
	assert.Equal(t, dag.TaskCompleted, res.Graph.FinalState[NodeBestK])
}

func TestRun_TwoComponentsHasNoProjection(t *testing.T) {
	data, _ := customers(t, 8)
	cfg := testConfig()
	cfg.NComponents = 2
	cfg.Columns = []string{"pc1", "pc2"}

	res, err := Run(context.Background(), data, cfg, registry.NewFileRegistry(t.TempDir()))
	require.NoError(t, err)
	assert.Nil(t, res.Projection)
	_, declared := res.Graph.FinalState[NodeProjection]
	assert.False(t, declared)
	assert.Equal(t, 3, res.Model.K)
}

func TestKRange(t *testing.T) {
	assert.Equal(t, []int{2, 3, 4}, KRange(2, 4))
	assert.Nil(t, KRange(5, 4))
}
