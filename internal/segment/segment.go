// Package segment wires the customer-segmentation steps into one DAG:
//
//	data -> reduce_dimension -> best_k -> cluster_model -> predict -> insert_clusters
//	                 |                          |
//	           projection_3d                save_model
//
// Every node except data and save_model is cached by content. save_model
// writes to the model registry and therefore runs on every execution.
package segment

import (
	"context"
	"strconv"
	"strings"

	"segweaver/internal/cluster"
	"segweaver/internal/core"
	"segweaver/internal/dag"
	"segweaver/internal/elbow"
	"segweaver/internal/reduce"
	"segweaver/internal/registry"
	"segweaver/internal/table"
)

// Node names.
const (
	NodeData           = "data"
	NodeReduce         = "reduce_dimension"
	NodeProjection     = "projection_3d"
	NodeBestK          = "best_k"
	NodeClusterModel   = "cluster_model"
	NodeSaveModel      = "save_model"
	NodePredict        = "predict"
	NodeInsertClusters = "insert_clusters"
)

// ClustersColumn is the label column added to the segmented dataset.
const ClustersColumn = "clusters"

// MetaModelName records the registry name on the save_model output.
const MetaModelName = "model_name"

// Declare adds the segmentation nodes for data to p.
//
// The configuration is resolved first, so an unknown algorithm or metric is
// reported before anything is declared, executed or cached. projection_3d is
// only declared when at least three components are kept.
func Declare(p *dag.Pipeline, data *table.Frame, cfg Config, reg registry.Registry) error {
	rc, err := cfg.resolve()
	if err != nil {
		return err
	}
	if reg == nil {
		return core.Errorf(core.ErrInvalidParameter, "segment", "no model registry")
	}

	if err := p.Source(NodeData, data); err != nil {
		return err
	}

	steps := []step{
		{NodeReduce, []string{NodeData}, rc.reduce, []dag.NodeOption{dag.WithParams(map[string]string{
			"n_components": strconv.Itoa(rc.NComponents),
			"columns":      quoteList(rc.Columns),
		})}},
		{NodeBestK, []string{NodeReduce}, rc.bestK, []dag.NodeOption{dag.WithParams(rc.fitParams(map[string]string{
			"metric":    string(rc.metric),
			"k_range":   intList(rc.KRange),
			"tolerance": formatFloat(rc.Tolerance),
		}))}},
		{NodeClusterModel, []string{NodeReduce, NodeBestK}, rc.fit, []dag.NodeOption{dag.WithParams(rc.fitParams(nil))}},
		{NodeSaveModel, []string{NodeClusterModel}, rc.save(reg), []dag.NodeOption{
			dag.WithParams(map[string]string{"model_name": rc.ModelName}),
			dag.NoCache(),
		}},
		{NodePredict, []string{NodeClusterModel, NodeReduce}, predict, nil},
		{NodeInsertClusters, []string{NodeData, NodePredict}, insertClusters, nil},
	}
	if rc.NComponents >= 3 {
		steps = append(steps, step{NodeProjection, []string{NodeReduce}, projection, nil})
	}

	for _, s := range steps {
		if err := p.Declare(s.name, s.deps, s.fn, s.opts...); err != nil {
			return err
		}
	}
	return nil
}

type step struct {
	name string
	deps []string
	fn   dag.ComputeFunc
	opts []dag.NodeOption
}

// fitParams adds the clustering parameters shared by best_k and
// cluster_model to extra.
func (rc resolved) fitParams(extra map[string]string) map[string]string {
	params := map[string]string{
		"algorithm": string(rc.algorithm),
		"seed":      strconv.FormatUint(rc.Cluster.Seed, 10),
		"restarts":  strconv.Itoa(rc.Cluster.Restarts),
		"max_iter":  strconv.Itoa(rc.Cluster.MaxIter),
		"gamma":     formatFloat(rc.Cluster.Gamma),
	}
	for k, v := range extra {
		params[k] = v
	}
	return params
}

func (rc resolved) reduce(_ context.Context, in dag.Inputs) (*table.Frame, error) {
	return reduce.Reduce(in[NodeData], rc.NComponents, rc.Columns)
}

func projection(_ context.Context, in dag.Inputs) (*table.Frame, error) {
	return reduce.Projection3D(in[NodeReduce])
}

func (rc resolved) bestK(ctx context.Context, in dag.Inputs) (*table.Frame, error) {
	reduced := in[NodeReduce]
	x, err := reduced.Matrix(reduced.NumericNames()...)
	if err != nil {
		return nil, err
	}
	r, err := elbow.SelectBestK(ctx, x, rc.algorithm, rc.metric, rc.KRange,
		elbow.Options{Cluster: rc.Cluster, Tolerance: rc.Tolerance})
	if err != nil {
		return nil, err
	}
	return elbow.CurveFrame(r)
}

func (rc resolved) fit(_ context.Context, in dag.Inputs) (*table.Frame, error) {
	sel, err := elbow.FromCurveFrame(in[NodeBestK])
	if err != nil {
		return nil, err
	}
	m, err := cluster.FitFrame(in[NodeReduce], rc.algorithm, sel.K, rc.Cluster)
	if err != nil {
		return nil, err
	}
	return m.ToFrame()
}

func (rc resolved) save(reg registry.Registry) dag.ComputeFunc {
	return func(ctx context.Context, in dag.Inputs) (*table.Frame, error) {
		m, err := cluster.FromFrame(in[NodeClusterModel])
		if err != nil {
			return nil, err
		}
		if err := reg.Save(ctx, m, rc.ModelName); err != nil {
			return nil, err
		}
		return in[NodeClusterModel].Clone().WithMeta(MetaModelName, rc.ModelName), nil
	}
}

func predict(_ context.Context, in dag.Inputs) (*table.Frame, error) {
	m, err := cluster.FromFrame(in[NodeClusterModel])
	if err != nil {
		return nil, err
	}
	labels, err := cluster.PredictFrame(m, in[NodeReduce])
	if err != nil {
		return nil, err
	}
	return table.New(table.NumericColumn(ClustersColumn, toFloats(labels)))
}

func insertClusters(_ context.Context, in dag.Inputs) (*table.Frame, error) {
	labels, ok := in[NodePredict].Column(ClustersColumn)
	if !ok {
		return nil, core.Errorf(core.ErrShapeMismatch, NodeInsertClusters, "predict output has no %q column", ClustersColumn)
	}
	return in[NodeData].WithColumn(labels)
}

func toFloats(labels []int) []float64 {
	out := make([]float64, len(labels))
	for i, l := range labels {
		out[i] = float64(l)
	}
	return out
}

func quoteList(ss []string) string {
	q := make([]string, len(ss))
	for i, s := range ss {
		q[i] = strconv.Quote(s)
	}
	return strings.Join(q, ",")
}

func intList(ks []int) string {
	q := make([]string, len(ks))
	for i, k := range ks {
		q[i] = strconv.Itoa(k)
	}
	return strings.Join(q, ",")
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
