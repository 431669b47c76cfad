package segment

import (
	"context"

	"segweaver/internal/cluster"
	"segweaver/internal/dag"
	"segweaver/internal/elbow"
	"segweaver/internal/registry"
	"segweaver/internal/table"
)

// Result exposes the outputs of a segmentation run. Fields are nil when the
// producing node did not finish.
type Result struct {
	Graph *dag.GraphResult

	Reduced    *table.Frame
	Projection *table.Frame
	Selection  *elbow.Result
	Model      *cluster.Model
	Clusters   []int
	Segmented  *table.Frame
}

// Run declares the segmentation DAG over data and executes it once.
//
// Configuration errors are returned before any node runs. Node failures
// return the partial Result together with a *dag.NodeError. best_k logs
// every scored candidate through the zerolog logger carried by ctx, if any.
func Run(ctx context.Context, data *table.Frame, cfg Config, reg registry.Registry, opts ...dag.Option) (*Result, error) {
	p := dag.NewPipeline(opts...)
	if err := Declare(p, data, cfg, reg); err != nil {
		return nil, err
	}
	gr, err := p.Run(ctx)
	if gr == nil {
		return nil, err
	}
	res, cerr := Collect(gr)
	if err != nil {
		return res, err
	}
	return res, cerr
}

// Collect decodes the segmentation outputs present in gr.
func Collect(gr *dag.GraphResult) (*Result, error) {
	res := &Result{Graph: gr}
	res.Reduced, _ = gr.Output(NodeReduce)
	res.Projection, _ = gr.Output(NodeProjection)
	res.Segmented, _ = gr.Output(NodeInsertClusters)

	if f, ok := gr.Output(NodeBestK); ok {
		sel, err := elbow.FromCurveFrame(f)
		if err != nil {
			return res, err
		}
		res.Selection = sel
	}
	if f, ok := gr.Output(NodeClusterModel); ok {
		m, err := cluster.FromFrame(f)
		if err != nil {
			return res, err
		}
		res.Model = m
	}
	if f, ok := gr.Output(NodePredict); ok {
		col, _ := f.Column(ClustersColumn)
		res.Clusters = make([]int, len(col.Nums))
		for i, v := range col.Nums {
			res.Clusters[i] = int(v)
		}
	}
	return res, nil
}
