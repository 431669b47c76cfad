// Package reduce projects a Frame onto its principal components.
package reduce

import (
	"math"
	"strconv"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"segweaver/internal/core"
	"segweaver/internal/table"
)

// MetaExplainedVariance is the metadata key prefix under which Reduce records
// each component's explained variance ratio ("explained_variance.<name>").
const MetaExplainedVariance = "explained_variance."

// Reduce projects the numeric columns of frame onto nComponents orthogonal
// directions of maximal variance, computed from frame's own covariance.
//
// The output has one numeric column per entry in names, in order, and exactly
// frame.Len() rows in the source row order. Categorical columns do not take
// part in the projection.
//
// Component signs are fixed so that the largest-magnitude loading of every
// component is positive; repeated calls on identical input return identical
// output.
func Reduce(frame *table.Frame, nComponents int, names []string) (*table.Frame, error) {
	const op = "reduce"
	if frame == nil {
		return nil, core.Errorf(core.ErrInvalidParameter, op, "nil dataset")
	}
	numeric := frame.NumericNames()
	rows := frame.Len()
	switch {
	case nComponents < 1:
		return nil, core.Errorf(core.ErrInvalidParameter, op, "n_components=%d must be >= 1", nComponents)
	case nComponents > len(numeric):
		return nil, core.Errorf(core.ErrInvalidParameter, op, "n_components=%d exceeds %d numeric columns", nComponents, len(numeric))
	case nComponents > rows:
		return nil, core.Errorf(core.ErrInvalidParameter, op, "n_components=%d exceeds %d rows", nComponents, rows)
	}
	if len(names) != nComponents {
		return nil, core.Errorf(core.ErrShapeMismatch, op, "got %d column names for n_components=%d", len(names), nComponents)
	}

	data, err := frame.Matrix(numeric...)
	if err != nil {
		return nil, err
	}
	d := len(numeric)
	x := mat.NewDense(rows, d, nil)
	for i, row := range data {
		x.SetRow(i, row)
	}

	// Centre the data; PC works on the covariance so the projection must too.
	means := make([]float64, d)
	for j := 0; j < d; j++ {
		means[j] = stat.Mean(mat.Col(nil, j, x), nil)
	}
	centered := mat.NewDense(rows, d, nil)
	centered.Apply(func(_, j int, v float64) float64 { return v - means[j] }, x)

	var pc stat.PC
	if ok := pc.PrincipalComponents(centered, nil); !ok {
		return nil, core.Errorf(core.ErrInvalidParameter, op, "principal component decomposition failed for %d x %d input", rows, d)
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)

	_, avail := vecs.Dims()
	if avail < nComponents {
		return nil, core.Errorf(core.ErrInvalidParameter, op, "only %d components available, n_components=%d", avail, nComponents)
	}

	basis := mat.DenseCopyOf(vecs.Slice(0, d, 0, nComponents))
	normaliseSigns(basis)

	var proj mat.Dense
	proj.Mul(centered, basis)

	cols := make([]table.Column, nComponents)
	for j, name := range names {
		cols[j] = table.NumericColumn(name, mat.Col(nil, j, &proj))
	}
	out, err := table.New(cols...)
	if err != nil {
		return nil, err
	}

	total := 0.0
	for _, v := range vars {
		total += v
	}
	for j, name := range names {
		ratio := 0.0
		if total > 0 {
			ratio = vars[j] / total
		}
		out = out.WithMeta(MetaExplainedVariance+name, strconv.FormatFloat(ratio, 'g', -1, 64))
	}
	return out, nil
}

// normaliseSigns flips each column of basis so its largest-magnitude entry is
// positive. Ties keep the first entry.
func normaliseSigns(basis *mat.Dense) {
	r, c := basis.Dims()
	for j := 0; j < c; j++ {
		best, bestAbs := 0, -1.0
		for i := 0; i < r; i++ {
			if a := math.Abs(basis.At(i, j)); a > bestAbs {
				best, bestAbs = i, a
			}
		}
		if basis.At(best, j) < 0 {
			for i := 0; i < r; i++ {
				basis.Set(i, j, -basis.At(i, j))
			}
		}
	}
}

// ExplainedVariance returns the explained variance ratio recorded by Reduce
// for each column of reduced, in column order.
func ExplainedVariance(reduced *table.Frame) ([]float64, error) {
	out := make([]float64, 0, len(reduced.Columns))
	for _, name := range reduced.Names() {
		raw, ok := reduced.Meta[MetaExplainedVariance+name]
		if !ok {
			return nil, core.Errorf(core.ErrShapeMismatch, "explained_variance", "no ratio recorded for %q", name)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, core.Errorf(core.ErrShapeMismatch, "explained_variance", "ratio for %q: %v", name, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Projection3D returns the first three components of reduced as columns
// x, y, z, for visualisation.
func Projection3D(reduced *table.Frame) (*table.Frame, error) {
	if reduced == nil || len(reduced.Columns) < 3 {
		n := 0
		if reduced != nil {
			n = len(reduced.Columns)
		}
		return nil, core.Errorf(core.ErrInvalidParameter, "projection_3d", "need at least 3 components, got %d", n)
	}
	axes := []string{"x", "y", "z"}
	cols := make([]table.Column, 3)
	for i := range axes {
		src := reduced.Columns[i]
		if src.Kind != table.Numeric {
			return nil, core.Errorf(core.ErrInvalidParameter, "projection_3d", "component %q is not numeric", src.Name)
		}
		cols[i] = table.NumericColumn(axes[i], append([]float64(nil), src.Nums...))
	}
	return table.New(cols...)
}
