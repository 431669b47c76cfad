package cluster

import (
	"math"
	"strconv"

	"segweaver/internal/core"
	"segweaver/internal/table"
)

// Model is a fitted clustering model. It is immutable once returned by Fit.
type Model struct {
	Algorithm Algorithm `json:"algorithm"`
	K         int       `json:"k"`
	// Components names the input columns, in centroid coordinate order.
	// Empty when the model was fitted from a bare matrix.
	Components []string    `json:"components,omitempty"`
	Centroids  [][]float64 `json:"centroids"`
	Inertia    float64     `json:"inertia"`
	// NativePredict is false when Predict is a nearest-centroid stand-in for
	// an algorithm that has no out-of-sample assignment of its own
	// (agglomerative, spectral). The stand-in is only faithful for convex,
	// separated clusters: for non-convex shapes such as concentric rings
	// the input-space centroids can coincide, and Predict on the training
	// rows may then disagree with Labels.
	NativePredict bool `json:"native_predict"`
	// Labels is the assignment of the training rows. It is not persisted.
	Labels []int `json:"-"`
}

// Dim returns the number of coordinates the model expects per row.
func (m *Model) Dim() int {
	if len(m.Centroids) == 0 {
		return 0
	}
	return len(m.Centroids[0])
}

// Fit partitions the rows of x into k clusters with algorithm.
func Fit(x [][]float64, algorithm Algorithm, k int, opts Options) (*Model, error) {
	if err := algorithm.Validate(); err != nil {
		return nil, err
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := checkRows("fit", x, -1); err != nil {
		return nil, err
	}
	if k < 1 || k > len(x) {
		return nil, core.Errorf(core.ErrInvalidParameter, "fit", "k=%d out of range [1, %d]", k, len(x))
	}
	labels, centroids := fitters[algorithm](x, k, opts)
	return &Model{
		Algorithm:     algorithm,
		K:             k,
		Centroids:     centroids,
		Inertia:       inertia(x, labels, centroids),
		NativePredict: algorithm == KMeans,
		Labels:        labels,
	}, nil
}

// FitFrame fits a model on the named numeric columns of f (all numeric
// columns when names is empty) and records the column names on the model.
func FitFrame(f *table.Frame, algorithm Algorithm, k int, opts Options, names ...string) (*Model, error) {
	if len(names) == 0 {
		names = f.NumericNames()
	}
	x, err := f.Matrix(names...)
	if err != nil {
		return nil, err
	}
	m, err := Fit(x, algorithm, k, opts)
	if err != nil {
		return nil, err
	}
	m.Components = append([]string(nil), names...)
	return m, nil
}

// Predict assigns every row of x to its nearest centroid (Euclidean, lowest
// index on ties). For models whose NativePredict is false this approximates
// the algorithm's own assignment.
func Predict(m *Model, x [][]float64) ([]int, error) {
	if m == nil || len(m.Centroids) == 0 {
		return nil, core.Errorf(core.ErrInvalidParameter, "predict", "model has no centroids")
	}
	if err := checkRows("predict", x, m.Dim()); err != nil {
		return nil, err
	}
	return assign(x, m.Centroids), nil
}

// PredictFrame assigns the rows of f using the model's component columns.
func PredictFrame(m *Model, f *table.Frame) ([]int, error) {
	if m == nil || f == nil {
		return nil, core.Errorf(core.ErrInvalidParameter, "predict", "nil model or dataset")
	}
	x, err := f.Matrix(m.Components...)
	if err != nil {
		return nil, err
	}
	return Predict(m, x)
}

// checkRows validates that x is a non-empty rectangular matrix of finite
// values. dim < 0 accepts any width.
func checkRows(op string, x [][]float64, dim int) error {
	if len(x) == 0 {
		return core.Errorf(core.ErrInvalidParameter, op, "no rows")
	}
	if dim < 0 {
		dim = len(x[0])
	}
	if dim == 0 {
		return core.Errorf(core.ErrInvalidParameter, op, "rows have no columns")
	}
	for i, row := range x {
		if len(row) != dim {
			return core.Errorf(core.ErrShapeMismatch, op, "row %d has %d values, expected %d", i, len(row), dim)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return core.Errorf(core.ErrInvalidParameter, op, "row %d column %d is not finite", i, j)
			}
		}
	}
	return nil
}

// Frame metadata keys used by ToFrame.
const (
	metaAlgorithm = "algorithm"
	metaK         = "k"
	metaInertia   = "inertia"
	metaNative    = "native_predict"
)

// ToFrame encodes m as one row per centroid, one column per component.
func (m *Model) ToFrame() (*table.Frame, error) {
	names := m.Components
	if len(names) == 0 {
		names = make([]string, m.Dim())
		for j := range names {
			names[j] = "c" + strconv.Itoa(j)
		}
	}
	f, err := table.FromMatrix(names, m.Centroids)
	if err != nil {
		return nil, err
	}
	return f.WithMeta(metaAlgorithm, string(m.Algorithm)).
		WithMeta(metaK, strconv.Itoa(m.K)).
		WithMeta(metaInertia, strconv.FormatFloat(m.Inertia, 'g', -1, 64)).
		WithMeta(metaNative, strconv.FormatBool(m.NativePredict)), nil
}

// FromFrame decodes a model written by ToFrame.
func FromFrame(f *table.Frame) (*Model, error) {
	const op = "model"
	if f == nil {
		return nil, core.Errorf(core.ErrInvalidParameter, op, "nil frame")
	}
	if err := Algorithm(f.Meta[metaAlgorithm]).Validate(); err != nil {
		return nil, err
	}
	k, err := strconv.Atoi(f.Meta[metaK])
	if err != nil || k != f.Len() {
		return nil, core.Errorf(core.ErrShapeMismatch, op, "k=%q does not match %d centroid rows", f.Meta[metaK], f.Len())
	}
	in, err := strconv.ParseFloat(f.Meta[metaInertia], 64)
	if err != nil {
		return nil, core.Errorf(core.ErrShapeMismatch, op, "inertia=%q: %v", f.Meta[metaInertia], err)
	}
	native, err := strconv.ParseBool(f.Meta[metaNative])
	if err != nil {
		return nil, core.Errorf(core.ErrShapeMismatch, op, "native_predict=%q: %v", f.Meta[metaNative], err)
	}
	centroids, err := f.Matrix(f.Names()...)
	if err != nil {
		return nil, err
	}
	return &Model{
		Algorithm:     Algorithm(f.Meta[metaAlgorithm]),
		K:             k,
		Components:    f.Names(),
		Centroids:     centroids,
		Inertia:       in,
		NativePredict: native,
	}, nil
}

// SamePartition reports whether a and b group the same rows together,
// regardless of which label each group carries.
func SamePartition(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	ab := make(map[int]int)
	ba := make(map[int]int)
	for i := range a {
		if l, ok := ab[a[i]]; ok && l != b[i] {
			return false
		}
		if l, ok := ba[b[i]]; ok && l != a[i] {
			return false
		}
		ab[a[i]], ba[b[i]] = b[i], a[i]
	}
	return true
}
