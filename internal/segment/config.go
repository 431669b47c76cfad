package segment

import (
	"errors"
	"fmt"

	"segweaver/internal/cluster"
	"segweaver/internal/core"
	"segweaver/internal/elbow"
)

// Config holds the parameters of one segmentation run.
type Config struct {
	// NComponents is the number of principal components kept.
	NComponents int
	// Columns names the reduced columns; len(Columns) must equal NComponents.
	Columns []string

	Algorithm string
	Metric    string
	// KRange lists the candidate cluster counts, ascending.
	KRange []int

	// ModelName is the registry name the fitted model is saved under.
	ModelName string

	Cluster   cluster.Options
	Tolerance float64
}

// DefaultConfig returns a three-component k-means run scored by distortion
// over k = 2..10.
func DefaultConfig() Config {
	return Config{
		NComponents: 3,
		Columns:     []string{"col1", "col2", "col3"},
		Algorithm:   string(cluster.KMeans),
		Metric:      string(cluster.Distortion),
		KRange:      KRange(2, 10),
		ModelName:   "customer_segmentation",
		Cluster:     cluster.DefaultOptions(),
		Tolerance:   elbow.DefaultTolerance,
	}
}

// KRange returns the integers lo..hi inclusive. It returns nil when hi < lo.
func KRange(lo, hi int) []int {
	if hi < lo {
		return nil
	}
	out := make([]int, 0, hi-lo+1)
	for k := lo; k <= hi; k++ {
		out = append(out, k)
	}
	return out
}

// resolved is a Config whose names have been mapped onto the closed
// algorithm and metric sets.
type resolved struct {
	Config
	algorithm cluster.Algorithm
	metric    cluster.Metric
}

// resolve checks everything that can be checked without data. Algorithm
// errors take precedence so that an unknown algorithm is always reported as
// core.ErrUnsupportedAlgorithm.
func (c Config) resolve() (resolved, error) {
	alg, err := cluster.ParseAlgorithm(c.Algorithm)
	if err != nil {
		return resolved{}, err
	}
	metric, err := cluster.ParseMetric(c.Metric)
	if err != nil {
		return resolved{}, err
	}

	var errs []error
	if c.NComponents < 1 {
		errs = append(errs, fmt.Errorf("n_components=%d must be >= 1", c.NComponents))
	}
	if len(c.KRange) < 3 {
		errs = append(errs, fmt.Errorf("k_range %v must hold at least 3 values", c.KRange))
	}
	if c.ModelName == "" {
		errs = append(errs, errors.New("model_name is required"))
	}
	if c.Tolerance < 0 {
		errs = append(errs, fmt.Errorf("tolerance=%g must be >= 0", c.Tolerance))
	}
	if err := errors.Join(errs...); err != nil {
		return resolved{}, core.Errorf(core.ErrInvalidParameter, "segment", "%v", err)
	}
	return resolved{Config: c, algorithm: alg, metric: metric}, nil
}
