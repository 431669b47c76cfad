// Package cluster fits and applies partitioning models over numeric rows.
//
// Three algorithms are supported: k-means, Ward agglomerative clustering and
// spectral clustering. All of them are deterministic for a given Options.Seed.
// Cluster labels are arbitrary integers in [0, k); compare partitions with
// SamePartition rather than by label value.
package cluster

import (
	"strings"

	"segweaver/internal/core"
)

// Algorithm identifies a clustering method.
type Algorithm string

const (
	KMeans        Algorithm = "kmeans"
	Agglomerative Algorithm = "agglomerative"
	Spectral      Algorithm = "spectral"
)

// Algorithms lists the supported algorithms in a stable order.
var Algorithms = []Algorithm{KMeans, Agglomerative, Spectral}

var aliases = map[string]Algorithm{
	"kmeans":                  KMeans,
	"k-means":                 KMeans,
	"agglomerative":           Agglomerative,
	"agglomerativeclustering": Agglomerative,
	"spectral":                Spectral,
	"spectralclustering":      Spectral,
}

// ParseAlgorithm resolves a configured algorithm name. Matching ignores case,
// so "KMeans" and "SpectralClustering" are accepted.
func ParseAlgorithm(name string) (Algorithm, error) {
	if a, ok := aliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return a, nil
	}
	return "", core.Errorf(core.ErrUnsupportedAlgorithm, "algorithm", "%q (supported: kmeans, agglomerative, spectral)", name)
}

// fitFunc partitions x into k clusters. x is validated and k is in range.
type fitFunc func(x [][]float64, k int, opts Options) (labels []int, centroids [][]float64)

var fitters = map[Algorithm]fitFunc{
	KMeans:        fitKMeans,
	Agglomerative: fitAgglomerative,
	Spectral:      fitSpectral,
}

// Options tunes the fitting algorithms. The zero value is not usable; start
// from DefaultOptions.
type Options struct {
	// Seed drives k-means++ seeding (also used by spectral clustering).
	Seed uint64
	// Restarts is the number of k-means runs; the lowest inertia wins.
	Restarts int
	// MaxIter bounds Lloyd iterations per run.
	MaxIter int
	// Gamma is the RBF kernel coefficient for spectral clustering.
	Gamma float64
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{Seed: 42, Restarts: 10, MaxIter: 300, Gamma: 1.0}
}

func (o Options) validate() error {
	switch {
	case o.Restarts < 1:
		return core.Errorf(core.ErrInvalidParameter, "fit", "restarts=%d must be >= 1", o.Restarts)
	case o.MaxIter < 1:
		return core.Errorf(core.ErrInvalidParameter, "fit", "max_iter=%d must be >= 1", o.MaxIter)
	case !(o.Gamma > 0):
		return core.Errorf(core.ErrInvalidParameter, "fit", "gamma=%g must be > 0", o.Gamma)
	}
	return nil
}

// Validate reports ErrUnsupportedAlgorithm unless a is one of Algorithms.
func (a Algorithm) Validate() error {
	if _, ok := fitters[a]; !ok {
		return core.Errorf(core.ErrUnsupportedAlgorithm, "algorithm", "%q", a)
	}
	return nil
}
