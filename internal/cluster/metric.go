package cluster

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"segweaver/internal/core"
)

// Metric scores a partition of a dataset.
type Metric string

const (
	// Distortion is the within-cluster sum of squared distances to the
	// centroid. Lower is better.
	Distortion Metric = "distortion"
	// Silhouette is the mean silhouette coefficient. Higher is better.
	Silhouette Metric = "silhouette"
	// CalinskiHarabasz is the between/within dispersion ratio. Higher is better.
	CalinskiHarabasz Metric = "calinski_harabasz"
)

var metrics = map[Metric]func(x [][]float64, labels []int, k int) (float64, error){
	Distortion:       distortion,
	Silhouette:       silhouette,
	CalinskiHarabasz: calinskiHarabasz,
}

// ParseMetric resolves a configured metric name.
func ParseMetric(name string) (Metric, error) {
	m := Metric(name)
	if _, ok := metrics[m]; !ok {
		return "", core.Errorf(core.ErrInvalidParameter, "metric", "unknown metric %q (supported: distortion, silhouette, calinski_harabasz)", name)
	}
	return m, nil
}

// HigherIsBetter reports the direction in which m improves.
func (m Metric) HigherIsBetter() bool {
	return m != Distortion
}

// MinK is the smallest cluster count m is defined for.
func (m Metric) MinK() int {
	if m == Distortion {
		return 1
	}
	return 2
}

// Score evaluates labels (values in [0, k)) over the rows of x.
func (m Metric) Score(x [][]float64, labels []int, k int) (float64, error) {
	fn, ok := metrics[m]
	if !ok {
		return 0, core.Errorf(core.ErrInvalidParameter, "metric", "unknown metric %q", m)
	}
	if err := checkRows("score", x, -1); err != nil {
		return 0, err
	}
	if len(labels) != len(x) {
		return 0, core.Errorf(core.ErrShapeMismatch, "score", "%d labels for %d rows", len(labels), len(x))
	}
	for i, l := range labels {
		if l < 0 || l >= k {
			return 0, core.Errorf(core.ErrInvalidParameter, "score", "label %d at row %d outside [0, %d)", l, i, k)
		}
	}
	return fn(x, labels, k)
}

func distortion(x [][]float64, labels []int, k int) (float64, error) {
	return inertia(x, labels, centroidsOf(x, labels, k)), nil
}

// silhouette averages (b-a)/max(a,b) over all rows, where a is the mean
// distance to the row's own cluster and b the smallest mean distance to
// another cluster. Rows in singleton clusters score 0.
func silhouette(x [][]float64, labels []int, k int) (float64, error) {
	n := len(x)
	counts := make([]int, k)
	for _, l := range labels {
		counts[l]++
	}
	if used := nonEmpty(counts); used < 2 || used > n-1 {
		return 0, core.Errorf(core.ErrInvalidParameter, "silhouette", "needs 2 to %d clusters, got %d", n-1, used)
	}
	total := 0.0
	sums := make([]float64, k)
	for i := range x {
		for c := range sums {
			sums[c] = 0
		}
		for j := range x {
			if i != j {
				sums[labels[j]] += floats.Distance(x[i], x[j], 2)
			}
		}
		own := labels[i]
		if counts[own] == 1 {
			continue
		}
		a := sums[own] / float64(counts[own]-1)
		b := math.Inf(1)
		for c := range sums {
			if c != own && counts[c] > 0 {
				b = math.Min(b, sums[c]/float64(counts[c]))
			}
		}
		if m := math.Max(a, b); m > 0 {
			total += (b - a) / m
		}
	}
	return total / float64(n), nil
}

// calinskiHarabasz is (B/(k-1)) / (W/(n-k)) for between-cluster dispersion B
// and within-cluster dispersion W. A partition with W == 0 scores 1.
func calinskiHarabasz(x [][]float64, labels []int, k int) (float64, error) {
	n := len(x)
	counts := make([]int, k)
	for _, l := range labels {
		counts[l]++
	}
	used := nonEmpty(counts)
	if used < 2 || used > n-1 {
		return 0, core.Errorf(core.ErrInvalidParameter, "calinski_harabasz", "needs 2 to %d clusters, got %d", n-1, used)
	}
	centroids := centroidsOf(x, labels, k)
	mean := make([]float64, len(x[0]))
	for _, row := range x {
		floats.Add(mean, row)
	}
	floats.Scale(1/float64(n), mean)

	between := 0.0
	for c, centroid := range centroids {
		if counts[c] > 0 {
			between += float64(counts[c]) * sqDist(centroid, mean)
		}
	}
	within := inertia(x, labels, centroids)
	if within == 0 {
		return 1, nil
	}
	return (between / float64(used-1)) / (within / float64(n-used)), nil
}

func nonEmpty(counts []int) int {
	used := 0
	for _, c := range counts {
		if c > 0 {
			used++
		}
	}
	return used
}
