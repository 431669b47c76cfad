package cluster

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

// fitKMeans runs Options.Restarts rounds of k-means++ seeding followed by
// Lloyd iterations and keeps the run with the lowest inertia. Earlier runs win
// ties, so the result depends only on the seed.
func fitKMeans(x [][]float64, k int, opts Options) ([]int, [][]float64) {
	rng := rand.New(rand.NewPCG(opts.Seed, uint64(k)))
	var (
		bestLabels    []int
		bestCentroids [][]float64
		bestInertia   = math.Inf(1)
	)
	for r := 0; r < opts.Restarts; r++ {
		centroids := seedPlusPlus(x, k, rng)
		labels, centroids := lloyd(x, centroids, opts.MaxIter)
		if in := inertia(x, labels, centroids); in < bestInertia {
			bestLabels, bestCentroids, bestInertia = labels, centroids, in
		}
	}
	return bestLabels, bestCentroids
}

// seedPlusPlus picks k initial centroids: the first uniformly, each next one
// with probability proportional to its squared distance from the nearest
// centroid chosen so far.
func seedPlusPlus(x [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(x)
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone(x[rng.IntN(n)]))

	d2 := make([]float64, n)
	for i := range x {
		d2[i] = sqDist(x[i], centroids[0])
	}
	for len(centroids) < k {
		total := floats.Sum(d2)
		next := n - 1
		if total == 0 {
			next = rng.IntN(n)
		} else {
			target := rng.Float64() * total
			acc := 0.0
			for i, w := range d2 {
				acc += w
				if acc > target {
					next = i
					break
				}
			}
		}
		c := clone(x[next])
		centroids = append(centroids, c)
		for i := range x {
			if d := sqDist(x[i], c); d < d2[i] {
				d2[i] = d
			}
		}
	}
	return centroids
}

// lloyd alternates assignment and update steps until no label changes or
// maxIter is reached. A cluster that loses all its members is re-seeded at
// the point farthest from its current centroid.
func lloyd(x [][]float64, centroids [][]float64, maxIter int) ([]int, [][]float64) {
	labels := assign(x, centroids)
	for iter := 0; iter < maxIter; iter++ {
		centroids = update(x, labels, centroids)
		next := assign(x, centroids)
		if equalLabels(labels, next) {
			break
		}
		labels = next
	}
	return labels, centroids
}

// assign labels every row with its nearest centroid, lowest index on ties.
func assign(x [][]float64, centroids [][]float64) []int {
	labels := make([]int, len(x))
	for i, row := range x {
		labels[i] = nearest(row, centroids)
	}
	return labels
}

func nearest(row []float64, centroids [][]float64) int {
	best, bestD := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := sqDist(row, centroid); d < bestD {
			best, bestD = c, d
		}
	}
	return best
}

// update recomputes each centroid as the mean of its members.
func update(x [][]float64, labels []int, prev [][]float64) [][]float64 {
	k, dim := len(prev), len(x[0])
	sums := make([][]float64, k)
	counts := make([]int, k)
	for c := range sums {
		sums[c] = make([]float64, dim)
	}
	for i, row := range x {
		floats.Add(sums[labels[i]], row)
		counts[labels[i]]++
	}
	taken := make(map[int]bool)
	for c := range sums {
		if counts[c] > 0 {
			floats.Scale(1/float64(counts[c]), sums[c])
			continue
		}
		far := farthest(x, labels, prev, taken)
		taken[far] = true
		sums[c] = clone(x[far])
	}
	return sums
}

// farthest returns the row farthest from its assigned centroid, skipping rows
// already used for re-seeding. Lowest index wins ties.
func farthest(x [][]float64, labels []int, centroids [][]float64, skip map[int]bool) int {
	best, bestD := 0, -1.0
	for i, row := range x {
		if skip[i] {
			continue
		}
		if d := sqDist(row, centroids[labels[i]]); d > bestD {
			best, bestD = i, d
		}
	}
	return best
}

// inertia is the sum of squared distances from each row to its centroid.
func inertia(x [][]float64, labels []int, centroids [][]float64) float64 {
	total := 0.0
	for i, row := range x {
		total += sqDist(row, centroids[labels[i]])
	}
	return total
}

func sqDist(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}

func clone(v []float64) []float64 {
	return append([]float64(nil), v...)
}

func equalLabels(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
