package cluster

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// fitSpectral embeds the rows using the top-k eigenvectors of the normalised
// RBF affinity matrix D^-1/2 A D^-1/2, then clusters the row-normalised
// embedding with k-means. Centroids are reported in the input space.
func fitSpectral(x [][]float64, k int, opts Options) ([]int, [][]float64) {
	embedding, ok := spectralEmbedding(x, k, opts.Gamma)
	if !ok {
		// Degenerate affinity: cluster the raw rows instead.
		embedding = x
	}
	labels, _ := fitKMeans(embedding, k, opts)
	return labels, centroidsOf(x, labels, k)
}

func spectralEmbedding(x [][]float64, k int, gamma float64) ([][]float64, bool) {
	n := len(x)
	aff := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		aff.SetSym(i, i, 1)
		for j := 0; j < i; j++ {
			aff.SetSym(i, j, math.Exp(-gamma*sqDist(x[i], x[j])))
		}
	}
	scale := make([]float64, n)
	for i := 0; i < n; i++ {
		deg := 0.0
		for j := 0; j < n; j++ {
			deg += aff.At(i, j)
		}
		scale[i] = 1 / math.Sqrt(deg)
	}
	norm := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			norm.SetSym(i, j, aff.At(i, j)*scale[i]*scale[j])
		}
	}

	var es mat.EigenSym
	if !es.Factorize(norm, true) {
		return nil, false
	}
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	// Eigenvalues come back ascending; the top k are the last k columns.
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, k)
		for j := 0; j < k; j++ {
			row[j] = vecs.At(i, n-k+j)
		}
		if l := floats.Norm(row, 2); l > 0 {
			floats.Scale(1/l, row)
		}
		out[i] = row
	}
	return out, true
}
