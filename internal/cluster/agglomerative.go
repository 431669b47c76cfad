package cluster

import (
	"math"
	"sort"
)

type merge struct {
	a, b   int
	height float64
}

// fitAgglomerative builds a Ward dendrogram with the nearest-neighbour chain
// algorithm and cuts it at k clusters.
//
// Distances are squared Euclidean and updated with the Lance-Williams Ward
// formula. Ward linkage is reducible, so the merges sorted by height form a
// valid dendrogram and cutting is a union-find over the first n-k merges.
func fitAgglomerative(x [][]float64, k int, _ Options) ([]int, [][]float64) {
	n := len(x)
	merges := wardChain(x)
	sort.SliceStable(merges, func(i, j int) bool { return merges[i].height < merges[j].height })

	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	for _, m := range merges[:n-k] {
		ra, rb := find(m.a), find(m.b)
		if ra < rb {
			parent[rb] = ra
		} else {
			parent[ra] = rb
		}
	}

	// Number clusters by first appearance in row order.
	ids := make(map[int]int, k)
	labels := make([]int, n)
	for i := range x {
		root := find(i)
		id, ok := ids[root]
		if !ok {
			id = len(ids)
			ids[root] = id
		}
		labels[i] = id
	}
	return labels, centroidsOf(x, labels, k)
}

func wardChain(x [][]float64) []merge {
	n := len(x)
	d := make([][]float64, n)
	for i := range d {
		d[i] = make([]float64, n)
		for j := 0; j < i; j++ {
			v := sqDist(x[i], x[j])
			d[i][j], d[j][i] = v, v
		}
	}
	size := make([]float64, n)
	active := make([]bool, n)
	for i := range size {
		size[i], active[i] = 1, true
	}

	merges := make([]merge, 0, n-1)
	chain := make([]int, 0, n)
	for remaining := n; remaining > 1; remaining-- {
		if len(chain) == 0 {
			for i := range active {
				if active[i] {
					chain = append(chain, i)
					break
				}
			}
		}
		var a, b int
		for {
			a = chain[len(chain)-1]
			prev, best, bestD := -1, -1, math.Inf(1)
			if len(chain) > 1 {
				prev = chain[len(chain)-2]
				best, bestD = prev, d[a][prev]
			}
			for c := range active {
				if active[c] && c != a && d[a][c] < bestD {
					best, bestD = c, d[a][c]
				}
			}
			if best == prev {
				b = prev
				break
			}
			chain = append(chain, best)
		}
		chain = chain[:len(chain)-2]

		if b < a {
			a, b = b, a
		}
		merges = append(merges, merge{a: a, b: b, height: d[a][b]})

		// Slot a holds the union; slot b is retired.
		for c := range active {
			if !active[c] || c == a || c == b {
				continue
			}
			t := size[a] + size[b] + size[c]
			v := ((size[a]+size[c])*d[a][c] + (size[b]+size[c])*d[b][c] - size[c]*d[a][b]) / t
			d[a][c], d[c][a] = v, v
		}
		size[a] += size[b]
		active[b] = false
	}
	return merges
}

// centroidsOf averages the rows of each label. A label with no rows takes
// the unused row farthest from its own centroid.
func centroidsOf(x [][]float64, labels []int, k int) [][]float64 {
	dim := len(x[0])
	out := make([][]float64, k)
	counts := make([]int, k)
	for c := range out {
		out[c] = make([]float64, dim)
	}
	for i, row := range x {
		for j, v := range row {
			out[labels[i]][j] += v
		}
		counts[labels[i]]++
	}
	var empty []int
	for c := range out {
		if counts[c] == 0 {
			empty = append(empty, c)
			continue
		}
		for j := range out[c] {
			out[c][j] /= float64(counts[c])
		}
	}
	if len(empty) > 0 {
		taken := make(map[int]bool)
		for _, c := range empty {
			far := farthest(x, labels, out, taken)
			taken[far] = true
			out[c] = clone(x[far])
		}
	}
	return out
}
