package dag

import (
	"sort"
)

// layer places nodes level by level: level 0 holds the roots, and a node
// joins level L once its last dependency has been placed at level L-1, so
// its level is its longest distance from a root. Within a level nodes are
// ordered by name. The result is the order the executor runs nodes in and
// the depth of each node, both indexed canonically.
//
// Nodes on or behind a cycle never reach in-degree zero. When any remain,
// layer reports one of the cycles they contain.
func (g *TaskGraph) layer() (order, depth []int, err error) {
	indeg := append([]int(nil), g.indeg...)
	depth = make([]int, len(g.nodes))
	placed := make([]bool, len(g.nodes))
	order = make([]int, 0, len(g.nodes))

	var level []int
	for i, d := range indeg {
		if d == 0 {
			level = append(level, i)
		}
	}
	for l := 0; len(level) > 0; l++ {
		sort.Slice(level, func(i, j int) bool { return g.nodes[level[i]].Name < g.nodes[level[j]].Name })
		var next []int
		for _, u := range level {
			depth[u] = l
			placed[u] = true
			order = append(order, u)
			for _, v := range g.outgoing[u] {
				indeg[v]--
				if indeg[v] == 0 {
					next = append(next, v)
				}
			}
		}
		level = next
	}

	if len(order) < len(g.nodes) {
		return nil, nil, cycleError(g.cycleWitness(placed))
	}
	return order, depth, nil
}

// cycleWitness returns one cycle among the unplaced nodes as a path in edge
// direction, starting and ending at its smallest name.
//
// Every unplaced node has at least one unplaced dependency, so walking
// dependencies backwards from any of them must revisit a node. The walk
// starts at the smallest unplaced name and always takes the smallest
// unplaced dependency.
func (g *TaskGraph) cycleWitness(placed []bool) []string {
	smallest := func(candidates []int) int {
		best := -1
		for _, c := range candidates {
			if placed[c] {
				continue
			}
			if best < 0 || g.nodes[c].Name < g.nodes[best].Name {
				best = c
			}
		}
		return best
	}

	all := make([]int, len(g.nodes))
	for i := range all {
		all[i] = i
	}

	visitedAt := make(map[int]int)
	var walk []int
	for u := smallest(all); u >= 0; u = smallest(g.incoming[u]) {
		if at, seen := visitedAt[u]; seen {
			walk = walk[at:]
			break
		}
		visitedAt[u] = len(walk)
		walk = append(walk, u)
	}
	if len(walk) == 0 {
		return nil
	}

	// walk[i+1] -> walk[i] for every i, and walk[0] -> walk[last].
	path := make([]string, 0, len(walk)+1)
	path = append(path, g.nodes[walk[0]].Name)
	for i := len(walk) - 1; i > 0; i-- {
		path = append(path, g.nodes[walk[i]].Name)
	}

	lo := 0
	for i, name := range path {
		if name < path[lo] {
			lo = i
		}
	}
	rotated := append(append([]string(nil), path[lo:]...), path[:lo]...)
	return append(rotated, rotated[0])
}
