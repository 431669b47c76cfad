package dag

import (
	"sort"
)

type edgeIndex struct {
	from int
	to   int
}

// TaskGraph is an immutable, validated DAG of declared nodes.
//
// It is safe for concurrent read access.
type TaskGraph struct {
	nodesByName map[string]*TaskNode
	nodes       []*TaskNode // canonical order

	edges []edgeIndex // sorted

	outgoing [][]int // by canonical index, sorted ascending
	incoming [][]int // by canonical index, sorted ascending
	indeg    []int   // by canonical index
	depth    []int   // by canonical index (topological depth)
	order    []int   // canonical indices in execution order (depth, name)

	hash GraphHash
}

// NewTaskGraph builds and validates a TaskGraph. Edges come from each node's
// Deps.
//
// Validation runs immediately and rejects:
//   - an empty node list, empty or duplicate names, nodes without Compute
//     that are not sources, and repeated dependencies (ErrInvalidParameter)
//   - dependencies on undeclared nodes (ErrUnresolvedDependency)
//   - self-dependencies and any other cycle (ErrCyclicDependency)
func NewTaskGraph(declared []*Node) (*TaskGraph, error) {
	if len(declared) == 0 {
		return nil, invalidf("no nodes")
	}

	nodesByName := make(map[string]*TaskNode, len(declared))
	nodes := make([]*TaskNode, 0, len(declared))
	for _, n := range declared {
		if n == nil || n.Name == "" {
			return nil, invalidf("node name is required")
		}
		if _, exists := nodesByName[n.Name]; exists {
			return nil, invalidf("duplicate node name: %q", n.Name)
		}
		if n.Compute == nil && !n.IsSource() {
			return nil, invalidf("node %q has no compute function", n.Name)
		}
		tn := &TaskNode{Name: n.Name, Node: n, DefinitionHash: definitionHash(n)}
		nodesByName[n.Name] = tn
		nodes = append(nodes, tn)
	}

	// Canonical order: definition hash, then name as tie-breaker.
	sort.Slice(nodes, func(i, j int) bool {
		ai, aj := nodes[i], nodes[j]
		if ai.DefinitionHash != aj.DefinitionHash {
			return ai.DefinitionHash < aj.DefinitionHash
		}
		return ai.Name < aj.Name
	})
	for i, n := range nodes {
		n.canonicalIndex = i
	}

	// Dependencies are checked in canonical node order so the reported
	// error does not depend on declaration order.
	var mapped []edgeIndex
	for _, to := range nodes {
		seen := make(map[string]struct{}, len(to.Node.Deps))
		deps := append([]string(nil), to.Node.Deps...)
		sort.Strings(deps)
		for _, dep := range deps {
			if _, dup := seen[dep]; dup {
				return nil, invalidf("node %q lists dependency %q twice", to.Name, dep)
			}
			seen[dep] = struct{}{}
			from, ok := nodesByName[dep]
			if !ok {
				return nil, unresolvedError(to.Name, dep)
			}
			if from == to {
				return nil, cycleError([]string{to.Name, to.Name})
			}
			mapped = append(mapped, edgeIndex{from: from.canonicalIndex, to: to.canonicalIndex})
		}
	}

	sort.Slice(mapped, func(i, j int) bool {
		a, b := mapped[i], mapped[j]
		if a.from != b.from {
			return a.from < b.from
		}
		return a.to < b.to
	})

	outgoing := make([][]int, len(nodes))
	incoming := make([][]int, len(nodes))
	indeg := make([]int, len(nodes))
	for _, e := range mapped {
		outgoing[e.from] = append(outgoing[e.from], e.to)
		incoming[e.to] = append(incoming[e.to], e.from)
		indeg[e.to]++
	}
	for i := range outgoing {
		sort.Ints(outgoing[i])
	}
	for i := range incoming {
		sort.Ints(incoming[i])
	}

	g := &TaskGraph{
		nodesByName: nodesByName,
		nodes:       nodes,
		edges:       mapped,
		outgoing:    outgoing,
		incoming:    incoming,
		indeg:       indeg,
	}

	order, depth, err := g.layer()
	if err != nil {
		return nil, err
	}
	g.order, g.depth = order, depth
	g.hash = graphHash(nodes)
	return g, nil
}

// Hash returns the stable identity for this graph.
func (g *TaskGraph) Hash() GraphHash { return g.hash }

// Node returns a node by name.
func (g *TaskGraph) Node(name string) (*TaskNode, bool) {
	n, ok := g.nodesByName[name]
	return n, ok
}

// Nodes returns the nodes in canonical order.
func (g *TaskGraph) Nodes() []*TaskNode {
	out := make([]*TaskNode, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Edges returns the dependency edges as (From, To) name pairs in canonical order.
func (g *TaskGraph) Edges() []Edge {
	out := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, Edge{From: g.nodes[e.from].Name, To: g.nodes[e.to].Name})
	}
	return out
}

// Depth returns the topological depth of the named node: the length of the
// longest path from any root to it.
func (g *TaskGraph) Depth(name string) (int, bool) {
	n, ok := g.nodesByName[name]
	if !ok {
		return 0, false
	}
	return g.depth[n.canonicalIndex], true
}

// TopologicalOrder returns the node names in execution order: depth, then
// name.
func (g *TaskGraph) TopologicalOrder() []string {
	names := make([]string, 0, len(g.order))
	for _, idx := range g.order {
		names = append(names, g.nodes[idx].Name)
	}
	return names
}

// dependencies returns the names of the nodes that name consumes, sorted.
func (g *TaskGraph) dependencies(name string) []string {
	n := g.nodesByName[name]
	out := make([]string, 0, len(g.incoming[n.canonicalIndex]))
	for _, p := range g.incoming[n.canonicalIndex] {
		out = append(out, g.nodes[p].Name)
	}
	sort.Strings(out)
	return out
}
