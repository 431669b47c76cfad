package dag

import (
	"errors"
	"reflect"
	"testing"

	"segweaver/internal/core"
)

func TestGraphConstruction_SingleNode(t *testing.T) {
	g := mustGraph(t, node("A"))
	if g.Hash() == "" {
		t.Fatalf("expected non-empty graph hash")
	}
	if got := g.TopologicalOrder(); len(got) != 1 || got[0] != "A" {
		t.Fatalf("unexpected topo order: %v", got)
	}
}

func TestGraphConstruction_DependencyChain(t *testing.T) {
	g := mustGraph(t, node("C", "B"), node("A"), node("B", "A"))
	order := g.TopologicalOrder()
	pos := map[string]int{}
	for i, n := range order {
		pos[n] = i
	}
	if !(pos["A"] < pos["B"] && pos["B"] < pos["C"]) {
		t.Fatalf("expected A < B < C, got %v", order)
	}
	if d, _ := g.Depth("C"); d != 2 {
		t.Fatalf("expected depth 2 for C, got %d", d)
	}
}

func TestGraphConstruction_DiamondDependency(t *testing.T) {
	g := mustGraph(t, node("A"), node("B", "A"), node("C", "A"), node("D", "B", "C"))

	order := g.TopologicalOrder()
	pos := map[string]int{}
	for i, n := range order {
		pos[n] = i
	}
	if !(pos["A"] < pos["B"] && pos["A"] < pos["C"]) {
		t.Fatalf("expected A before B and C, got %v", order)
	}
	if !(pos["B"] < pos["D"] && pos["C"] < pos["D"]) {
		t.Fatalf("expected D after B and C, got %v", order)
	}

	countToD := 0
	for _, e := range g.Edges() {
		if e.To == "D" {
			countToD++
		}
	}
	if countToD != 2 {
		t.Fatalf("expected D to have 2 incoming edges, got %d", countToD)
	}
}

func TestGraphHash_InvariantToDeclarationOrder(t *testing.T) {
	withParams := func(n *Node, kv ...string) *Node {
		n.Params = map[string]string{}
		for i := 0; i < len(kv); i += 2 {
			n.Params[kv[i]] = kv[i+1]
		}
		return n
	}
	g1 := mustGraph(t,
		withParams(node("A"), "z", "9", "a", "1"),
		node("B", "A"),
		node("C", "A"),
	)
	g2 := mustGraph(t,
		node("C", "A"),
		node("B", "A"),
		withParams(node("A"), "a", "1", "z", "9"),
	)
	if g1.Hash() != g2.Hash() {
		t.Fatalf("expected equal graph hashes, got %s vs %s", g1.Hash(), g2.Hash())
	}

	g3 := mustGraph(t,
		withParams(node("A"), "a", "2", "z", "9"),
		node("B", "A"),
		node("C", "A"),
	)
	if g1.Hash() == g3.Hash() {
		t.Fatalf("expected param change to change graph hash")
	}
}

func TestGraphConstruction_RejectsInvalidDeclarations(t *testing.T) {
	cases := map[string][]*Node{
		"empty":        nil,
		"no name":      {node("")},
		"duplicate":    {node("A"), node("A")},
		"no compute":   {{Name: "A"}},
		"repeated dep": {node("A"), node("B", "A", "A")},
	}
	for name, nodes := range cases {
		_, err := NewTaskGraph(nodes)
		if !errors.Is(err, core.ErrInvalidParameter) {
			t.Fatalf("%s: expected invalid parameter, got %v", name, err)
		}
	}
}

func TestGraphConstruction_UnresolvedDependency(t *testing.T) {
	_, err := NewTaskGraph([]*Node{node("A"), node("B", "ghost")})
	if !errors.Is(err, core.ErrUnresolvedDependency) {
		t.Fatalf("expected unresolved dependency, got %v", err)
	}
	var ge *GraphError
	if !errors.As(err, &ge) {
		t.Fatalf("expected *GraphError, got %T", err)
	}
	if !reflect.DeepEqual(ge.Nodes, []string{"B", "ghost"}) {
		t.Fatalf("unexpected nodes %v", ge.Nodes)
	}
}

func TestCycleDetection_SelfLoopRejected(t *testing.T) {
	_, err := NewTaskGraph([]*Node{node("A", "A")})
	if !errors.Is(err, core.ErrCyclicDependency) {
		t.Fatalf("expected cyclic dependency, got %v", err)
	}
}

func TestCycleDetection_IndirectCycleRejected(t *testing.T) {
	_, err := NewTaskGraph([]*Node{node("A", "C"), node("B", "A"), node("C", "B"), node("D")})
	if !errors.Is(err, core.ErrCyclicDependency) {
		t.Fatalf("expected cyclic dependency, got %v", err)
	}
	want := "graph: cyclic dependency: cycle: "
	if got := err.Error(); len(got) <= len(want) || got[:len(want)] != want {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestCycleDetection_WitnessIsTheCycleInEdgeOrder(t *testing.T) {
	_, err := NewTaskGraph([]*Node{node("A", "C"), node("B", "A"), node("C", "B"), node("D")})
	var ge *GraphError
	if !errors.As(err, &ge) {
		t.Fatalf("expected *GraphError, got %v", err)
	}
	if want := []string{"A", "B", "C", "A"}; !reflect.DeepEqual(ge.Nodes, want) {
		t.Fatalf("witness = %v, want %v", ge.Nodes, want)
	}
	if want := "graph: cyclic dependency: cycle: A -> B -> C -> A"; err.Error() != want {
		t.Fatalf("message = %q, want %q", err.Error(), want)
	}
}

func TestCycleDetection_WitnessExcludesNodesBehindTheCycle(t *testing.T) {
	// a only consumes the cycle; it must not appear in the witness.
	_, err := NewTaskGraph([]*Node{node("a", "y"), node("x", "y"), node("y", "x"), node("root")})
	var ge *GraphError
	if !errors.As(err, &ge) {
		t.Fatalf("expected *GraphError, got %v", err)
	}
	if want := []string{"x", "y", "x"}; !reflect.DeepEqual(ge.Nodes, want) {
		t.Fatalf("witness = %v, want %v", ge.Nodes, want)
	}
}

func TestCycleDetection_WitnessIndependentOfDeclarationOrder(t *testing.T) {
	_, err1 := NewTaskGraph([]*Node{node("A", "C"), node("B", "A"), node("C", "B")})
	_, err2 := NewTaskGraph([]*Node{node("C", "B"), node("A", "C"), node("B", "A")})
	if err1 == nil || err2 == nil || err1.Error() != err2.Error() {
		t.Fatalf("witness depends on declaration order: %v vs %v", err1, err2)
	}
}

func TestGraphConstruction_TopologicalOrderIsDepthThenName(t *testing.T) {
	g := mustGraph(t, node("z"), node("b", "z"), node("a", "b"), node("c"), node("m", "c", "a"))
	want := []string{"c", "z", "b", "a", "m"}
	if got := g.TopologicalOrder(); !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	if d, _ := g.Depth("m"); d != 3 {
		t.Fatalf("depth of m = %d, want 3 (longest path)", d)
	}
}
