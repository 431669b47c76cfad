package dag

import (
	"context"

	"segweaver/internal/table"
)

// node declares a compute node whose output names it.
func node(name string, deps ...string) *Node {
	return &Node{Name: name, Deps: deps, Compute: func(context.Context, Inputs) (*table.Frame, error) {
		return table.New(table.CategoricalColumn("from", []string{name}))
	}}
}

func mustGraph(t interface {
	Helper()
	Fatalf(string, ...any)
}, nodes ...*Node) *TaskGraph {
	t.Helper()
	g, err := NewTaskGraph(nodes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return g
}
