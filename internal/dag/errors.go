package dag

import (
	"fmt"
	"strings"

	"segweaver/internal/core"
)

// GraphError reports a graph that cannot be executed. Kind is one of
// core.ErrInvalidParameter, core.ErrUnresolvedDependency or
// core.ErrCyclicDependency.
type GraphError struct {
	Kind error
	Msg  string
	// Nodes names the nodes involved: the declaring node and the missing
	// dependency, or a cycle path whose first and last names are equal.
	Nodes []string
}

func (e *GraphError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return "graph: " + e.Kind.Error()
	}
	return fmt.Sprintf("graph: %s: %s", e.Kind.Error(), e.Msg)
}

func (e *GraphError) Unwrap() error { return e.Kind }

func invalidf(format string, args ...any) error {
	return &GraphError{Kind: core.ErrInvalidParameter, Msg: fmt.Sprintf(format, args...)}
}

func unresolvedError(node, dep string) error {
	return &GraphError{
		Kind:  core.ErrUnresolvedDependency,
		Msg:   fmt.Sprintf("node %q depends on undeclared node %q", node, dep),
		Nodes: []string{node, dep},
	}
}

func cycleError(path []string) error {
	msg := "cycle"
	if len(path) > 0 {
		msg = "cycle: " + strings.Join(path, " -> ")
	}
	return &GraphError{Kind: core.ErrCyclicDependency, Msg: msg, Nodes: path}
}

// NodeError is returned by Run when a node fails. It wraps the cause, so
// errors.Is matches the cause's kind.
type NodeError struct {
	Node        string
	Fingerprint core.Fingerprint
	Err         error
}

func (e *NodeError) Error() string {
	if e.Fingerprint == "" {
		return fmt.Sprintf("node %s: %v", e.Node, e.Err)
	}
	return fmt.Sprintf("node %s [%s]: %v", e.Node, e.Fingerprint.Short(), e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }
