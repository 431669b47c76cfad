package dag

import "segweaver/internal/core"

// GraphHash is the deterministic identity of a TaskGraph.
//
// It is computed solely from node definitions and dependency structure and
// is stable across declaration orders.
type GraphHash string

// String returns the hex representation of the GraphHash.
func (h GraphHash) String() string { return string(h) }

// Edge is a dependency relation: To consumes the output of From.
type Edge struct {
	From string
	To   string
}

// TaskNode is an immutable vertex of the TaskGraph.
type TaskNode struct {
	Name string
	Node *Node
	// DefinitionHash covers the node's name, parameters, dependency names
	// and, for sources, the content digest. It orders nodes canonically.
	DefinitionHash core.Fingerprint
	canonicalIndex int
}

// CanonicalIndex returns the node's position in the graph's canonical order.
func (n *TaskNode) CanonicalIndex() int { return n.canonicalIndex }
