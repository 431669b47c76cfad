package dag

import (
	"context"

	"segweaver/internal/table"
)

// Inputs maps each dependency name to its resolved output.
// Compute functions must treat the frames as read-only.
type Inputs map[string]*table.Frame

// ComputeFunc produces a node's output from its resolved inputs. It must be
// pure: the same inputs and parameters give the same output.
type ComputeFunc func(ctx context.Context, in Inputs) (*table.Frame, error)

// Node is a declared pipeline step.
type Node struct {
	Name string
	// Deps are the names of the nodes whose outputs this node consumes.
	Deps []string
	// Params are the configuration values that affect Compute's output.
	// They are part of the cache key.
	Params map[string]string
	// Compute is nil for source nodes.
	Compute ComputeFunc
	// NoCache forces execution on every run. Set it for nodes with external
	// side effects.
	NoCache bool

	source       *table.Frame
	sourceDigest string
}

// IsSource reports whether n is a constant input declared with Source.
func (n *Node) IsSource() bool { return n.source != nil }

// Cacheable reports whether n's output is read from and written to the
// artifact store.
func (n *Node) Cacheable() bool { return !n.NoCache && !n.IsSource() }

// NodeOption configures a node at declaration time.
type NodeOption func(*Node)

// WithParams sets the node's parameters. The map is copied.
func WithParams(params map[string]string) NodeOption {
	return func(n *Node) {
		n.Params = make(map[string]string, len(params))
		for k, v := range params {
			n.Params[k] = v
		}
	}
}

// NoCache marks the node as always executing.
func NoCache() NodeOption {
	return func(n *Node) { n.NoCache = true }
}
