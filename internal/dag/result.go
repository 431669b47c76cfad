package dag

import (
	"segweaver/internal/core"
	"segweaver/internal/table"
	"segweaver/internal/trace"
)

// GraphResult is the summary of one pipeline run.
type GraphResult struct {
	GraphHash GraphHash

	// FinalState is the terminal state of each node by name.
	FinalState ExecutionState

	// ExecutionOrder lists the nodes that were executed (transitioned to
	// RUNNING), in order. Cached nodes are not listed.
	ExecutionOrder []string

	// Fingerprints records each resolved node's cache key.
	Fingerprints map[string]core.Fingerprint

	// Outputs holds the frame produced or replayed by each successful node.
	Outputs map[string]*table.Frame

	// Trace is the canonical record of the run's decisions.
	Trace trace.ExecutionTrace
}

// Output returns the output of the named node.
func (r *GraphResult) Output(name string) (*table.Frame, bool) {
	f, ok := r.Outputs[name]
	return f, ok
}

// Count returns the number of nodes that ended in state s.
func (r *GraphResult) Count(s TaskState) int {
	n := 0
	for _, st := range r.FinalState {
		if st == s {
			n++
		}
	}
	return n
}
