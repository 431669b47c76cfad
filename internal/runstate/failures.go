package runstate

import (
	"context"
	"errors"

	"segweaver/internal/core"
	"segweaver/internal/dag"
)

// Classify maps err onto the failure taxonomy.
//
//   - cyclic or unresolved dependencies and other graph errors: graph
//   - cache corruption and registry misses: storage
//   - any other error raised inside a node, and cancellation: execution
//   - anything else: parameter
//
// Code is core.KindName of err.
func Classify(err error) Failure {
	f := Failure{Code: core.KindName(err), Message: err.Error()}

	var ne *dag.NodeError
	if errors.As(err, &ne) {
		node := ne.Node
		f.Node = &node
		f.Fingerprint = ne.Fingerprint.String()
	}
	var ge *dag.GraphError

	switch kind := core.KindOf(err); {
	case errors.As(err, &ge), kind == core.ErrCyclicDependency, kind == core.ErrUnresolvedDependency:
		f.Class = FailureClassGraph
	case kind == core.ErrCacheCorrupt, kind == core.ErrNotFound:
		f.Class = FailureClassStorage
	case ne != nil, errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		f.Class = FailureClassExecution
	default:
		f.Class = FailureClassParameter
	}
	return f
}
