package dag

import (
	"context"
	"time"

	"segweaver/internal/core"
	"segweaver/internal/table"
)

// NodeEvent describes a node that reached a terminal state.
type NodeEvent struct {
	Name        string
	State       TaskState
	Fingerprint core.Fingerprint
	// Output is set for COMPLETED and CACHED nodes.
	Output *table.Frame
	// Err is set for FAILED nodes.
	Err error
	// Cause names the failed node behind a SKIPPED event, if any.
	Cause string

	Started  time.Time
	Finished time.Time
}

// Duration returns how long the node took to reach its terminal state.
func (e NodeEvent) Duration() time.Duration { return e.Finished.Sub(e.Started) }

// Observer receives node events as the pipeline runs. Observers run on the
// executor's goroutine; a panicking observer is ignored.
type Observer interface {
	ObserveNode(ctx context.Context, ev NodeEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev NodeEvent)

func (f ObserverFunc) ObserveNode(ctx context.Context, ev NodeEvent) { f(ctx, ev) }

func notify(ctx context.Context, observers []Observer, ev NodeEvent) {
	for _, o := range observers {
		safeObserve(ctx, o, ev)
	}
}

func safeObserve(ctx context.Context, o Observer, ev NodeEvent) {
	if o == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	o.ObserveNode(ctx, ev)
}
