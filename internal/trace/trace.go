// Package trace records the logical decisions of a pipeline run.
//
// A trace is observational only: recording never affects execution, and the
// canonical form depends only on what was decided (which nodes ran, hit the
// cache, failed or were skipped), never on timing.
package trace

import (
	"errors"
	"fmt"
	"sort"

	"github.com/bytedance/sonic"

	"segweaver/internal/core"
)

// ExecutionTrace is the canonical record of one pipeline run.
//
// Invariants:
//   - GraphHash identifies the graph that was executed.
//   - Events carry no timestamps, error strings or pointer-derived values.
//
// Treat a trace as immutable once Canonicalize has been called.
type ExecutionTrace struct {
	GraphHash string  `json:"graphHash"`
	Events    []Event `json:"events"`
}

// EventKind discriminates Event. The string values are part of the canonical
// bytes; do not rename.
type EventKind string

const (
	EventNodeCached   EventKind = "NodeCached"
	EventNodeExecuted EventKind = "NodeExecuted"
	EventNodeStored   EventKind = "NodeStored"
	EventNodeFailed   EventKind = "NodeFailed"
	EventNodeSkipped  EventKind = "NodeSkipped"
)

// Stable reason codes.
const (
	ReasonCacheHit       = "CacheHit"
	ReasonCacheMiss      = "CacheMiss"
	ReasonNoCache        = "NoCache"
	ReasonSource         = "Source"
	ReasonUpstreamFailed = "UpstreamFailed"
	ReasonRunAborted     = "RunAborted"
)

// Event is a single logical transition or decision about a node.
type Event struct {
	Kind EventKind `json:"kind"`
	Node string    `json:"node"`
	// Fingerprint is the node's cache key, when one was computed.
	Fingerprint string `json:"fingerprint,omitempty"`
	// Reason is a stable code from the Reason* constants, or the failure
	// kind name for EventNodeFailed.
	Reason string `json:"reason,omitempty"`
	// Cause names a related upstream node, e.g. the failed node behind a skip.
	Cause string `json:"cause,omitempty"`
}

// Validate checks the trace's basic invariants.
func (t *ExecutionTrace) Validate() error {
	if t == nil {
		return errors.New("trace is nil")
	}
	if t.GraphHash == "" {
		return errors.New("graphHash is required")
	}
	for i, e := range t.Events {
		if kindOrder(e.Kind) < 0 {
			return fmt.Errorf("events[%d].kind %q is unknown", i, e.Kind)
		}
		if e.Node == "" {
			return fmt.Errorf("events[%d].node is required", i)
		}
	}
	return nil
}

// Canonicalize sorts events by (node, kind order, reason, cause, fingerprint),
// which is a total order independent of recording order.
func (t *ExecutionTrace) Canonicalize() {
	if t == nil {
		return
	}
	sort.SliceStable(t.Events, func(i, j int) bool {
		a, b := t.Events[i], t.Events[j]
		if a.Node != b.Node {
			return a.Node < b.Node
		}
		if kindOrder(a.Kind) != kindOrder(b.Kind) {
			return kindOrder(a.Kind) < kindOrder(b.Kind)
		}
		if a.Reason != b.Reason {
			return a.Reason < b.Reason
		}
		if a.Cause != b.Cause {
			return a.Cause < b.Cause
		}
		return a.Fingerprint < b.Fingerprint
	})
}

func kindOrder(k EventKind) int {
	switch k {
	case EventNodeCached:
		return 10
	case EventNodeExecuted:
		return 20
	case EventNodeStored:
		return 30
	case EventNodeFailed:
		return 40
	case EventNodeSkipped:
		return 50
	default:
		return -1
	}
}

// CanonicalJSON returns the canonical JSON encoding of a canonicalized copy
// of the trace. Field order follows the struct declaration.
func (t ExecutionTrace) CanonicalJSON() ([]byte, error) {
	cp := ExecutionTrace{GraphHash: t.GraphHash, Events: make([]Event, len(t.Events))}
	copy(cp.Events, t.Events)
	cp.Canonicalize()
	if err := cp.Validate(); err != nil {
		return nil, err
	}
	return sonic.ConfigStd.Marshal(&cp)
}

// Hash returns the sha256 hex digest of the canonical JSON.
func (t ExecutionTrace) Hash() (string, error) {
	b, err := t.CanonicalJSON()
	if err != nil {
		return "", err
	}
	return core.Digest(b), nil
}

// Counts returns the number of events of each kind.
func (t ExecutionTrace) Counts() map[EventKind]int {
	out := make(map[EventKind]int)
	for _, e := range t.Events {
		out[e.Kind]++
	}
	return out
}
