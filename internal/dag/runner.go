package dag

import (
	"context"
	"fmt"

	"segweaver/internal/artifact"
	"segweaver/internal/core"
	"segweaver/internal/table"
)

// NodeResult is the outcome of executing or replaying a single node.
type NodeResult struct {
	Fingerprint core.Fingerprint
	Output      *table.Frame

	FromCache bool
	Stored    bool
}

// TaskRunner executes a single node on behalf of the Executor.
type TaskRunner interface {
	// Lookup checks whether the node can be satisfied from cache. If cached
	// is true, result must be non-nil with FromCache set.
	Lookup(ctx context.Context, n *Node, key core.Fingerprint) (result *NodeResult, cached bool, err error)

	Run(ctx context.Context, n *Node, key core.Fingerprint, in Inputs) (*NodeResult, error)
}

// CacheAwareRunner runs nodes with read-through and write-through caching
// against an artifact.Store. Source and NoCache nodes bypass the store.
type CacheAwareRunner struct {
	Store artifact.Store
}

func NewCacheAwareRunner(store artifact.Store) (*CacheAwareRunner, error) {
	if store == nil {
		return nil, fmt.Errorf("nil artifact store")
	}
	return &CacheAwareRunner{Store: store}, nil
}

func (r *CacheAwareRunner) Lookup(ctx context.Context, n *Node, key core.Fingerprint) (*NodeResult, bool, error) {
	if !n.Cacheable() {
		return nil, false, nil
	}
	entry, err := r.Store.Get(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("probing cache: %w", err)
	}
	if entry == nil {
		return nil, false, nil
	}
	return &NodeResult{Fingerprint: key, Output: entry.Frame, FromCache: true}, true, nil
}

func (r *CacheAwareRunner) Run(ctx context.Context, n *Node, key core.Fingerprint, in Inputs) (*NodeResult, error) {
	if n.IsSource() {
		return &NodeResult{Fingerprint: key, Output: n.source}, nil
	}
	out, err := n.Compute(ctx, in)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, core.Errorf(core.ErrInvalidParameter, n.Name, "compute returned no output")
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	res := &NodeResult{Fingerprint: key, Output: out}
	if n.Cacheable() {
		if err := r.Store.Put(ctx, &artifact.Entry{Key: key, Node: n.Name, Frame: out}); err != nil {
			return nil, fmt.Errorf("writing cache: %w", err)
		}
		res.Stored = true
	}
	return res, nil
}
