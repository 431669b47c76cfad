package dag

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"segweaver/internal/core"
	"segweaver/internal/table"
	"segweaver/internal/trace"
)

// Executor executes a TaskGraph serially and deterministically.
type Executor struct {
	Graph  *TaskGraph
	Runner TaskRunner

	// Sink, Observers and Logger are optional side channels; none of them
	// can affect execution.
	Sink      trace.Sink
	Observers []Observer
	Logger    zerolog.Logger

	now func() time.Time

	mu    sync.Mutex
	state ExecutionState
}

// NewExecutor creates an executor with all nodes initialized to PENDING.
func NewExecutor(g *TaskGraph, runner TaskRunner) (*Executor, error) {
	if g == nil {
		return nil, fmt.Errorf("nil graph")
	}
	if runner == nil {
		return nil, fmt.Errorf("nil runner")
	}

	return &Executor{Graph: g, Runner: runner, Logger: zerolog.Nop(), now: time.Now, state: NewExecutionState(g)}, nil
}

// StateSnapshot returns a copy of the current execution state.
func (e *Executor) StateSnapshot() ExecutionState {
	e.mu.Lock()
	defer e.mu.Unlock()

	cp := make(ExecutionState, len(e.state))
	for k, v := range e.state {
		cp[k] = v
	}
	return cp
}

// run carries the per-run bookkeeping of RunSerial.
type run struct {
	ctx      context.Context
	recorder *trace.Recorder
	result   *GraphResult
	digests  map[string]string
}

// RunSerial executes every node once, in the order given by GetReadyTasks.
//
// Each node is fingerprinted from its definition and, per input, the content
// digest and the fingerprint of the node that produced it, then served from cache (CACHED) or executed (RUNNING ->
// COMPLETED). The first failure marks the node FAILED, its descendants
// SKIPPED with reason UpstreamFailed and every other pending node SKIPPED
// with reason RunAborted; RunSerial then returns the partial result together
// with a *NodeError.
//
// Cancelling ctx stops the run before the next node starts.
func (e *Executor) RunSerial(ctx context.Context) (*GraphResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	r := &run{
		ctx:      ctx,
		recorder: trace.NewRecorder(),
		digests:  make(map[string]string, len(e.Graph.nodes)),
		result: &GraphResult{
			GraphHash:    e.Graph.Hash(),
			Fingerprints: make(map[string]core.Fingerprint, len(e.Graph.nodes)),
			Outputs:      make(map[string]*table.Frame, len(e.Graph.nodes)),
		},
	}

	for {
		if err := ctx.Err(); err != nil {
			e.abort(r, "")
			return e.finish(r), fmt.Errorf("pipeline cancelled: %w", err)
		}

		e.mu.Lock()
		ready := GetReadyTasks(e.Graph, e.state)
		if len(ready) == 0 {
			stuck := Unfinished(e.Graph, e.state)
			e.mu.Unlock()
			if len(stuck) == 0 {
				return e.finish(r), nil
			}
			return nil, fmt.Errorf("no ready nodes but %v not finished", stuck)
		}
		e.mu.Unlock()

		if err := e.step(r, ready[0]); err != nil {
			return e.finish(r), err
		}
	}
}

// step resolves, looks up and if needed executes one ready node.
func (e *Executor) step(r *run, name string) error {
	node := e.Graph.nodesByName[name].Node
	started := e.now()

	inputs := make(Inputs, len(node.Deps))
	digests := make([]core.InputDigest, 0, len(node.Deps))
	for _, dep := range e.Graph.dependencies(name) {
		inputs[dep] = r.result.Outputs[dep]
		digests = append(digests, core.InputDigest{Name: dep, Digest: r.digests[dep], Upstream: r.result.Fingerprints[dep]})
	}
	if node.IsSource() {
		digests = append(digests, core.InputDigest{Digest: node.sourceDigest})
	}
	key := hasher.Compute(core.FingerprintInput{Node: name, Params: node.Params, Inputs: digests})
	r.result.Fingerprints[name] = key
	log := e.Logger.With().Str("node", name).Str("fingerprint", key.Short()).Logger()

	res, cached, err := e.Runner.Lookup(r.ctx, node, key)
	if err == nil && cached && res == nil {
		err = fmt.Errorf("probing cache: nil result")
	}
	if err == nil && cached {
		var digest string
		if digest, err = table.Digest(res.Output); err == nil {
			e.mu.Lock()
			err = Transition(e.state, name, TaskPending, TaskCached)
			e.mu.Unlock()
			if err != nil {
				return err
			}
			r.result.Outputs[name] = res.Output
			r.digests[name] = digest
			e.record(trace.Event{Kind: trace.EventNodeCached, Node: name, Fingerprint: key.String(), Reason: trace.ReasonCacheHit}, r)
			log.Debug().Msg("cache hit")
			notify(r.ctx, e.Observers, NodeEvent{Name: name, State: TaskCached, Fingerprint: key, Output: res.Output, Started: started, Finished: e.now()})
			return nil
		}
	}

	e.mu.Lock()
	if terr := Transition(e.state, name, TaskPending, TaskRunning); terr != nil {
		e.mu.Unlock()
		return terr
	}
	e.mu.Unlock()
	r.result.ExecutionOrder = append(r.result.ExecutionOrder, name)
	if err != nil {
		return e.fail(r, name, key, started, err)
	}
	log.Debug().Msg("running")

	res, err = e.Runner.Run(r.ctx, node, key, inputs)
	if err == nil && res == nil {
		err = fmt.Errorf("nil result")
	}
	var digest string
	if err == nil {
		digest, err = table.Digest(res.Output)
	}
	if err != nil {
		return e.fail(r, name, key, started, err)
	}

	e.mu.Lock()
	err = Transition(e.state, name, TaskRunning, TaskCompleted)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	r.result.Outputs[name] = res.Output
	r.digests[name] = digest

	reason := trace.ReasonCacheMiss
	switch {
	case node.IsSource():
		reason = trace.ReasonSource
	case node.NoCache:
		reason = trace.ReasonNoCache
	}
	e.record(trace.Event{Kind: trace.EventNodeExecuted, Node: name, Fingerprint: key.String(), Reason: reason}, r)
	if res.Stored {
		e.record(trace.Event{Kind: trace.EventNodeStored, Node: name, Fingerprint: key.String()}, r)
	}
	log.Debug().Str("reason", reason).Bool("stored", res.Stored).Msg("completed")
	notify(r.ctx, e.Observers, NodeEvent{Name: name, State: TaskCompleted, Fingerprint: key, Output: res.Output, Started: started, Finished: e.now()})
	return nil
}

// fail marks name FAILED, skips its descendants and aborts everything else.
func (e *Executor) fail(r *run, name string, key core.Fingerprint, started time.Time, cause error) error {
	e.mu.Lock()
	skipped, err := FailAndPropagate(e.Graph, e.state, name)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.record(trace.Event{Kind: trace.EventNodeFailed, Node: name, Fingerprint: key.String(), Reason: core.KindName(cause)}, r)
	e.Logger.Error().Err(cause).Str("node", name).Str("fingerprint", key.Short()).Msg("node failed")
	now := e.now()
	notify(r.ctx, e.Observers, NodeEvent{Name: name, State: TaskFailed, Fingerprint: key, Err: cause, Started: started, Finished: now})
	for _, s := range skipped {
		e.record(trace.Event{Kind: trace.EventNodeSkipped, Node: s, Reason: trace.ReasonUpstreamFailed, Cause: name}, r)
		notify(r.ctx, e.Observers, NodeEvent{Name: s, State: TaskSkipped, Cause: name, Started: now, Finished: now})
	}
	e.abort(r, name)
	return &NodeError{Node: name, Fingerprint: key, Err: cause}
}

// abort skips every node still PENDING, in canonical order.
func (e *Executor) abort(r *run, cause string) {
	now := e.now()
	for _, n := range e.Graph.nodes {
		e.mu.Lock()
		err := Transition(e.state, n.Name, TaskPending, TaskSkipped)
		e.mu.Unlock()
		if err != nil {
			continue
		}
		e.record(trace.Event{Kind: trace.EventNodeSkipped, Node: n.Name, Reason: trace.ReasonRunAborted, Cause: cause}, r)
		notify(r.ctx, e.Observers, NodeEvent{Name: n.Name, State: TaskSkipped, Cause: cause, Started: now, Finished: now})
	}
}

func (e *Executor) record(ev trace.Event, r *run) {
	r.recorder.Record(ev)
	trace.SafeRecord(e.Sink, ev)
}

func (e *Executor) finish(r *run) *GraphResult {
	r.result.FinalState = e.StateSnapshot()
	r.result.Trace = r.recorder.Trace(string(e.Graph.Hash()))
	return r.result
}
