package dag

import (
	"context"

	"github.com/rs/zerolog"

	"segweaver/internal/artifact"
	"segweaver/internal/table"
	"segweaver/internal/trace"
)

// Pipeline collects node declarations and runs them as one DAG.
//
// Nodes may be declared in any order; dependencies are resolved when Run
// builds the graph, before any node executes.
type Pipeline struct {
	nodes []*Node
	names map[string]struct{}

	store     artifact.Store
	observers []Observer
	sink      trace.Sink
	logger    zerolog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStore sets the artifact store. The default is an in-memory store owned
// by the Pipeline.
func WithStore(s artifact.Store) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithObserver adds observers notified after each node reaches a terminal
// state.
func WithObserver(o ...Observer) Option {
	return func(p *Pipeline) { p.observers = append(p.observers, o...) }
}

// WithTraceSink forwards trace events to s as they are recorded.
func WithTraceSink(s trace.Sink) Option {
	return func(p *Pipeline) { p.sink = s }
}

// WithLogger sets the logger used for node transitions.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{names: make(map[string]struct{}), logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	if p.store == nil {
		p.store = artifact.NewMemoryStore()
	}
	return p
}

// Declare registers a compute node. deps names the nodes whose outputs fn
// receives.
func (p *Pipeline) Declare(name string, deps []string, fn ComputeFunc, opts ...NodeOption) error {
	if fn == nil {
		return invalidf("node %q has no compute function", name)
	}
	n := &Node{Name: name, Deps: append([]string(nil), deps...), Compute: fn}
	for _, opt := range opts {
		opt(n)
	}
	return p.add(n)
}

// Source registers a constant input node. Its fingerprint is the content
// digest of frame, so changing the data invalidates every downstream node.
func (p *Pipeline) Source(name string, frame *table.Frame, opts ...NodeOption) error {
	digest, err := table.Digest(frame)
	if err != nil {
		return err
	}
	n := &Node{Name: name, source: frame, sourceDigest: digest}
	for _, opt := range opts {
		opt(n)
	}
	return p.add(n)
}

func (p *Pipeline) add(n *Node) error {
	if n.Name == "" {
		return invalidf("node name is required")
	}
	if _, dup := p.names[n.Name]; dup {
		return invalidf("duplicate node name: %q", n.Name)
	}
	p.names[n.Name] = struct{}{}
	p.nodes = append(p.nodes, n)
	return nil
}

// Graph builds and validates the TaskGraph for the declared nodes.
func (p *Pipeline) Graph() (*TaskGraph, error) {
	return NewTaskGraph(p.nodes)
}

// Store returns the pipeline's artifact store.
func (p *Pipeline) Store() artifact.Store { return p.store }

// Run validates the graph and executes it once. See Executor.RunSerial.
//
// Graph errors (unresolved or cyclic dependencies) are returned with a nil
// result. Node failures return the partial result and a *NodeError.
func (p *Pipeline) Run(ctx context.Context) (*GraphResult, error) {
	g, err := p.Graph()
	if err != nil {
		return nil, err
	}
	runner, err := NewCacheAwareRunner(p.store)
	if err != nil {
		return nil, err
	}
	exec, err := NewExecutor(g, runner)
	if err != nil {
		return nil, err
	}
	exec.Sink = p.sink
	exec.Observers = p.observers
	exec.Logger = p.logger.With().Str("graph", string(g.Hash())[:12]).Logger()

	p.logger.Debug().Int("nodes", len(g.nodes)).Str("graph", g.Hash().String()).Msg("pipeline graph validated")
	return exec.RunSerial(ctx)
}
