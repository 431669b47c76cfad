package observe

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"segweaver/internal/dag"
)

const instrumentationName = "segweaver/internal/observe"

// OTel records a span per node, back-dated to the node's start, and counts
// executions, cache hits and failures.
type OTel struct {
	tracer trace.Tracer

	executions metric.Int64Counter
	cacheHits  metric.Int64Counter
	failures   metric.Int64Counter
	duration   metric.Float64Histogram
}

// NewOTel builds an OTel observer. Nil providers fall back to the global
// ones registered with the otel package.
func NewOTel(tp trace.TracerProvider, mp metric.MeterProvider) (*OTel, error) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	o := &OTel{tracer: tp.Tracer(instrumentationName)}
	var err error
	if o.executions, err = meter.Int64Counter("segweaver.node.executions",
		metric.WithDescription("Nodes whose compute function ran."),
		metric.WithUnit("{node}")); err != nil {
		return nil, err
	}
	if o.cacheHits, err = meter.Int64Counter("segweaver.node.cache_hits",
		metric.WithDescription("Nodes served from the artifact store."),
		metric.WithUnit("{node}")); err != nil {
		return nil, err
	}
	if o.failures, err = meter.Int64Counter("segweaver.node.failures",
		metric.WithDescription("Nodes that failed."),
		metric.WithUnit("{node}")); err != nil {
		return nil, err
	}
	if o.duration, err = meter.Float64Histogram("segweaver.node.duration",
		metric.WithDescription("Time from node start to terminal state."),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *OTel) ObserveNode(ctx context.Context, ev dag.NodeEvent) {
	attrs := []attribute.KeyValue{
		attribute.String("segweaver.node", ev.Name),
		attribute.String("segweaver.state", string(ev.State)),
	}
	if ev.Fingerprint != "" {
		attrs = append(attrs, attribute.String("segweaver.fingerprint", ev.Fingerprint.String()))
	}
	if ev.Cause != "" {
		attrs = append(attrs, attribute.String("segweaver.cause", ev.Cause))
	}

	_, span := o.tracer.Start(ctx, "node "+ev.Name,
		trace.WithTimestamp(ev.Started),
		trace.WithAttributes(attrs...))
	if ev.Err != nil {
		span.RecordError(ev.Err)
		span.SetStatus(codes.Error, ev.Err.Error())
	}
	span.End(trace.WithTimestamp(ev.Finished))

	node := metric.WithAttributes(attribute.String("segweaver.node", ev.Name))
	switch ev.State {
	case dag.TaskCompleted:
		o.executions.Add(ctx, 1, node)
	case dag.TaskCached:
		o.cacheHits.Add(ctx, 1, node)
	case dag.TaskFailed:
		o.failures.Add(ctx, 1, node)
	}
	if ev.State != dag.TaskSkipped {
		o.duration.Record(ctx, ev.Duration().Seconds(), node)
	}
}
