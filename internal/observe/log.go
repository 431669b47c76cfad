package observe

import (
	"context"

	"github.com/rs/zerolog"

	"segweaver/internal/dag"
)

// Log writes one structured log line per node event.
//
// Cache hits and completions are logged at info, skips at warn and failures
// at error.
type Log struct {
	Logger zerolog.Logger
}

func NewLog(l zerolog.Logger) *Log { return &Log{Logger: l} }

func (o *Log) ObserveNode(_ context.Context, ev dag.NodeEvent) {
	var e *zerolog.Event
	switch ev.State {
	case dag.TaskCached:
		e = o.Logger.Info()
	case dag.TaskCompleted:
		e = o.Logger.Info()
	case dag.TaskSkipped:
		e = o.Logger.Warn().Str("cause", ev.Cause)
	case dag.TaskFailed:
		e = o.Logger.Error().Err(ev.Err)
	default:
		e = o.Logger.Debug()
	}
	e = e.Str("node", ev.Name).Str("state", string(ev.State))
	if ev.Fingerprint != "" {
		e = e.Str("fingerprint", ev.Fingerprint.Short())
	}
	if ev.Output != nil {
		e = e.Int("rows", ev.Output.Len()).Int("columns", len(ev.Output.Columns))
	}
	e.Dur("duration", ev.Duration()).Msg(message(ev.State))
}

func message(s dag.TaskState) string {
	switch s {
	case dag.TaskCached:
		return "cache hit"
	case dag.TaskCompleted:
		return "node completed"
	case dag.TaskSkipped:
		return "node skipped"
	case dag.TaskFailed:
		return "node failed"
	default:
		return "node event"
	}
}
