// Package observe provides dag.Observer implementations that expose a
// pipeline run through side channels: structured logs, OpenTelemetry spans
// and counters, and a terminal progress bar.
//
// None of them can influence execution. The executor recovers observer
// panics, and every observer here ignores its own write errors.
package observe
