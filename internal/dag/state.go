package dag

// TaskState is the runtime execution state of a node within one run.
//
//	PENDING, RUNNING, COMPLETED, FAILED, SKIPPED, CACHED
//
// It is kept apart from TaskGraph, which is immutable and may be executed
// many times.
type TaskState string

const (
	TaskPending   TaskState = "PENDING"
	TaskRunning   TaskState = "RUNNING"
	TaskCompleted TaskState = "COMPLETED"
	TaskFailed    TaskState = "FAILED"
	TaskSkipped   TaskState = "SKIPPED"
	TaskCached    TaskState = "CACHED"
)
