// Package runstate keeps a durable ledger of pipeline runs: one run.json per
// run and, for failed runs, a classified failure.json.
package runstate

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is the persistent record of one pipeline execution.
type Run struct {
	RunID string `json:"run_id"`
	// GraphHash is empty when the run failed before its graph was built.
	GraphHash string            `json:"graph_hash,omitempty"`
	Params    map[string]string `json:"params"`
	StartTime time.Time         `json:"start_time"`
	EndTime   *time.Time        `json:"end_time"`
	Status    RunStatus         `json:"status"`
}

func (r Run) Validate() error {
	var errs []error
	if strings.TrimSpace(r.RunID) == "" {
		errs = append(errs, errors.New("run_id is required"))
	}
	if r.StartTime.IsZero() {
		errs = append(errs, errors.New("start_time is required"))
	}
	switch r.Status {
	case RunRunning:
		if r.EndTime != nil {
			errs = append(errs, errors.New("end_time must be null while running"))
		}
	case RunSucceeded, RunFailed:
		if r.EndTime == nil {
			errs = append(errs, fmt.Errorf("end_time is required for status %q", r.Status))
		} else if r.EndTime.Before(r.StartTime) {
			errs = append(errs, errors.New("end_time precedes start_time"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid status %q", r.Status))
	}
	return errors.Join(errs...)
}

type FailureClass string

const (
	// FailureClassGraph: the DAG could not be built (cycle, unresolved
	// dependency, malformed declaration).
	FailureClassGraph FailureClass = "graph"
	// FailureClassParameter: the configuration was rejected before any node ran.
	FailureClassParameter FailureClass = "parameter"
	// FailureClassExecution: a node's compute function failed.
	FailureClassExecution FailureClass = "execution"
	// FailureClassStorage: the artifact store or model registry failed.
	FailureClassStorage FailureClass = "storage"
)

// Failure is the recorded termination reason of a run.
type Failure struct {
	Class FailureClass `json:"failure_class"`
	// Node is the failing node, when the failure happened inside the DAG.
	Node        *string `json:"node,omitempty"`
	Fingerprint string  `json:"fingerprint,omitempty"`
	// Code is the failure kind name, e.g. "InvalidParameter".
	Code    string `json:"error_code"`
	Message string `json:"error_message"`
}

func (f Failure) Validate() error {
	var errs []error
	switch f.Class {
	case FailureClassGraph, FailureClassParameter, FailureClassExecution, FailureClassStorage:
	default:
		errs = append(errs, fmt.Errorf("invalid failure_class %q", f.Class))
	}
	if f.Node != nil && strings.TrimSpace(*f.Node) == "" {
		errs = append(errs, errors.New("node must not be empty when provided"))
	}
	if strings.TrimSpace(f.Code) == "" {
		errs = append(errs, errors.New("error_code is required"))
	}
	if strings.TrimSpace(f.Message) == "" {
		errs = append(errs, errors.New("error_message is required"))
	}
	return errors.Join(errs...)
}
