package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"segweaver/internal/config"
	"segweaver/internal/dag"
	"segweaver/internal/segment"
)

// Semantic exit codes.
const (
	ExitSuccess           = 0
	ExitPipelineFailure   = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
)

// Invocation is everything one `segweaver run` needs. Config must already
// be loaded and validated.
type Invocation struct {
	Config *config.Config

	// TracePath, when set, receives the canonical run trace as JSON.
	TracePath string
	// Progress, when non-nil, receives a node progress bar.
	Progress io.Writer
	Logger   zerolog.Logger
}

// Result reports the outcome of Execute. Segment holds whatever the
// pipeline produced, including partial outputs of a failed run.
type Result struct {
	ExitCode int
	RunID    string
	Segment  *segment.Result
}

// InvocationError is returned for malformed command lines.
type InvocationError struct {
	ExitCode int
	Message  string
}

func (e *InvocationError) Error() string { return e.Message }

func invalidInvocation(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

// Validate rejects invocations Execute cannot start.
func (inv Invocation) Validate() error {
	if inv.Config == nil {
		return invalidInvocation("missing configuration")
	}
	return nil
}

// ExitCode maps an error that escaped Execute, or occurred before it, to an
// exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var invErr *InvocationError
	if errors.As(err, &invErr) {
		if invErr.ExitCode != 0 {
			return invErr.ExitCode
		}
		return ExitInvalidInvocation
	}
	var ne *dag.NodeError
	if errors.As(err, &ne) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ExitPipelineFailure
	}
	return ExitInternalError
}
