package core

import (
	"errors"
	"fmt"
)

// Failure kinds. Every error surfaced by the engine wraps exactly one of these.
var (
	ErrInvalidParameter     = errors.New("invalid parameter")
	ErrShapeMismatch        = errors.New("shape mismatch")
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
	ErrNoElbowFound         = errors.New("no elbow found")
	ErrCyclicDependency     = errors.New("cyclic dependency")
	ErrUnresolvedDependency = errors.New("unresolved dependency")
	ErrNotFound             = errors.New("not found")
	ErrCacheCorrupt         = errors.New("cache corrupt")
)

// Kinds lists every failure kind in a stable order.
var Kinds = []error{
	ErrInvalidParameter,
	ErrShapeMismatch,
	ErrUnsupportedAlgorithm,
	ErrNoElbowFound,
	ErrCyclicDependency,
	ErrUnresolvedDependency,
	ErrNotFound,
	ErrCacheCorrupt,
}

// Error is a classified failure.
//
// Op names the operation that detected the failure (e.g. "reduce", "fit").
// Msg carries the offending parameter values so the failure can be diagnosed
// without re-running.
type Error struct {
	Kind error
	Op   string
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	kind := "error"
	if e.Kind != nil {
		kind = e.Kind.Error()
	}
	switch {
	case e.Op != "" && e.Msg != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, kind, e.Msg)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, kind)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", kind, e.Msg)
	default:
		return kind
	}
}

func (e *Error) Unwrap() error { return e.Kind }

// Errorf builds a classified error for op.
func Errorf(kind error, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the failure kind wrapped by err, or nil if err is unclassified.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range Kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// KindName returns a stable CamelCase code for the failure kind of err.
func KindName(err error) string {
	switch KindOf(err) {
	case ErrInvalidParameter:
		return "InvalidParameter"
	case ErrShapeMismatch:
		return "ShapeMismatch"
	case ErrUnsupportedAlgorithm:
		return "UnsupportedAlgorithm"
	case ErrNoElbowFound:
		return "NoElbowFound"
	case ErrCyclicDependency:
		return "CyclicDependency"
	case ErrUnresolvedDependency:
		return "UnresolvedDependency"
	case ErrNotFound:
		return "NotFound"
	case ErrCacheCorrupt:
		return "CacheCorrupt"
	default:
		return "Unclassified"
	}
}
