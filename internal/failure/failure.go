// Package failure classifies run-level errors.
package failure

import (
	"errors"
	"fmt"
)

// Kind is the class of a run failure.
type Kind string

const (
	// Discovery: a directory call failed while collecting resources. Fatal.
	Discovery Kind = "discovery"
	// ResolutionGap: metadata could not be resolved for one resource. Not fatal.
	ResolutionGap Kind = "resolution_gap"
	// Generation: the text generation provider failed. Fatal.
	Generation Kind = "generation"
	// Serialization: writing an artifact failed. Fatal.
	Serialization Kind = "serialization"
)

// Fatal reports whether a failure of this kind halts the run.
func (k Kind) Fatal() bool {
	return k != ResolutionGap
}

// Error is a classified failure. Op names what was being done.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err as a failure of the given kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first classified failure in err's chain.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries a failure of the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
