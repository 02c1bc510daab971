package domain

import (
	"errors"
	"fmt"
)

// Kind categorizes a failed invocation. Callers see exactly one kind per call.
type Kind string

const (
	KindAlreadyExists     Kind = "already_exists"
	KindCapacityExceeded  Kind = "capacity_exceeded"
	KindNotFound          Kind = "not_found"
	KindDependencyFailure Kind = "dependency_failure"
	KindInvalidArgument   Kind = "invalid_argument"
)

// Sentinel errors, one per kind. Match with errors.Is.
var (
	ErrAlreadyExists     = &Error{Kind: KindAlreadyExists}
	ErrCapacityExceeded  = &Error{Kind: KindCapacityExceeded}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrDependencyFailure = &Error{Kind: KindDependencyFailure}
	ErrInvalidArgument   = &Error{Kind: KindInvalidArgument}
)

// Error wraps an underlying failure with the operation and its kind.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op == "" && e.Err == nil:
		return string(e.Kind)
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Op == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same kind whose Op is empty or equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Op == "" || t.Op == e.Op
}

// E builds an *Error. A nil err yields nil.
func E(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain, or
// KindDependencyFailure for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindDependencyFailure
}
