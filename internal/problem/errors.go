package problem

import (
	"errors"
	"fmt"
)

// Kind classifies solver errors. Infeasibility is never an error.
type Kind int

const (
	// KindInput marks a structurally invalid instance built by the caller.
	KindInput Kind = iota + 1
	// KindInternal marks a broken engine invariant such as cost drift.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindInternal:
		return "internal"
	}
	return "unknown"
}

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrInput    = errors.New("input error")
	ErrInternal = errors.New("internal error")
)

type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	s := fmt.Sprintf("%s error", e.Kind)
	if e.Op != "" {
		s += ": " + e.Op
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrInput:
		return e.Kind == KindInput
	case ErrInternal:
		return e.Kind == KindInternal
	}
	return false
}

func inputErr(op, format string, args ...any) error {
	return &Error{Kind: KindInput, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func wrapInput(op string, err error) error {
	return &Error{Kind: KindInput, Op: op, Err: err}
}

// Internal builds an internal error; used by the engine when bookkeeping drifts.
func Internal(op, format string, args ...any) error {
	return &Error{Kind: KindInternal, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Invalid builds an input error for checks made outside this package.
func Invalid(op, format string, args ...any) error {
	return inputErr(op, format, args...)
}
