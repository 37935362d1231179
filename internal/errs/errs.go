// Package errs defines the typed error kinds the bitset module can
// surface: OutOfMemory, InvalidArgument, and Overflow (spec §7).
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies which of the module's three error categories a
// failure belongs to.
type Kind int

const (
	// OutOfMemory indicates an allocation failed. Under oom_policy=abort
	// this is never returned - the caller panics instead. Under
	// oom_policy=propagate it is returned from any mutating call.
	OutOfMemory Kind = iota
	// InvalidArgument indicates a precondition violation: non-monotonic
	// list push, a buffer length that isn't a multiple of 4, a fill
	// length that wasn't split before encoding, or an illegal operator.
	InvalidArgument
	// Overflow indicates offset arithmetic exceeded the configured width.
	Overflow
)

func (k Kind) String() string {
	switch k {
	case OutOfMemory:
		return "out of memory"
	case InvalidArgument:
		return "invalid argument"
	case Overflow:
		return "overflow"
	default:
		return "unknown error kind"
	}
}

// Error is the module's single error type. Every failure the package
// returns can be inspected with errors.As into *Error, or matched by
// Kind with the Is helper below.
type Error struct {
	Kind  Kind
	Op    string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an Error for op, formatting the message with fmtstr/a the
// way the teacher's syslib/errors function-scoped constructors do.
func New(kind Kind, op, fmtstr string, a ...interface{}) error {
	return &Error{Kind: kind, Op: op, cause: fmt.Errorf(fmtstr, a...)}
}

// InvalidArg is shorthand for New(InvalidArgument, ...).
func InvalidArg(op, fmtstr string, a ...interface{}) error {
	return New(InvalidArgument, op, fmtstr, a...)
}

// OOM is shorthand for New(OutOfMemory, ...).
func OOM(op string) error {
	return New(OutOfMemory, op, "allocation failed")
}

// Overflowf is shorthand for New(Overflow, ...).
func Overflowf(op, fmtstr string, a ...interface{}) error {
	return New(Overflow, op, fmtstr, a...)
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
