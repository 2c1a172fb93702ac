// Package errors defines the closed error-kind taxonomy shared by every
// optimizer component: the code container, the analysis oracles, the
// transformation passes, the pipeline driver and the register allocator
// all report failures through this single type instead of ad-hoc errors.
package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind closes the set of ways an optimizer operation can fail. Components
// must not invent new failure modes outside this set; Yield in particular
// is not a failure at all, only a request to stop processing the current
// function early.
type Kind int

const (
	// InvalidArgument means a caller passed a reference, index or value
	// that is malformed independent of container state (nil slice,
	// negative count, opcode/class mismatch).
	InvalidArgument Kind = iota
	// InvariantViolation means an operation would leave, or found, the
	// code container in a state that breaks one of the container
	// invariants (dangling reference, phi link set mismatch, more than
	// one terminator in a block, and so on).
	InvariantViolation
	// NotFound means a referenced block, instruction, phi node, call
	// site or inline-assembly site does not exist in the container.
	NotFound
	// OutOfMemory means an arena or slice could not grow to hold a new
	// entity. Reported rather than left to panic so callers can abort
	// the current function cleanly.
	OutOfMemory
	// NotImplemented means the operation is recognized but this
	// component does not (yet, or ever, for this exemplar) implement
	// it. The register allocator's rejection of inline assembly is a
	// NotImplemented, not an InvalidArgument.
	NotImplemented
	// UserError means the failure originates from user-supplied
	// configuration: an unknown pipeline pass name, a malformed pipeline
	// spec, a debug dump whose opcode revision does not match.
	UserError
	// Yield is a sentinel, not a true error: a pass declines to keep
	// processing the current function (for example mem2reg refusing a
	// function with a publicly labeled block) and the pipeline driver
	// moves on without recording a failure.
	Yield
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid argument"
	case InvariantViolation:
		return "invariant violation"
	case NotFound:
		return "not found"
	case OutOfMemory:
		return "out of memory"
	case NotImplemented:
		return "not implemented"
	case UserError:
		return "user error"
	case Yield:
		return "yield"
	default:
		return "unknown"
	}
}

// Error wraps a Kind with a message and, where one exists, the underlying
// cause. The cause is attached with github.com/pkg/errors so callers that
// want a stack trace for invariant violations can get one via Unwrap.
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "ir.NewInstruction"
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %s: %s", e.Op, e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a *Error with no underlying cause.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap builds a *Error whose cause is recorded with a stack trace, unless
// cause is nil, in which case Wrap returns nil (mirrors errors.Wrap).
func Wrap(cause error, kind Kind, op, message string) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Message: message, cause: errors.WithStack(cause)}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// IsYield reports whether err represents a pass yielding rather than
// failing. A nil error is never a yield.
func IsYield(err error) bool {
	return err != nil && Is(err, Yield)
}
