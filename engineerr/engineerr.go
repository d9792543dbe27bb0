// Package engineerr defines the closed error taxonomy shared by every
// component of the engine and the process exit codes it maps to at the
// CLI boundary.
//
// Validation and invariant failures are returned as values, never raised
// as panics or exceptions: every fallible call in this module returns
// (result, error), and the only place a *Error is turned into a process
// exit code is the CLI command boundary (internal/cli's Execute, whose
// result cmd/kvenginectl passes to os.Exit).
package engineerr

import (
	"errors"
	"fmt"
)

// Kind is one of the four closed error classes the engine can surface.
type Kind int

const (
	// BadInput marks malformed CLI arguments, CSV, config, or out-of-range
	// numeric inputs.
	BadInput Kind = iota
	// Invariant marks a snapshot that fails magic/version/checksum or a
	// back-end whose internal state is detected inconsistent.
	Invariant
	// Policy marks a legal input rejected because the operation is
	// disallowed for the current object, or a rollback forced by an
	// allocation failure during migration.
	Policy
	// IO marks a filesystem or OS-level failure.
	IO
)

// String renders the kind the way it appears in the error envelope.
func (k Kind) String() string {
	switch k {
	case BadInput:
		return "BadInput"
	case Invariant:
		return "Invariant"
	case Policy:
		return "Policy"
	case IO:
		return "IO"
	default:
		return "Unknown"
	}
}

// ExitCode returns the process exit code for the kind, per spec §6/§7.
func (k Kind) ExitCode() int {
	switch k {
	case BadInput:
		return 2
	case Invariant:
		return 3
	case Policy:
		return 4
	case IO:
		return 5
	default:
		return 1
	}
}

// Error is the structured failure envelope: {error, detail, hint?}.
type Error struct {
	Kind   Kind
	Detail string
	Hint   string
	// Row/Col are optional CSV diagnostics (§4.6); zero means "not applicable".
	Row, Col int
	// Err wraps the underlying cause, if any, for errors.Is/As chaining.
	Err error
}

func (e *Error) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("%s: %s (row %d, col %d)", e.Kind, e.Detail, e.Row, e.Col)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// Is supports errors.Is(err, engineerr.BadInput) style checks by kind.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

func newf(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Detail: fmt.Sprintf(format, args...)}
}

// BadInputf builds a BadInput error.
func BadInputf(format string, args ...any) *Error { return newf(BadInput, format, args...) }

// Invariantf builds an Invariant error.
func Invariantf(format string, args ...any) *Error { return newf(Invariant, format, args...) }

// Policyf builds a Policy error.
func Policyf(format string, args ...any) *Error { return newf(Policy, format, args...) }

// IOf builds an IO error.
func IOf(format string, args ...any) *Error { return newf(IO, format, args...) }

// Wrap classifies an arbitrary error as the given kind, preserving it for
// errors.Unwrap.
func Wrap(k Kind, err error, detail string) *Error {
	return &Error{Kind: k, Detail: detail, Err: err}
}

// WithHint attaches a remediation hint and returns the same error for chaining.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// WithRowCol attaches CSV row/column diagnostics.
func (e *Error) WithRowCol(row, col int) *Error {
	e.Row, e.Col = row, col
	return e
}

// KindOf extracts the Kind of err if it is (or wraps) an *Error, defaulting
// to IO for unclassified failures, since those are almost always OS-level.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return IO
}
