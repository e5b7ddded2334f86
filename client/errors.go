package client

import (
	"errors"
	"fmt"
	"strings"

	"pgv2/host"
)

// Class categorizes a connection failure. Everything except ClassConfig is
// retryable: the orchestrator records the failure and moves to the next
// candidate.
type Class int

const (
	// ClassConfig is a malformed request (bad mode string, identifier that
	// cannot be encoded, secure transport demanded from a server without
	// it). No further candidates are tried.
	ClassConfig Class = iota
	// ClassTransport covers dial failures, I/O errors and timeouts.
	ClassTransport
	// ClassProtocol is an unexpected message tag or shape. The stream is
	// closed before the next candidate is tried.
	ClassProtocol
	// ClassRejected is a server-reported rejection: failed credentials, a
	// missing password for a method that needs one, an unsupported
	// authentication method, or a post-auth setup statement the server
	// refused.
	ClassRejected
	// ClassRoleMismatch means the session came up cleanly but the server
	// role does not satisfy the requirement.
	ClassRoleMismatch
)

func (c Class) String() string {
	switch c {
	case ClassConfig:
		return "configuration"
	case ClassTransport:
		return "transport"
	case ClassProtocol:
		return "protocol"
	case ClassRejected:
		return "rejected"
	case ClassRoleMismatch:
		return "role-mismatch"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Error is a classified failure for one candidate host.
type Error struct {
	Class Class
	Spec  host.Spec
	Err   error
}

func (e *Error) Error() string {
	if e.Spec == (host.Spec{}) {
		return e.Err.Error()
	}
	return e.Spec.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// fail wraps err as a classified per-host failure.
func fail(class Class, spec host.Spec, err error) *Error {
	return &Error{Class: class, Spec: spec, Err: err}
}

func failf(class Class, spec host.Spec, format string, args ...any) *Error {
	return fail(class, spec, fmt.Errorf(format, args...))
}

// classOf extracts the failure class, defaulting to transport for plain
// I/O errors that were not wrapped.
func classOf(err error) Class {
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	return ClassTransport
}

// ExhaustedError is the terminal failure returned once every candidate has
// been tried. It carries the per-host causes for diagnostics.
type ExhaustedError struct {
	Failures []*Error
}

func (e *ExhaustedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "all %d candidate hosts failed", len(e.Failures))
	for _, f := range e.Failures {
		b.WriteString("; ")
		b.WriteString(f.Error())
	}
	return b.String()
}

func (e *ExhaustedError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}
