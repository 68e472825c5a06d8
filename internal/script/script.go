// SPDX-License-Identifier: MPL-2.0

// Package script executes the opaque shell commands configured for each app
// and captures their output. Two runtimes are provided: a native runtime that
// delegates to the system shell, and a virtual runtime backed by the embedded
// mvdan/sh interpreter. Neither applies any business logic to the output.
package script

import (
	"context"
	"errors"
	"fmt"
)

// MaxOutputBytes is the upper bound on captured stdout (1 MiB). A script that
// produces more than this is misbehaving under the version-on-stdout contract,
// so overflow is surfaced as an error rather than silently truncated.
const MaxOutputBytes = 1 << 20

var (
	// ErrLaunch is the sentinel error wrapped by LaunchError.
	ErrLaunch = errors.New("script launch failed")

	// ErrOutputTooLarge indicates a script wrote more than MaxOutputBytes
	// to stdout.
	ErrOutputTooLarge = errors.New("script output exceeds limit")

	// ErrInvalidRuntime is the sentinel error wrapped by InvalidRuntimeError.
	ErrInvalidRuntime = errors.New("invalid script runtime")
)

const (
	// RuntimeNative runs commands through the system shell (sh -c).
	RuntimeNative Runtime = "native"
	// RuntimeVirtual runs commands in the embedded mvdan/sh interpreter.
	RuntimeVirtual Runtime = "virtual"
)

type (
	// Result holds the outcome of one script invocation. It is produced per
	// run and consumed immediately; callers must not retain it across
	// decision cycles.
	Result struct {
		Stdout   string // raw captured stdout, not yet trimmed
		ExitCode int    // 0 means success, anything else is failure
	}

	// Runner executes a shell command and captures its stdout. A returned
	// error means the command could not be launched or its output could not
	// be captured; a command that launches and exits non-zero yields a nil
	// error and a Result with the exit code.
	Runner interface {
		Run(ctx context.Context, command string) (*Result, error)
	}

	// LaunchError is returned when a command cannot be started at all
	// (missing interpreter, permission problems, resource limits). It is
	// distinct from a successful launch that exits non-zero.
	LaunchError struct {
		Command string
		Cause   error
	}

	// Runtime selects which Runner implementation executes an app's scripts.
	Runtime string

	// InvalidRuntimeError is returned when a Runtime value is not recognized.
	// It wraps ErrInvalidRuntime for errors.Is() compatibility.
	InvalidRuntimeError struct {
		Value Runtime
	}
)

// Error implements the error interface.
func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch script %q: %v", e.Command, e.Cause)
}

// Unwrap returns ErrLaunch so callers can use errors.Is.
func (e *LaunchError) Unwrap() error { return ErrLaunch }

// Error implements the error interface.
func (e *InvalidRuntimeError) Error() string {
	return fmt.Sprintf("invalid runtime %q (must be %q or %q)",
		e.Value, RuntimeNative, RuntimeVirtual)
}

// Unwrap returns ErrInvalidRuntime so callers can use errors.Is.
func (e *InvalidRuntimeError) Unwrap() error { return ErrInvalidRuntime }

// IsValid returns whether the Runtime is one of the recognized values,
// and a list of validation errors if it is not.
func (r Runtime) IsValid() (bool, []error) {
	switch r {
	case RuntimeNative, RuntimeVirtual:
		return true, nil
	}
	return false, []error{&InvalidRuntimeError{Value: r}}
}

// String returns the runtime's wire value.
func (r Runtime) String() string { return string(r) }

// NewRunner returns the Runner implementation for the given runtime.
func NewRunner(rt Runtime) (Runner, error) {
	switch rt {
	case RuntimeNative:
		return NewNativeRunner(), nil
	case RuntimeVirtual:
		return NewVirtualRunner(), nil
	}
	return nil, &InvalidRuntimeError{Value: rt}
}
