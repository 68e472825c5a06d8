// SPDX-License-Identifier: MPL-2.0

package script

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// VirtualRunner executes commands in the embedded mvdan/sh interpreter. It
// needs no shell on the host, at the cost of POSIX-sh semantics only.
type VirtualRunner struct {
	// Stderr receives the script's stderr unmodified; defaults to the
	// process stderr.
	Stderr io.Writer
}

// NewVirtualRunner creates a VirtualRunner.
func NewVirtualRunner() *VirtualRunner {
	return &VirtualRunner{}
}

// Run parses and interprets command, capturing stdout up to MaxOutputBytes.
// A parse failure is a launch error: the command never started.
func (r *VirtualRunner) Run(ctx context.Context, command string) (*Result, error) {
	file, err := syntax.NewParser().Parse(strings.NewReader(command), "script")
	if err != nil {
		return nil, &LaunchError{Command: command, Cause: err}
	}

	stderr := r.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	stdout := newCappedBuffer(MaxOutputBytes)

	runner, err := interp.New(
		interp.StdIO(nil, stdout, stderr),
		interp.Env(expand.ListEnviron(os.Environ()...)),
	)
	if err != nil {
		return nil, &LaunchError{Command: command, Cause: err}
	}

	runErr := runner.Run(ctx, file)

	// The interpreter folds write failures into the script's exit status,
	// so the buffer flag is the reliable overflow signal.
	if stdout.Overflowed() {
		return nil, fmt.Errorf("script %q: %w", command, ErrOutputTooLarge)
	}

	result := &Result{Stdout: stdout.String()}

	if runErr != nil {
		if status, ok := interp.IsExitStatus(runErr); ok {
			result.ExitCode = int(status)
			return result, nil
		}
		return nil, &LaunchError{Command: command, Cause: runErr}
	}

	return result, nil
}

// ValidateSyntax checks that command parses as POSIX shell. It is used at
// registry load time so malformed inline scripts are rejected before any
// app processing begins.
func ValidateSyntax(command string) error {
	_, err := syntax.NewParser().Parse(strings.NewReader(command), "script")
	return err
}
