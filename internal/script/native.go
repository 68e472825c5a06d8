// SPDX-License-Identifier: MPL-2.0

package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// defaultShell is the interpreter used for native execution. Going through a
// shell (rather than exec-ing the path directly) lets configured commands use
// pipes, substitutions, and other shell features.
const defaultShell = "sh"

// NativeRunner executes commands through the system shell.
type NativeRunner struct {
	// Shell overrides the default interpreter.
	Shell string
	// Stderr receives the script's stderr unmodified; defaults to the
	// process stderr. Script stderr is for human diagnostics only and is
	// never machine-parsed.
	Stderr io.Writer
}

// NewNativeRunner creates a NativeRunner using the default shell.
func NewNativeRunner() *NativeRunner {
	return &NativeRunner{}
}

// Run executes command via `sh -c`, capturing stdout up to MaxOutputBytes and
// passing stderr through. A non-zero exit from the script is reported in the
// Result, not as an error.
func (r *NativeRunner) Run(ctx context.Context, command string) (*Result, error) {
	shell := r.Shell
	if shell == "" {
		shell = defaultShell
	}

	stdout := newCappedBuffer(MaxOutputBytes)

	cmd := exec.CommandContext(ctx, shell, "-c", command)
	cmd.Stdout = stdout
	if r.Stderr != nil {
		cmd.Stderr = r.Stderr
	} else {
		cmd.Stderr = os.Stderr
	}

	err := cmd.Run()

	// The failed write usually kills the script with SIGPIPE, and Wait
	// reports that exit in preference to the copy error; the buffer flag is
	// the reliable overflow signal.
	if stdout.Overflowed() {
		return nil, fmt.Errorf("script %q: %w", command, ErrOutputTooLarge)
	}

	result := &Result{Stdout: stdout.String()}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, &LaunchError{Command: command, Cause: err}
	}

	return result, nil
}
