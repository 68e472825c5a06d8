// SPDX-License-Identifier: MPL-2.0

// Package orchestrator drives the per-app check/update decision: run the
// app's version scripts, compare the results, and invoke the update script
// when the remote version counts as newer. Every app is processed to
// completion before the next one starts, in registry declaration order, and
// a failure in one app never aborts the batch.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/bradcypert/uppies/internal/registry"
	"github.com/bradcypert/uppies/internal/script"
	"github.com/bradcypert/uppies/internal/version"
)

const (
	// StageLocal is the local version script invocation.
	StageLocal Stage = "local"
	// StageRemote is the remote version script invocation.
	StageRemote Stage = "remote"
	// StageUpdate is the update script invocation.
	StageUpdate Stage = "update"
)

var (
	// ErrScriptExit is the sentinel error wrapped by ScriptExitError.
	ErrScriptExit = errors.New("script exited non-zero")

	// ErrNoSuchApp is returned when `update <name>` names an app that is
	// not in the registry.
	ErrNoSuchApp = errors.New("no such app")
)

type (
	// Stage identifies which of an app's three scripts a failure concerns.
	Stage string

	// ScriptExitError records a script that launched but exited non-zero.
	// Exit status, not stdout content, is the failure signal.
	ScriptExitError struct {
		App      string
		Stage    Stage
		ExitCode int
	}

	// Orchestrator evaluates and updates the registered apps.
	Orchestrator struct {
		reg       *registry.Registry
		stdout    io.Writer
		logger    *log.Logger
		newRunner func(script.Runtime) (script.Runner, error)
	}

	// Option configures an Orchestrator during construction.
	Option func(*Orchestrator)
)

// Error implements the error interface.
func (e *ScriptExitError) Error() string {
	return fmt.Sprintf("%s script for %q exited with status %d", e.Stage, e.App, e.ExitCode)
}

// Unwrap returns ErrScriptExit so callers can use errors.Is.
func (e *ScriptExitError) Unwrap() error { return ErrScriptExit }

// WithOutput overrides the writer for informational lines (default os.Stdout).
func WithOutput(w io.Writer) Option {
	return func(o *Orchestrator) {
		o.stdout = w
	}
}

// WithLogger overrides the diagnostic logger (default: stderr logger with an
// "uppies" prefix).
func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithRunnerFactory overrides how script runners are built, for tests.
func WithRunnerFactory(f func(script.Runtime) (script.Runner, error)) Option {
	return func(o *Orchestrator) {
		o.newRunner = f
	}
}

// New creates an Orchestrator over the given validated registry.
func New(reg *registry.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		reg:       reg,
		stdout:    os.Stdout,
		newRunner: script.NewRunner,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "uppies"})
	}
	return o
}

// List writes one line per registered app to the output writer.
func (o *Orchestrator) List() {
	if len(o.reg.Apps) == 0 {
		fmt.Fprintln(o.stdout, "No apps registered")
		return
	}

	for _, app := range o.reg.Apps {
		if app.Description != "" {
			fmt.Fprintf(o.stdout, "%-20s %s\n", app.Name, app.Description)
		} else {
			fmt.Fprintln(o.stdout, app.Name)
		}
	}
}

// Check reports update availability for every app in declaration order.
// Per-app failures are logged and skipped; Check itself only fails on
// context cancellation.
func (o *Orchestrator) Check(ctx context.Context) error {
	for _, app := range o.reg.Apps {
		if err := ctx.Err(); err != nil {
			return err
		}

		local, remote, err := o.fetchVersions(ctx, app)
		if err != nil {
			o.logger.Error("version check failed", "app", app.Name, "err", err)
			continue
		}

		needed, err := version.NeedsUpdate(app.Compare, local, remote)
		if err != nil {
			o.logger.Error("version comparison failed", "app", app.Name, "err", err)
			continue
		}

		if needed {
			fmt.Fprintf(o.stdout, "%-20s %-15s → %-15s (update available)\n", app.Name, local, remote)
		} else {
			fmt.Fprintf(o.stdout, "%-20s %-15s (up to date)\n", app.Name, local)
		}
	}

	return nil
}

// Update evaluates apps and runs the update script for those with an update
// available. An empty name targets every app; a non-empty name targets only
// the matching app and is an error if nothing matches. force skips version
// discovery entirely and updates the targeted apps unconditionally.
func (o *Orchestrator) Update(ctx context.Context, name string, force bool) error {
	if name != "" {
		if _, ok := o.reg.Find(name); !ok {
			return fmt.Errorf("%w: %q", ErrNoSuchApp, name)
		}
	}

	for _, app := range o.reg.Apps {
		if name != "" && app.Name != name {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if !force {
			proceed := o.evaluate(ctx, app)
			if !proceed {
				continue
			}
		}

		o.runUpdateScript(ctx, app)
	}

	return nil
}

// evaluate runs the version scripts for app and reports whether the update
// script should run. Failures are logged and treated as "do not proceed".
func (o *Orchestrator) evaluate(ctx context.Context, app registry.App) bool {
	local, remote, err := o.fetchVersions(ctx, app)
	if err != nil {
		o.logger.Error("version check failed", "app", app.Name, "err", err)
		return false
	}

	needed, err := version.NeedsUpdate(app.Compare, local, remote)
	if err != nil {
		o.logger.Error("version comparison failed", "app", app.Name, "err", err)
		return false
	}

	if needed {
		fmt.Fprintf(o.stdout, "%s: updating %s → %s\n", app.Name, local, remote)
	} else {
		fmt.Fprintf(o.stdout, "%s: already up to date (%s)\n", app.Name, local)
	}

	return needed
}

// runUpdateScript executes app's update script and reports the outcome.
func (o *Orchestrator) runUpdateScript(ctx context.Context, app registry.App) {
	fmt.Fprintf(o.stdout, "%s: running update script...\n", app.Name)

	result, err := o.runStage(ctx, app, StageUpdate, app.Update.Command())
	if err != nil {
		o.logger.Error("update script failed", "app", app.Name, "err", err)
		return
	}
	if result.ExitCode != 0 {
		o.logger.Error("update script failed", "app", app.Name,
			"err", &ScriptExitError{App: app.Name, Stage: StageUpdate, ExitCode: result.ExitCode})
		return
	}

	fmt.Fprintf(o.stdout, "%s: update complete\n", app.Name)
}

// fetchVersions runs both version scripts for app and returns the trimmed
// (local, remote) version strings.
func (o *Orchestrator) fetchVersions(ctx context.Context, app registry.App) (string, string, error) {
	localRes, err := o.runStage(ctx, app, StageLocal, app.Local.Command())
	if err != nil {
		return "", "", err
	}
	if localRes.ExitCode != 0 {
		return "", "", &ScriptExitError{App: app.Name, Stage: StageLocal, ExitCode: localRes.ExitCode}
	}

	remoteRes, err := o.runStage(ctx, app, StageRemote, app.Remote.Command())
	if err != nil {
		return "", "", err
	}
	if remoteRes.ExitCode != 0 {
		return "", "", &ScriptExitError{App: app.Name, Stage: StageRemote, ExitCode: remoteRes.ExitCode}
	}

	return version.TrimVersion(localRes.Stdout), version.TrimVersion(remoteRes.Stdout), nil
}

// runStage executes one script through the app's configured runtime.
func (o *Orchestrator) runStage(ctx context.Context, app registry.App, stage Stage, command string) (*script.Result, error) {
	runner, err := o.newRunner(app.Runtime)
	if err != nil {
		return nil, err
	}

	result, err := runner.Run(ctx, command)
	if err != nil {
		return nil, fmt.Errorf("%s script: %w", stage, err)
	}
	return result, nil
}
