// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for uppies.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/bradcypert/uppies/internal/config"
	"github.com/bradcypert/uppies/internal/issue"
	"github.com/bradcypert/uppies/internal/registry"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables verbose output.
	verbose bool
	// cfgFile allows specifying a custom app registry file.
	cfgFile string

	// settings holds the tool-level configuration loaded at startup.
	settings = &config.Settings{SelfUpdate: config.SelfUpdateSettings{Repo: config.DefaultRepo}}

	// rootCmd represents the base command when called without any subcommands.
	rootCmd = &cobra.Command{
		Use:   "uppies",
		Short: "An update orchestrator for apps that manage their own versions",
		Long: TitleStyle.Render("uppies") + SubtitleStyle.Render(" - an app update orchestrator") + `

uppies keeps track of external applications through three scripts per
app: one that prints the locally installed version, one that prints the
latest available version, and one that performs the update. uppies runs
the scripts, compares the versions, and decides whether to update.

Apps are declared in ` + CmdStyle.Render("~/.local/share/uppies/apps.toml") + `.

` + SubtitleStyle.Render("Examples:") + `
  uppies list               List all registered apps
  uppies check              Report update availability per app
  uppies update             Update every app with a newer version
  uppies update dust        Update only 'dust'
  uppies self-update        Update uppies itself`,
	}
)

func init() {
	cobra.OnInitialize(initRootConfig)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "V", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "app registry file (default is ~/.local/share/uppies/apps.toml)")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(selfUpdateCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(versionCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// initRootConfig applies flags and loads tool settings before any command runs.
func initRootConfig() {
	if cfgFile != "" {
		registry.SetPathOverride(cfgFile)
	}

	loaded, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, verbose))
		return
	}
	settings = loaded

	if !verbose {
		verbose = settings.UI.Verbose
	}
}

// newLogger builds the stderr diagnostic logger shared by all commands.
func newLogger() *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "uppies"})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// loadRegistry resolves, loads, and validates the app registry.
func loadRegistry() (*registry.Registry, error) {
	path, err := registry.Path()
	if err != nil {
		return nil, err
	}

	reg, err := registry.Load(path)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("load app registry").
			WithResource(path).
			WithSuggestion("Run 'uppies edit' to create or fix the registry").
			Wrap(err).
			BuildError()
	}

	if err := reg.Validate(); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("validate app registry").
			WithResource(path).
			Wrap(err).
			BuildError()
	}

	return reg, nil
}

// formatErrorForDisplay formats an error for user display. ActionableErrors
// render their suggestions; verbose mode shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
