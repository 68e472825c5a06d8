// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bradcypert/uppies/internal/issue"
	"github.com/bradcypert/uppies/internal/registry"
)

// editCmd opens the app registry in the user's editor, creating the parent
// directory on first use.
var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open the app registry in $VISUAL or $EDITOR",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceErrors = true
		cmd.SilenceUsage = true

		if err := runEdit(); err != nil {
			fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))
			return &ExitError{Code: 1, Err: err}
		}
		return nil
	},
}

func runEdit() error {
	path, err := registry.Path()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return issue.WrapWithContext(err, "create registry directory", filepath.Dir(path))
	}

	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		return issue.NewErrorContext().
			WithOperation("open editor").
			WithSuggestion("Set $VISUAL or $EDITOR to your preferred editor").
			Wrap(errors.New("no editor configured")).
			BuildError()
	}

	editorCmd := exec.Command(editor, path)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return issue.WrapWithContext(err, "run editor", editor)
	}
	return nil
}
