// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bradcypert/uppies/internal/orchestrator"
)

// checkCmd reports update availability for every app without changing
// anything. Individual app failures are reported on stderr and do not affect
// the exit status.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check local vs remote versions for every app",
	Long: `Check local vs remote versions for every app.

For each registered app, the local and remote version scripts are run and
their output compared using the app's compare mode. Apps whose scripts fail
are reported on standard error and skipped; the rest of the registry is
still evaluated.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceErrors = true
		cmd.SilenceUsage = true

		reg, err := loadRegistry()
		if err != nil {
			fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))
			return &ExitError{Code: 1, Err: err}
		}

		o := orchestrator.New(reg,
			orchestrator.WithOutput(cmd.OutOrStdout()),
			orchestrator.WithLogger(newLogger()),
		)
		return o.Check(cmd.Context())
	},
}
