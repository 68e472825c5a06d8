// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bradcypert/uppies/internal/orchestrator"
)

// listCmd enumerates the registered apps.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all registered apps",
	Args:  cobra.NoArgs,
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
		o.List()
		return nil
	},
}
