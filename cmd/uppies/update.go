// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bradcypert/uppies/internal/orchestrator"
)

// updateCmd runs the update script for apps whose remote version counts as
// newer. With a name argument only that app is considered; --force skips the
// version check entirely.
var updateCmd = &cobra.Command{
	Use:   "update [app]",
	Short: "Update app(s) if versions differ",
	Long: `Update app(s) if versions differ.

Without arguments, every registered app is evaluated and those with an
update available have their update script run. With an app name, only that
app is considered. --force runs the update script without consulting the
version scripts at all.`,
	Example: `  # Update everything that is out of date
  uppies update

  # Update a single app
  uppies update dust

  # Re-run an app's update script unconditionally
  uppies update dust --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceErrors = true
		cmd.SilenceUsage = true

		force, _ := cmd.Flags().GetBool("force")

		var name string
		if len(args) > 0 {
			name = args[0]
		}

		reg, err := loadRegistry()
		if err != nil {
			fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))
			return &ExitError{Code: 1, Err: err}
		}

		o := orchestrator.New(reg,
			orchestrator.WithOutput(cmd.OutOrStdout()),
			orchestrator.WithLogger(newLogger()),
		)

		if err := o.Update(cmd.Context(), name, force); err != nil {
			if errors.Is(err, orchestrator.ErrNoSuchApp) {
				fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+err.Error())
				return &ExitError{Code: 1, Err: err}
			}
			return err
		}
		return nil
	},
}

func init() {
	updateCmd.Flags().Bool("force", false, "run the update script without checking versions")
}
