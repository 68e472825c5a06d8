// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// versionCmd prints the running version.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the uppies version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "uppies version %s\n", getVersionString())
	},
}
