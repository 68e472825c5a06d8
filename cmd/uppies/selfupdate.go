// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bradcypert/uppies/internal/selfupdate"
)

// selfUpdateCmd updates the uppies binary itself from the configured release
// repository.
var selfUpdateCmd = &cobra.Command{
	Use:   "self-update",
	Short: "Update uppies itself from the latest release",
	Long: `Update uppies itself from the latest release.

The release source defaults to ` + CmdStyle.Render("bradcypert/uppies") + ` and can be
overridden with the UPPIES_REPO environment variable or the self_update.repo
setting in the config file. The previous binary is kept next to the new one
with a .backup suffix.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceErrors = true
		cmd.SilenceUsage = true

		// A token raises the API rate limit; useful on shared CI hosts.
		clientOpts := []selfupdate.ClientOption{
			selfupdate.WithRepo(settings.SelfUpdate.Repo),
			selfupdate.WithUserAgent("uppies/" + Version),
		}
		if token := os.Getenv("GITHUB_TOKEN"); token != "" {
			clientOpts = append(clientOpts, selfupdate.WithToken(token))
		}

		updater := selfupdate.NewUpdater(Version,
			selfupdate.WithClient(selfupdate.NewClient(clientOpts...)),
			selfupdate.WithOutput(cmd.OutOrStdout()),
			selfupdate.WithLogger(newLogger()),
		)

		if err := updater.Run(cmd.Context()); err != nil {
			fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+formatSelfUpdateError(err))
			return &ExitError{Code: 1, Err: err}
		}
		return nil
	},
}

// formatSelfUpdateError produces a user-friendly message with remediation
// guidance tailored to the failure.
func formatSelfUpdateError(err error) string {
	var rateLimitErr *selfupdate.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return fmt.Sprintf("%s\n\nTo increase your rate limit, set a GitHub token:\n  export GITHUB_TOKEN=ghp_...\nThen retry: uppies self-update",
			rateLimitErr.Error())
	}

	if errors.Is(err, selfupdate.ErrAssetNotFound) {
		return fmt.Sprintf("%s\n\nThe latest release was not built for this platform.", err.Error())
	}

	return formatErrorForDisplay(err, verbose)
}
