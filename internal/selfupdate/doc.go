// SPDX-License-Identifier: MPL-2.0

// Package selfupdate updates the uppies binary itself from a hosted release
// feed, as opposed to the external apps uppies manages.
//
// The package is organized into three concerns:
//   - platform.go: mapping the running OS/architecture to a release target
//   - github.go: HTTP client for the GitHub Releases API (latest, download)
//   - updater.go: the end-to-end pipeline (version gate, download, extract,
//     atomic binary replacement with a .backup of the previous binary)
package selfupdate
