// SPDX-License-Identifier: MPL-2.0

// Command uppies orchestrates updates for apps that are installed and
// versioned outside a system package manager.
package main

import (
	cmd "github.com/bradcypert/uppies/cmd/uppies"
)

func main() {
	cmd.Execute()
}
