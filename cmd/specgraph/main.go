// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command specgraph indexes a requirements workspace and reports on its
// dependency graph and ticket coverage.
//
// Usage:
//
//	specgraph check              # unresolved refs, conflicts, cycles, orphans
//	specgraph order              # topological order of every declaration
//	specgraph deps auth.login    # what a path depends on and what depends on it
//	specgraph status [prefix]    # requirement status from ticket files
//	specgraph watch              # keep the index in sync with the file system
package main

import (
	"fmt"
	"os"
)

func main() {
	cmd := newRootCmd()
	err := cmd.Execute()
	if err != nil && exitCode(err) == CLIExitError {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitCode(err))
}
