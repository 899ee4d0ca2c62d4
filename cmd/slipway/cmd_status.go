// Copyright (C) 2026 Slipway Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/slipway-sh/slipway/cmd/slipway/internal/infra/compose"
)

// runStatus shows the current release and whether its runtime is up.
func runStatus(cmd *cobra.Command, args []string) {
	a, err := newApp(configPath)
	if err != nil {
		printFailure("status failed: %v", err)
		os.Exit(CLIExitFailure)
	}
	defer a.Close()

	current, err := a.store.Current()
	if err != nil {
		printFailure("status failed: %v", err)
		os.Exit(CLIExitFailure)
	}
	if current == nil {
		printInfo("no release is current")
		return
	}

	printInfo("current release: %s", current.ID)
	printInfo("artifact:        %s", current.ArtifactRef)
	printInfo("deployed at:     %s", current.CreatedAt.Format("2006-01-02 15:04:05 MST"))

	ctx := context.Background()
	running, err := a.runtime.Running(ctx, a.store.ReleaseDir(current.ID), compose.ProjectName(current.ID))
	switch {
	case err != nil:
		printWarning("runtime:         unknown (%v)", err)
	case running:
		printSuccess("runtime:         running")
	default:
		printFailure("runtime:         stopped")
	}
}

// runReleases lists every release, oldest first.
func runReleases(cmd *cobra.Command, args []string) {
	a, err := newApp(configPath)
	if err != nil {
		printFailure("releases failed: %v", err)
		os.Exit(CLIExitFailure)
	}
	defer a.Close()

	releases, err := a.store.List()
	if err != nil {
		printFailure("releases failed: %v", err)
		os.Exit(CLIExitFailure)
	}
	current, err := a.store.Current()
	if err != nil {
		printFailure("releases failed: %v", err)
		os.Exit(CLIExitFailure)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tARTIFACT\tCREATED")
	for _, rel := range releases {
		marker := ""
		if current != nil && rel.ID == current.ID {
			marker = " *"
		}
		fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\n", rel.ID, marker, rel.Status, rel.ArtifactRef, rel.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	w.Flush()
}
