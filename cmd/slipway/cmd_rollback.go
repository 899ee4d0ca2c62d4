// Copyright (C) 2026 Slipway Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/slipway-sh/slipway/cmd/slipway/internal/store"
)

// runRollback restores the previous healthy release, or an explicitly
// named one.
func runRollback(cmd *cobra.Command, args []string) {
	a, err := newApp(configPath)
	if err != nil {
		printFailure("rollback failed: %v", err)
		os.Exit(CLIExitFailure)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := NewRollbackManager(a.cfg, a.store, a.runtime, a.health, a.logger)

	var target *store.Release
	if len(args) == 1 {
		target, err = manager.RollbackTo(ctx, args[0])
	} else {
		current, curErr := a.store.Current()
		if curErr != nil {
			printFailure("rollback failed: %v", curErr)
			os.Exit(CLIExitFailure)
		}
		failedID := ""
		if current != nil {
			failedID = current.ID
		}
		target, err = manager.Revert(ctx, failedID)
	}
	if err != nil {
		printFailure("rollback failed: %v", err)
		os.Exit(CLIExitFailure)
	}

	printSuccess("rolled back to release %s (%s)", target.ID, target.ArtifactRef)
}
