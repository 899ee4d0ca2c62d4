// Copyright (C) 2026 Slipway Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// runDeploy deploys a new release and exits 0 only on promotion.
func runDeploy(cmd *cobra.Command, args []string) {
	artifactRef := args[0]

	a, err := newApp(configPath)
	if err != nil {
		printFailure("deploy failed: %v", err)
		os.Exit(CLIExitFailure)
	}
	defer a.Close()

	// SIGINT/SIGTERM during the rollout cancels the health wait; the
	// deployer tears the new release down and leaves the previous one
	// serving.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deployer := NewDeployer(a.cfg, a.store, a.runtime, a.health, a.locker, a.logger, a.metrics)
	result, err := deployer.Deploy(ctx, artifactRef)
	if err != nil {
		switch {
		case errors.Is(err, ErrDeployInProgress):
			printFailure("deploy refused: %v", err)
		case errors.Is(err, ErrMigrationFailure):
			printFailure("deploy rolled back: migration failed for release %s", result.ReleaseID)
			printFailure("  %v", err)
		case errors.Is(err, ErrHealthCheckTimeout):
			printFailure("deploy rolled back: release %s never became healthy", result.ReleaseID)
		default:
			printFailure("deploy failed: %v", err)
		}
		if result.PreviousID != "" && result.State == DeployStateRolledBack {
			printWarning("release %s is still current and serving", result.PreviousID)
		}
		os.Exit(CLIExitFailure)
	}

	printSuccess("release %s promoted (%s)", result.ReleaseID, result.Duration.Round(time.Millisecond))
}
