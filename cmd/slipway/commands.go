// Copyright (C) 2026 Slipway Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	configPath string
	keepLast   int

	rootCmd = &cobra.Command{
		Use:   "slipway",
		Short: "A cli to deploy and manage releases on a single host",
		Long: `Slipway deploys container releases with health-gated rollout:
a new release only becomes current after it reports healthy, the swap
is atomic, and a failed rollout leaves the previous release serving.`,
	}

	deployCmd = &cobra.Command{
		Use:   "deploy [artifact-ref]",
		Short: "Deploy a new release of the given image reference",
		Args:  cobra.ExactArgs(1),
		Run:   runDeploy, // Defined in cmd_deploy.go
	}

	rollbackCmd = &cobra.Command{
		Use:   "rollback [release-id]",
		Short: "Roll back to the previous healthy release, or to a specific one",
		Args:  cobra.MaximumNArgs(1),
		Run:   runRollback, // Defined in cmd_rollback.go
	}

	cleanupCmd = &cobra.Command{
		Use:   "cleanup",
		Short: "Remove old releases beyond the retention policy",
		Args:  cobra.NoArgs,
		Run:   runCleanup, // Defined in cmd_cleanup.go
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show the current release and runtime state",
		Args:  cobra.NoArgs,
		Run:   runStatus, // Defined in cmd_status.go
	}

	releasesCmd = &cobra.Command{
		Use:   "releases",
		Short: "List all releases, oldest first",
		Args:  cobra.NoArgs,
		Run:   runReleases, // Defined in cmd_status.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to slipway.yaml (default: /etc/slipway/slipway.yaml)")
	cleanupCmd.Flags().IntVar(&keepLast, "keep-last", -1, "settled releases to retain besides current (default from config)")

	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(releasesCmd)
}
