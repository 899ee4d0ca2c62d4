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
)

// runCleanup prunes releases beyond the retention policy. Individual
// deletion failures are reported but do not fail the run; only an
// unusable store or lock does.
func runCleanup(cmd *cobra.Command, args []string) {
	a, err := newApp(configPath)
	if err != nil {
		printFailure("cleanup failed: %v", err)
		os.Exit(CLIExitFailure)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	keep := keepLast
	if keep < 0 {
		keep = a.cfg.Retention.KeepLast
	}

	cleaner := NewRetentionCleaner(a.store, a.runtime, a.locker, a.logger)
	result, err := cleaner.Prune(ctx, keep)
	if err != nil {
		printFailure("cleanup failed: %v", err)
		os.Exit(CLIExitFailure)
	}

	for _, id := range result.Removed {
		printInfo("removed release %s", id)
	}
	for _, skip := range result.Skipped {
		printWarning("skipped release %s: %s", skip.ReleaseID, skip.Reason)
	}
	printInfo("%d release(s) retained, %d removed, %d skipped", result.Kept, len(result.Removed), len(result.Skipped))
}
