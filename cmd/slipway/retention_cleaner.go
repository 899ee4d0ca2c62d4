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
	"fmt"

	"github.com/slipway-sh/slipway/cmd/slipway/internal/infra/compose"
	"github.com/slipway-sh/slipway/cmd/slipway/internal/infra/process"
	"github.com/slipway-sh/slipway/cmd/slipway/internal/store"
	"github.com/slipway-sh/slipway/pkg/logging"
)

// PruneSkip records a release the cleaner could not remove this run.
// Skips are non-fatal; the next run retries.
type PruneSkip struct {
	ReleaseID string
	Reason    string
}

// PruneResult summarizes one retention pass.
type PruneResult struct {
	// RunID correlates this pass across logs.
	RunID string

	// Removed lists release ids deleted this run, oldest first.
	Removed []string

	// Skipped lists releases that could not be removed and why.
	Skipped []PruneSkip

	// Kept is the number of releases retained.
	Kept int
}

// RetentionCleaner bounds disk usage by deleting old releases.
//
// # Description
//
// The retention set is the current release plus the keepLast most
// recent releases that reached a settled state (Healthy or Failed).
// Everything outside that set is removed: its runtime is stopped,
// Failed releases are marked Discarded, and the release directory is
// deleted. A release that cannot be removed is skipped with a logged
// reason and retried on the next run, so a partial failure never
// aborts the pass.
type RetentionCleaner struct {
	store   store.Store
	runtime compose.Runtime
	locker  process.DeployLocker
	logger  *logging.Logger
}

// NewRetentionCleaner wires a cleaner from its collaborators.
func NewRetentionCleaner(st store.Store, rt compose.Runtime, locker process.DeployLocker, logger *logging.Logger) *RetentionCleaner {
	return &RetentionCleaner{
		store:   st,
		runtime: rt,
		locker:  locker,
		logger:  logger,
	}
}

// Prune removes releases outside the retention set.
//
// # Inputs
//
//   - ctx: Context for cancellation
//   - keepLast: Number of settled non-current releases to retain
//
// # Outputs
//
//   - *PruneResult: Always non-nil when the store was readable
//   - error: Non-nil only when the lock or store is unusable
func (c *RetentionCleaner) Prune(ctx context.Context, keepLast int) (*PruneResult, error) {
	if keepLast < 0 {
		return nil, fmt.Errorf("keepLast must not be negative, got %d", keepLast)
	}

	if err := c.locker.Acquire(); err != nil {
		var held *process.LockHeldError
		if errors.As(err, &held) {
			return nil, fmt.Errorf("%w: held by PID %d", ErrDeployInProgress, held.HolderPID)
		}
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() {
		if err := c.locker.Release(); err != nil {
			c.logger.Warn("lock release failed", "error", err)
		}
	}()

	releases, err := c.store.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list releases: %w", err)
	}
	current, err := c.store.Current()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve current release: %w", err)
	}

	retained := retentionSet(releases, current, keepLast)
	result := &PruneResult{RunID: GenerateID()}

	for _, rel := range releases {
		if retained[rel.ID] {
			result.Kept++
			continue
		}
		if err := c.remove(ctx, rel); err != nil {
			c.logger.Warn("cleanup skipped", "run_id", result.RunID, "release", rel.ID, "error", err)
			result.Skipped = append(result.Skipped, PruneSkip{ReleaseID: rel.ID, Reason: err.Error()})
			continue
		}
		c.logger.Info("release removed", "run_id", result.RunID, "release", rel.ID, "status", rel.Status)
		result.Removed = append(result.Removed, rel.ID)
	}

	return result, nil
}

// remove tears down and deletes one release.
func (c *RetentionCleaner) remove(ctx context.Context, rel *store.Release) error {
	// A stray runtime would otherwise outlive its release directory.
	dir := c.store.ReleaseDir(rel.ID)
	if err := c.runtime.Down(ctx, dir, compose.ProjectName(rel.ID)); err != nil {
		return fmt.Errorf("runtime teardown: %w", err)
	}

	if rel.Status == store.StatusFailed {
		if err := c.store.SetStatus(rel.ID, store.StatusDiscarded); err != nil {
			return fmt.Errorf("discard: %w", err)
		}
	}

	if err := c.store.Delete(rel.ID); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// retentionSet computes the ids to keep: the current release plus the
// keepLast most recent settled releases.
func retentionSet(releases []*store.Release, current *store.Release, keepLast int) map[string]bool {
	retained := make(map[string]bool)
	if current != nil {
		retained[current.ID] = true
	}

	kept := 0
	for i := len(releases) - 1; i >= 0 && kept < keepLast; i-- {
		rel := releases[i]
		if current != nil && rel.ID == current.ID {
			continue
		}
		if rel.Status != store.StatusHealthy && rel.Status != store.StatusFailed {
			continue
		}
		retained[rel.ID] = true
		kept++
	}
	return retained
}
