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

	"github.com/slipway-sh/slipway/cmd/slipway/config"
	"github.com/slipway-sh/slipway/cmd/slipway/internal/infra/compose"
	"github.com/slipway-sh/slipway/cmd/slipway/internal/store"
	"github.com/slipway-sh/slipway/pkg/logging"
)

// RollbackManager restores service from a previously healthy release.
//
// # Description
//
// Revert picks the most recent healthy release other than the one that
// failed and makes it current again. RollbackTo targets a specific
// release instead. In both cases the target's runtime is brought up and
// health-gated before the current pointer moves, following the same
// promotion ordering as a forward deployment. The runtime of whatever
// was current stays untouched until the target is live.
type RollbackManager struct {
	cfg     *config.SlipwayConfig
	store   store.Store
	runtime compose.Runtime
	health  HealthChecker
	logger  *logging.Logger
}

// NewRollbackManager wires a rollback manager from its collaborators.
func NewRollbackManager(cfg *config.SlipwayConfig, st store.Store, rt compose.Runtime, hc HealthChecker, logger *logging.Logger) *RollbackManager {
	return &RollbackManager{
		cfg:     cfg,
		store:   st,
		runtime: rt,
		health:  hc,
		logger:  logger,
	}
}

// Revert makes the most recent healthy release other than failedID
// current again.
//
// # Outputs
//
//   - *store.Release: The release rolled back to
//   - error: ErrRollbackUnavailable when no prior healthy release
//     exists; otherwise the startup/health/promotion failure
func (m *RollbackManager) Revert(ctx context.Context, failedID string) (*store.Release, error) {
	target, err := m.selectTarget(failedID)
	if err != nil {
		return nil, err
	}
	if err := m.restore(ctx, target); err != nil {
		return nil, err
	}
	return target, nil
}

// RollbackTo makes a specific release current again.
//
// # Outputs
//
//   - *store.Release: The release rolled back to
//   - error: ErrRollbackTargetInvalid when the target is missing, not
//     healthy, or already current
func (m *RollbackManager) RollbackTo(ctx context.Context, targetID string) (*store.Release, error) {
	target, err := m.store.Get(targetID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRollbackTargetInvalid, err)
	}
	if target.Status != store.StatusHealthy {
		return nil, fmt.Errorf("%w: release %s is %s, not healthy", ErrRollbackTargetInvalid, targetID, target.Status)
	}

	current, err := m.store.Current()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve current release: %w", err)
	}
	if current != nil && current.ID == targetID {
		return nil, fmt.Errorf("%w: release %s is already current", ErrRollbackTargetInvalid, targetID)
	}

	if err := m.restore(ctx, target); err != nil {
		return nil, err
	}
	return target, nil
}

// selectTarget picks the most recent healthy release that is not the
// failed one.
func (m *RollbackManager) selectTarget(failedID string) (*store.Release, error) {
	releases, err := m.store.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list releases: %w", err)
	}

	// List is oldest-first; walk backwards for the newest candidate.
	for i := len(releases) - 1; i >= 0; i-- {
		rel := releases[i]
		if rel.ID == failedID {
			continue
		}
		if rel.Status == store.StatusHealthy {
			return rel, nil
		}
	}
	return nil, ErrRollbackUnavailable
}

// restore brings target up, health-gates it, and promotes it; then the
// displaced release's runtime is stopped best-effort.
//
// When target is already current the pointer is confirmed unchanged and
// nothing is touched. A deployment that failed before promotion lands
// here: the previous release never stopped serving.
func (m *RollbackManager) restore(ctx context.Context, target *store.Release) error {
	displaced, err := m.store.Current()
	if err != nil {
		return fmt.Errorf("failed to resolve current release: %w", err)
	}
	if displaced != nil && displaced.ID == target.ID {
		m.logger.Info("rollback target already current", "release", target.ID)
		return nil
	}

	releaseDir := m.store.ReleaseDir(target.ID)
	project := compose.ProjectName(target.ID)

	m.logger.Info("rolling back", "target", target.ID)
	if err := m.runtime.Up(ctx, releaseDir, project); err != nil {
		return fmt.Errorf("rollback target startup failed: %w", err)
	}

	addr, err := m.runtime.Port(ctx, releaseDir, project, m.cfg.Health.Service, m.cfg.Health.ContainerPort)
	if err != nil {
		return fmt.Errorf("rollback target port unresolved: %w", err)
	}
	endpoint := "http://" + addr + m.cfg.Health.Path

	opts := DefaultWaitOptions()
	if m.cfg.Health.TimeoutSeconds > 0 {
		opts.Timeout = m.cfg.Health.Timeout()
	}
	if m.cfg.Health.IntervalMillis > 0 {
		opts.Interval = m.cfg.Health.Interval()
	}
	if err := m.health.Await(ctx, endpoint, opts); err != nil {
		return fmt.Errorf("rollback target unhealthy: %w", err)
	}

	if err := m.store.Promote(target.ID); err != nil {
		return fmt.Errorf("rollback promotion failed: %w", err)
	}
	m.logger.Info("rollback promoted", "release", target.ID)

	if displaced != nil && displaced.ID != target.ID {
		oldDir := m.store.ReleaseDir(displaced.ID)
		if err := m.runtime.Down(context.WithoutCancel(ctx), oldDir, compose.ProjectName(displaced.ID)); err != nil {
			m.logger.Warn("displaced release teardown failed", "release", displaced.ID, "error", err)
		}
	}

	return nil
}
