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
	"time"

	"github.com/google/uuid"

	"github.com/slipway-sh/slipway/cmd/slipway/config"
	"github.com/slipway-sh/slipway/cmd/slipway/internal/infra/compose"
	"github.com/slipway-sh/slipway/cmd/slipway/internal/infra/process"
	"github.com/slipway-sh/slipway/cmd/slipway/internal/store"
	"github.com/slipway-sh/slipway/pkg/logging"
)

// DeployState tracks a deployment through its lifecycle.
type DeployState string

const (
	DeployStateCreated        DeployState = "created"
	DeployStateStarting       DeployState = "starting"
	DeployStateHealthChecking DeployState = "health_checking"
	DeployStatePromoted       DeployState = "promoted"
	DeployStateRolledBack     DeployState = "rolled_back"
)

// DeployResult is the outcome of one deployment attempt.
type DeployResult struct {
	// RunID correlates this attempt across logs and metrics.
	RunID string

	// ReleaseID is the release created by this attempt ("" if the
	// attempt failed before a release was created).
	ReleaseID string

	// PreviousID is the release that was current before the attempt.
	PreviousID string

	// State is the terminal deployment state.
	State DeployState

	// Duration is wall-clock time from lock acquisition to terminal
	// state.
	Duration time.Duration
}

// Deployer orchestrates a health-gated, atomically-promoted deployment.
//
// # Description
//
// One deployment at a time: an exclusive flock is taken before any
// store mutation and held until the terminal state. The new release is
// started as its own compose project next to the still-serving current
// release; only after it reports healthy is the current pointer swapped
// and the old runtime stopped. Any failure before promotion leaves the
// previous release untouched and serving.
//
// # State machine
//
//	Created -> Starting -> HealthChecking -> Promoted
//	                 \            \
//	                  +-> RolledBack <-+
//
// A migration failure moves straight to RolledBack without ever
// entering HealthChecking.
type Deployer struct {
	cfg      *config.SlipwayConfig
	store    store.Store
	runtime  compose.Runtime
	health   HealthChecker
	locker   process.DeployLocker
	logger   *logging.Logger
	metrics  *MetricsPublisher
	rollback *RollbackManager
}

// NewDeployer wires a deployer from its collaborators. metrics may be
// nil to disable outcome export.
func NewDeployer(cfg *config.SlipwayConfig, st store.Store, rt compose.Runtime, hc HealthChecker, locker process.DeployLocker, logger *logging.Logger, metrics *MetricsPublisher) *Deployer {
	return &Deployer{
		cfg:      cfg,
		store:    st,
		runtime:  rt,
		health:   hc,
		locker:   locker,
		logger:   logger,
		metrics:  metrics,
		rollback: NewRollbackManager(cfg, st, rt, hc, logger),
	}
}

// Deploy creates, starts, health-gates, and promotes a release of
// artifactRef.
//
// # Outputs
//
//   - *DeployResult: Always non-nil; State reports the terminal state
//   - error: Nil only when State is Promoted
func (d *Deployer) Deploy(ctx context.Context, artifactRef string) (*DeployResult, error) {
	result := &DeployResult{
		RunID: uuid.NewString(),
		State: DeployStateCreated,
	}
	started := time.Now()
	defer func() {
		result.Duration = time.Since(started)
		if d.metrics != nil {
			if err := d.metrics.PublishDeploy(result); err != nil {
				d.logger.Warn("metrics publish failed", "error", err)
			}
		}
	}()

	if err := d.locker.Acquire(); err != nil {
		var held *process.LockHeldError
		if errors.As(err, &held) {
			return result, fmt.Errorf("%w: held by PID %d", ErrDeployInProgress, held.HolderPID)
		}
		return result, fmt.Errorf("failed to acquire deploy lock: %w", err)
	}
	defer func() {
		if err := d.locker.Release(); err != nil {
			d.logger.Warn("lock release failed", "error", err)
		}
	}()

	if err := d.runtime.Check(ctx); err != nil {
		return result, err
	}

	previous, err := d.store.Current()
	if err != nil {
		return result, fmt.Errorf("failed to resolve current release: %w", err)
	}
	if previous != nil {
		result.PreviousID = previous.ID
	}

	rel, err := d.store.Create(artifactRef)
	if err != nil {
		return result, fmt.Errorf("failed to create release: %w", err)
	}
	result.ReleaseID = rel.ID
	d.logger.Info("release created", "run_id", result.RunID, "release", rel.ID, "artifact", artifactRef)

	if err := d.store.Materialize(rel.ID, artifactRef); err != nil {
		d.markFailed(rel.ID)
		result.State = DeployStateRolledBack
		return result, fmt.Errorf("failed to materialize release %s: %w", rel.ID, err)
	}

	releaseDir := d.store.ReleaseDir(rel.ID)
	project := compose.ProjectName(rel.ID)

	if err := d.store.SetStatus(rel.ID, store.StatusStarting); err != nil {
		d.markFailed(rel.ID)
		result.State = DeployStateRolledBack
		return result, err
	}
	result.State = DeployStateStarting

	if err := d.runtime.Up(ctx, releaseDir, project); err != nil {
		d.logger.Error("startup failed", "release", rel.ID, "error", err)
		d.abandon(ctx, rel.ID, releaseDir, project)
		result.State = DeployStateRolledBack
		return result, err
	}

	if cmd := d.cfg.Compose.Migration.Command; len(cmd) > 0 {
		d.logger.Info("running migration", "release", rel.ID, "service", d.cfg.Compose.Migration.Service)
		if err := d.runtime.RunOneShot(ctx, releaseDir, project, d.cfg.Compose.Migration.Service, cmd); err != nil {
			d.logger.Error("migration failed", "release", rel.ID, "error", err)
			d.abandon(ctx, rel.ID, releaseDir, project)
			result.State = DeployStateRolledBack
			return result, fmt.Errorf("%w: %v", ErrMigrationFailure, err)
		}
	}

	if err := d.store.SetStatus(rel.ID, store.StatusHealthChecking); err != nil {
		d.abandon(ctx, rel.ID, releaseDir, project)
		result.State = DeployStateRolledBack
		return result, err
	}
	result.State = DeployStateHealthChecking

	endpoint, err := d.healthEndpoint(ctx, releaseDir, project)
	if err != nil {
		d.logger.Error("health endpoint unresolved", "release", rel.ID, "error", err)
		d.abandon(ctx, rel.ID, releaseDir, project)
		result.State = DeployStateRolledBack
		return result, err
	}

	if err := d.health.Await(ctx, endpoint, d.waitOptions()); err != nil {
		d.logger.Error("health gate failed", "release", rel.ID, "endpoint", endpoint, "error", err)
		d.abandon(ctx, rel.ID, releaseDir, project)
		result.State = DeployStateRolledBack

		// Hand the failed rollout to the rollback manager. When a prior
		// healthy release exists it is still current and this confirms
		// the pointer without touching anything; when none exists the
		// operator must hear that, not just the health failure.
		if _, rbErr := d.rollback.Revert(context.WithoutCancel(ctx), rel.ID); rbErr != nil {
			d.logger.Error("rollback failed", "release", rel.ID, "error", rbErr)
			return result, fmt.Errorf("%w: %w", rbErr, err)
		}
		return result, err
	}

	if err := d.store.SetStatus(rel.ID, store.StatusHealthy); err != nil {
		d.abandon(ctx, rel.ID, releaseDir, project)
		result.State = DeployStateRolledBack
		return result, err
	}
	if err := d.store.Promote(rel.ID); err != nil {
		d.abandon(ctx, rel.ID, releaseDir, project)
		result.State = DeployStateRolledBack
		return result, fmt.Errorf("promotion failed: %w", err)
	}
	result.State = DeployStatePromoted
	d.logger.Info("release promoted", "run_id", result.RunID, "release", rel.ID)

	// The old release kept serving until this point. Its teardown is
	// best-effort: the new release is already live.
	if previous != nil && previous.ID != rel.ID {
		oldDir := d.store.ReleaseDir(previous.ID)
		if err := d.runtime.Down(ctx, oldDir, compose.ProjectName(previous.ID)); err != nil {
			d.logger.Warn("previous release teardown failed", "release", previous.ID, "error", err)
		}
	}

	return result, nil
}

// abandon marks a release Failed and tears its runtime down. The
// teardown must not inherit ctx: a cancelled deploy still cleans up.
func (d *Deployer) abandon(ctx context.Context, id, releaseDir, project string) {
	d.markFailed(id)

	downCtx := context.WithoutCancel(ctx)
	if err := d.runtime.Down(downCtx, releaseDir, project); err != nil {
		d.logger.Warn("failed release teardown failed", "release", id, "error", err)
	}
}

func (d *Deployer) markFailed(id string) {
	if err := d.store.SetStatus(id, store.StatusFailed); err != nil {
		d.logger.Warn("could not mark release failed", "release", id, "error", err)
	}
}

// healthEndpoint resolves the probe URL for the release's published
// health port.
func (d *Deployer) healthEndpoint(ctx context.Context, releaseDir, project string) (string, error) {
	addr, err := d.runtime.Port(ctx, releaseDir, project, d.cfg.Health.Service, d.cfg.Health.ContainerPort)
	if err != nil {
		return "", err
	}
	return "http://" + addr + d.cfg.Health.Path, nil
}

func (d *Deployer) waitOptions() WaitOptions {
	opts := DefaultWaitOptions()
	if d.cfg.Health.TimeoutSeconds > 0 {
		opts.Timeout = d.cfg.Health.Timeout()
	}
	if d.cfg.Health.IntervalMillis > 0 {
		opts.Interval = d.cfg.Health.Interval()
	}
	opts.Jitter = d.cfg.Health.Jitter()
	if d.cfg.Health.ProbeTimeoutSec > 0 {
		opts.ProbeTimeout = d.cfg.Health.ProbeTimeout()
	}
	return opts
}
