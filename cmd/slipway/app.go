// Copyright (C) 2026 Slipway Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"

	"github.com/slipway-sh/slipway/cmd/slipway/config"
	"github.com/slipway-sh/slipway/cmd/slipway/internal/infra/compose"
	"github.com/slipway-sh/slipway/cmd/slipway/internal/infra/process"
	"github.com/slipway-sh/slipway/cmd/slipway/internal/store"
	"github.com/slipway-sh/slipway/pkg/logging"
)

// app bundles the wired collaborators every command needs.
type app struct {
	cfg     *config.SlipwayConfig
	store   store.Store
	runtime compose.Runtime
	health  HealthChecker
	locker  process.DeployLocker
	logger  *logging.Logger
	metrics *MetricsPublisher
}

// newApp loads configuration and wires the production implementations.
func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.Logging.Level),
		LogDir:  cfg.Logging.Dir,
		Service: "slipway",
	})

	st, err := store.NewFilesystemStore(store.FilesystemStoreConfig{Root: cfg.Store.Root})
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("failed to open release store: %w", err)
	}

	proc := process.NewDefaultManager()
	runtime := compose.NewDockerRuntime(proc, compose.RuntimeConfig{Binary: cfg.Compose.Binary})

	lockCfg := process.DefaultDeployLockConfig()
	locker := process.NewDeployLock(lockCfg)

	return &app{
		cfg:     cfg,
		store:   st,
		runtime: runtime,
		health:  NewHTTPHealthChecker(nil),
		locker:  locker,
		logger:  logger,
		metrics: NewMetricsPublisher(cfg.Metrics.TextfilePath),
	}, nil
}

// Close releases app resources.
func (a *app) Close() {
	if a.logger != nil {
		a.logger.Close()
	}
}
