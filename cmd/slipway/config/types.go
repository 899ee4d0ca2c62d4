// Copyright (C) 2026 Slipway Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"fmt"
	"time"
)

// SlipwayConfig is the operator-provided deployment configuration.
type SlipwayConfig struct {
	// Store: where releases live on disk
	Store StoreConfig `yaml:"store"`

	// Compose: container runtime and service names
	Compose ComposeConfig `yaml:"compose"`

	// Health: rollout gating probe
	Health HealthConfig `yaml:"health"`

	// Retention: cleanup policy
	Retention RetentionConfig `yaml:"retention"`

	// Metrics: optional textfile-collector export
	Metrics MetricsConfig `yaml:"metrics"`

	// Logging: level and optional file output
	Logging LoggingConfig `yaml:"logging"`
}

type StoreConfig struct {
	Root string `yaml:"root"` // e.g. /srv/app
}

type ComposeConfig struct {
	Binary string `yaml:"binary"` // e.g. docker

	// AppService is the long-running service that serves traffic.
	AppService string `yaml:"app_service"`

	// Migration runs before health checking; empty Command disables it.
	Migration MigrationConfig `yaml:"migration"`
}

type MigrationConfig struct {
	Service string   `yaml:"service"`
	Command []string `yaml:"command"`
}

type HealthConfig struct {
	// Service and ContainerPort locate the probe target inside the project.
	Service       string `yaml:"service"`
	ContainerPort int    `yaml:"container_port"`

	Path            string `yaml:"path"`             // e.g. /healthz
	TimeoutSeconds  int    `yaml:"timeout_seconds"`  // overall budget
	IntervalMillis  int    `yaml:"interval_millis"`  // delay between probes
	JitterMillis    int    `yaml:"jitter_millis"`    // random extra delay
	ProbeTimeoutSec int    `yaml:"probe_timeout_seconds"`
}

// Timeout returns the overall health budget as a duration.
func (h HealthConfig) Timeout() time.Duration {
	return time.Duration(h.TimeoutSeconds) * time.Second
}

// Interval returns the inter-probe delay as a duration.
func (h HealthConfig) Interval() time.Duration {
	return time.Duration(h.IntervalMillis) * time.Millisecond
}

// Jitter returns the maximum random extra delay as a duration.
func (h HealthConfig) Jitter() time.Duration {
	return time.Duration(h.JitterMillis) * time.Millisecond
}

// ProbeTimeout returns the per-probe timeout as a duration.
func (h HealthConfig) ProbeTimeout() time.Duration {
	return time.Duration(h.ProbeTimeoutSec) * time.Second
}

type RetentionConfig struct {
	KeepLast int `yaml:"keep_last"`
}

type MetricsConfig struct {
	// TextfilePath is the .prom file consumed by node_exporter's
	// textfile collector. Empty disables metrics export.
	TextfilePath string `yaml:"textfile_path"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	Dir   string `yaml:"dir"`   // empty disables file logging
}

// DefaultConfig returns a configuration with working defaults for every
// field the operator did not set.
func DefaultConfig() SlipwayConfig {
	return SlipwayConfig{
		Store: StoreConfig{
			Root: "/srv/app",
		},
		Compose: ComposeConfig{
			Binary:     "docker",
			AppService: "app",
		},
		Health: HealthConfig{
			Service:         "app",
			ContainerPort:   8080,
			Path:            "/healthz",
			TimeoutSeconds:  120,
			IntervalMillis:  2000,
			JitterMillis:    250,
			ProbeTimeoutSec: 5,
		},
		Retention: RetentionConfig{
			KeepLast: 3,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks the config for values that would break a deployment.
//
// # Outputs
//
//   - error: Non-nil with a field-specific message on the first invalid
//     value found
func (c *SlipwayConfig) Validate() error {
	if c.Store.Root == "" {
		return fmt.Errorf("store.root is required")
	}
	if c.Compose.AppService == "" {
		return fmt.Errorf("compose.app_service is required")
	}
	if len(c.Compose.Migration.Command) > 0 && c.Compose.Migration.Service == "" {
		return fmt.Errorf("compose.migration.service is required when a migration command is set")
	}
	if c.Health.Service == "" {
		return fmt.Errorf("health.service is required")
	}
	if c.Health.ContainerPort <= 0 || c.Health.ContainerPort > 65535 {
		return fmt.Errorf("health.container_port must be in 1..65535, got %d", c.Health.ContainerPort)
	}
	if c.Health.Path == "" || c.Health.Path[0] != '/' {
		return fmt.Errorf("health.path must start with '/', got %q", c.Health.Path)
	}
	if c.Health.TimeoutSeconds <= 0 {
		return fmt.Errorf("health.timeout_seconds must be positive, got %d", c.Health.TimeoutSeconds)
	}
	if c.Health.IntervalMillis <= 0 {
		return fmt.Errorf("health.interval_millis must be positive, got %d", c.Health.IntervalMillis)
	}
	if c.Retention.KeepLast < 0 {
		return fmt.Errorf("retention.keep_last must not be negative, got %d", c.Retention.KeepLast)
	}
	return nil
}
