// Copyright (C) 2026 Slipway Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrConfigMissing is returned when no configuration file exists at the
// resolved path. Deployment refuses to run without one; nothing is
// auto-created.
var ErrConfigMissing = errors.New("configuration file not found")

// DefaultPath returns the configuration path used when none is given on
// the command line: /etc/slipway/slipway.yaml, or ~/.slipway/slipway.yaml
// when the system path does not exist.
func DefaultPath() string {
	system := "/etc/slipway/slipway.yaml"
	if _, err := os.Stat(system); err == nil {
		return system
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return system
	}
	return filepath.Join(home, ".slipway", "slipway.yaml")
}

// Load reads, parses, and validates the configuration at path.
//
// # Description
//
// Unset fields take the DefaultConfig value, so a minimal file only
// needs to name its store root and services. A missing file is an
// ErrConfigMissing; a present but invalid file is a validation error.
//
// # Inputs
//
//   - path: Configuration file location ("" means DefaultPath())
//
// # Outputs
//
//   - *SlipwayConfig: Parsed and validated configuration
//   - error: ErrConfigMissing, a parse error, or a validation error
func Load(path string) (*SlipwayConfig, error) {
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigMissing, path)
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return &cfg, nil
}
