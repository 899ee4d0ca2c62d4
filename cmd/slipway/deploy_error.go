// Copyright (C) 2026 Slipway Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

// Deployment error taxonomy. Every fatal condition surfaces as one of
// these sentinels so command handlers can map failures to exit codes
// and operator-facing messages without string matching.
var (
	// ErrDeployInProgress means another deployment holds the exclusive
	// lock. The second invocation fails fast without touching the store.
	ErrDeployInProgress = errors.New("another deployment is in progress")

	// ErrMigrationFailure means the migration one-shot exited non-zero.
	// The release is marked Failed without ever being health checked.
	ErrMigrationFailure = errors.New("migration step failed")

	// ErrHealthCheckTimeout means the new release never reported healthy
	// within the overall budget.
	ErrHealthCheckTimeout = errors.New("health check timed out")

	// ErrRollbackUnavailable means no prior healthy release exists to
	// roll back to. Fatal and operator-surfaced.
	ErrRollbackUnavailable = errors.New("no healthy release available for rollback")

	// ErrRollbackTargetInvalid means an explicitly requested rollback
	// target is missing, not healthy, or already current.
	ErrRollbackTargetInvalid = errors.New("rollback target invalid")
)

// GenerateID creates a unique 16-character hex identifier for result
// correlation across logs and metrics.
func GenerateID() string {
	b := make([]byte, 8)
	_, err := rand.Read(b)
	if err != nil {
		// Fallback to timestamp-based ID if crypto/rand fails
		return hex.EncodeToString([]byte(time.Now().Format("20060102150405.000")))[:16]
	}
	return hex.EncodeToString(b)
}
