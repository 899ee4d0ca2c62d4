// Copyright (C) 2026 Slipway Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package process

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// DeployLocker defines the interface for the exclusive deployment lock.
//
// # Description
//
// DeployLocker serializes mutating operations on a deployment target.
// A deploy holds the lock from release creation until promotion or
// rollback; retention pruning holds the same lock, so cleanup and deploy
// are mutually exclusive. Readers of the current pointer never take the
// lock.
//
// # Thread Safety
//
// Implementations must be safe for use from a single goroutine. The lock
// itself provides inter-process synchronization, not intra-process.
type DeployLocker interface {
	// Acquire attempts to get an exclusive lock without blocking.
	// Returns a *LockHeldError if another process holds the lock.
	Acquire() error

	// Release releases the lock if held.
	// Safe to call multiple times or if the lock was never acquired.
	Release() error

	// IsHeld returns true if this instance currently holds the lock.
	IsHeld() bool

	// HolderPID returns the PID of the process holding the lock.
	// Returns 0 if no process holds the lock or if unable to determine.
	HolderPID() int
}

// LockHeldError is returned when the lock is held by another process.
type LockHeldError struct {
	HolderPID int
	LockPath  string
}

// Error implements the error interface.
func (e *LockHeldError) Error() string {
	if e.HolderPID > 0 {
		return fmt.Sprintf("another slipway operation is in progress (PID %d)", e.HolderPID)
	}
	return fmt.Sprintf("another slipway operation is in progress (check: lsof %s)", e.LockPath)
}

// DeployLockConfig configures lock file placement.
type DeployLockConfig struct {
	// LockDir is the directory for lock files.
	// Default: system temp directory
	LockDir string

	// LockName is the base name for lock files.
	// Default: "slipway"
	LockName string
}

// DefaultDeployLockConfig returns sensible defaults.
func DefaultDeployLockConfig() DeployLockConfig {
	return DeployLockConfig{
		LockDir:  os.TempDir(),
		LockName: "slipway",
	}
}

// DeployLock implements DeployLocker with flock(2).
//
// A PID file is written next to the lock file for diagnostics only; the
// flock is the authoritative mutual exclusion. The lock file is left in
// place on release for faster subsequent acquires.
type DeployLock struct {
	config   DeployLockConfig
	lockPath string
	pidPath  string
	lockFile *os.File
	held     bool
}

// NewDeployLock creates a deployment lock. Does not acquire it.
func NewDeployLock(config DeployLockConfig) *DeployLock {
	if config.LockDir == "" {
		config.LockDir = os.TempDir()
	}
	if config.LockName == "" {
		config.LockName = "slipway"
	}

	return &DeployLock{
		config:   config,
		lockPath: filepath.Join(config.LockDir, config.LockName+".lock"),
		pidPath:  filepath.Join(config.LockDir, config.LockName+".pid"),
	}
}

// Acquire attempts to get an exclusive lock.
//
// Uses a non-blocking flock. If another process holds the lock, returns
// a *LockHeldError carrying the holder PID when available; the caller
// maps this to its DeployInProgress condition rather than waiting.
func (p *DeployLock) Acquire() error {
	if p.held {
		return nil // Already held
	}

	f, err := os.OpenFile(p.lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create lock file %s: %w", p.lockPath, err)
	}

	err = syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err != nil {
		f.Close()

		if err == syscall.EWOULDBLOCK {
			return &LockHeldError{HolderPID: p.readHolderPID(), LockPath: p.lockPath}
		}

		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	p.lockFile = f
	p.held = true

	// PID file is best effort; the flock is already held.
	_ = p.writePID()

	return nil
}

// Release releases the lock if held. Safe to call multiple times.
func (p *DeployLock) Release() error {
	if !p.held || p.lockFile == nil {
		return nil
	}

	os.Remove(p.pidPath)

	err := syscall.Flock(int(p.lockFile.Fd()), syscall.LOCK_UN)

	// Close also releases the lock if the explicit unlock failed.
	p.lockFile.Close()
	p.lockFile = nil
	p.held = false

	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	return nil
}

// IsHeld returns true if this instance currently holds the lock.
//
// Checks local state only; useful for conditional cleanup in defers.
func (p *DeployLock) IsHeld() bool {
	return p.held
}

// HolderPID returns the PID recorded by the current holder, or 0.
//
// May return a stale PID if the holder crashed without cleanup.
func (p *DeployLock) HolderPID() int {
	return p.readHolderPID()
}

// LockPath returns the path to the lock file.
func (p *DeployLock) LockPath() string {
	return p.lockPath
}

func (p *DeployLock) writePID() error {
	return os.WriteFile(p.pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}

func (p *DeployLock) readHolderPID() int {
	data, err := os.ReadFile(p.pidPath)
	if err != nil {
		return 0
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}

	return pid
}

// Compile-time interface satisfaction check
var _ DeployLocker = (*DeployLock)(nil)
