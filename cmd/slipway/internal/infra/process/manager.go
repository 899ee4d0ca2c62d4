// Copyright (C) 2026 Slipway Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package process

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"sync"
)

// ErrBinaryNotFound is returned when the requested executable is not on PATH.
var ErrBinaryNotFound = errors.New("binary not found")

// Manager handles external process operations.
//
// This interface abstracts all interaction with the operating system's
// process management, enabling testable code that doesn't require real
// process execution.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use from multiple goroutines.
//
// # Context Handling
//
// All methods accept a context.Context for cancellation and timeout
// support. A cancelled context kills the child process.
type Manager interface {
	// Run executes a command synchronously and returns its stdout.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation/timeout
	//   - name: The executable name or path
	//   - args: Command arguments (variadic)
	//
	// # Outputs
	//
	//   - []byte: Standard output
	//   - error: Non-nil if the command fails or is cancelled; wraps
	//     ErrBinaryNotFound when the executable is missing
	Run(ctx context.Context, name string, args ...string) ([]byte, error)

	// RunInDir executes a command with a working directory and extra
	// environment, capturing stdout and stderr separately.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation/timeout
	//   - dir: Working directory ("" means inherit)
	//   - env: Extra environment entries in KEY=VALUE form, appended to
	//     the current process environment
	//   - name: The executable name or path
	//   - args: Command arguments (variadic)
	//
	// # Outputs
	//
	//   - string: Standard output
	//   - string: Standard error
	//   - int: Exit code (-1 if the process did not run)
	//   - error: Non-nil on non-zero exit, missing binary, or cancellation
	RunInDir(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, int, error)
}

// DefaultManager implements Manager using os/exec.
type DefaultManager struct{}

// NewDefaultManager creates a process manager backed by os/exec.
func NewDefaultManager() *DefaultManager {
	return &DefaultManager{}
}

// Run executes a command synchronously and returns its stdout.
func (m *DefaultManager) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	stdout, _, _, err := m.RunInDir(ctx, "", nil, name, args...)
	return []byte(stdout), err
}

// RunInDir executes a command in dir with extra env, capturing output.
func (m *DefaultManager) RunInDir(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return stdout.String(), stderr.String(), -1, errors.Join(ErrBinaryNotFound, err)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.String(), stderr.String(), exitErr.ExitCode(), err
		}
		return stdout.String(), stderr.String(), -1, err
	}

	return stdout.String(), stderr.String(), 0, nil
}

// MockManager is a configurable mock for unit tests.
//
// All methods can be overridden via function fields. Calls are recorded
// for verification.
type MockManager struct {
	RunFunc      func(ctx context.Context, name string, args ...string) ([]byte, error)
	RunInDirFunc func(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, int, error)

	// Calls records every invocation as the full argv (name followed by args).
	Calls [][]string
	mu    sync.Mutex
}

// Run invokes RunFunc or returns empty output.
func (m *MockManager) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.record(name, args)
	if m.RunFunc != nil {
		return m.RunFunc(ctx, name, args...)
	}
	return nil, nil
}

// RunInDir invokes RunInDirFunc or returns success with empty output.
func (m *MockManager) RunInDir(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, int, error) {
	m.record(name, args)
	if m.RunInDirFunc != nil {
		return m.RunInDirFunc(ctx, dir, env, name, args...)
	}
	return "", "", 0, nil
}

// CallCount returns the number of recorded invocations.
func (m *MockManager) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

func (m *MockManager) record(name string, args []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := append([]string{name}, args...)
	m.Calls = append(m.Calls, call)
}

// Compile-time interface compliance checks.
var (
	_ Manager = (*DefaultManager)(nil)
	_ Manager = (*MockManager)(nil)
)
