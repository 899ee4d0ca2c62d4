// Copyright (C) 2026 Slipway Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package compose

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/slipway-sh/slipway/cmd/slipway/internal/infra/process"
)

// ErrRuntimeUnavailable is returned when the container runtime cannot be
// used at all: the docker binary is missing from PATH or the daemon is not
// reachable. Callers should treat this as a preflight failure, not a
// workload failure.
var ErrRuntimeUnavailable = errors.New("container runtime unavailable")

// daemonDownMarkers are stderr fragments that identify an unreachable
// daemon rather than a failing workload command.
var daemonDownMarkers = []string{
	"Cannot connect to the Docker daemon",
	"Is the docker daemon running",
	"error during connect",
}

// Runtime drives docker compose for a single release directory.
//
// # Description
//
// Each release is launched as an isolated compose project, so two
// releases can run concurrently during a deployment. The release
// directory must contain the compose file and the .env written at
// materialization time.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Runtime interface {
	// Check verifies the runtime is usable before any workload command
	// is attempted.
	//
	// # Outputs
	//
	//   - error: Wraps ErrRuntimeUnavailable when docker is missing or
	//     the daemon is unreachable; nil when the runtime is ready
	Check(ctx context.Context) error

	// Up starts the release's long-running services in the background.
	// Safe to call when the project is already running.
	Up(ctx context.Context, releaseDir string, project string) error

	// Down stops and removes the release's services. Safe to call when
	// nothing is running for the project.
	Down(ctx context.Context, releaseDir string, project string) error

	// RunOneShot runs command in a fresh container of service and waits
	// for it to exit. Used for migration steps.
	//
	// # Outputs
	//
	//   - error: Nil on exit code zero; a *CommandError carrying the
	//     exit code and stderr otherwise
	RunOneShot(ctx context.Context, releaseDir string, project string, service string, command []string) error

	// Port resolves the published host address for a service's container
	// port, e.g. "127.0.0.1:55001".
	Port(ctx context.Context, releaseDir string, project string, service string, containerPort int) (string, error)

	// Running reports whether the project has at least one running
	// container.
	Running(ctx context.Context, releaseDir string, project string) (bool, error)
}

// RuntimeConfig configures the docker compose runtime.
type RuntimeConfig struct {
	// Binary is the container CLI to invoke. Defaults to "docker".
	Binary string
}

// DefaultRuntimeConfig returns the standard runtime configuration.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{Binary: "docker"}
}

// DockerRuntime implements Runtime on top of the docker compose plugin.
type DockerRuntime struct {
	proc   process.Manager
	binary string
}

// NewDockerRuntime creates a runtime that shells out through proc.
func NewDockerRuntime(proc process.Manager, cfg RuntimeConfig) *DockerRuntime {
	if cfg.Binary == "" {
		cfg.Binary = "docker"
	}
	return &DockerRuntime{proc: proc, binary: cfg.Binary}
}

// Check verifies docker is installed and the daemon answers.
func (r *DockerRuntime) Check(ctx context.Context) error {
	_, stderr, _, err := r.proc.RunInDir(ctx, "", nil, r.binary, "info", "--format", "{{.ServerVersion}}")
	if err != nil {
		if errors.Is(err, process.ErrBinaryNotFound) {
			return fmt.Errorf("%w: %s not found on PATH", ErrRuntimeUnavailable, r.binary)
		}
		return fmt.Errorf("%w: %s", ErrRuntimeUnavailable, strings.TrimSpace(stderr))
	}
	return nil
}

// Up starts the project's services detached.
func (r *DockerRuntime) Up(ctx context.Context, releaseDir string, project string) error {
	args := []string{"compose", "--project-name", project, "up", "--detach", "--remove-orphans"}
	return r.run(ctx, releaseDir, args)
}

// Down tears the project down, removing containers and networks.
func (r *DockerRuntime) Down(ctx context.Context, releaseDir string, project string) error {
	args := []string{"compose", "--project-name", project, "down", "--remove-orphans"}
	return r.run(ctx, releaseDir, args)
}

// RunOneShot runs command in a transient container of service.
func (r *DockerRuntime) RunOneShot(ctx context.Context, releaseDir string, project string, service string, command []string) error {
	args := []string{"compose", "--project-name", project, "run", "--rm", "--no-deps", service}
	args = append(args, command...)
	return r.run(ctx, releaseDir, args)
}

// Port resolves the published address for service's containerPort.
func (r *DockerRuntime) Port(ctx context.Context, releaseDir string, project string, service string, containerPort int) (string, error) {
	args := []string{"compose", "--project-name", project, "port", service, strconv.Itoa(containerPort)}
	stdout, stderr, code, err := r.proc.RunInDir(ctx, releaseDir, nil, r.binary, args...)
	if err != nil {
		return "", r.classify(args, stderr, code, err)
	}

	addr := strings.TrimSpace(stdout)
	if addr == "" {
		return "", fmt.Errorf("service %s has no published port %d", service, containerPort)
	}
	// compose reports the wildcard bind; dial loopback instead.
	if host, port, ok := strings.Cut(addr, ":"); ok && (host == "0.0.0.0" || host == "[::]") {
		addr = "127.0.0.1:" + port
	}
	return addr, nil
}

// Running reports whether the project has any running container.
func (r *DockerRuntime) Running(ctx context.Context, releaseDir string, project string) (bool, error) {
	args := []string{"compose", "--project-name", project, "ps", "--quiet", "--status", "running"}
	stdout, stderr, code, err := r.proc.RunInDir(ctx, releaseDir, nil, r.binary, args...)
	if err != nil {
		return false, r.classify(args, stderr, code, err)
	}
	return strings.TrimSpace(stdout) != "", nil
}

func (r *DockerRuntime) run(ctx context.Context, releaseDir string, args []string) error {
	_, stderr, code, err := r.proc.RunInDir(ctx, releaseDir, nil, r.binary, args...)
	if err != nil {
		return r.classify(args, stderr, code, err)
	}
	return nil
}

// classify maps a process failure to ErrRuntimeUnavailable or a
// *CommandError.
func (r *DockerRuntime) classify(args []string, stderr string, code int, err error) error {
	if errors.Is(err, process.ErrBinaryNotFound) {
		return fmt.Errorf("%w: %s not found on PATH", ErrRuntimeUnavailable, r.binary)
	}
	for _, marker := range daemonDownMarkers {
		if strings.Contains(stderr, marker) {
			return fmt.Errorf("%w: %s", ErrRuntimeUnavailable, strings.TrimSpace(stderr))
		}
	}
	cmd := r.binary + " " + strings.Join(args, " ")
	return NewCommandError(cmd, code, stderr, err)
}

// MockRuntime is a configurable mock for unit tests.
//
// All methods can be overridden via function fields. Unset functions
// return success.
type MockRuntime struct {
	CheckFunc      func(ctx context.Context) error
	UpFunc         func(ctx context.Context, releaseDir string, project string) error
	DownFunc       func(ctx context.Context, releaseDir string, project string) error
	RunOneShotFunc func(ctx context.Context, releaseDir string, project string, service string, command []string) error
	PortFunc       func(ctx context.Context, releaseDir string, project string, service string, containerPort int) (string, error)
	RunningFunc    func(ctx context.Context, releaseDir string, project string) (bool, error)

	// UpProjects and DownProjects record project names in call order.
	UpProjects   []string
	DownProjects []string
}

// Check invokes CheckFunc or returns nil.
func (m *MockRuntime) Check(ctx context.Context) error {
	if m.CheckFunc != nil {
		return m.CheckFunc(ctx)
	}
	return nil
}

// Up invokes UpFunc or returns nil.
func (m *MockRuntime) Up(ctx context.Context, releaseDir string, project string) error {
	m.UpProjects = append(m.UpProjects, project)
	if m.UpFunc != nil {
		return m.UpFunc(ctx, releaseDir, project)
	}
	return nil
}

// Down invokes DownFunc or returns nil.
func (m *MockRuntime) Down(ctx context.Context, releaseDir string, project string) error {
	m.DownProjects = append(m.DownProjects, project)
	if m.DownFunc != nil {
		return m.DownFunc(ctx, releaseDir, project)
	}
	return nil
}

// RunOneShot invokes RunOneShotFunc or returns nil.
func (m *MockRuntime) RunOneShot(ctx context.Context, releaseDir string, project string, service string, command []string) error {
	if m.RunOneShotFunc != nil {
		return m.RunOneShotFunc(ctx, releaseDir, project, service, command)
	}
	return nil
}

// Port invokes PortFunc or returns a fixed loopback address.
func (m *MockRuntime) Port(ctx context.Context, releaseDir string, project string, service string, containerPort int) (string, error) {
	if m.PortFunc != nil {
		return m.PortFunc(ctx, releaseDir, project, service, containerPort)
	}
	return "127.0.0.1:0", nil
}

// Running invokes RunningFunc or returns true.
func (m *MockRuntime) Running(ctx context.Context, releaseDir string, project string) (bool, error) {
	if m.RunningFunc != nil {
		return m.RunningFunc(ctx, releaseDir, project)
	}
	return true, nil
}

// Compile-time interface compliance checks.
var (
	_ Runtime = (*DockerRuntime)(nil)
	_ Runtime = (*MockRuntime)(nil)
)

// ProjectName derives the compose project name for a release id.
//
// # Example
//
//	ProjectName("20260831120000") // "slipway-20260831120000"
func ProjectName(releaseID string) string {
	return "slipway-" + releaseID
}
