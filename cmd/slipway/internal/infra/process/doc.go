// Copyright (C) 2026 Slipway Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package process provides abstractions for external process execution and
inter-process synchronization.

# Overview

This package contains two main components:

  - Manager: Abstracts external process execution for testability
  - DeployLocker: File-based locking that serializes deploys and cleanup

# Manager

Manager enables testable interaction with the operating system's process
management capabilities. All exec.Command calls in the orchestration code
should go through this interface to enable mocking in unit tests.

	pm := process.NewDefaultManager()
	stdout, stderr, code, err := pm.RunInDir(ctx, releaseDir, nil, "docker", "compose", "ps")
	if err != nil {
	    return fmt.Errorf("failed to query services: %w", err)
	}

For testing, use MockManager:

	mock := &process.MockManager{
	    RunInDirFunc: func(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, int, error) {
	        return "mock output", "", 0, nil
	    },
	}

# DeployLocker

DeployLocker prevents a deploy from running while another deploy or a
retention prune is in flight, avoiding interleaved state transitions on
the release store. Uses the flock(2) system call for advisory file
locking.

	lock := process.NewDeployLock(process.DefaultDeployLockConfig())
	if err := lock.Acquire(); err != nil {
	    fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	    os.Exit(1)
	}
	defer lock.Release()

# Thread Safety

  - Manager implementations are safe for concurrent use
  - DeployLocker is NOT safe for concurrent use from multiple goroutines

# Limitations

  - DeployLock uses advisory locks - other processes can ignore it if not checking
  - DeployLock requires OS support for flock(2)
*/
package process
