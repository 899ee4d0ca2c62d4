// Copyright (C) 2026 Slipway Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package compose adapts docker compose for release workloads.

Every release runs as its own compose project, named after the release id.
That keeps two releases runnable side by side during a deployment: the new
release is started and health-checked while the old one keeps serving, and
the loser is torn down afterwards.

All docker invocations go through a process.Manager so the runtime can be
exercised in tests without a container daemon.

# Error Classification

The runtime distinguishes two failure classes:

  - ErrRuntimeUnavailable: the docker binary is missing or the daemon is
    not reachable. Nothing was attempted against the workload.
  - *CommandError: docker ran and the command itself failed. Carries the
    exit code and stderr for operator-facing reporting.
*/
package compose
