// Copyright (C) 2026 Slipway Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package store implements the filesystem-backed release repository.

# Overview

A deployment target is a single root directory:

	<root>/
	    releases/
	        20260831120000/          release directory
	            release.json         persisted Release record
	            docker-compose.yml   materialized from <root>/shared
	            .env                 artifact reference for this release
	        20260831121500/
	    current -> releases/20260831121500
	    shared/                      release-independent config source

Release ids are UTC timestamps with a numeric suffix on collision, so
lexical order equals creation order. The `current` symlink is the only
mutable pointer; it is swapped with symlink-then-rename so that readers
(the reverse proxy resolving its upstream, health scrapers) can never
observe a half-updated value.

# Lifecycle

A release moves forward only:

	Pending -> Starting -> HealthChecking -> Healthy
	Pending/Starting/HealthChecking -> Failed
	Failed -> Discarded

SetStatus rejects anything else with ErrInvalidTransition. Releases are
physically removed only by the retention cleaner, never by the deployer
or the rollback manager.
*/
package store
