package store

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a release.
//
// # Description
//
// Statuses are ordered by lifecycle, not severity. A release moves
// forward only; once a status is left it is never revisited. The single
// exception is Failed -> Discarded, applied by the retention cleaner
// just before physical removal.
type Status string

const (
	// StatusPending means the release directory exists but nothing has
	// been started.
	StatusPending Status = "pending"

	// StatusStarting means runtime config is materialized and the
	// process group is being brought up (including the migration step).
	StatusStarting Status = "starting"

	// StatusHealthChecking means the release is up and the health gate
	// is polling its readiness endpoint.
	StatusHealthChecking Status = "health_checking"

	// StatusHealthy means the release passed its health gate. Only
	// Healthy releases may be promoted.
	StatusHealthy Status = "healthy"

	// StatusFailed means the release was abandoned before promotion.
	// Failed releases are kept on disk for inspection until pruned.
	StatusFailed Status = "failed"

	// StatusDiscarded marks a Failed release queued for removal.
	StatusDiscarded Status = "discarded"
)

// forwardTransitions maps each status to the set of statuses reachable
// from it.
var forwardTransitions = map[Status][]Status{
	StatusPending:        {StatusStarting, StatusFailed},
	StatusStarting:       {StatusHealthChecking, StatusFailed},
	StatusHealthChecking: {StatusHealthy, StatusFailed},
	StatusHealthy:        {},
	StatusFailed:         {StatusDiscarded},
	StatusDiscarded:      {},
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	_, ok := forwardTransitions[s]
	return ok
}

// CanTransition reports whether the lifecycle permits moving from s to
// next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range forwardTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
	return len(forwardTransitions[s]) == 0
}

// String returns the wire form of the status.
func (s Status) String() string {
	return string(s)
}

// ParseStatus converts a persisted string to a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown release status %q", raw)
	}
	return s, nil
}

// Release is one versioned, materialized deployment unit.
//
// # Description
//
// The record is persisted as release.json inside the release directory
// and is the single source of truth for the release's status. Ids are
// globally unique and totally ordered by creation time (lexical order
// equals creation order).
type Release struct {
	// ID is the ordinal identifier, e.g. "20260831120000" or
	// "20260831120000-01" when two releases share a timestamp second.
	ID string `json:"id"`

	// ArtifactRef is the image reference this release deploys,
	// e.g. "registry.example.com/app:sha-4f2a91c".
	ArtifactRef string `json:"artifact_ref"`

	// CreatedAt is the creation time in UTC.
	CreatedAt time.Time `json:"created_at"`

	// Status is the current lifecycle state.
	Status Status `json:"status"`
}

// Promotable reports whether the release may become the current pointer
// target.
func (r *Release) Promotable() bool {
	return r.Status == StatusHealthy
}
