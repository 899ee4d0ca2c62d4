package main

import (
	"context"
	"errors"
	"testing"

	"github.com/slipway-sh/slipway/cmd/slipway/internal/infra/compose"
	"github.com/slipway-sh/slipway/cmd/slipway/internal/store"
)

func (d *testDeps) rollbackManager() *RollbackManager {
	return NewRollbackManager(d.cfg, d.store, d.runtime, d.health, d.logger)
}

// deployReleases pushes a sequence of successful deployments through
// the real deployer, leaving the last one current.
func deployReleases(t *testing.T, d *testDeps, refs ...string) []string {
	t.Helper()
	dep := d.deployer()
	var ids []string
	for _, ref := range refs {
		result, err := dep.Deploy(context.Background(), ref)
		if err != nil {
			t.Fatalf("Deploy(%s) failed: %v", ref, err)
		}
		ids = append(ids, result.ReleaseID)
	}
	return ids
}

func TestRollbackManager_RevertPicksMostRecentHealthy(t *testing.T) {
	d := newTestDeps(t)
	ids := deployReleases(t, d, "app:v1", "app:v2", "app:v3")

	target, err := d.rollbackManager().Revert(context.Background(), ids[2])
	if err != nil {
		t.Fatalf("Revert failed: %v", err)
	}
	if target.ID != ids[1] {
		t.Errorf("target = %s, want %s (most recent healthy before v3)", target.ID, ids[1])
	}

	current, err := d.store.Current()
	if err != nil {
		t.Fatal(err)
	}
	if current.ID != ids[1] {
		t.Errorf("current = %s, want %s", current.ID, ids[1])
	}
}

func TestRollbackManager_RevertToAlreadyCurrentIsNoOp(t *testing.T) {
	d := newTestDeps(t)
	ids := deployReleases(t, d, "app:v1", "app:v2")

	// v3 failed before promotion, so v2 is still current: the revert
	// confirms the pointer without restarting or re-promoting anything.
	failed, err := d.store.Create("app:v3")
	if err != nil {
		t.Fatal(err)
	}

	upsBefore := len(d.runtime.UpProjects)
	downsBefore := len(d.runtime.DownProjects)

	target, err := d.rollbackManager().Revert(context.Background(), failed.ID)
	if err != nil {
		t.Fatalf("Revert failed: %v", err)
	}
	if target.ID != ids[1] {
		t.Errorf("target = %s, want already-current %s", target.ID, ids[1])
	}

	if len(d.runtime.UpProjects) != upsBefore {
		t.Errorf("Up called during no-op revert: %v", d.runtime.UpProjects[upsBefore:])
	}
	if len(d.runtime.DownProjects) != downsBefore {
		t.Errorf("Down called during no-op revert: %v", d.runtime.DownProjects[downsBefore:])
	}

	current, err := d.store.Current()
	if err != nil {
		t.Fatal(err)
	}
	if current.ID != ids[1] {
		t.Errorf("current = %s, want unchanged %s", current.ID, ids[1])
	}
}

func TestRollbackManager_RevertWithoutPriorHealthy(t *testing.T) {
	d := newTestDeps(t)
	ids := deployReleases(t, d, "app:v1")

	_, err := d.rollbackManager().Revert(context.Background(), ids[0])
	if !errors.Is(err, ErrRollbackUnavailable) {
		t.Fatalf("err = %v, want ErrRollbackUnavailable", err)
	}
}

func TestRollbackManager_RevertHealthGatesTarget(t *testing.T) {
	d := newTestDeps(t)
	ids := deployReleases(t, d, "app:v1", "app:v2")

	d.health.AwaitFunc = func(ctx context.Context, endpoint string, opts WaitOptions) error {
		return ErrHealthCheckTimeout
	}

	_, err := d.rollbackManager().Revert(context.Background(), ids[1])
	if err == nil {
		t.Fatal("Revert should fail when the target never becomes healthy")
	}

	// The pointer must not move to an unhealthy target.
	current, cerr := d.store.Current()
	if cerr != nil {
		t.Fatal(cerr)
	}
	if current.ID != ids[1] {
		t.Errorf("current = %s, want unchanged %s", current.ID, ids[1])
	}
}

func TestRollbackManager_RollbackToExplicitTarget(t *testing.T) {
	d := newTestDeps(t)
	ids := deployReleases(t, d, "app:v1", "app:v2", "app:v3")

	target, err := d.rollbackManager().RollbackTo(context.Background(), ids[0])
	if err != nil {
		t.Fatalf("RollbackTo failed: %v", err)
	}
	if target.ID != ids[0] {
		t.Errorf("target = %s, want %s", target.ID, ids[0])
	}

	current, err := d.store.Current()
	if err != nil {
		t.Fatal(err)
	}
	if current.ID != ids[0] {
		t.Errorf("current = %s, want %s", current.ID, ids[0])
	}

	// The displaced release's runtime was stopped.
	displaced := compose.ProjectName(ids[2])
	found := false
	for _, p := range d.runtime.DownProjects {
		if p == displaced {
			found = true
		}
	}
	if !found {
		t.Errorf("displaced project %s not stopped: %v", displaced, d.runtime.DownProjects)
	}
}

func TestRollbackManager_RollbackToInvalidTargets(t *testing.T) {
	d := newTestDeps(t)
	ids := deployReleases(t, d, "app:v1", "app:v2")

	// A failed release is not a valid target.
	failed, err := d.store.Create("app:v3")
	if err != nil {
		t.Fatal(err)
	}
	if err := d.store.SetStatus(failed.ID, store.StatusStarting); err != nil {
		t.Fatal(err)
	}
	if err := d.store.SetStatus(failed.ID, store.StatusFailed); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		target string
	}{
		{name: "missing release", target: "19990101000000"},
		{name: "not healthy", target: failed.ID},
		{name: "already current", target: ids[1]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.rollbackManager().RollbackTo(context.Background(), tt.target)
			if !errors.Is(err, ErrRollbackTargetInvalid) {
				t.Errorf("err = %v, want ErrRollbackTargetInvalid", err)
			}
		})
	}
}
