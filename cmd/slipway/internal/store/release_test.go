package store

import "testing"

func TestStatus_ParseAndString(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusStarting, StatusHealthChecking, StatusHealthy, StatusFailed, StatusDiscarded} {
		parsed, err := ParseStatus(s.String())
		if err != nil {
			t.Errorf("ParseStatus(%q) failed: %v", s, err)
		}
		if parsed != s {
			t.Errorf("ParseStatus(%q) = %q", s, parsed)
		}
	}

	if _, err := ParseStatus("bogus"); err == nil {
		t.Error("ParseStatus should reject unknown status")
	}
}

func TestStatus_Terminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusPending, false},
		{StatusStarting, false},
		{StatusHealthChecking, false},
		{StatusHealthy, true},
		{StatusFailed, false}, // can still be discarded
		{StatusDiscarded, true},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestRelease_Promotable(t *testing.T) {
	rel := &Release{ID: "20260831120000", Status: StatusHealthChecking}
	if rel.Promotable() {
		t.Error("health_checking release must not be promotable")
	}
	rel.Status = StatusHealthy
	if !rel.Promotable() {
		t.Error("healthy release must be promotable")
	}
}
