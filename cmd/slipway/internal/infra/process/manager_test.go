package process

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestDefaultManager_RunInDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	pm := NewDefaultManager()
	ctx := context.Background()

	t.Run("captures stdout and stderr separately", func(t *testing.T) {
		stdout, stderr, code, err := pm.RunInDir(ctx, "", nil, "sh", "-c", "echo out; echo err >&2")
		if err != nil {
			t.Fatalf("RunInDir failed: %v", err)
		}
		if code != 0 {
			t.Errorf("exit code = %d, want 0", code)
		}
		if strings.TrimSpace(stdout) != "out" {
			t.Errorf("stdout = %q, want %q", stdout, "out")
		}
		if strings.TrimSpace(stderr) != "err" {
			t.Errorf("stderr = %q, want %q", stderr, "err")
		}
	})

	t.Run("reports non-zero exit code", func(t *testing.T) {
		_, _, code, err := pm.RunInDir(ctx, "", nil, "sh", "-c", "exit 3")
		if err == nil {
			t.Fatal("expected error for non-zero exit")
		}
		if code != 3 {
			t.Errorf("exit code = %d, want 3", code)
		}
	})

	t.Run("working directory is honored", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "marker.txt"), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		stdout, _, _, err := pm.RunInDir(ctx, dir, nil, "ls")
		if err != nil {
			t.Fatalf("RunInDir failed: %v", err)
		}
		if !strings.Contains(stdout, "marker.txt") {
			t.Errorf("ls in %q = %q, want to contain marker.txt", dir, stdout)
		}
	})

	t.Run("extra env is appended", func(t *testing.T) {
		stdout, _, _, err := pm.RunInDir(ctx, "", []string{"SLIPWAY_TEST_VAR=42"}, "sh", "-c", "echo $SLIPWAY_TEST_VAR")
		if err != nil {
			t.Fatalf("RunInDir failed: %v", err)
		}
		if strings.TrimSpace(stdout) != "42" {
			t.Errorf("env var not propagated, stdout = %q", stdout)
		}
	})

	t.Run("missing binary maps to ErrBinaryNotFound", func(t *testing.T) {
		_, _, code, err := pm.RunInDir(ctx, "", nil, "slipway-no-such-binary-xyz")
		if !errors.Is(err, ErrBinaryNotFound) {
			t.Errorf("err = %v, want ErrBinaryNotFound", err)
		}
		if code != -1 {
			t.Errorf("exit code = %d, want -1", code)
		}
	})
}

func TestMockManager_RecordsCalls(t *testing.T) {
	mock := &MockManager{
		RunInDirFunc: func(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, int, error) {
			return "ok", "", 0, nil
		},
	}

	ctx := context.Background()
	mock.Run(ctx, "docker", "version")
	mock.RunInDir(ctx, "/tmp", nil, "docker", "compose", "ps")

	if mock.CallCount() != 2 {
		t.Fatalf("CallCount() = %d, want 2", mock.CallCount())
	}
	want := []string{"docker", "compose", "ps"}
	got := mock.Calls[1]
	if len(got) != len(want) {
		t.Fatalf("recorded call = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("recorded call[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
