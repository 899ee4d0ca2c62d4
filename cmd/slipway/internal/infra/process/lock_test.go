package process

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

func TestDeployLock_DefaultConfig(t *testing.T) {
	config := DefaultDeployLockConfig()

	if config.LockDir == "" {
		t.Error("DefaultDeployLockConfig should set LockDir")
	}
	if config.LockName != "slipway" {
		t.Errorf("DefaultDeployLockConfig LockName = %q, want %q", config.LockName, "slipway")
	}
}

func TestNewDeployLock_Paths(t *testing.T) {
	tests := []struct {
		name     string
		config   DeployLockConfig
		lockDir  string
		lockName string
	}{
		{
			name:     "default values",
			config:   DeployLockConfig{},
			lockDir:  os.TempDir(),
			lockName: "slipway",
		},
		{
			name:     "custom values",
			config:   DeployLockConfig{LockDir: "/custom/dir", LockName: "myapp"},
			lockDir:  "/custom/dir",
			lockName: "myapp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lock := NewDeployLock(tt.config)

			want := filepath.Join(tt.lockDir, tt.lockName+".lock")
			if lock.LockPath() != want {
				t.Errorf("LockPath() = %q, want %q", lock.LockPath(), want)
			}
		})
	}
}

func TestDeployLock_AcquireRelease(t *testing.T) {
	lock := NewDeployLock(DeployLockConfig{LockDir: t.TempDir(), LockName: "test"})

	if err := lock.Acquire(); err != nil {
		t.Fatalf("Acquire() failed: %v", err)
	}
	if !lock.IsHeld() {
		t.Error("IsHeld() = false after Acquire()")
	}
	if got := lock.HolderPID(); got != os.Getpid() {
		t.Errorf("HolderPID() = %d, want %d", got, os.Getpid())
	}

	// Re-acquiring while held is a no-op.
	if err := lock.Acquire(); err != nil {
		t.Errorf("second Acquire() while held failed: %v", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release() failed: %v", err)
	}
	if lock.IsHeld() {
		t.Error("IsHeld() = true after Release()")
	}

	// Releasing an unheld lock is safe.
	if err := lock.Release(); err != nil {
		t.Errorf("second Release() failed: %v", err)
	}
}

func TestDeployLock_ContendedAcrossProcesses(t *testing.T) {
	// A child process holds the flock, exercising the contention path a
	// concurrent slipway invocation would hit, including holder PID
	// reporting.
	if os.Getenv("SLIPWAY_LOCK_HELPER") == "1" {
		lockDir := os.Getenv("SLIPWAY_LOCK_DIR")
		lock := NewDeployLock(DeployLockConfig{LockDir: lockDir, LockName: "contended"})
		if err := lock.Acquire(); err != nil {
			os.Exit(2)
		}
		// Signal readiness, then hold until killed. A timer-backed
		// sleep keeps the runtime's deadlock detector from killing
		// the helper (select {} with every goroutine blocked would).
		os.WriteFile(filepath.Join(lockDir, "ready"), []byte(strconv.Itoa(os.Getpid())), 0o644)
		time.Sleep(time.Hour)
	}

	dir := t.TempDir()

	cmd := exec.Command(os.Args[0], "-test.run", "TestDeployLock_ContendedAcrossProcesses")
	cmd.Env = append(os.Environ(), "SLIPWAY_LOCK_HELPER=1", "SLIPWAY_LOCK_DIR="+dir)
	if err := cmd.Start(); err != nil {
		t.Fatalf("starting helper: %v", err)
	}
	defer func() {
		cmd.Process.Kill()
		cmd.Wait()
	}()

	// Wait for the child to hold the lock.
	ready := filepath.Join(dir, "ready")
	for i := 0; i < 200; i++ {
		if _, err := os.Stat(ready); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	lock := NewDeployLock(DeployLockConfig{LockDir: dir, LockName: "contended"})
	err := lock.Acquire()
	if err == nil {
		t.Fatal("Acquire() succeeded while another process holds the lock")
	}

	var held *LockHeldError
	if !errors.As(err, &held) {
		t.Fatalf("Acquire() error = %v, want *LockHeldError", err)
	}
	if held.HolderPID != cmd.Process.Pid {
		t.Errorf("HolderPID = %d, want %d", held.HolderPID, cmd.Process.Pid)
	}
}

