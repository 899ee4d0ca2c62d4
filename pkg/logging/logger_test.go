// Copyright (C) 2026 Slipway Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"", LevelInfo},
		{"nonsense", LevelInfo},
		{"  error  ", LevelError},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogger_StderrOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelDebug, Output: &buf})

	logger.Info("deploy started", "release_id", "20260831120000")

	out := buf.String()
	if !strings.Contains(out, "deploy started") {
		t.Errorf("output missing message: %q", out)
	}
	if !strings.Contains(out, "release_id=20260831120000") {
		t.Errorf("output missing attribute: %q", out)
	}
	if !strings.Contains(out, "service=slipway") {
		t.Errorf("output missing service attribute: %q", out)
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Output: &buf})

	logger.Debug("not emitted")
	logger.Info("not emitted either")
	logger.Warn("emitted")

	out := buf.String()
	if strings.Contains(out, "not emitted") {
		t.Errorf("level filter leaked lower-severity logs: %q", out)
	}
	if !strings.Contains(out, "emitted") {
		t.Errorf("warn log missing: %q", out)
	}
}

func TestLogger_FileOutput(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, LogDir: dir, Service: "testsvc", Output: &buf})

	logger.Info("health gate passed", "attempts", 3)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	name := "testsvc_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}

	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("log file is not JSON: %v (content %q)", err, data)
	}
	if record["msg"] != "health gate passed" {
		t.Errorf("msg = %v, want %q", record["msg"], "health gate passed")
	}
	if record["service"] != "testsvc" {
		t.Errorf("service = %v, want %q", record["service"], "testsvc")
	}
}

func TestLogger_CloseIsIdempotent(t *testing.T) {
	logger := New(Config{LogDir: t.TempDir(), Output: &bytes.Buffer{}})

	if err := logger.Close(); err != nil {
		t.Fatalf("first Close() failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close() failed: %v", err)
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf})

	child := logger.With("deploy_id", "abc123")
	child.Info("promoted")

	if !strings.Contains(buf.String(), "deploy_id=abc123") {
		t.Errorf("child logger missing inherited attribute: %q", buf.String())
	}
}

func TestLogger_UnwritableLogDirFallsBack(t *testing.T) {
	var buf bytes.Buffer
	// A file (not a directory) at the LogDir path makes MkdirAll fail.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	logger := New(Config{LogDir: blocker, Output: &buf})
	logger.Info("still works")

	if !strings.Contains(buf.String(), "still works") {
		t.Errorf("stderr logging should survive unwritable LogDir: %q", buf.String())
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close() after fallback failed: %v", err)
	}
}
