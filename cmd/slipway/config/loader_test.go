package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slipway.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.yaml")
	_, err := Load(path)
	if !errors.Is(err, ErrConfigMissing) {
		t.Fatalf("err = %v, want ErrConfigMissing", err)
	}
}

func TestLoad_MinimalConfigGetsDefaults(t *testing.T) {
	path := writeConfig(t, `
store:
  root: /srv/myapp
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Store.Root != "/srv/myapp" {
		t.Errorf("Store.Root = %q", cfg.Store.Root)
	}
	if cfg.Compose.Binary != "docker" {
		t.Errorf("Compose.Binary = %q, want default docker", cfg.Compose.Binary)
	}
	if cfg.Health.Path != "/healthz" {
		t.Errorf("Health.Path = %q, want default /healthz", cfg.Health.Path)
	}
	if cfg.Retention.KeepLast != 3 {
		t.Errorf("Retention.KeepLast = %d, want default 3", cfg.Retention.KeepLast)
	}
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
store:
  root: /srv/myapp
compose:
  binary: docker
  app_service: web
  migration:
    service: web
    command: ["bin/rails", "db:migrate"]
health:
  service: web
  container_port: 3000
  path: /up
  timeout_seconds: 90
  interval_millis: 1000
retention:
  keep_last: 5
metrics:
  textfile_path: /var/lib/node_exporter/textfile/slipway.prom
logging:
  level: debug
  dir: /var/log/slipway
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Compose.AppService != "web" {
		t.Errorf("AppService = %q", cfg.Compose.AppService)
	}
	if len(cfg.Compose.Migration.Command) != 2 || cfg.Compose.Migration.Command[0] != "bin/rails" {
		t.Errorf("Migration.Command = %v", cfg.Compose.Migration.Command)
	}
	if cfg.Health.ContainerPort != 3000 {
		t.Errorf("ContainerPort = %d", cfg.Health.ContainerPort)
	}
	if cfg.Retention.KeepLast != 5 {
		t.Errorf("KeepLast = %d", cfg.Retention.KeepLast)
	}
	if cfg.Metrics.TextfilePath == "" {
		t.Error("TextfilePath not parsed")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "store: [not: a: mapping\n")
	if _, err := Load(path); err == nil {
		t.Fatal("malformed yaml should fail to load")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SlipwayConfig)
		wantErr bool
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *SlipwayConfig) {},
		},
		{
			name:    "empty store root",
			mutate:  func(c *SlipwayConfig) { c.Store.Root = "" },
			wantErr: true,
		},
		{
			name:    "empty app service",
			mutate:  func(c *SlipwayConfig) { c.Compose.AppService = "" },
			wantErr: true,
		},
		{
			name: "migration command without service",
			mutate: func(c *SlipwayConfig) {
				c.Compose.Migration.Command = []string{"migrate"}
				c.Compose.Migration.Service = ""
			},
			wantErr: true,
		},
		{
			name:    "container port out of range",
			mutate:  func(c *SlipwayConfig) { c.Health.ContainerPort = 70000 },
			wantErr: true,
		},
		{
			name:    "health path without leading slash",
			mutate:  func(c *SlipwayConfig) { c.Health.Path = "healthz" },
			wantErr: true,
		},
		{
			name:    "zero health timeout",
			mutate:  func(c *SlipwayConfig) { c.Health.TimeoutSeconds = 0 },
			wantErr: true,
		},
		{
			name:    "negative keep last",
			mutate:  func(c *SlipwayConfig) { c.Retention.KeepLast = -1 },
			wantErr: true,
		},
		{
			name:    "keep last zero is allowed",
			mutate:  func(c *SlipwayConfig) { c.Retention.KeepLast = 0 },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("Validate() = nil, want error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}
