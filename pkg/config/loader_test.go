package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	validConfig := `
log_level: debug

scanner:
  type: clamd
  options:
    address: /run/clamd.sock
    timeout: 10s

storage:
  type: multi
  options:
    storages:
      - filepath
      - [stream, {tmp_dir: /var/tmp}]

addons:
  - remove_infected
  - tracing

server:
  port: 9090
  auth:
    type: bearer
    secret: test-secret
`

	if err := os.WriteFile(configPath, []byte(validConfig), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Scanner.Type != "clamd" {
		t.Errorf("Scanner.Type = %s, want clamd", cfg.Scanner.Type)
	}
	if got := cfg.Scanner.Options.String("address", ""); got != "/run/clamd.sock" {
		t.Errorf("scanner address = %s, want /run/clamd.sock", got)
	}
	if got := cfg.Scanner.Options.Duration("timeout", 0); got != 10*time.Second {
		t.Errorf("scanner timeout = %v, want 10s", got)
	}
	if got := len(cfg.Storage.Options.List("storages")); got != 2 {
		t.Errorf("len(storages) = %d, want 2", got)
	}
	if len(cfg.Addons) != 2 || cfg.Addons[1] != "tracing" {
		t.Errorf("Addons = %v, want [remove_infected tracing]", cfg.Addons)
	}

	// Defaults fill the rest
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != "30s" {
		t.Errorf("Server.ReadTimeout = %s, want 30s", cfg.Server.ReadTimeout)
	}
	if cfg.Queue.BufferSize != 100 || cfg.Queue.JobTimeout != "10m" {
		t.Errorf("Queue = %+v, want defaults", cfg.Queue)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Scanner.Type != DefaultScannerType {
		t.Errorf("Scanner.Type = %s, want %s", cfg.Scanner.Type, DefaultScannerType)
	}
	if cfg.Storage.Type != DefaultStorageType {
		t.Errorf("Storage.Type = %s, want %s", cfg.Storage.Type, DefaultStorageType)
	}
	if got := cfg.Storage.Options.Strings("storages"); strings.Join(got, ",") != "filepath,stream,blob,upload" {
		t.Errorf("default storages = %v", got)
	}
	if cfg.Addons != nil {
		t.Errorf("Addons = %v, want nil so the pipeline keeps its defaults", cfg.Addons)
	}
	if cfg.Server.Auth.Type != "none" {
		t.Errorf("Auth.Type = %s, want none", cfg.Server.Auth.Type)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults = %v", err)
	}
}

func TestParse_EmptyAddonList(t *testing.T) {
	cfg, err := Parse([]byte("addons: []\n"))
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if cfg.Addons == nil || len(cfg.Addons) != 0 {
		t.Errorf("Addons = %#v, want an empty non-nil list", cfg.Addons)
	}
}

func TestParse_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_TOKEN", "my-secret-token")

	configWithEnv := `
scanner:
  type: http
  options:
    api_url: https://scan.example.com
    token: ${TEST_TOKEN}
server:
  auth:
    type: hmac
    secret: ${FILE:webhook-secret}
`

	cfg, err := Parse([]byte(configWithEnv))
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}

	if got := cfg.Scanner.Options.String("token", ""); got != "my-secret-token" {
		t.Errorf("scanner token = %s, want my-secret-token", got)
	}
	if cfg.Server.Auth.Secret != "${FILE:webhook-secret}" {
		t.Errorf("Auth.Secret = %s, want the FILE placeholder kept", cfg.Server.Auth.Secret)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return Default()
	}

	tests := []struct {
		name        string
		mutate      func(*Config)
		wantErr     bool
		errContains string
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{
			name:        "missing scanner type",
			mutate:      func(c *Config) { c.Scanner.Type = " " },
			wantErr:     true,
			errContains: "scanner.type is required",
		},
		{
			name:        "missing storage type",
			mutate:      func(c *Config) { c.Storage.Type = "" },
			wantErr:     true,
			errContains: "storage.type is required",
		},
		{
			name:        "blank addon",
			mutate:      func(c *Config) { c.Addons = []string{"remove_infected", ""} },
			wantErr:     true,
			errContains: "addons[1]",
		},
		{
			name:        "invalid port",
			mutate:      func(c *Config) { c.Server.Port = 70000 },
			wantErr:     true,
			errContains: "server.port",
		},
		{
			name:        "bearer without secret",
			mutate:      func(c *Config) { c.Server.Auth = AuthConfig{Type: "bearer"} },
			wantErr:     true,
			errContains: "auth.secret is required",
		},
		{
			name:        "unknown auth type",
			mutate:      func(c *Config) { c.Server.Auth = AuthConfig{Type: "basic"} },
			wantErr:     true,
			errContains: "invalid auth type",
		},
		{
			name:        "negative buffer",
			mutate:      func(c *Config) { c.Queue.BufferSize = -1 },
			wantErr:     true,
			errContains: "queue.buffer_size",
		},
		{
			name:        "bad duration",
			mutate:      func(c *Config) { c.Queue.JobTimeout = "soon" },
			wantErr:     true,
			errContains: "queue.job_timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("Validate() error = %v, want error containing %q", err, tt.errContains)
			}
		})
	}
}

func TestLoadConfig_Environment(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	secretsDir := filepath.Join(tmpDir, "secrets")

	if err := os.Mkdir(secretsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(secretsDir, "scan-token"), []byte("from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	content := `
scanner:
  type: http
  options:
    token: ${FILE:scan-token}
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CONFIG_FILE", configPath)
	t.Setenv("SECRETS_DIR", secretsDir)
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("PORT", "9999")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if got := cfg.Scanner.Options.String("token", ""); got != "from-file" {
		t.Errorf("scanner token = %q, want from-file", got)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %s, want warn", cfg.LogLevel)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("SECRETS_DIR", filepath.Join(t.TempDir(), "absent"))
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("PORT", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if cfg.Scanner.Type != DefaultScannerType || cfg.Server.Port != 8080 {
		t.Errorf("LoadConfig() = %+v, want defaults", cfg)
	}
}
