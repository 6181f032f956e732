package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "temi.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Service.URL != DefaultServiceURL {
		t.Errorf("Service.URL = %q, want %q", cfg.Service.URL, DefaultServiceURL)
	}
	if cfg.Service.CallTimeout != DefaultCallTimeout {
		t.Errorf("Service.CallTimeout = %s, want %s", cfg.Service.CallTimeout, DefaultCallTimeout)
	}
	if cfg.App.Kiosk {
		t.Error("App.Kiosk should default to false")
	}
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
service:
  url: ws://robot.local:9000/ws/sdk
  call_timeout: 3s
app:
  package_name: com.acme.greeter
  kiosk: true
log:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Service.URL != "ws://robot.local:9000/ws/sdk" {
		t.Errorf("Service.URL = %q", cfg.Service.URL)
	}
	if cfg.Service.CallTimeout != 3*time.Second {
		t.Errorf("Service.CallTimeout = %s, want 3s", cfg.Service.CallTimeout)
	}
	if cfg.App.PackageName != "com.acme.greeter" || !cfg.App.Kiosk {
		t.Errorf("App = %+v", cfg.App)
	}
	if cfg.Service.ReconnectDelay != DefaultReconnectDelay {
		t.Errorf("unset ReconnectDelay should keep default, got %s", cfg.Service.ReconnectDelay)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "app:\n  package_name: com.acme.file\n")
	t.Setenv("TEMI_PACKAGE_NAME", "com.acme.env")
	t.Setenv("TEMI_CALL_TIMEOUT", "250ms")
	t.Setenv("TEMI_KIOSK", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.App.PackageName != "com.acme.env" {
		t.Errorf("PackageName = %q, want env override", cfg.App.PackageName)
	}
	if cfg.Service.CallTimeout != 250*time.Millisecond {
		t.Errorf("CallTimeout = %s, want 250ms", cfg.Service.CallTimeout)
	}
	if !cfg.App.Kiosk {
		t.Error("Kiosk should be true from env")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Load() should fail for a missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "empty url", mutate: func(c *Config) { c.Service.URL = "" }, wantErr: "service.url"},
		{name: "empty package", mutate: func(c *Config) { c.App.PackageName = "" }, wantErr: "package_name"},
		{name: "zero timeout", mutate: func(c *Config) { c.Service.CallTimeout = 0 }, wantErr: "call_timeout"},
		{name: "negative delay", mutate: func(c *Config) { c.Service.ReconnectDelay = -time.Second }, wantErr: "reconnect_delay"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
