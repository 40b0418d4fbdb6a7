package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

const minimalConfig = `
controller:
  url: https://192.168.1.1
  username: netrules
  password: hunter2
security:
  jwt:
    secret: test-secret
  admin:
    password: admin-pass
`

func TestLoadMinimal(t *testing.T) {
	path := writeConfigFile(t, minimalConfig)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Controller.URL != "https://192.168.1.1" {
		t.Errorf("controller URL = %q", cfg.Controller.URL)
	}
	if cfg.Controller.Site != "default" {
		t.Errorf("site default not applied: %q", cfg.Controller.Site)
	}
	if cfg.Poll.BaseInterval != 300 {
		t.Errorf("base interval default = %d, want 300", cfg.Poll.BaseInterval)
	}
	if cfg.API.Port != 8480 {
		t.Errorf("api port default = %d, want 8480", cfg.API.Port)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "controller: [not a mapping")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, minimalConfig)

	t.Setenv("NETRULES_CONTROLLER_PASSWORD", "env-password")
	t.Setenv("NETRULES_API_PORT", "9090")
	t.Setenv("NETRULES_JWT_SECRET", "env-secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Controller.Password != "env-password" {
		t.Errorf("password override not applied: %q", cfg.Controller.Password)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("port override not applied: %d", cfg.API.Port)
	}
	if cfg.Security.JWT.Secret != "env-secret" {
		t.Errorf("jwt secret override not applied")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing controller url",
			mutate:  func(c *Config) { c.Controller.URL = "" },
			wantErr: "controller.url is required",
		},
		{
			name:    "bad url scheme",
			mutate:  func(c *Config) { c.Controller.URL = "ftp://router" },
			wantErr: "must start with http",
		},
		{
			name:    "missing password",
			mutate:  func(c *Config) { c.Controller.Password = "" },
			wantErr: "controller.password is required",
		},
		{
			name: "inverted poll tiers",
			mutate: func(c *Config) {
				c.Poll.BaseInterval = 10
				c.Poll.ActiveInterval = 30
			},
			wantErr: "base_interval must be >=",
		},
		{
			name:    "zero realtime interval",
			mutate:  func(c *Config) { c.Poll.RealtimeInterval = 0; c.Poll.ActiveInterval = 0; c.Poll.BaseInterval = 0 },
			wantErr: "realtime_interval must be positive",
		},
		{
			name:    "invalid api port",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: "api.port",
		},
		{
			name:    "missing jwt secret",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "" },
			wantErr: "security.jwt.secret",
		},
		{
			name: "influx enabled without token",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.URL = "http://localhost:8086"
			},
			wantErr: "influxdb.token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := validConfig()
	cfg.Poll.BaseInterval = 300
	cfg.Poll.DebounceSeconds = 10
	cfg.Controller.Timeout = 30

	if got := cfg.PollBaseInterval(); got != 5*time.Minute {
		t.Errorf("PollBaseInterval = %v, want 5m", got)
	}
	if got := cfg.PollDebounce(); got != 10*time.Second {
		t.Errorf("PollDebounce = %v, want 10s", got)
	}
	if got := cfg.ControllerTimeout(); got != 30*time.Second {
		t.Errorf("ControllerTimeout = %v, want 30s", got)
	}
}

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Controller.URL = "https://192.168.1.1"
	cfg.Controller.Username = "netrules"
	cfg.Controller.Password = "hunter2"
	cfg.Security.JWT.Secret = "test-secret"
	cfg.Security.Admin.Password = "admin-pass"
	return cfg
}
