package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.Server.Port != 8765 {
		t.Errorf("Server.Port = %d, want 8765", cfg.Server.Port)
	}
	if cfg.Control.Port != 8766 {
		t.Errorf("Control.Port = %d, want 8766", cfg.Control.Port)
	}
	if cfg.Relay.MaxMessageBytes != 32<<20 {
		t.Errorf("Relay.MaxMessageBytes = %d, want 32 MiB", cfg.Relay.MaxMessageBytes)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "relay.yaml")

	yaml := `
server:
  port: 9000
control:
  port: 9001
relay:
  send_buffer: 16
  ping_interval: 5s
  pong_timeout: 15s
  max_connections: 10
  allowed_origins:
    - "http://dashboard.local:5173"
log:
  level: debug
  format: json
metrics:
  enabled: false
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Control.Port != 9001 {
		t.Errorf("Control.Port = %d, want 9001", cfg.Control.Port)
	}
	if cfg.Relay.SendBuffer != 16 {
		t.Errorf("Relay.SendBuffer = %d, want 16", cfg.Relay.SendBuffer)
	}
	if cfg.Relay.PingInterval != 5*time.Second {
		t.Errorf("Relay.PingInterval = %v, want 5s", cfg.Relay.PingInterval)
	}
	if cfg.Relay.MaxConnections != 10 {
		t.Errorf("Relay.MaxConnections = %d, want 10", cfg.Relay.MaxConnections)
	}
	if len(cfg.Relay.AllowedOrigins) != 1 {
		t.Errorf("Relay.AllowedOrigins = %v", cfg.Relay.AllowedOrigins)
	}
	if cfg.Log.Format != "json" || cfg.Log.Level != "debug" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = true, want false")
	}

	// Defaults should still be applied for unspecified fields.
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want default", cfg.Server.Host)
	}
	if cfg.Relay.WriteTimeout != 10*time.Second {
		t.Errorf("Relay.WriteTimeout = %v, want default 10s", cfg.Relay.WriteTimeout)
	}
	if cfg.Metrics.Namespace != "relay" {
		t.Errorf("Metrics.Namespace = %q, want default", cfg.Metrics.Namespace)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/relay.yaml")
	if err == nil {
		t.Fatal("Load() on missing file should return error")
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault("/nonexistent/path/relay.yaml")
	if err != nil {
		t.Fatalf("LoadOrDefault() error: %v", err)
	}
	if cfg.Server.Port != 8765 {
		t.Errorf("Server.Port = %d, want default 8765", cfg.Server.Port)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(cfgPath, []byte(":::not valid yaml"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(cfgPath)
	if err == nil {
		t.Fatal("Load() with invalid YAML should return error")
	}
	if _, err := LoadOrDefault(cfgPath); err == nil {
		t.Fatal("LoadOrDefault() should only swallow missing files")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero server port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"port too large", func(c *Config) { c.Control.Port = 70000 }, "control.port"},
		{"same ports", func(c *Config) { c.Control.Port = c.Server.Port }, "must differ"},
		{"no send buffer", func(c *Config) { c.Relay.SendBuffer = 0 }, "send_buffer"},
		{"no read limit", func(c *Config) { c.Relay.MaxMessageBytes = 0 }, "max_message_bytes"},
		{"negative max connections", func(c *Config) { c.Relay.MaxConnections = -1 }, "max_connections"},
		{"pong before ping", func(c *Config) { c.Relay.PongTimeout = c.Relay.PingInterval }, "pong_timeout"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad exporter", func(c *Config) { c.Tracing.Enabled = true; c.Tracing.Exporter = "zipkin" }, "tracing.exporter"},
		{"bad sample ratio", func(c *Config) { c.Tracing.Enabled = true; c.Tracing.SampleRatio = 2 }, "sample_ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestValidateControlDisabled(t *testing.T) {
	cfg := Default()
	cfg.Control.Port = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with control disabled = %v", err)
	}
}
