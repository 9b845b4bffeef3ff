package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where serve looks for a config file when none is given.
const DefaultPath = "relay.yaml"

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Control ControlConfig `yaml:"control"`
	Relay   RelayConfig   `yaml:"relay"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// ServerConfig is the WebSocket listener.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ControlConfig is the plain HTTP status listener. Port 0 disables it.
type ControlConfig struct {
	Port int `yaml:"port"`
}

type RelayConfig struct {
	SendBuffer      int           `yaml:"send_buffer"`
	InboundQueue    int           `yaml:"inbound_queue"`
	MaxMessageBytes int64         `yaml:"max_message_bytes"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	PingInterval    time.Duration `yaml:"ping_interval"`
	PongTimeout     time.Duration `yaml:"pong_timeout"`
	MaxConnections  int           `yaml:"max_connections"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level       string         `yaml:"level"`
	Format      string         `yaml:"format"`
	Outputs     []string       `yaml:"outputs"`
	Development bool           `yaml:"development"`
	Rotation    RotationConfig `yaml:"rotation"`
}

// RotationConfig rotates every file output. Filename is only used when the
// outputs name no file. MaxBackups 0 keeps every backup.
type RotationConfig struct {
	Enable     bool   `yaml:"enable"`
	Filename   string `yaml:"filename"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// TracingConfig controls OpenTelemetry spans for dispatched frames.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`

	// Exporter is "stdout" (JSON lines) or "none" (spans are sampled and
	// dropped).
	Exporter string `yaml:"exporter"`

	// Output is stdout, stderr or a file path for the stdout exporter.
	Output string `yaml:"output"`

	SampleRatio float64 `yaml:"sample_ratio"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8765,
		},
		Control: ControlConfig{
			Port: 8766,
		},
		Relay: RelayConfig{
			SendBuffer:      256,
			InboundQueue:    256,
			MaxMessageBytes: 32 << 20,
			WriteTimeout:    10 * time.Second,
			PingInterval:    30 * time.Second,
			PongTimeout:     60 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Log: LogConfig{
			Level:   "info",
			Format:  "console",
			Outputs: []string{"stderr"},
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "relay",
		},
		Tracing: TracingConfig{
			ServiceName: "relay",
			Exporter:    "stdout",
			Output:      "stderr",
			SampleRatio: 1,
		},
	}
}

// Load reads path on top of the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

func (c *Config) Validate() error {
	var problems []string
	if !validPort(c.Server.Port) || c.Server.Port == 0 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if !validPort(c.Control.Port) {
		problems = append(problems, fmt.Sprintf("control.port %d out of range", c.Control.Port))
	}
	if c.Control.Port != 0 && c.Control.Port == c.Server.Port {
		problems = append(problems, "control.port must differ from server.port")
	}
	if c.Relay.SendBuffer <= 0 {
		problems = append(problems, "relay.send_buffer must be positive")
	}
	if c.Relay.InboundQueue <= 0 {
		problems = append(problems, "relay.inbound_queue must be positive")
	}
	if c.Relay.MaxMessageBytes <= 0 {
		problems = append(problems, "relay.max_message_bytes must be positive")
	}
	if c.Relay.MaxConnections < 0 {
		problems = append(problems, "relay.max_connections must not be negative")
	}
	if c.Relay.PingInterval <= 0 || c.Relay.PongTimeout <= c.Relay.PingInterval {
		problems = append(problems, "relay.pong_timeout must exceed a positive relay.ping_interval")
	}
	if c.Relay.WriteTimeout <= 0 {
		problems = append(problems, "relay.write_timeout must be positive")
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format %q: want console or json", c.Log.Format))
	}
	if c.Tracing.Enabled {
		switch strings.ToLower(c.Tracing.Exporter) {
		case "stdout", "none":
		default:
			problems = append(problems, fmt.Sprintf("tracing.exporter %q: want stdout or none", c.Tracing.Exporter))
		}
		if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
			problems = append(problems, "tracing.sample_ratio must be within [0, 1]")
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func validPort(p int) bool {
	return p >= 0 && p <= 65535
}
