package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Artemis1799/Ody-stras-sub001/internal/config"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zap.DebugLevel},
		{"INFO", zap.InfoLevel},
		{"warning", zap.WarnLevel},
		{"error", zap.ErrorLevel},
		{"", zap.InfoLevel},
		{"loud", zap.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestBuildJSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := build(config.LogConfig{Level: "warn", Format: "json", Outputs: []string{"stderr"}}, &buf)
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("dropped")
	logger.Warn("kept", zap.String("conn", "c1"))
	_ = logger.Sync()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if entry["msg"] != "kept" || entry["conn"] != "c1" {
		t.Errorf("entry = %v", entry)
	}
}

func TestBuildFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "relay.log")
	logger, err := build(config.LogConfig{Format: "console", Outputs: []string{path}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("to file")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("log file = %q", data)
	}
}

func TestBuildRotatedOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rotated.log")
	logger, err := build(config.LogConfig{
		Format:   "json",
		Outputs:  []string{"stderr"},
		Rotation: config.RotationConfig{Enable: true, Filename: path},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("rotated")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "rotated") {
		t.Errorf("rotated file = %q", data)
	}
}

func TestBuildRotatesEachFileOutput(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.log")
	b := filepath.Join(dir, "b.log")
	unused := filepath.Join(dir, "unused.log")

	logger, err := build(config.LogConfig{
		Format:   "json",
		Outputs:  []string{a, b},
		Rotation: config.RotationConfig{Enable: true, Filename: unused},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("fan out")
	_ = logger.Sync()

	for _, path := range []string{a, b} {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if got := strings.Count(string(data), "fan out"); got != 1 {
			t.Errorf("%s holds %d entries, want 1", filepath.Base(path), got)
		}
	}
	if _, err := os.Stat(unused); !os.IsNotExist(err) {
		t.Errorf("rotation filename should be unused when outputs name files, stat err = %v", err)
	}
}

func TestOutputs(t *testing.T) {
	tests := []struct {
		name string
		in   config.LogConfig
		want []string
	}{
		{"default", config.LogConfig{}, []string{"stderr"}},
		{"duplicates", config.LogConfig{Outputs: []string{"stderr", "a.log", "stderr", "a.log"}}, []string{"stderr", "a.log"}},
		{
			"rotation fallback",
			config.LogConfig{Outputs: []string{"stdout"}, Rotation: config.RotationConfig{Enable: true, Filename: "r.log"}},
			[]string{"stdout", "r.log"},
		},
		{
			"rotation with file outputs",
			config.LogConfig{Outputs: []string{"a.log"}, Rotation: config.RotationConfig{Enable: true, Filename: "r.log"}},
			[]string{"a.log"},
		},
		{
			"rotation disabled",
			config.LogConfig{Outputs: []string{"stdout"}, Rotation: config.RotationConfig{Filename: "r.log"}},
			[]string{"stdout"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, outputs(tt.in)); diff != "" {
				t.Errorf("outputs mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSinkKeepsAllBackupsWhenZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.log")
	_, closer, err := sink(path, config.LogConfig{Rotation: config.RotationConfig{Enable: true, MaxBackups: 0}})
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()

	lj, ok := closer.(*lumberjack.Logger)
	if !ok {
		t.Fatalf("closer is %T, want *lumberjack.Logger", closer)
	}
	if lj.MaxBackups != 0 || lj.Filename != path {
		t.Errorf("lumberjack = %+v, want MaxBackups 0 on %s", lj, path)
	}
}

func TestBuildFailsOnUnopenableOutput(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.log")
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	var opened []*os.File
	orig := openFile
	openFile = func(path string) (*os.File, error) {
		f, err := orig(path)
		if err == nil {
			opened = append(opened, f)
		}
		return f, err
	}
	t.Cleanup(func() { openFile = orig })

	_, err := build(config.LogConfig{Outputs: []string{good, filepath.Join(blocker, "bad.log")}}, nil)
	if err == nil {
		t.Fatal("expected an error for an output under a regular file")
	}
	if len(opened) != 1 {
		t.Fatalf("opened %d files, want 1", len(opened))
	}
	if err := opened[0].Close(); !errors.Is(err, os.ErrClosed) {
		t.Errorf("earlier sink left open: Close() = %v, want os.ErrClosed", err)
	}
}
