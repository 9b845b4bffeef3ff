// Package logging builds the process logger from the log section of the
// relay config.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Artemis1799/Ody-stras-sub001/internal/config"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds a zap.Logger from c, installs it as the global logger and
// redirects the stdlib log package into it. Callers should defer Sync.
func New(c config.LogConfig) (*zap.Logger, error) {
	logger, err := build(c, nil)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	_, _ = zap.RedirectStdLogAt(logger, zap.InfoLevel)
	return logger, nil
}

// build assembles the logger. A non-nil extra receives every entry too.
func build(c config.LogConfig, extra io.Writer) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(parseLevel(c.Level))

	var encoder zapcore.Encoder
	encCfg := encoderConfig(c.Development)
	if strings.ToLower(c.Format) == "json" {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	var (
		cores   []zapcore.Core
		closers []io.Closer
	)
	for _, out := range outputs(c) {
		ws, closer, err := sink(out, c)
		if err != nil {
			for _, cl := range closers {
				err = multierr.Append(err, cl.Close())
			}
			return nil, err
		}
		if closer != nil {
			closers = append(closers, closer)
		}
		cores = append(cores, zapcore.NewCore(encoder, ws, level))
	}
	if extra != nil {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(extra), level))
	}

	opts := []zap.Option{
		zap.AddCaller(),
		zap.AddStacktrace(zap.ErrorLevel),
	}
	if c.Development {
		opts = append(opts, zap.Development())
	}
	return zap.New(zapcore.NewTee(cores...), opts...), nil
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

func encoderConfig(dev bool) zapcore.EncoderConfig {
	if dev {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg
	}
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}

func isStdStream(out string) bool {
	switch strings.ToLower(out) {
	case "stdout", "stderr":
		return true
	}
	return false
}

// outputs lists the distinct sinks to open. With rotation enabled and no
// file among the outputs, the rotation filename becomes one.
func outputs(c config.LogConfig) []string {
	list := c.Outputs
	if len(list) == 0 {
		list = []string{"stderr"}
	}

	seen := make(map[string]bool, len(list))
	var out []string
	hasFile := false
	for _, o := range list {
		o = strings.TrimSpace(o)
		if o == "" || seen[o] {
			continue
		}
		seen[o] = true
		hasFile = hasFile || !isStdStream(o)
		out = append(out, o)
	}

	name := strings.TrimSpace(c.Rotation.Filename)
	if c.Rotation.Enable && !hasFile && name != "" {
		out = append(out, name)
	}
	return out
}

// sink opens one output. Anything other than stdout or stderr is a file
// path, rotated through lumberjack when rotation is enabled. The returned
// closer is nil for the standard streams.
func sink(out string, c config.LogConfig) (zapcore.WriteSyncer, io.Closer, error) {
	switch strings.ToLower(out) {
	case "stdout":
		return zapcore.Lock(os.Stdout), nil, nil
	case "stderr":
		return zapcore.Lock(os.Stderr), nil, nil
	}

	if c.Rotation.Enable {
		lj := &lumberjack.Logger{
			Filename:   out,
			MaxSize:    atLeast(c.Rotation.MaxSizeMB, 10),
			MaxBackups: atLeast(c.Rotation.MaxBackups, 0),
			MaxAge:     atLeast(c.Rotation.MaxAgeDays, 7),
			Compress:   c.Rotation.Compress,
		}
		return zapcore.AddSync(lj), lj, nil
	}

	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, err
		}
	}
	f, err := openFile(out)
	if err != nil {
		return nil, nil, err
	}
	return zapcore.AddSync(f), f, nil
}

var openFile = func(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

func atLeast(v, min int) int {
	if v > min {
		return v
	}
	return min
}
