// Package tracing installs the OpenTelemetry tracer provider described by
// the tracing section of the relay config.
package tracing

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Artemis1799/Ody-stras-sub001/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ShutdownFunc flushes pending spans and releases the exporter.
type ShutdownFunc func(context.Context) error

// Setup builds a provider from c and installs it globally. When tracing is
// disabled the current global provider is returned untouched.
func Setup(c config.TracingConfig, log *zap.Logger) (trace.TracerProvider, ShutdownFunc, error) {
	if !c.Enabled {
		return otel.GetTracerProvider(), func(context.Context) error { return nil }, nil
	}

	exporter, closer, err := newExporter(c)
	if err != nil {
		return nil, nil, err
	}

	tp := newProvider(c, exporter)
	otel.SetTracerProvider(tp)
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		log.Warn("trace error occurred", zap.Error(err))
	}))
	log.Info("tracing enabled",
		zap.String("exporter", c.Exporter),
		zap.String("output", c.Output),
		zap.Float64("sample_ratio", c.SampleRatio))

	shutdown := func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if closer != nil {
			if cerr := closer.Close(); err == nil {
				err = cerr
			}
		}
		return err
	}
	return tp, shutdown, nil
}

func newProvider(c config.TracingConfig, exporter sdktrace.SpanExporter) *sdktrace.TracerProvider {
	name := c.ServiceName
	if name == "" {
		name = "relay"
	}
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(c.SampleRatio))),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(name),
		)),
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	return sdktrace.NewTracerProvider(opts...)
}

// newExporter returns the span exporter for c, plus the file it writes to
// when that file must be closed on shutdown.
func newExporter(c config.TracingConfig) (sdktrace.SpanExporter, io.Closer, error) {
	switch strings.ToLower(c.Exporter) {
	case "none":
		return nil, nil, nil
	case "stdout", "":
	default:
		return nil, nil, fmt.Errorf("unsupported trace exporter %q", c.Exporter)
	}

	var (
		w      io.Writer
		closer io.Closer
	)
	switch c.Output {
	case "", "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	default:
		if err := os.MkdirAll(filepath.Dir(c.Output), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create trace output dir: %w", err)
		}
		f, err := os.OpenFile(c.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open trace output: %w", err)
		}
		w, closer = f, f
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, nil, fmt.Errorf("create stdout trace exporter: %w", err)
	}
	return exporter, closer, nil
}
