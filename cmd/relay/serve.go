package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Artemis1799/Ody-stras-sub001/internal/config"
	"github.com/Artemis1799/Ody-stras-sub001/internal/logging"
	"github.com/Artemis1799/Ody-stras-sub001/internal/metrics"
	"github.com/Artemis1799/Ody-stras-sub001/internal/monitor"
	"github.com/Artemis1799/Ody-stras-sub001/internal/relay"
	"github.com/Artemis1799/Ody-stras-sub001/internal/session"
	"github.com/Artemis1799/Ody-stras-sub001/internal/tracing"
	"github.com/Artemis1799/Ody-stras-sub001/internal/ws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type serveFlags struct {
	configPath  string
	host        string
	port        int
	controlPort int
	logLevel    string
	trace       bool
}

func serveCmd() *cobra.Command {
	var f serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay",
		Long: `Run the WebSocket relay and its HTTP control endpoint.

Settings come from the YAML config file when it exists and from
built-in defaults otherwise. Flags override the file.

Examples:
  relay serve
  relay serve --config /etc/relay.yaml
  relay serve --port 9000 --control-port 0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, f)
		},
	}

	cmd.Flags().StringVarP(&f.configPath, "config", "c", config.DefaultPath, "Path to config file")
	cmd.Flags().StringVarP(&f.host, "host", "H", "", "Host to bind to (default from config)")
	cmd.Flags().IntVarP(&f.port, "port", "p", 0, "WebSocket port (default from config)")
	cmd.Flags().IntVar(&f.controlPort, "control-port", 0, "Control port, 0 disables it (default from config)")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "Log level (default from config)")
	cmd.Flags().BoolVar(&f.trace, "trace", false, "Enable tracing even when the config leaves it off")

	return cmd
}

func runServe(cmd *cobra.Command, f serveFlags) error {
	cfg, err := config.LoadOrDefault(f.configPath)
	if err != nil {
		return err
	}
	if f.host != "" {
		cfg.Server.Host = f.host
	}
	if f.port > 0 {
		cfg.Server.Port = f.port
	}
	if cmd.Flags().Changed("control-port") {
		cfg.Control.Port = f.controlPort
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.trace {
		cfg.Tracing.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	var (
		m              *metrics.Metrics
		metricsHandler http.Handler
	)
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m = metrics.New(metrics.Config{Namespace: cfg.Metrics.Namespace, Registry: reg})
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	tp, shutdownTracing, err := tracing.Setup(cfg.Tracing, log.Named("tracing"))
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := relay.NewHub(relay.Options{
		MaxConnections: cfg.Relay.MaxConnections,
		QueueSize:      cfg.Relay.InboundQueue,
		TracerProvider: tp,
	}, session.NewStore(), m, log.Named("hub"))
	go hub.Run(ctx)

	srv := ws.NewServer(ctx, hub, ws.OptionsFromConfig(cfg.Relay), log.Named("ws"))
	listeners := []ws.Listener{{
		Name:    "websocket",
		Addr:    net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler: srv.Routes(),
	}}

	if cfg.Control.Port > 0 {
		proc, err := monitor.Self()
		if err != nil {
			log.Warn("process stats unavailable", zap.Error(err))
		}
		ctrl := ws.NewControl(hub, cfg.Server.Port, proc, metricsHandler, log.Named("control"))
		listeners = append(listeners, ws.Listener{
			Name:    "control",
			Addr:    net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Control.Port)),
			Handler: ctrl.Routes(),
		})
	}

	success("relay %s starting", version)
	info("WebSocket   ws://%s:%d/ws", monitor.LocalIPv4(), cfg.Server.Port)
	if cfg.Control.Port > 0 {
		info("Control     http://%s:%d/status", monitor.LocalIPv4(), cfg.Control.Port)
	} else {
		warn("control endpoint disabled")
	}

	err = ws.ListenAndServe(ctx, log, srv.CloseClients, listeners...)
	log.Info("relay stopped", zap.Int("clients", srv.ClientCount()))
	return err
}
