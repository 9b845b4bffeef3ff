package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Artemis1799/Ody-stras-sub001/internal/config"
	"github.com/Artemis1799/Ody-stras-sub001/internal/logging"
	"github.com/Artemis1799/Ody-stras-sub001/internal/mock"
	"github.com/spf13/cobra"
)

func simulateCmd() *cobra.Command {
	var (
		wsURL   string
		opts    mock.Options
		timeout time.Duration
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Send a synthetic event as a phone",
		Long: `Play a phone against a running relay: generate an event with
points and photos, send it, and wait for the relay's summary.

Examples:
  relay simulate --points 10 --photos 2
  relay simulate --bulk
  relay simulate --wait --url ws://192.168.1.20:8765/ws`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logCfg := config.Default().Log
			logCfg.Level = "warn"
			if verbose {
				logCfg.Level = "debug"
			}
			log, err := logging.New(logCfg)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			res, err := mock.NewSimulator(wsURL, opts, log).Run(ctx)
			if res != nil {
				report(res)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&wsURL, "url", "u", "ws://127.0.0.1:8765/ws", "WebSocket URL of the relay")
	cmd.Flags().StringVar(&opts.EventUUID, "event", "", "Event UUID (random when empty)")
	cmd.Flags().IntVarP(&opts.Points, "points", "n", 5, "Number of points")
	cmd.Flags().IntVar(&opts.PhotosPerPoint, "photos", 1, "Photos per point")
	cmd.Flags().Int64Var(&opts.Seed, "seed", time.Now().UnixNano(), "Seed for coordinates and comments")
	cmd.Flags().BoolVar(&opts.Bulk, "bulk", false, "Send one legacy bulk frame instead of a stream")
	cmd.Flags().BoolVar(&opts.Import, "wait", false, "Send import_request first and print the reply")
	cmd.Flags().DurationVar(&opts.Delay, "delay", 20*time.Millisecond, "Pause between streamed frames")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Give up after this long, 0 for no limit")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log every step")

	return cmd
}

func report(res *mock.Result) {
	if res.ImportReply != "" {
		if res.ImportTitle != "" {
			info("import: %s (%s)", res.ImportReply, res.ImportTitle)
		} else {
			info("import: %s", res.ImportReply)
		}
	}
	info("event %s: %d frames sent", res.EventUUID, res.Sent)
	for _, e := range res.Errors {
		warn("relay error: %s", e)
	}
	if res.Message != "" {
		success("%s", res.Message)
		fmt.Printf("  points %d, photos %d\n", res.Summary.TotalPoints, res.Summary.TotalPhotos)
	}
}
