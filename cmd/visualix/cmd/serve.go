package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/visualix/visualix/internal/api"
	"github.com/visualix/visualix/internal/diagnostics"
	"github.com/visualix/visualix/internal/events"
	"github.com/visualix/visualix/internal/storage"
	"github.com/visualix/visualix/internal/watch"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the visualix HTTP API with the cleanup scheduler and, when
configured, the NATS event forwarder and the hot folder.

Examples:
  # Listen on the configured address (default 0.0.0.0:8000)
  visualix serve

  # Custom port, watching ./inbox with a default prompt
  visualix serve --port 9000 --watch ./inbox --watch-prompt "stabilize"`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "host address to bind to")
	serveCmd.Flags().IntP("port", "p", 0, "port to listen on")
	serveCmd.Flags().String("watch", "", "hot folder to watch for new videos")
	serveCmd.Flags().String("watch-prompt", "", "prompt for watched videos without a sidecar")
	serveCmd.Flags().String("nats-url", "", "forward events to this NATS server")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("watch.dir", serveCmd.Flags().Lookup("watch"))
	_ = viper.BindPFlag("watch.prompt", serveCmd.Flags().Lookup("watch-prompt"))
	_ = viper.BindPFlag("events.nats_url", serveCmd.Flags().Lookup("nats-url"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(nil)
	if err != nil {
		return err
	}
	cfg := a.cfg
	logger := a.logger

	var cleaner *storage.Cleaner
	if cfg.Cleanup.Enabled {
		cleaner = storage.NewCleaner(a.files, storage.CleanupConfig{
			Interval: cfg.Cleanup.Interval,
			MaxAge:   cfg.Cleanup.MaxAge,
			Patterns: cfg.Cleanup.Patterns,
		}, logger,
			storage.WithProtect(a.jobs.OwnsActiveFile),
			storage.WithOnRun(func(res storage.CleanupResult) {
				a.metrics.CleanupRan(res.FilesDeleted, res.BytesFreed)
			}),
		)
	}

	deps := api.Deps{
		Jobs:    a.jobs,
		Planner: a.planner,
		Tools:   a.registry,
		Files:   a.files,
		Bus:     a.bus,
		System:  diagnostics.NewCollector(),
		Metrics: a.metrics.Handler(),
	}
	if cleaner != nil {
		deps.Cleaner = cleaner
	}
	server := api.NewServer(deps,
		api.WithLogger(logger),
		api.WithCORSOrigins(cfg.Server.CORSOrigins),
		api.WithSSE(cfg.Server.EnableSSE),
		api.WithVersion(appVersion),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.ListenAndServe(gctx, cfg.Server.Addr(), cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)
	})

	if cleaner != nil {
		cleaner.Start(gctx)
		defer cleaner.Stop()
	}

	if cfg.Events.NATSURL != "" {
		nc, err := events.ConnectNATS(cfg.Events.NATSURL)
		if err != nil {
			logger.Warn("event forwarding disabled", "error", err)
		} else {
			defer nc.Close()
			fwd := events.NewForwarder(a.bus, nc, cfg.Events.SubjectPrefix, logger)
			g.Go(func() error { return fwd.Run(gctx) })
			logger.Info("forwarding events to NATS", "url", cfg.Events.NATSURL, "prefix", cfg.Events.SubjectPrefix)
		}
	}

	if cfg.Watch.Dir != "" {
		w, err := watch.New(watch.Config{
			Dir:          cfg.Watch.Dir,
			Prompt:       cfg.Watch.Prompt,
			ScanExisting: true,
		}, a.jobs, watch.WithLogger(logger), watch.WithFormatChecker(a.files))
		if err != nil {
			_ = a.Close(context.Background())
			return fmt.Errorf("hot folder: %w", err)
		}
		g.Go(func() error { return w.Run(gctx) })
	}

	err = g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if cerr := a.Close(shutdownCtx); cerr != nil {
		logger.Warn("shutdown incomplete", "error", cerr)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
