// Command parcelwalkd is the daemon: it wires the Queue Repository,
// Blob Store, Job Executor, Retention Sweeper, and API server
// together and runs them until signalled to stop. Grounded on the
// teacher's cmd/webstalk/main.go cobra root command and graceful
// shutdown pattern.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/parcelwalk/parcelwalk/internal/api"
	"github.com/parcelwalk/parcelwalk/internal/config"
	"github.com/parcelwalk/parcelwalk/internal/executor"
	"github.com/parcelwalk/parcelwalk/internal/jobqueue"
	"github.com/parcelwalk/parcelwalk/internal/pagedriver"
	"github.com/parcelwalk/parcelwalk/internal/portal"
	"github.com/parcelwalk/parcelwalk/internal/portal/selectors"
	"github.com/parcelwalk/parcelwalk/internal/publish/s3blob"
	"github.com/parcelwalk/parcelwalk/internal/ratelimit"
	"github.com/parcelwalk/parcelwalk/internal/retention"
)

var cfgFile string
var verbose bool

func main() {
	rootCmd := &cobra.Command{
		Use:   "parcelwalkd",
		Short: "parcelwalkd — county parcel scrape & CAD export daemon",
		Long: `parcelwalkd claims pending jobs from a MongoDB-backed queue, drives a
headless-browser Portal Strategy against a county assessor portal, joins the
scraped records against a supplied parcel shapefile, and publishes the
resulting spreadsheet, DXF, and PDF bundle to object storage.`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the executor, retention sweeper, and API server",
		RunE:  runServe,
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "reset any orphaned processing jobs to pending, then exit",
		Long: `migrate runs the same orphan-recovery sweep the daemon performs on startup
(internal/jobqueue.Repository.ResetOrphans) and exits without starting the
executor, sweeper, or API server. Use it to recover a queue left with jobs
stuck in "processing" after a crash, without starting a full daemon.`,
		RunE: runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx := context.Background()
	queue, err := jobqueue.New(ctx, cfg.Queue.URI, cfg.Queue.Database, cfg.Queue.Collection, logger)
	if err != nil {
		return fmt.Errorf("connect job queue: %w", err)
	}
	defer queue.Close(ctx)

	n, err := queue.ResetOrphans(ctx)
	if err != nil {
		return fmt.Errorf("reset orphaned jobs: %w", err)
	}
	logger.Info("migration complete", "orphans_reset", n)
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("parcelwalkd %s\n", config.Version)
		},
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue, err := jobqueue.New(ctx, cfg.Queue.URI, cfg.Queue.Database, cfg.Queue.Collection, logger)
	if err != nil {
		return fmt.Errorf("connect job queue: %w", err)
	}
	defer queue.Close(context.Background())

	store, err := s3blob.New(ctx, s3blob.Config{
		Bucket:         cfg.Blob.Bucket,
		Region:         cfg.Blob.Region,
		Endpoint:       cfg.Blob.Endpoint,
		UsePathStyle:   cfg.Blob.UsePathStyle,
		PublicURLBase:  cfg.Blob.PublicURLBase,
		UploadPartSize: cfg.Blob.UploadPartSize,
		Concurrency:    cfg.Blob.UploadConcurrency,
	})
	if err != nil {
		return fmt.Errorf("connect blob store: %w", err)
	}

	// Startup Recovery (spec.md §4.K): any job left processing by a
	// prior crash is reset to pending before the claim loop starts.
	if n, err := queue.ResetOrphans(ctx); err != nil {
		logger.Warn("orphan reset failed", "error", err)
	} else if n > 0 {
		logger.Info("recovered orphaned jobs", "count", n)
	}

	selectorOverrides := make(map[string]selectors.Override, len(cfg.Portal.SelectorOverrides))
	for county, o := range cfg.Portal.SelectorOverrides {
		selectorOverrides[county] = selectors.Override{SearchInput: o.SearchInput, Consent: o.Consent}
	}

	exec := executor.New(queue, store, executor.Options{
		PollInterval:          cfg.Executor.PollInterval,
		SpreadsheetFlushEvery: cfg.Executor.SpreadsheetFlushEvery,
		WorkDir:               cfg.Executor.WorkDir,
		DocTimeout:            cfg.Docfetch.Timeout,
		SourceCRS:             cfg.Executor.SourceCRS,
		RateLimit: executor.RateLimitOptions{
			Page:        ratelimit.Range{Lo: cfg.RateLimit.PageDelayMin, Hi: cfg.RateLimit.PageDelayMax},
			Document:    ratelimit.Range{Lo: cfg.RateLimit.DocumentDelayMin, Hi: cfg.RateLimit.DocumentDelayMax},
			ThinkEveryN: cfg.RateLimit.ThinkEveryN,
			Think:       ratelimit.Range{Lo: cfg.RateLimit.ThinkPauseMin, Hi: cfg.RateLimit.ThinkPauseMax},
		},
		PortalOpts: buildPortalOptions(cfg),
		BrowserOpts: pagedriver.Options{
			Headless: cfg.Portal.Headless,
			Stealth:  cfg.Portal.Stealth,
		},
		SelectorOverrides: selectorOverrides,
	}, logger)

	sweeper := retention.New(queue, store, cfg.Executor.WorkDir, cfg.Retention.MaxAge, cfg.Retention.SweepEvery, logger)

	apiServer := api.NewServer(api.Config{
		Addr:           cfg.API.Addr,
		MaxIdentifiers: cfg.API.MaxIdentifiers,
		MaxInputBytes:  cfg.API.MaxInputBytes,
	}, queue, store, logger)
	apiServer.RegisterMetrics(exec.Metrics)

	errCh := make(chan error, 3)
	go func() { errCh <- exec.Run(ctx) }()
	go func() { errCh <- sweeper.Run(ctx) }()
	go func() { errCh <- apiServer.ListenAndServe() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	case err := <-errCh:
		logger.Error("subsystem exited", "error", err)
		cancel()
	}

	// Give the executor a moment to observe cancellation between
	// cooperative-cancellation checkpoints before the process exits.
	time.Sleep(2 * time.Second)
	return nil
}

func buildPortalOptions(cfg *config.Config) portal.Options {
	return portal.Options{
		ReadyTimeout:        cfg.Portal.ReadyProbeTimeout,
		SearchTimeout:       cfg.Portal.SearchTimeout,
		MaxConsecutiveFails: cfg.Portal.MaxConsecutiveFails,
		ThinkEveryNParcels:  cfg.RateLimit.ThinkEveryN,
		DownloadDir:         cfg.Executor.WorkDir,
	}
}

func setupLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
