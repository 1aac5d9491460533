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

	"github.com/Vodeneev/acewatch/internal/browser"
	"github.com/Vodeneev/acewatch/internal/extractor"
	"github.com/Vodeneev/acewatch/internal/pkg/health"
	"github.com/Vodeneev/acewatch/internal/pkg/performance"
	"github.com/Vodeneev/acewatch/internal/tracker"
)

var (
	runFor  time.Duration
	runOnce bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll the event page and track results until stopped",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTracker(cmd.Context())
	},
}

func init() {
	runCmd.Flags().DurationVar(&runFor, "run-for", 0, "Auto-stop after duration (e.g. 10m, 1h). 0 = run until SIGINT/SIGTERM")
	runCmd.Flags().BoolVar(&runOnce, "once", false, "Run a single cycle and exit")
}

func runTracker(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	setupSignalHandler(ctx, cancel)

	startedAt := time.Now()
	perf := performance.GetTracker()
	names := cfg.Names()

	sink, err := openSink(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open sink: %w", err)
	}
	defer sink.Close()
	if err := sink.EnsureHeaders(ctx); err != nil {
		return fmt.Errorf("failed to prepare sink tables: %w", err)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open state store: %w", err)
	}
	defer store.Close()

	notifier, err := buildNotifier(cfg)
	if err != nil {
		return err
	}

	engine, err := buildEngine(ctx, cfg, names, sink, store, notifier, perf)
	if err != nil {
		return fmt.Errorf("failed to build engine: %w", err)
	}
	if cfg.Tracker.RebuildOnStart {
		if err := engine.WarmStart(ctx); err != nil {
			return fmt.Errorf("failed to warm start from results log: %w", err)
		}
	}

	detectors, err := extractor.DetectorsByName(cfg.Extract.Detectors, cfg.Extract.ScoreWhitelist)
	if err != nil {
		return err
	}
	catalog := extractor.NewCatalog(names, cfg.Catalog.Matchups)
	ex := extractor.New(catalog, detectors, cfg.Extract.Workers)

	page, err := browser.NewChromePage(ctx, browser.Options{
		Headless:   cfg.Browser.Headless,
		UserAgent:  cfg.Browser.UserAgent,
		ExecPath:   cfg.Browser.ExecPath,
		Debug:      cfg.Browser.Debug,
		MaxRegions: cfg.Source.MaxRegions,
		MaxMarkup:  cfg.Source.MaxMarkup,
	})
	if err != nil {
		return err
	}
	defer page.Close()

	cycle := tracker.NewCycle(page, ex, engine, tracker.CycleConfig{
		Source: tracker.Source{
			URL:           cfg.Source.URL,
			ConsentLabels: cfg.Source.ConsentLabels,
			Tabs:          cfg.Source.Tabs,
			Settle:        cfg.Source.Settle,
			Scroll:        cfg.Source.Scroll,
		},
		CallTimeout:  cfg.Tracker.CallTimeout,
		DiagLimit:    cfg.Extract.DiagLimit,
		DiagMaxChars: cfg.Extract.DiagMaxChars,
		Perf:         perf,
	})

	board := health.NewStatusBoard(serviceName, startedAt)
	runner := tracker.NewRunner(cycle, cfg.Tracker.PollInterval, board, perf)

	if cfg.Health.Enabled {
		addr, err := health.AddrFor(cfg.Health.Port)
		if err != nil {
			return fmt.Errorf("health: %w", err)
		}
		if err := health.Run(ctx, health.Options{
			Addr:              addr,
			Service:           serviceName,
			ReadHeaderTimeout: cfg.Health.ReadHeaderTimeout,
			AllowedOrigins:    cfg.Health.AllowedOrigins,
			StaleAfter:        cfg.Health.StaleAfter,
			Board:             board,
			Metrics:           perf,
			Trigger:           runner.Trigger,
		}); err != nil {
			return fmt.Errorf("failed to start health server: %w", err)
		}
	}

	slog.Info("Tracker started",
		"url", cfg.Source.URL,
		"matchups", catalog.Len(),
		"rules", len(cfg.Alerts.Rules),
		"notifier", notifier.Name(),
		"sink", cfg.Sink.Driver,
		"state", cfg.State.Driver,
		"poll_interval", cfg.Tracker.PollInterval)

	runner.Run(ctx, tracker.RunOptions{Once: runOnce, RunFor: runFor})

	perf.PrintSummary()
	slog.Info("Tracker stopped gracefully")
	return nil
}

func setupSignalHandler(ctx context.Context, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal, stopping tracker...", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
}
