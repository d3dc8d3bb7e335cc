package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/use-agent/feeder/api"
	"github.com/use-agent/feeder/config"
	"github.com/use-agent/feeder/feed"
	"github.com/use-agent/feeder/logging"
	"github.com/use-agent/feeder/lookup"
	"github.com/use-agent/feeder/models"
	"github.com/use-agent/feeder/orchestrator"
	"github.com/use-agent/feeder/progress"
	"github.com/use-agent/feeder/webhook"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise logging (console + timestamped file) ──────────
	logFile, logPath, err := logging.Setup(cfg.Log, time.Now())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logFile.Close()

	runID := uuid.NewString()
	slog.Info("Starting dog feeding process",
		"run_id", runID,
		"log_file", logPath,
		"targets", cfg.Feed.Targets,
		"count", cfg.Feed.Count,
		"headless", cfg.Browser.Headless,
	)

	// SIGINT/SIGTERM stop scheduling new attempts; sessions still close.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 3. Progress tracker + optional status API ───────────────────
	tracker := progress.NewTracker()

	var srv *http.Server
	if cfg.Server.Enabled {
		srv = &http.Server{
			Addr:    cfg.Server.Addr,
			Handler: api.NewRouter(tracker, cfg, time.Now()),
		}
		go func() {
			slog.Info("status API listening", "addr", cfg.Server.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("status API error", "error", err)
			}
		}()
	}

	// ── 4. Wire lookup, feed runner and orchestrator ────────────────
	notifier := webhook.NewNotifier(cfg.Webhook.URL, cfg.Webhook.Secret)
	finder := lookup.NewFinder(cfg.Lookup)
	runner := &feed.Runner{
		Browser:  cfg.Browser,
		Feed:     cfg.Feed,
		Observer: tracker,
	}

	o := orchestrator.New(cfg.Feed, finder.Find, func(ctx context.Context, task orchestrator.Task) (models.Tally, error) {
		return runner.Run(ctx, task.Target, task.Count, task.Delay)
	})
	o.SetNotifier(notifier, runID)

	// ── 5. Run ──────────────────────────────────────────────────────
	results := o.Run(ctx, cfg.Feed.Targets)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	slog.Info("run summary", "tasks", len(results), "failed_tasks", failed)

	// ── 6. Flush webhooks and stop the status API ───────────────────
	notifier.Notify(webhook.NewEvent(webhook.EventRunCompleted, runID, map[string]interface{}{
		"results": results,
		"failed":  failed,
	}))
	flushCtx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()
	if err := notifier.Wait(flushCtx); err != nil {
		slog.Warn("pending webhook deliveries abandoned", "error", err)
	}

	if srv != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("status API forced shutdown", "error", err)
		}
	}
}
