// Command feed-demo feeds one pet a few times in a visible browser window.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/feeder/config"
	"github.com/use-agent/feeder/feed"
	"github.com/use-agent/feeder/logging"
)

const (
	demoTarget = "piorun"
	demoCount  = 5
	demoDelay  = 2 * time.Second
)

func main() {
	cfg := config.Load()
	cfg.Browser.Headless = false
	cfg.Log.File = false

	if _, _, err := logging.Setup(cfg.Log, time.Now()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := &feed.Runner{Browser: cfg.Browser, Feed: cfg.Feed}
	tally, err := runner.Run(ctx, demoTarget, demoCount, demoDelay)
	if err != nil {
		slog.Error("demo failed", "target", demoTarget, "error", err)
		stop()
		os.Exit(1)
	}
	slog.Info("demo finished", "target", tally.Target, "successful", tally.Successful, "failed", tally.Failed)
}
