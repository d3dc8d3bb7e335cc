// Package orchestrator runs the informational lookup for a fixed set of pet
// names and then feeds every pet concurrently, one worker per name.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime/debug"
	"strings"
	"time"

	"github.com/use-agent/feeder/config"
	"github.com/use-agent/feeder/models"
	"github.com/use-agent/feeder/webhook"
	"golang.org/x/sync/errgroup"
)

// LookupFunc finds a pet on the listing page; nil means not found.
type LookupFunc func(ctx context.Context, name string) *models.Pet

// FeedFunc feeds one target in its own session.
type FeedFunc func(ctx context.Context, task Task) (models.Tally, error)

// Task is one unit of work for the worker pool.
type Task struct {
	Target string        `json:"target"`
	Count  int           `json:"count"`
	Delay  time.Duration `json:"delay"`
}

// Result is the outcome of one Task.
type Result struct {
	Target string       `json:"target"`
	Tally  models.Tally `json:"tally"`
	Err    error        `json:"-"`

	// Stack is set when the worker panicked.
	Stack string `json:"-"`
}

// Orchestrator composes the lookup and feed workflows.
type Orchestrator struct {
	cfg      config.FeedConfig
	lookup   LookupFunc
	feed     FeedFunc
	notifier *webhook.Notifier
	runID    string
	uniform  func() float64
}

// New creates an Orchestrator. lookup may be nil to skip the lookup phase.
func New(cfg config.FeedConfig, lookup LookupFunc, feed FeedFunc) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		lookup:  lookup,
		feed:    feed,
		uniform: rand.Float64,
	}
}

// SetNotifier enables a feed.completed webhook event per finished task.
func (o *Orchestrator) SetNotifier(n *webhook.Notifier, runID string) {
	o.notifier = n
	o.runID = runID
}

// Run looks every name up, then feeds all of them concurrently and returns
// the results in completion order.
func (o *Orchestrator) Run(ctx context.Context, names []string) []Result {
	o.LookupAll(ctx, names)

	slog.Info("starting concurrent feeding tasks", "tasks", len(names))
	results := o.Feed(ctx, o.Tasks(names))
	slog.Info("all feeding tasks completed")
	return results
}

// LookupAll logs the listing record of every name, or a warning when the
// name is not listed. It is informational only.
func (o *Orchestrator) LookupAll(ctx context.Context, names []string) {
	if o.lookup == nil {
		return
	}
	for _, name := range names {
		pet := o.lookup(ctx, name)
		if pet == nil {
			slog.Warn("pet not found", "name", name)
			continue
		}
		slog.Info("found pet",
			"name", pet.Name,
			"id", pet.ID,
			"votes", pet.Votes,
			"percentage", orNA(pet.Percentage),
			"profile_url", orNA(pet.ProfileURL),
			"image_url", orNA(pet.ImageURL),
		)
	}
}

// Tasks builds one task per name. Targets are lower-cased and each task
// draws its own delay uniformly from [MinDelay, MaxDelay].
func (o *Orchestrator) Tasks(names []string) []Task {
	lo, hi := o.cfg.MinDelay, o.cfg.MaxDelay
	if hi < lo {
		lo, hi = hi, lo
	}

	tasks := make([]Task, 0, len(names))
	for _, name := range names {
		tasks = append(tasks, Task{
			Target: strings.ToLower(name),
			Count:  o.cfg.Count,
			Delay:  lo + time.Duration(o.uniform()*float64(hi-lo)),
		})
	}
	return tasks
}

// Feed runs every task on a worker pool sized to len(tasks). A failing or
// panicking worker is logged and never affects its siblings. Results are
// returned in completion order.
func (o *Orchestrator) Feed(ctx context.Context, tasks []Task) []Result {
	if len(tasks) == 0 {
		return nil
	}

	results := make(chan Result, len(tasks))

	var g errgroup.Group
	g.SetLimit(len(tasks))
	for _, task := range tasks {
		g.Go(func() error {
			results <- o.runTask(ctx, task)
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(results)
	}()

	out := make([]Result, 0, len(tasks))
	for r := range results {
		switch {
		case r.Stack != "":
			slog.Error("feeding task failed", "target", r.Target, "error", r.Err, "stack", r.Stack)
		case r.Err != nil:
			slog.Error("feeding task failed", "target", r.Target, "error", r.Err)
		default:
			slog.Info("feeding task completed",
				"target", r.Target,
				"successful", r.Tally.Successful,
				"failed", r.Tally.Failed,
				"skipped", r.Tally.Skipped,
			)
		}
		o.notify(r)
		out = append(out, r)
	}
	return out
}

func (o *Orchestrator) runTask(ctx context.Context, task Task) (res Result) {
	res.Target = task.Target
	defer func() {
		if r := recover(); r != nil {
			res.Err = models.NewFeedError(models.ErrCodeWorkerPanic, fmt.Sprintf("worker for %s panicked: %v", task.Target, r), nil)
			res.Stack = string(debug.Stack())
		}
	}()

	slog.Debug("feeding task started", "target", task.Target, "count", task.Count, "delay", task.Delay)
	res.Tally, res.Err = o.feed(ctx, task)
	return res
}

func (o *Orchestrator) notify(r Result) {
	if !o.notifier.Enabled() {
		return
	}
	data := map[string]interface{}{
		"target": r.Target,
		"tally":  r.Tally,
	}
	if r.Err != nil {
		data["error"] = r.Err.Error()
	}
	o.notifier.Notify(webhook.NewEvent(webhook.EventFeedCompleted, o.runID, data))
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
