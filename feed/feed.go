// Package feed drives the "feed this pet" interaction on a pet's page.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/use-agent/feeder/config"
	"github.com/use-agent/feeder/models"
)

// Page controls on the pet page.
const (
	ConsentSelector = "#onetrust-accept-btn-handler"
	FeedSelector    = ".single-pet-control-feed_button"
)

// Driver is the subset of a browser session the feed workflow needs.
// session.Session implements it.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	ClearCookies(ctx context.Context) error
}

// Observer receives per-attempt outcomes while a target is being fed.
type Observer interface {
	Start(target string, total int)
	Record(target string, ok bool)
	Finish(target string, tally models.Tally, err error)
}

// Feeder runs feed attempts through one Driver.
type Feeder struct {
	driver   Driver
	cfg      config.FeedConfig
	observer Observer
	sleep    func(ctx context.Context, d time.Duration) bool
}

// NewFeeder creates a Feeder bound to driver. observer may be nil.
func NewFeeder(driver Driver, cfg config.FeedConfig, observer Observer) *Feeder {
	return &Feeder{
		driver:   driver,
		cfg:      cfg,
		observer: observer,
		sleep:    sleepCtx,
	}
}

// PetURL returns the feed page of target. The name is lower-cased.
func PetURL(baseURL, target string) string {
	return fmt.Sprintf("%s/blog/pet/%s/", strings.TrimRight(baseURL, "/"), url.PathEscape(strings.ToLower(target)))
}

// AcceptCookies clicks the consent control if it shows up within
// cfg.ConsentTimeout. It reports whether the overlay was dismissed; a
// missing overlay is not an error.
func AcceptCookies(ctx context.Context, d Driver, cfg config.FeedConfig) bool {
	clickCtx, cancel := context.WithTimeout(ctx, cfg.ConsentTimeout)
	err := d.Click(clickCtx, ConsentSelector)
	cancel()

	if err != nil {
		if isTimeout(err) {
			slog.Debug("cookie banner not found or already accepted")
		} else {
			slog.Debug("error accepting cookies", "error", err)
		}
		return false
	}

	slog.Info("cookies accepted")
	sleepCtx(ctx, cfg.ConsentSettle)
	return true
}

// FeedOnce navigates to the target's page, dismisses the consent overlay and
// clicks the feed control. It returns true only if navigation and the click
// both succeed. Failures are logged, never returned.
func (f *Feeder) FeedOnce(ctx context.Context, target string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("error feeding", "target", target, "error", fmt.Sprintf("panic: %v", r))
			ok = false
		}
	}()

	pageURL := PetURL(f.cfg.BaseURL, target)
	slog.Info("navigating", "url", pageURL)

	navCtx, cancel := context.WithTimeout(ctx, f.cfg.NavigationTimeout)
	err := f.driver.Navigate(navCtx, pageURL)
	cancel()
	if err != nil {
		logFailure(target, err)
		return false
	}

	// The overlay can come back on every navigation.
	AcceptCookies(ctx, f.driver, f.cfg)

	clickCtx, cancel := context.WithTimeout(ctx, f.cfg.ClickTimeout)
	err = f.driver.Click(clickCtx, FeedSelector)
	cancel()
	if err != nil {
		logFailure(target, err)
		return false
	}

	slog.Info("successfully fed", "target", target)
	return true
}

// FeedMultiple runs count sequential attempts against target, clearing
// cookies before each one and sleeping delay between attempts. Every attempt
// runs regardless of earlier outcomes. If ctx is cancelled, the remaining
// attempts are reported as skipped.
func (f *Feeder) FeedMultiple(ctx context.Context, target string, count int, delay time.Duration) models.Tally {
	tally := models.Tally{Target: target, Total: max(count, 0)}
	log := slog.With("target", target)

	log.Info("starting to feed", "times", count)
	if f.observer != nil {
		f.observer.Start(target, tally.Total)
	}

	for i := 0; i < count; i++ {
		if ctx.Err() != nil {
			tally.Skipped = count - i
			log.Warn("feeding interrupted", "remaining", tally.Skipped)
			break
		}

		log.Info("feed attempt", "attempt", fmt.Sprintf("%d/%d", i+1, count))

		if err := f.driver.ClearCookies(ctx); err != nil {
			log.Warn("failed to clear cookies, attempting anyway", "error", err)
		}

		ok := f.FeedOnce(ctx, target)
		if ok {
			tally.Successful++
		} else {
			tally.Failed++
		}
		if f.observer != nil {
			f.observer.Record(target, ok)
		}

		if i < count-1 {
			log.Info("waiting before next feed", "delay", delay)
			f.sleep(ctx, delay)
		}
	}

	log.Info("feeding complete",
		"successful", fmt.Sprintf("%d/%d", tally.Successful, tally.Total),
		"failed", fmt.Sprintf("%d/%d", tally.Failed, tally.Total),
		"skipped", tally.Skipped,
	)
	return tally
}

func logFailure(target string, err error) {
	if isTimeout(err) {
		slog.Error("timeout while feeding", "target", target, "error", err)
		return
	}
	slog.Error("error feeding", "target", target, "error", err)
}

// isTimeout reports whether err is an exceeded interaction bound.
func isTimeout(err error) bool {
	var fe *models.FeedError
	if errors.As(err, &fe) && fe.Code == models.ErrCodeTimeout {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// sleepCtx sleeps for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
