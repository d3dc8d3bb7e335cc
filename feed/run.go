package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/feeder/config"
	"github.com/use-agent/feeder/models"
	"github.com/use-agent/feeder/session"
)

// SessionDriver is a Driver that owns browser resources until Close.
type SessionDriver interface {
	Driver
	Close()
}

// OpenFunc starts a new browser session.
type OpenFunc func(ctx context.Context, cfg config.BrowserConfig) (SessionDriver, error)

// OpenSession is the default OpenFunc, backed by a Rod browser.
func OpenSession(ctx context.Context, cfg config.BrowserConfig) (SessionDriver, error) {
	s, err := session.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Runner feeds one target in its own session.
type Runner struct {
	Browser  config.BrowserConfig
	Feed     config.FeedConfig
	Observer Observer

	// Open defaults to OpenSession.
	Open OpenFunc
}

// Run opens a session, feeds target count times with delay between attempts
// and closes the session on every exit path. A session that fails to start
// is returned as an error and nothing is fed.
func (r *Runner) Run(ctx context.Context, target string, count int, delay time.Duration) (tally models.Tally, err error) {
	if r.Observer != nil {
		defer func() { r.Observer.Finish(target, tally, err) }()
	}

	open := r.Open
	if open == nil {
		open = OpenSession
	}

	s, err := open(ctx, r.Browser)
	if err != nil {
		return models.Tally{Target: target, Total: max(count, 0)}, err
	}
	defer s.Close()

	slog.Debug("session acquired", "target", target)
	return NewFeeder(s, r.Feed, r.Observer).FeedMultiple(ctx, target, count, delay), nil
}
