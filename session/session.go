// Package session owns one browser session: a Chromium process, one
// incognito browsing context and one page, driven through Rod.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/feeder/config"
	"github.com/use-agent/feeder/models"
	"github.com/ysmood/gson"
)

var sessionSeq atomic.Int64

// Session is a single browser session. It is owned by exactly one feed
// workflow and is not safe for concurrent use, except Close, which may be
// called any number of times.
type Session struct {
	id        int64
	log       *slog.Logger
	launcher  *launcher.Launcher
	browser   *rod.Browser
	incognito *rod.Browser
	page      *rod.Page
	router    *rod.HijackRouter
	closeOnce sync.Once
}

// Open launches a browser, opens one incognito context and one page.
//
// Any failing step returns a FeedError with code BROWSER_LAUNCH_FAILED after
// releasing whatever was already created. The caller must not proceed.
func Open(ctx context.Context, cfg config.BrowserConfig) (*Session, error) {
	s := &Session{id: sessionSeq.Add(1)}
	s.log = slog.With("session", s.id)

	if err := ctx.Err(); err != nil {
		return nil, models.NewFeedError(models.ErrCodeBrowserLaunch, "session not started", err)
	}

	s.log.Info("starting browser", "headless", cfg.Headless)
	if err := s.start(cfg); err != nil {
		s.log.Error("failed to start browser", "error", err)
		s.Close()
		return nil, err
	}
	s.log.Info("browser started successfully")
	return s, nil
}

func (s *Session) start(cfg config.BrowserConfig) error {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		// Cleanup waits for the process to exit, which never happens when
		// it was not started, so only a started process is killed here.
		if l.PID() != 0 {
			l.Kill()
		}
		return models.NewFeedError(models.ErrCodeBrowserLaunch, "failed to launch browser", err)
	}
	s.launcher = l
	s.log.Debug("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return models.NewFeedError(models.ErrCodeBrowserLaunch, "failed to connect to browser", err)
	}
	s.browser = browser

	incognito, err := browser.Incognito()
	if err != nil {
		return models.NewFeedError(models.ErrCodeBrowserLaunch, "failed to create browsing context", err)
	}
	s.incognito = incognito

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		return models.NewFeedError(models.ErrCodeBrowserLaunch, "failed to open page", err)
	}
	s.page = page

	// Stealth and hijacking only affect navigations that happen after they
	// are installed.
	if cfg.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			s.log.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
		}
	}
	if cfg.AcceptLanguage != "" {
		if hdrErr := (proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(map[string]string{"Accept-Language": cfg.AcceptLanguage}),
		}).Call(page); hdrErr != nil {
			s.log.Warn("failed to set extra headers", "error", hdrErr)
		}
	}
	s.router = setupHijack(page, cfg.BlockedResourceTypes, cfg.BlockAds)

	return nil
}

// Navigate loads url and waits for DOMContentLoaded, bounded by ctx.
func (s *Session) Navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx)

	// The lifecycle listener must exist before Navigate or the event is missed.
	wait := p.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := p.Navigate(url); err != nil {
		return categorizeError(err, models.ErrCodeNavigation, "navigation to "+url+" failed")
	}
	wait()

	if err := ctx.Err(); err != nil {
		return categorizeError(err, models.ErrCodeNavigation, "waiting for DOMContentLoaded on "+url)
	}
	return nil
}

// Click waits for the first element matching selector, bounded by ctx, and
// left-clicks it.
func (s *Session) Click(ctx context.Context, selector string) error {
	p := s.page.Context(ctx)

	el, err := p.Element(selector)
	if err != nil {
		return categorizeError(err, models.ErrCodeElementNotFound, fmt.Sprintf("element %q not found", selector))
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return categorizeError(err, models.ErrCodeElementNotFound, fmt.Sprintf("click on %q failed", selector))
	}
	return nil
}

// ClearCookies removes every cookie of the session's browsing context, so the
// next visit looks like a new anonymous visitor.
func (s *Session) ClearCookies(ctx context.Context) error {
	if err := s.incognito.Context(ctx).SetCookies(nil); err != nil {
		return fmt.Errorf("session: clear cookies: %w", err)
	}
	return nil
}

// Close tears the session down: page, then context, then browser, then the
// browser process. Every step runs even if an earlier one fails; failures
// are logged and never returned.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if failed := teardown(s.log, s.teardownSteps()); failed == 0 {
			s.log.Info("browser closed successfully")
		}
	})
}

func (s *Session) teardownSteps() []step {
	var steps []step
	if s.router != nil {
		steps = append(steps, step{name: "hijack router", fn: s.router.Stop})
	}
	if s.page != nil {
		steps = append(steps, step{name: "page", fn: s.page.Close})
	}
	if s.incognito != nil {
		steps = append(steps, step{name: "context", fn: s.incognito.Close})
	}
	if s.browser != nil {
		steps = append(steps, step{name: "browser", fn: s.browser.Close})
	}
	if s.launcher != nil {
		l := s.launcher
		steps = append(steps, step{name: "engine", fn: func() error {
			l.Kill()
			l.Cleanup()
			return nil
		}})
	}
	return steps
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError wraps raw Rod errors into FeedErrors. Deadline and
// cancellation always map to ACTION_TIMEOUT; anything else gets code.
func categorizeError(err error, code, msg string) *models.FeedError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewFeedError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewFeedError(models.ErrCodeTimeout, "operation canceled", err)
	default:
		return models.NewFeedError(code, msg, err)
	}
}
