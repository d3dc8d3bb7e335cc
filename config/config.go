package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Browser   BrowserConfig
	Feed      FeedConfig
	Lookup    LookupConfig
	Log       LogConfig
	Server    ServerConfig
	RateLimit RateLimitConfig
	Webhook   WebhookConfig
}

// BrowserConfig controls the Rod browser instance owned by each session.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is the proxy URL passed to the browser.
	Proxy string

	// Stealth injects go-rod/stealth before the first navigation.
	Stealth bool // default: false

	// BlockedResourceTypes lists resource types the session never loads,
	// e.g. "Image,Font,Media". default: none, every resource loads
	BlockedResourceTypes []string

	// BlockAds drops requests to well-known ad and tracking domains.
	BlockAds bool // default: false

	// AcceptLanguage is sent with every page request when non-empty.
	AcceptLanguage string // default: "pl-PL,pl;q=0.9,en;q=0.8"
}

// FeedConfig controls the feed workflow.
type FeedConfig struct {
	// BaseURL is the site root; pet pages live under {BaseURL}/blog/pet/{name}/.
	BaseURL string // default: "https://nakarmpsa.olx.pl"

	// Targets are the pet names fed by the orchestrated run.
	Targets []string // default: ["Piorun", "Azorek", "Feniks", "Amadeo"]

	// Count is the number of feed attempts per target.
	Count int // default: 5000

	// MinDelay and MaxDelay bound the per-target delay between attempts.
	MinDelay time.Duration // default: 1s
	MaxDelay time.Duration // default: 2s

	// NavigationTimeout bounds waiting for DOMContentLoaded.
	NavigationTimeout time.Duration // default: 15s

	// ClickTimeout bounds waiting for the feed control.
	ClickTimeout time.Duration // default: 10s

	// ConsentTimeout bounds waiting for the consent control.
	ConsentTimeout time.Duration // default: 5s

	// ConsentSettle is the pause after the consent overlay is dismissed.
	ConsentSettle time.Duration // default: 500ms
}

// LookupConfig controls the listing page scrape.
type LookupConfig struct {
	// ListingURL is the page carrying every pet entry.
	ListingURL string // default: "https://nakarmpsa.olx.pl/"

	// Timeout bounds the whole listing request.
	Timeout time.Duration // default: 10s

	// Proxy is an optional http(s) proxy for the listing request.
	Proxy string

	// CacheTTL lets lookups for several names share one listing fetch.
	// Zero fetches the page on every lookup.
	CacheTTL time.Duration // default: 1m
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "line", "text" or "json"; default: "line"

	// File toggles the timestamped log file next to console output.
	File bool // default: true

	// Dir is where log files are created.
	Dir string // default: "."

	// FilePrefix names the log file: {FilePrefix}_YYYYMMDD_HHMMSS.log
	FilePrefix string // default: "dog_feeding"
}

// ServerConfig controls the optional status API.
type ServerConfig struct {
	Enabled bool   // default: false
	Addr    string // default: "127.0.0.1:8080"
	Mode    string // "debug", "release", "test"; default: "release"
}

// RateLimitConfig controls per-client rate limiting on the status API.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per client IP.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per client IP.
	Burst int // default: 10
}

// WebhookConfig controls completion notifications.
type WebhookConfig struct {
	// URL receives feed.completed and run.completed events. Empty disables delivery.
	URL string

	// Secret signs event bodies with HMAC-SHA256 when non-empty.
	Secret string
}

// Load reads configuration from environment variables with defaults matching
// the fixed production run.
func Load() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:       envBoolOr("FEEDER_HEADLESS", true),
			NoSandbox:      envBoolOr("FEEDER_NO_SANDBOX", false),
			BrowserBin:     os.Getenv("FEEDER_BROWSER_BIN"),
			Proxy:          os.Getenv("FEEDER_PROXY"),
			Stealth:        envBoolOr("FEEDER_STEALTH", false),
			BlockAds:       envBoolOr("FEEDER_BLOCK_ADS", false),
			AcceptLanguage: envOr("FEEDER_ACCEPT_LANGUAGE", "pl-PL,pl;q=0.9,en;q=0.8"),
			BlockedResourceTypes: envSliceOr("FEEDER_BLOCKED_RESOURCES", nil),
		},
		Feed: FeedConfig{
			BaseURL:           strings.TrimRight(envOr("FEEDER_BASE_URL", "https://nakarmpsa.olx.pl"), "/"),
			Targets:           envSliceOr("FEEDER_TARGETS", []string{"Piorun", "Azorek", "Feniks", "Amadeo"}),
			Count:             envIntOr("FEEDER_COUNT", 5000),
			MinDelay:          envDurationOr("FEEDER_MIN_DELAY", 1*time.Second),
			MaxDelay:          envDurationOr("FEEDER_MAX_DELAY", 2*time.Second),
			NavigationTimeout: envDurationOr("FEEDER_NAV_TIMEOUT", 15*time.Second),
			ClickTimeout:      envDurationOr("FEEDER_CLICK_TIMEOUT", 10*time.Second),
			ConsentTimeout:    envDurationOr("FEEDER_CONSENT_TIMEOUT", 5*time.Second),
			ConsentSettle:     envDurationOr("FEEDER_CONSENT_SETTLE", 500*time.Millisecond),
		},
		Lookup: LookupConfig{
			ListingURL: envOr("FEEDER_LISTING_URL", "https://nakarmpsa.olx.pl/"),
			Timeout:    envDurationOr("FEEDER_LISTING_TIMEOUT", 10*time.Second),
			Proxy:      os.Getenv("FEEDER_LISTING_PROXY"),
			CacheTTL:   envDurationOr("FEEDER_LISTING_CACHE_TTL", time.Minute),
		},
		Log: LogConfig{
			Level:      envOr("FEEDER_LOG_LEVEL", "info"),
			Format:     envOr("FEEDER_LOG_FORMAT", "line"),
			File:       envBoolOr("FEEDER_LOG_FILE", true),
			Dir:        envOr("FEEDER_LOG_DIR", "."),
			FilePrefix: envOr("FEEDER_LOG_PREFIX", "dog_feeding"),
		},
		Server: ServerConfig{
			Enabled: envBoolOr("FEEDER_STATUS_ENABLED", false),
			Addr:    envOr("FEEDER_STATUS_ADDR", "127.0.0.1:8080"),
			Mode:    envOr("FEEDER_STATUS_MODE", "release"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("FEEDER_RATE_RPS", 5.0),
			Burst:             envIntOr("FEEDER_RATE_BURST", 10),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("FEEDER_WEBHOOK_URL"),
			Secret: os.Getenv("FEEDER_WEBHOOK_SECRET"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
