// Package lookup scrapes the listing page once to find a pet's standing.
package lookup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/feeder/cache"
	"github.com/use-agent/feeder/config"
	"github.com/use-agent/feeder/models"
	"golang.org/x/net/html"
)

var (
	petMatcher     = cascadia.MustCompile("div.single-pet")
	nameMatcher    = cascadia.MustCompile("div.single-pet-name-inner")
	imageMatcher   = cascadia.MustCompile("div.single-pet-image-inner")
	linkMatcher    = cascadia.MustCompile("a[href]")
	percentMatcher = cascadia.MustCompile("div.bone-label")
)

// Finder looks pets up on the listing page.
type Finder struct {
	listingURL string
	timeout    time.Duration
	client     *http.Client
	pages      *cache.Cache
}

// NewFinder creates a Finder with a Chrome-fingerprinted HTTP client.
func NewFinder(cfg config.LookupConfig) *Finder {
	return &Finder{
		listingURL: cfg.ListingURL,
		timeout:    cfg.Timeout,
		client:     newClient(cfg.Proxy),
		pages:      cache.New(1, cfg.CacheTTL),
	}
}

// Find fetches the listing page and returns the first entry whose name
// matches name case-insensitively. It returns nil when the page cannot be
// fetched or parsed, has no entries, or has no matching entry; the reason is
// logged.
func (f *Finder) Find(ctx context.Context, name string) *models.Pet {
	slog.Info("searching for pet", "name", name)

	body, err := f.listing(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			slog.Error("request timed out while fetching website", "url", f.listingURL, "error",
				models.NewFeedError(models.ErrCodeListingFetch, "listing request timed out", err))
		} else {
			slog.Error("error fetching website", "url", f.listingURL, "error",
				models.NewFeedError(models.ErrCodeListingFetch, "listing request failed", err))
		}
		return nil
	}

	doc, err := parseDocument(bytes.NewReader(body))
	if err != nil {
		slog.Error("unexpected error parsing listing", "error",
			models.NewFeedError(models.ErrCodeListingParse, "listing parse failed", err))
		return nil
	}

	entries := doc.FindMatcher(petMatcher)
	if entries.Length() == 0 {
		slog.Warn("no pets found on the page")
		return nil
	}

	var found *models.Pet
	entries.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		pet, ok := parsePet(s)
		if ok && strings.EqualFold(pet.Name, name) {
			found = &pet
			return false
		}
		return true
	})

	if found == nil {
		slog.Warn("pet not found on the page", "name", name)
		return nil
	}
	slog.Info("found pet", "name", found.Name, "votes", found.Votes)
	return found
}

// listing returns the listing page body, from cache when still fresh.
func (f *Finder) listing(ctx context.Context) ([]byte, error) {
	if body, ok := f.pages.Get(f.listingURL); ok {
		slog.Debug("listing served from cache", "url", f.listingURL)
		return body, nil
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	body, err := fetch(ctx, f.client, f.listingURL)
	if err != nil {
		return nil, err
	}
	f.pages.Set(f.listingURL, body)
	return body, nil
}

// ParseListing returns every named entry on a listing page in page order.
func ParseListing(r io.Reader) ([]models.Pet, error) {
	doc, err := parseDocument(r)
	if err != nil {
		return nil, models.NewFeedError(models.ErrCodeListingParse, "listing parse failed", err)
	}

	var pets []models.Pet
	doc.FindMatcher(petMatcher).Each(func(_ int, s *goquery.Selection) {
		if pet, ok := parsePet(s); ok {
			pets = append(pets, pet)
		}
	})
	return pets, nil
}

func parseDocument(r io.Reader) (*goquery.Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromNode(root), nil
}

// parsePet extracts one entry. Entries without a name element are skipped.
func parsePet(s *goquery.Selection) (models.Pet, bool) {
	nameEl := s.FindMatcher(nameMatcher).First()
	if nameEl.Length() == 0 {
		return models.Pet{}, false
	}

	pet := models.Pet{
		Name:   strings.TrimSpace(nameEl.Text()),
		ID:     s.AttrOr("data-pet-id", ""),
		Votes:  s.AttrOr("data-pet-votes", ""),
		Type:   s.AttrOr("data-pet-type", ""),
		HTMLID: s.AttrOr("id", ""),
	}

	if img := s.FindMatcher(imageMatcher).First(); img.Length() > 0 {
		pet.ImageURL = img.AttrOr("data-lazy-background", "")
	}
	if link := s.FindMatcher(linkMatcher).First(); link.Length() > 0 {
		pet.ProfileURL = link.AttrOr("href", "")
	}
	if label := s.FindMatcher(percentMatcher).First(); label.Length() > 0 {
		pet.Percentage = strings.TrimSpace(label.Text())
	}
	return pet, true
}
