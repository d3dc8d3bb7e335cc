package lookup

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/feeder/config"
	"github.com/use-agent/feeder/models"
)

const listingHTML = `<!doctype html>
<html><body>
<div class="pets">
  <div class="single-pet" id="pet-7" data-pet-id="7" data-pet-votes="512" data-pet-type="dog">
    <a href="https://nakarmpsa.olx.pl/blog/pet/azorek/">
      <div class="single-pet-image-inner" data-lazy-background="https://cdn.example/azorek.jpg"></div>
    </a>
    <div class="single-pet-name"><div class="single-pet-name-inner"> Azorek </div></div>
    <div class="bone-label">12%</div>
  </div>
  <div class="single-pet" id="pet-nameless" data-pet-id="8"></div>
  <div class="single-pet" id="pet-42" data-pet-id="42" data-pet-votes="100" data-pet-type="dog">
    <div class="single-pet-name-inner">Piorun</div>
    <div class="bone-label"> 37% </div>
  </div>
  <div class="single-pet" id="pet-43" data-pet-id="43" data-pet-votes="1" data-pet-type="dog">
    <div class="single-pet-name-inner">piorun</div>
  </div>
</div>
</body></html>`

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, chromeUA, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func finderFor(url string) *Finder {
	return NewFinder(config.LookupConfig{ListingURL: url, Timeout: 2 * time.Second})
}

func TestFind_EntryWithoutAnchorOrImage(t *testing.T) {
	srv := serve(t, http.StatusOK, listingHTML)

	pet := finderFor(srv.URL).Find(context.Background(), "piorun")

	require.NotNil(t, pet)
	assert.Equal(t, models.Pet{
		Name:       "Piorun",
		ID:         "42",
		Votes:      "100",
		Type:       "dog",
		HTMLID:     "pet-42",
		Percentage: "37%",
	}, *pet)
	assert.Empty(t, pet.ProfileURL)
	assert.Empty(t, pet.ImageURL)
}

func TestFind_CaseInsensitive(t *testing.T) {
	srv := serve(t, http.StatusOK, listingHTML)

	pet := finderFor(srv.URL).Find(context.Background(), "PIORUN")

	require.NotNil(t, pet)
	assert.Equal(t, "42", pet.ID, "first matching entry wins")
}

func TestFind_AllOptionalFields(t *testing.T) {
	srv := serve(t, http.StatusOK, listingHTML)

	pet := finderFor(srv.URL).Find(context.Background(), "Azorek")

	require.NotNil(t, pet)
	assert.Equal(t, "Azorek", pet.Name)
	assert.Equal(t, "512", pet.Votes)
	assert.Equal(t, "https://cdn.example/azorek.jpg", pet.ImageURL)
	assert.Equal(t, "https://nakarmpsa.olx.pl/blog/pet/azorek/", pet.ProfileURL)
	assert.Equal(t, "12%", pet.Percentage)
}

func TestFind_NotFound(t *testing.T) {
	srv := serve(t, http.StatusOK, listingHTML)

	assert.Nil(t, finderFor(srv.URL).Find(context.Background(), "Feniks"))
}

func TestFind_EmptyListing(t *testing.T) {
	srv := serve(t, http.StatusOK, `<html><body><p>Brak zwierzaków</p></body></html>`)

	assert.Nil(t, finderFor(srv.URL).Find(context.Background(), "Piorun"))
}

func TestFind_HTTPError(t *testing.T) {
	srv := serve(t, http.StatusServiceUnavailable, listingHTML)

	assert.Nil(t, finderFor(srv.URL).Find(context.Background(), "Piorun"))
}

func TestFind_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	f := NewFinder(config.LookupConfig{ListingURL: srv.URL, Timeout: 50 * time.Millisecond})

	start := time.Now()
	assert.Nil(t, f.Find(context.Background(), "Piorun"))
	assert.Less(t, time.Since(start), time.Second)
}

func TestFind_Unreachable(t *testing.T) {
	srv := serve(t, http.StatusOK, listingHTML)
	url := srv.URL
	srv.Close()

	assert.Nil(t, finderFor(url).Find(context.Background(), "Piorun"))
}

func TestParseListing(t *testing.T) {
	pets, err := ParseListing(strings.NewReader(listingHTML))

	require.NoError(t, err)
	require.Len(t, pets, 3)
	assert.Equal(t, []string{"Azorek", "Piorun", "piorun"}, []string{pets[0].Name, pets[1].Name, pets[2].Name})
}

func TestFind_ListingCachedAcrossNames(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(listingHTML))
	}))
	t.Cleanup(srv.Close)

	f := NewFinder(config.LookupConfig{ListingURL: srv.URL, Timeout: 2 * time.Second, CacheTTL: time.Minute})

	assert.NotNil(t, f.Find(context.Background(), "Piorun"))
	assert.NotNil(t, f.Find(context.Background(), "Azorek"))
	assert.Nil(t, f.Find(context.Background(), "Feniks"))
	assert.Equal(t, int32(1), hits.Load())
}

func TestFind_FailedFetchIsNotCached(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(listingHTML))
	}))
	t.Cleanup(srv.Close)

	f := NewFinder(config.LookupConfig{ListingURL: srv.URL, Timeout: 2 * time.Second, CacheTTL: time.Minute})

	assert.Nil(t, f.Find(context.Background(), "Piorun"))
	assert.NotNil(t, f.Find(context.Background(), "Piorun"))
}
