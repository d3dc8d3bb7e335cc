package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliver_SignsBody(t *testing.T) {
	var gotSig string
	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Feeder-Signature")
		assert.Equal(t, "sha256="+Sign("s3cret", body), gotSig)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := Deliver(context.Background(), srv.URL, "s3cret", NewEvent(EventFeedCompleted, "run-1", map[string]int{"successful": 3}))

	require.NoError(t, err)
	assert.NotEmpty(t, gotSig)
	assert.Equal(t, EventFeedCompleted, got.Type)
	assert.Equal(t, "run-1", got.RunID)
}

func TestDeliver_NoSecretNoSignature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("X-Feeder-Signature"))
	}))
	defer srv.Close()

	assert.NoError(t, Deliver(context.Background(), srv.URL, "", NewEvent(EventRunCompleted, "run-2", nil)))
}

func TestDeliver_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := Deliver(context.Background(), srv.URL, "", NewEvent(EventRunCompleted, "run-3", nil))
	assert.ErrorContains(t, err, "status 502")
}

func TestNotifier_RetriesUntilDelivered(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, "")
	n.delays = []time.Duration{0, time.Millisecond, time.Millisecond, time.Millisecond}

	n.Notify(NewEvent(EventFeedCompleted, "run-4", nil))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, n.Wait(ctx))
	assert.Equal(t, int32(3), calls.Load())
}

func TestNotifier_Disabled(t *testing.T) {
	var n *Notifier
	assert.False(t, n.Enabled())
	n.Notify(NewEvent(EventFeedCompleted, "run-5", nil))
	assert.NoError(t, n.Wait(context.Background()))

	assert.False(t, NewNotifier("", "").Enabled())
}
