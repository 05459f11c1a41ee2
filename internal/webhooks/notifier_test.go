package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"fleetroute/internal/events"
)

func quietLog() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestNotifierSignsFinalEvents(t *testing.T) {
	var mu sync.Mutex
	var bodies [][]byte
	var sigs, types []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, b)
		sigs = append(sigs, r.Header.Get("X-Signature"))
		types = append(types, r.Header.Get("X-Event-Type"))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, "secret", 3, quietLog())
	n.HTTP = srv.Client()
	n.Start(context.Background())

	mem := events.NewMemory()
	b := n.Wrap(mem)
	ch := b.Subscribe("r1")
	b.Publish("r1", events.Event{Type: events.TypeSearchDone, RunID: "r1"})
	b.Publish("r1", events.Event{Type: events.TypeRunDone, RunID: "r1", Data: map[string]any{"cost": 5461}})
	require.NoError(t, n.Close())

	// subscribers still see everything
	require.Len(t, ch, 2)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{events.TypeRunDone}, types)
	require.True(t, Verify("secret", bodies[0], sigs[0]))
	var payload struct {
		Type  string         `json:"type"`
		RunID string         `json:"runId"`
		Data  map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(bodies[0], &payload))
	require.Equal(t, "r1", payload.RunID)
	require.Equal(t, float64(5461), payload.Data["cost"])
}

func TestNotifierRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, "", 5, quietLog())
	n.HTTP = srv.Client()
	n.backoff = func(int) time.Duration { return time.Millisecond }
	n.Start(context.Background())
	n.Notify(events.Event{Type: events.TypeRunFailed, RunID: "r2"})
	require.NoError(t, n.Close())
	require.Equal(t, int32(3), calls.Load())
}

func TestNotifierGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, "", 2, quietLog())
	n.HTTP = srv.Client()
	n.backoff = func(int) time.Duration { return time.Millisecond }
	n.Start(context.Background())
	n.Notify(events.Event{Type: events.TypeRunDone, RunID: "r3"})
	require.NoError(t, n.Close())
	require.Equal(t, int32(2), calls.Load())
}

func TestBackoffAndSignature(t *testing.T) {
	require.Equal(t, time.Second, nextBackoff(-1))
	require.Equal(t, 4*time.Second, nextBackoff(2))
	require.Equal(t, 1024*time.Second, nextBackoff(50))

	sig := Sign("k", []byte("body"))
	require.True(t, Verify("k", []byte("body"), sig))
	require.False(t, Verify("k", []byte("other"), sig))
	require.False(t, Verify("k", []byte("body"), "zz"))
	require.True(t, strings.HasPrefix(sig, "sha256="))
	require.False(t, Verify("k", []byte("body"), strings.TrimPrefix(sig, "sha256=")))
}
