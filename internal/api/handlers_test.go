package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"fleetroute/internal/auth"
	"fleetroute/internal/config"
	"fleetroute/internal/events"
	"fleetroute/internal/metrics"
	"fleetroute/internal/runner"
	"fleetroute/internal/store"
)

const testSecret = "fleetroute-test-secret"

func newTestServer(t *testing.T, mode string) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Solver.Level, cfg.Solver.Threads = 0, 2
	cfg.Synth.Jobs, cfg.Synth.Shipments, cfg.Synth.Vehicles = 10, 1, 2
	log := logrus.New()
	log.SetOutput(io.Discard)
	v, err := auth.NewVerifier(mode, testSecret)
	require.NoError(t, err)
	st, b := store.NewMemory(), events.NewMemory()
	r := runner.New(st, b, cfg, log)
	t.Cleanup(r.Shutdown)
	metrics.RegisterDefault()
	return &Server{Runner: r, Store: st, Broker: b, Auth: v, Config: cfg, Log: log}
}

func do(t *testing.T, h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func waitDone(t *testing.T, h http.Handler, id string) store.Run {
	t.Helper()
	var run store.Run
	require.Eventually(t, func() bool {
		rr := do(t, h, http.MethodGet, "/v1/runs/"+id, "", "")
		if rr.Code != http.StatusOK {
			return false
		}
		run = decode[store.Run](t, rr)
		return run.Status != store.StatusRunning
	}, 20*time.Second, 10*time.Millisecond)
	return run
}

func TestHealthReady(t *testing.T) {
	h := newTestServer(t, auth.ModeOff).Routes()
	rr := do(t, h, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"version"`)
	rr = do(t, h, http.MethodGet, "/readyz", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestRunLifecycle(t *testing.T) {
	h := newTestServer(t, auth.ModeOff).Routes()
	rr := do(t, h, http.MethodPost, "/v1/runs", `{"seed": 3, "synth": {"jobs": 8, "vehicles": 2, "dims": 1, "time_windows": true, "grid_km": 10, "horizon": 36000}}`, "")
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	started := decode[store.Run](t, rr)
	require.Equal(t, "/v1/runs/"+started.ID, rr.Header().Get("Location"))
	require.Equal(t, int64(3), started.Seed)

	run := waitDone(t, h, started.ID)
	require.Equal(t, store.StatusDone, run.Status)
	require.NotNil(t, run.Solution)
	require.Equal(t, run.Cost, run.Solution.Summary.Cost)

	rr = do(t, h, http.MethodGet, "/v1/runs?limit=10", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[struct {
		Items      []store.Run `json:"items"`
		NextCursor string      `json:"nextCursor"`
	}](t, rr)
	require.Len(t, list.Items, 1)
	require.Nil(t, list.Items[0].Solution)
	require.Empty(t, list.NextCursor)

	// an empty body takes every default
	rr = do(t, h, http.MethodPost, "/v1/runs", "", "")
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	waitDone(t, h, decode[store.Run](t, rr).ID)
}

func TestRunErrors(t *testing.T) {
	h := newTestServer(t, auth.ModeOff).Routes()
	tests := []struct {
		name, method, path, body string
		want                     int
	}{
		{"bad json", http.MethodPost, "/v1/runs", `{"level":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/v1/runs", `{"algorithm":"alns"}`, http.StatusBadRequest},
		{"bad level", http.MethodPost, "/v1/runs", `{"level": 9}`, http.StatusBadRequest},
		{"too many jobs", http.MethodPost, "/v1/runs", `{"synth": {"jobs": 4194304, "vehicles": 1}}`, http.StatusBadRequest},
		{"too many shipments", http.MethodPost, "/v1/runs", `{"synth": {"jobs": 1, "shipments": 1500, "vehicles": 1}}`, http.StatusBadRequest},
		{"too many dims", http.MethodPost, "/v1/runs", `{"synth": {"jobs": 1, "vehicles": 1, "dims": 1000000000}}`, http.StatusBadRequest},
		{"too many vehicles", http.MethodPost, "/v1/runs", `{"synth": {"jobs": 1, "vehicles": 100000}}`, http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/v1/runs?limit=x", "", http.StatusBadRequest},
		{"unknown run", http.MethodGet, "/v1/runs/nope", "", http.StatusNotFound},
		{"unknown run events", http.MethodGet, "/v1/runs/nope/events", "", http.StatusNotFound},
		{"method", http.MethodDelete, "/v1/runs", "", http.StatusMethodNotAllowed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, h, tc.method, tc.path, tc.body, "")
			require.Equal(t, tc.want, rr.Code, rr.Body.String())
			require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
			p := decode[Problem](t, rr)
			require.Equal(t, tc.want, p.Status)
		})
	}
}

func TestRunsRequireRoles(t *testing.T) {
	s := newTestServer(t, auth.ModeHMAC)
	h := s.Routes()
	viewer, err := s.Auth.Issue("dash", auth.RoleViewer, time.Hour)
	require.NoError(t, err)
	operator, err := s.Auth.Issue("ops", auth.RoleOperator, time.Hour)
	require.NoError(t, err)

	require.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/v1/runs", "", "").Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/runs", "", viewer).Code)
	require.Equal(t, http.StatusForbidden, do(t, h, http.MethodPost, "/v1/runs", "{}", viewer).Code)
	require.Equal(t, http.StatusForbidden, do(t, h, http.MethodGet, "/debug/config", "", viewer).Code)

	rr := do(t, h, http.MethodPost, "/v1/runs", "{}", operator)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	id := decode[store.Run](t, rr).ID
	require.Eventually(t, func() bool {
		got, err := s.Store.GetRun(context.Background(), id)
		return err == nil && got.Status == store.StatusDone
	}, 20*time.Second, 10*time.Millisecond)

	rr = do(t, h, http.MethodGet, "/debug/config", "", operator)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotContains(t, rr.Body.String(), testSecret)
}

func readEvents(t *testing.T, conn *websocket.Conn) []events.Event {
	t.Helper()
	var out []events.Event
	_ = conn.SetReadDeadline(time.Now().Add(20 * time.Second))
	for {
		var evt events.Event
		if err := conn.ReadJSON(&evt); err != nil {
			require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "read: %v", err)
			return out
		}
		out = append(out, evt)
	}
}

func TestRunEventsStream(t *testing.T) {
	s := newTestServer(t, auth.ModeOff)
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	rr := do(t, s.Routes(), http.MethodPost, "/v1/runs", `{"level": 2}`, "")
	require.Equal(t, http.StatusAccepted, rr.Code)
	id := decode[store.Run](t, rr).ID

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"/v1/runs/"+id+"/events", nil)
	require.NoError(t, err)
	got := readEvents(t, conn)
	_ = conn.Close()
	require.NotEmpty(t, got)
	last := got[len(got)-1]
	require.Equal(t, events.TypeRunDone, last.Type)
	require.Equal(t, id, last.RunID)

	// a finished run replays its outcome and closes
	conn, _, err = websocket.DefaultDialer.Dial(wsURL+"/v1/runs/"+id+"/events", nil)
	require.NoError(t, err)
	got = readEvents(t, conn)
	_ = conn.Close()
	require.Len(t, got, 1)
	require.Equal(t, events.TypeRunDone, got[0].Type)
}

func TestMetricsAndDocs(t *testing.T) {
	h := newTestServer(t, auth.ModeOff).Routes()
	do(t, h, http.MethodGet, "/v1/runs/missing", "", "")
	rr := do(t, h, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `http_requests_total{method="GET",path="GET /v1/runs/{id}",status="404"}`)

	rr = do(t, h, http.MethodGet, "/openapi.json", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	doc := decode[map[string]any](t, rr)
	require.Contains(t, doc["paths"], "/v1/runs/{id}/events")
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/docs", "", "").Code)
}
