// Package api serves solver runs over HTTP.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"fleetroute/internal/auth"
	"fleetroute/internal/buildinfo"
	"fleetroute/internal/config"
	"fleetroute/internal/events"
	"fleetroute/internal/metrics"
	"fleetroute/internal/runner"
	"fleetroute/internal/store"
)

type Server struct {
	Runner *runner.Runner
	Store  store.Store
	Broker events.Broker
	Auth   *auth.Verifier
	Config config.Config
	Log    logrus.FieldLogger
}

// Routes returns the service handler with logging and metrics applied.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/openapi.yaml", s.OpenAPIHandler)
	mux.HandleFunc("/openapi.json", s.OpenAPIJSONHandler)
	mux.HandleFunc("/docs", s.DocsHandler)
	mux.HandleFunc("/debug/config", s.DebugJSON)

	mux.HandleFunc("/v1/runs", s.RunsHandler)
	mux.HandleFunc("GET /v1/runs/{id}", s.RunByIDHandler)
	mux.HandleFunc("GET /v1/runs/{id}/events", s.RunEventsHandler)
	return s.logMiddleware(metricsMiddleware(mux))
}

// principal verifies the bearer token of r. Browsers cannot set headers on
// websocket upgrades, so access_token is accepted as a query parameter too.
func (s *Server) principal(r *http.Request) (auth.Principal, error) {
	tok := ""
	if h := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(h), "bearer ") {
		tok = strings.TrimSpace(h[len("Bearer "):])
	}
	if tok == "" {
		tok = r.URL.Query().Get("access_token")
	}
	return s.Auth.Verify(tok)
}

// require writes a problem response and returns false unless the caller
// holds role.
func (s *Server) require(w http.ResponseWriter, r *http.Request, role string) bool {
	p, err := s.principal(r)
	if err != nil {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), r.URL.Path)
		return false
	}
	if !p.Can(role) {
		writeProblem(w, http.StatusForbidden, "Forbidden", role+" role required", r.URL.Path)
		return false
	}
	return true
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "build": buildinfo.Get()})
}

// ReadyHandler pings the store when it supports it.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.Store.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Store unavailable", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
