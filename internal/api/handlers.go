package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"fleetroute/internal/auth"
	"fleetroute/internal/runner"
)

const maxRequestBody = 1 << 20

// RunsHandler handles GET/POST /v1/runs
func (s *Server) RunsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		if !s.require(w, r, auth.RoleOperator) {
			return
		}
		var req runner.Request
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		run, err := s.Runner.Start(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		w.Header().Set("Location", "/v1/runs/"+run.ID)
		writeJSON(w, http.StatusAccepted, run)
	case http.MethodGet:
		if !s.require(w, r, auth.RoleViewer) {
			return
		}
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				writeProblem(w, http.StatusBadRequest, "Invalid limit", v, r.URL.Path)
				return
			}
			limit = n
		}
		items, next, err := s.Store.ListRuns(r.Context(), r.URL.Query().Get("cursor"), limit)
		if err != nil {
			writeError(w, r, err)
			return
		}
		// listings carry the summary only
		for i := range items {
			items[i].Solution = nil
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		w.Header().Set("Allow", "GET, POST")
		writeProblem(w, http.StatusMethodNotAllowed, "Method not allowed", r.Method, r.URL.Path)
	}
}

// RunByIDHandler handles GET /v1/runs/{id}
func (s *Server) RunByIDHandler(w http.ResponseWriter, r *http.Request) {
	if !s.require(w, r, auth.RoleViewer) {
		return
	}
	run, err := s.Store.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}
