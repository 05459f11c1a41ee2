package api

import (
	"net/http"
	"time"

	"fleetroute/internal/auth"
	"fleetroute/internal/buildinfo"
)

// DebugJSON reports the build and the effective configuration without secrets.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	if !s.require(w, r, auth.RoleOperator) {
		return
	}
	c := s.Config
	writeJSON(w, http.StatusOK, map[string]any{
		"build": buildinfo.Get(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"solver":         c.Solver,
			"scale":          c.Scale,
			"events":         c.Events,
			"synth":          c.Synth,
			"api":            c.API,
			"authMode":       s.Auth.Mode(),
			"logLevel":       c.LogLevel,
			"hasDatabaseURL": c.DatabaseURL != "",
			"hasRedisURL":    c.RedisURL != "",
		},
	})
}
