// Package store persists solver runs.
package store

import (
	"context"
	"errors"
	"time"

	"fleetroute/internal/model"
	"fleetroute/internal/opt"
)

// Run statuses.
const (
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// Run is the record of one solve.
type Run struct {
	ID         string           `json:"id"`
	Status     string           `json:"status"`
	Source     string           `json:"source,omitempty"`
	Level      int              `json:"level"`
	Threads    int              `json:"threads"`
	Seed       int64            `json:"seed"`
	Cost       int64            `json:"cost"`
	Unassigned int              `json:"unassigned"`
	Error      string           `json:"error,omitempty"`
	Report     *opt.SolveReport `json:"report,omitempty"`
	Solution   *model.Solution  `json:"solution,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
	FinishedAt *time.Time       `json:"finishedAt,omitempty"`
}

// Store is the persistence interface used by the service.
type Store interface {
	// SaveRun inserts or replaces the run with r.ID. An empty ID is filled
	// with a new one, which is returned.
	SaveRun(ctx context.Context, r Run) (string, error)
	GetRun(ctx context.Context, id string) (Run, error)
	// ListRuns pages runs newest first. The returned cursor is empty on the
	// last page.
	ListRuns(ctx context.Context, cursor string, limit int) ([]Run, string, error)
}

var ErrNotFound = errors.New("not found")

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
