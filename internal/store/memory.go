package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu   sync.Mutex
	runs map[string]Run
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{runs: map[string]Run{}}
}

func (m *Memory) SaveRun(_ context.Context, r Run) (string, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[r.ID] = r
	return r.ID, nil
}

func (m *Memory) GetRun(_ context.Context, id string) (Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return Run{}, ErrNotFound
	}
	return r, nil
}

// newer orders runs by creation time then id, both descending, matching the
// Postgres listing.
func newer(a, b Run) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func (m *Memory) ListRuns(_ context.Context, cursor string, limit int) ([]Run, string, error) {
	limit = clampLimit(limit)
	m.mu.Lock()
	all := make([]Run, 0, len(m.runs))
	for _, r := range m.runs {
		all = append(all, r)
	}
	var after *Run
	if c, ok := m.runs[cursor]; ok {
		after = &c
	}
	m.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return newer(all[i], all[j]) })
	out := make([]Run, 0, limit)
	for _, r := range all {
		if after != nil && !newer(*after, r) {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	next := ""
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}
