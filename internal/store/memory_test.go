package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fleetroute/internal/opt"
)

func TestMemorySaveGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id, err := m.SaveRun(ctx, Run{Status: StatusRunning, Level: 2, Threads: 4, CreatedAt: time.Now()})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := m.GetRun(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StatusRunning, got.Status)

	got.Status, got.Cost = StatusDone, 5461
	got.Report = &opt.SolveReport{Searches: 16}
	_, err = m.SaveRun(ctx, got)
	require.NoError(t, err)
	got, err = m.GetRun(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StatusDone, got.Status)
	require.Equal(t, int64(5461), got.Cost)
	require.Equal(t, 16, got.Report.Searches)

	_, err = m.GetRun(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryListPagesNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := m.SaveRun(ctx, Run{ID: fmt.Sprintf("r%d", i), CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}

	page, next, err := m.ListRuns(ctx, "", 2)
	require.NoError(t, err)
	require.Equal(t, []string{"r4", "r3"}, runIDs(page))
	require.Equal(t, "r3", next)

	page, next, err = m.ListRuns(ctx, next, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"r2", "r1"}, runIDs(page))

	page, next, err = m.ListRuns(ctx, next, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"r0"}, runIDs(page))
	require.Empty(t, next)
}

func runIDs(runs []Run) []string {
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	return ids
}
