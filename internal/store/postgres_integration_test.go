//go:build postgres_integration

package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fleetroute/internal/opt"
)

func TestPostgresRunRoundTrip(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	ctx := context.Background()
	p, err := NewPostgres(dsn)
	require.NoError(t, err)
	defer p.Close()
	require.NoError(t, p.Ping(ctx))
	require.NoError(t, p.Migrate(ctx))

	id, err := p.SaveRun(ctx, Run{Status: StatusRunning, Level: 1, Threads: 2, CreatedAt: time.Now()})
	require.NoError(t, err)
	now := time.Now()
	_, err = p.SaveRun(ctx, Run{ID: id, Status: StatusDone, Level: 1, Threads: 2, Cost: 42,
		Report: &opt.SolveReport{Searches: 8}, CreatedAt: now, FinishedAt: &now})
	require.NoError(t, err)

	got, err := p.GetRun(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StatusDone, got.Status)
	require.Equal(t, int64(42), got.Cost)
	require.Equal(t, 8, got.Report.Searches)
	require.NotNil(t, got.FinishedAt)

	runs, _, err := p.ListRuns(ctx, "", 10)
	require.NoError(t, err)
	require.NotEmpty(t, runs)
	require.Nil(t, runs[0].Solution)
}
