package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"fleetroute/internal/opt"
)

func TestRecorderUpdatesCollectors(t *testing.T) {
	RegisterDefault()
	RegisterDefault()

	var stats opt.SearchStats
	stats.Moves[opt.OpRelocate] = 3
	stats.Rounds, stats.Improvements, stats.AcceptedWorse = 5, 1, 1
	before := testutil.ToFloat64(Moves.WithLabelValues("relocate"))
	Recorder{}.SearchDone(opt.SearchReport{Params: opt.Params{Heuristic: opt.Dynamic}, Stats: stats})
	require.Equal(t, before+3, testutil.ToFloat64(Moves.WithLabelValues("relocate")))
	require.GreaterOrEqual(t, testutil.ToFloat64(Rounds.WithLabelValues("other")), 3.0)

	Recorder{}.SolveDone(opt.SolveReport{Level: 2, Cost: 5461, Unassigned: 1, Solving: time.Second})
	require.Equal(t, 5461.0, testutil.ToFloat64(BestCost))
	require.Equal(t, 1.0, testutil.ToFloat64(Unassigned))
	require.GreaterOrEqual(t, testutil.ToFloat64(Solves.WithLabelValues("2")), 1.0)

	n, err := testutil.GatherAndCount(Registry, "fleetroute_build_info")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
