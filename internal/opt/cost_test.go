package opt

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"fleetroute/internal/matrix"
	"fleetroute/internal/model"
	"fleetroute/internal/problem"
	"fleetroute/internal/synth"
)

// randomProblem has one vehicle with a fixed cost and both rates, and one
// without an end, over a random asymmetric matrix.
func randomProblem(t *testing.T, seed int64, jobs int) *problem.Problem {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	n := 10
	dur, dist := matrix.New(n), matrix.New(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				dur.Set(i, j, uint32(1+rng.Intn(3000)))
				dist.Set(i, j, uint32(1+rng.Intn(30000)))
			}
		}
	}
	in := problem.NewInput()
	require.NoError(t, in.SetDurationsMatrix("car", dur))
	require.NoError(t, in.SetDistancesMatrix("car", dist))
	require.NoError(t, in.AddVehicle(model.Vehicle{
		ID: 1, Start: loc(0), End: loc(9),
		Costs:       &model.Costs{Fixed: 17, PerHour: 2500, PerKm: 3},
		SpeedFactor: 1.3,
	}))
	require.NoError(t, in.AddVehicle(model.Vehicle{ID: 2, Start: loc(4)}))
	for i := 0; i < jobs; i++ {
		require.NoError(t, in.AddJob(model.Job{ID: uint64(i), Location: model.LocationIndex(rng.Intn(n))}))
	}
	p, err := in.Compile(problem.DefaultScale())
	require.NoError(t, err)
	return p
}

func TestIncrementalCostsMatchFullRecompute(t *testing.T) {
	p := randomProblem(t, 3, 14)
	cm := costModel{p: p}
	rng := rand.New(rand.NewSource(11))
	for vr := range p.Vehicles {
		v := &p.Vehicles[vr]
		for trial := 0; trial < 300; trial++ {
			perm := rng.Perm(len(p.Jobs))
			n := rng.Intn(9)
			route := perm[:n]
			extra := perm[n : n+2]
			base := cm.routeCost(v, route)
			w := fullView(route)

			g := rng.Intn(n + 1)
			after := insertAt(nil, w, g, extra...)
			require.Equal(t, cm.routeCost(v, after)-base, cm.insertCost(v, w, g, extra...))

			gp := rng.Intn(n + 1)
			gd := gp + rng.Intn(n+1-gp)
			paired := insertPairAt(nil, w, gp, gd, extra[0], extra[1])
			require.Equal(t, cm.routeCost(v, paired)-base, cm.shipmentInsertCost(v, w, gp, gd, extra[0], extra[1]))

			if n == 0 {
				continue
			}
			i := rng.Intn(n)
			k := 1 + rng.Intn(n-i)
			require.Equal(t, cm.routeCost(v, without(nil, route, i, k))-base, cm.removeCost(v, route, i, k))
			require.Equal(t, cm.routeCost(v, replaced(nil, route, i, k, extra))-base, cm.replaceCost(v, route, i, k, extra...))

			if n >= 2 {
				a := rng.Intn(n - 1)
				b := a + 1 + rng.Intn(n-a-1)
				rest := view{base: route, skipA: a, skipB: b}.appendTo(nil)
				require.Equal(t, cm.routeCost(v, rest)-base, cm.removePairCost(v, route, a, b))
			}
		}
	}
}

func TestViewSkipsPositions(t *testing.T) {
	w := view{base: []int{10, 11, 12, 13, 14}, skipA: 3, skipB: 1}
	require.Equal(t, 3, w.len())
	require.Equal(t, []int{10, 12, 14}, []int{w.at(0), w.at(1), w.at(2)})
	require.Equal(t, []int{10, 12, 14}, w.appendTo(nil))
	require.Equal(t, []int{10, 12, 7, 14}, insertAt(nil, w, 2, 7))
	require.Equal(t, []int{1, 10, 12, 14, 2}, insertPairAt(nil, w, 0, 3, 1, 2))
}

// Every committed move is checked against a full recompute, so a search
// over a rich instance finishing without error shows the running costs
// never drifted.
func TestSearchKeepsRunningCostsExact(t *testing.T) {
	o := synth.DefaultOptions()
	o.Jobs, o.Shipments, o.Vehicles = 30, 6, 4
	o.Breaks = true
	o.Skills = 2
	in, err := synth.Generate(o)
	require.NoError(t, err)
	p, err := in.Compile(problem.DefaultScale())
	require.NoError(t, err)

	for i, params := range searchesFor(3)[:6] {
		s := newSearch(context.Background(), p, i, params, searchRNG(5, i), testLogger())
		sol, err := s.run()
		require.NoError(t, err, "search %d (%s)", i, params)
		for vr, route := range sol.routes {
			require.Equal(t, costModel{p: p}.routeCost(&p.Vehicles[vr], route), sol.costs[vr])
			require.True(t, newEvaluator(p).feasible(vr, route), "vehicle rank %d", vr)
			for _, jr := range route {
				require.Equal(t, vr, sol.vehicleOf[jr])
			}
		}
		require.Greater(t, s.stats.Moves[opInsert]+s.stats.Moves[OpUnassignedInsertion], 0)
	}
}

func TestCommitDetectsDrift(t *testing.T) {
	p := randomProblem(t, 5, 4)
	s := newSearch(context.Background(), p, 0, searchesFor(0)[0], searchRNG(1, 0), testLogger())
	err := s.commit(&move{op: OpRelocate, r1: 0, r2: -1, seq1: []int{0, 1}, d1: 1})
	require.ErrorIs(t, err, problem.ErrInternal)
	require.Contains(t, err.Error(), "relocate")
}

func TestEmptyRouteChangesPayStartToEnd(t *testing.T) {
	p := evalProblem(t, model.Vehicle{ID: 1}, nil)
	cm := costModel{p: p}
	v := &p.Vehicles[0]
	// 0 -> 2 -> 3
	want := (197 + 1102) * p.Scale.Factor()
	require.Equal(t, want, cm.routeCost(v, []int{1}))
	require.Equal(t, want, cm.insertCost(v, fullView(nil), 0, 1))
	require.Equal(t, -want, cm.removeCost(v, []int{1}, 0, 1))

	// 0 -> 1 -> 2 -> 3 for the shipment alone
	pair := (2104 + 2255 + 1102) * p.Scale.Factor()
	require.Equal(t, pair, cm.shipmentInsertCost(v, fullView(nil), 0, 0, 2, 3))
	require.Equal(t, -pair, cm.removePairCost(v, []int{2, 3}, 0, 1))
}
