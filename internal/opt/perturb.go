package opt

import (
	"math"
	"math/rand"
	"sort"

	"fleetroute/internal/model"
)

// Ruin operators, selected by roulette wheel on adaptive weights.
const (
	ruinRandom = iota
	ruinRelated
)

const (
	// maxRuin bounds the number of jobs removed in one round.
	maxRuin = 10
	// initialTemp is a share of the first local optimum cost.
	initialTemp = 0.02
	cooling     = 0.95
)

// run builds a solution, descends to a local optimum, then alternates ruin
// and recreate with descent until Rounds rounds pass without a new best.
func (s *search) run() (*solution, error) {
	if err := s.construct(); err != nil {
		return nil, err
	}
	if err := s.localSearch(); err != nil {
		return nil, err
	}
	best := s.sol.clone()
	bestObj := best.objective(s.p)
	curObj := bestObj
	temp := float64(bestObj.cost)*initialTemp + 1
	weights := []float64{1, 1}
	idle := 0
	for idle < s.params.Rounds && !s.expired() {
		s.stats.Rounds++
		idle++
		op := selectOp(weights, s.rng)
		s.stats.RuinSelects[op]++
		removed := s.pickRuin(op)
		if len(removed) == 0 {
			break
		}
		prev := s.sol.clone()
		if err := s.ruin(removed); err != nil {
			return nil, err
		}
		if err := s.dynamic(OpUnassignedInsertion); err != nil {
			return nil, err
		}
		if err := s.localSearch(); err != nil {
			return nil, err
		}
		obj := s.sol.objective(s.p)
		switch {
		case obj.better(bestObj):
			best, bestObj = s.sol.clone(), obj
			idle = 0
			weights[op] += 0.1
			s.stats.Improvements++
		case s.accept(curObj, obj, temp):
			weights[op] += 0.01
			if curObj.better(obj) {
				s.stats.AcceptedWorse++
			}
		default:
			s.sol = prev
			weights[op] = math.Max(0.01, weights[op]*0.999)
		}
		curObj = s.sol.objective(s.p)
		temp *= cooling
	}
	s.sol = best
	return best, nil
}

// accept never trades assigned tasks or priority for cost. Among solutions
// serving the same tasks, a costlier one passes with probability
// exp(-delta/temp).
func (s *search) accept(cur, cand objective, temp float64) bool {
	if cand.priority != cur.priority || cand.assigned != cur.assigned {
		return cand.better(cur)
	}
	delta := float64(cand.cost - cur.cost)
	return delta <= 0 || s.rng.Float64() < math.Exp(-delta/temp)
}

func selectOp(weights []float64, rng *rand.Rand) int {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return 0
	}
	r := rng.Float64() * sum
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r <= acc {
			return i
		}
	}
	return len(weights) - 1
}

// ruinCandidates lists assigned jobs that may be removed, shipments by
// their pickup only.
func (s *search) ruinCandidates() []int {
	var out []int
	for jr, vr := range s.sol.vehicleOf {
		j := &s.p.Jobs[jr]
		if vr < 0 || j.IsPinned() {
			continue
		}
		if j.IsShipment() && j.Kind != model.JobPickup {
			continue
		}
		out = append(out, jr)
	}
	return out
}

func (s *search) pickRuin(op int) []int {
	cands := s.ruinCandidates()
	if len(cands) == 0 {
		return nil
	}
	k := 1 + s.rng.Intn(min(maxRuin, (len(cands)+1)/2))
	if op == ruinRelated {
		return s.relatedRemoval(cands, k)
	}
	return randomRemoval(cands, k, s.rng)
}

func randomRemoval(cands []int, k int, rng *rand.Rand) []int {
	pool := append([]int(nil), cands...)
	for i := 0; i < k; i++ {
		j := i + rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k]
}

// relatedRemoval picks a random seed job and the k-1 jobs closest to it in
// travel time and window start, as seen by the seed's vehicle.
func (s *search) relatedRemoval(cands []int, k int) []int {
	p := s.p
	seed := cands[s.rng.Intn(len(cands))]
	v := &p.Vehicles[s.sol.vehicleOf[seed]]
	a := &p.Jobs[seed]
	type related struct {
		jr    int
		score int64
	}
	rel := make([]related, 0, len(cands))
	for _, jr := range cands {
		if jr == seed {
			continue
		}
		b := &p.Jobs[jr]
		gap := a.TimeWindows[0].Start - b.TimeWindows[0].Start
		if gap < 0 {
			gap = -gap
		}
		rel = append(rel, related{jr: jr, score: v.Duration(a.Loc, b.Loc) + v.Duration(b.Loc, a.Loc) + gap})
	}
	sort.SliceStable(rel, func(i, j int) bool { return rel[i].score < rel[j].score })
	removed := []int{seed}
	for i := 0; i < len(rel) && len(removed) < k; i++ {
		removed = append(removed, rel[i].jr)
	}
	return removed
}

// ruin takes the given jobs, and their shipment partners, out of their
// routes. A route that would become infeasible without them is left as is.
func (s *search) ruin(removed []int) error {
	drop := make(map[int]bool, 2*len(removed))
	touched := map[int]bool{}
	for _, jr := range removed {
		drop[jr] = true
		if j := &s.p.Jobs[jr]; j.IsShipment() {
			drop[j.Partner] = true
		}
		touched[s.sol.vehicleOf[jr]] = true
	}
	for vr := range s.p.Vehicles {
		if !touched[vr] {
			continue
		}
		var kept []int
		for _, jr := range s.sol.routes[vr] {
			if !drop[jr] {
				kept = append(kept, jr)
			}
		}
		if !s.eval.feasible(vr, kept) {
			continue
		}
		v := &s.p.Vehicles[vr]
		m := &move{op: opRuin, r1: vr, r2: -1, seq1: kept, d1: s.cm.routeCost(v, kept) - s.sol.costs[vr]}
		if err := s.commit(m); err != nil {
			return err
		}
	}
	return nil
}
