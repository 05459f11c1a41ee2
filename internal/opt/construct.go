package opt

import (
	"math"
	"sort"

	"fleetroute/internal/model"
)

// insertion is a priced, feasible place for a job in one route. Single jobs
// go in gap gp; shipments put the pickup in gap gp and the delivery in gap gd
// of the route as it was before the pickup was added.
type insertion struct {
	veh   int
	gp    int
	gd    int
	delta int64
	ok    bool
}

func noInsertion() insertion { return insertion{delta: math.MaxInt64} }

// insertAt builds w with seq inserted in gap g.
func insertAt(dst []int, w view, g int, seq ...int) []int {
	for k := 0; k < w.len(); k++ {
		if k == g {
			dst = append(dst, seq...)
		}
		dst = append(dst, w.at(k))
	}
	if g >= w.len() {
		dst = append(dst, seq...)
	}
	return dst
}

// insertPairAt builds w with a pickup in gap gp and a delivery in gap gd.
func insertPairAt(dst []int, w view, gp, gd, pickup, delivery int) []int {
	n := w.len()
	for k := 0; k <= n; k++ {
		if k == gp {
			dst = append(dst, pickup)
		}
		if k == gd {
			dst = append(dst, delivery)
		}
		if k < n {
			dst = append(dst, w.at(k))
		}
	}
	return dst
}

// bestInsertion finds the cheapest feasible insertion of job jr into the
// route of vehicle vr, considering only candidates cheaper than limit.
func (s *search) bestInsertion(vr, jr int, limit int64) insertion {
	p := s.p
	v := &p.Vehicles[vr]
	route := s.sol.routes[vr]
	best := noInsertion()
	best.delta = limit
	if !p.Compatible(vr, jr) || len(route)+s.tasks(jr) > v.MaxTasks {
		return noInsertion()
	}
	w := fullView(route)
	j := &p.Jobs[jr]
	buf := s.scratch(0)
	if !j.IsShipment() {
		for g := 0; g <= len(route); g++ {
			d := s.cm.insertCost(v, w, g, jr)
			if d >= best.delta {
				continue
			}
			buf = insertAt(buf[:0], w, g, jr)
			if s.eval.feasible(vr, buf) {
				best = insertion{veh: vr, gp: g, gd: g, delta: d, ok: true}
			}
		}
	} else {
		dr := j.Partner
		for gp := 0; gp <= len(route); gp++ {
			for gd := gp; gd <= len(route); gd++ {
				d := s.cm.shipmentInsertCost(v, w, gp, gd, jr, dr)
				if d >= best.delta {
					continue
				}
				buf = insertPairAt(buf[:0], w, gp, gd, jr, dr)
				if s.eval.feasible(vr, buf) {
					best = insertion{veh: vr, gp: gp, gd: gd, delta: d, ok: true}
				}
			}
		}
	}
	s.keep(0, buf)
	if !best.ok {
		return noInsertion()
	}
	return best
}

// insert commits an insertion found by bestInsertion.
func (s *search) insert(op Operator, jr int, ins insertion) error {
	w := fullView(s.sol.routes[ins.veh])
	var seq []int
	if j := &s.p.Jobs[jr]; j.IsShipment() {
		seq = insertPairAt(make([]int, 0, w.len()+2), w, ins.gp, ins.gd, jr, j.Partner)
	} else {
		seq = insertAt(make([]int, 0, w.len()+1), w, ins.gp, jr)
	}
	return s.commit(&move{op: op, r1: ins.veh, r2: -1, seq1: seq, d1: ins.delta})
}

// construct builds the initial solution of the search.
func (s *search) construct() error {
	if err := s.seedPinned(); err != nil {
		return err
	}
	if s.params.Heuristic == Basic {
		return s.basic()
	}
	if s.params.Init != InitNone {
		for vr := range s.p.Vehicles {
			if _, err := s.seedRoute(vr); err != nil {
				return err
			}
		}
	}
	return s.dynamic(opInsert)
}

// seedPinned places the forced jobs of every vehicle in their forced order.
// Jobs that break the route are dropped together with their shipment
// partner and stay unassigned.
func (s *search) seedPinned() error {
	p := s.p
	for vr := range p.Vehicles {
		v := &p.Vehicles[vr]
		if len(v.Forced) == 0 {
			continue
		}
		var route []int
		dropped := map[int]bool{}
		for _, jr := range v.Forced {
			j := &p.Jobs[jr]
			if j.IsShipment() && dropped[j.Partner] {
				dropped[jr] = true
				continue
			}
			cand := append(append([]int(nil), route...), jr)
			if !p.Compatible(vr, jr) || !s.prefixFeasible(vr, cand) {
				dropped[jr] = true
				continue
			}
			route = cand
		}
		kept := route[:0]
		for _, jr := range route {
			if j := &p.Jobs[jr]; j.IsShipment() && dropped[j.Partner] {
				dropped[jr] = true
				continue
			}
			kept = append(kept, jr)
		}
		if !s.eval.feasible(vr, kept) {
			for _, jr := range kept {
				dropped[jr] = true
			}
			kept = nil
		}
		for jr := range dropped {
			s.sol.excluded[jr] = true
		}
		if len(dropped) > 0 {
			s.log.WithField("vehicle", v.ID).Debugf("[opt] %d forced tasks left unassigned", len(dropped))
		}
		if len(kept) == 0 {
			continue
		}
		m := &move{op: opInsert, r1: vr, r2: -1, seq1: kept, d1: s.cm.routeCost(v, kept)}
		if err := s.commit(m); err != nil {
			return err
		}
	}
	return nil
}

// prefixFeasible checks a partial forced route where pickups may still wait
// for their delivery.
func (s *search) prefixFeasible(vr int, route []int) bool {
	s.eval.openPickups = true
	defer func() { s.eval.openPickups = false }()
	return s.eval.feasible(vr, route)
}

// initCandidates orders pending jobs by the Init criterion for vehicle vr.
func (s *search) initCandidates(vr int, pending []int) []int {
	p := s.p
	v := &p.Vehicles[vr]
	var out []int
	for _, jr := range pending {
		if p.Compatible(vr, jr) {
			out = append(out, jr)
		}
	}
	amount := func(jr int) model.Amount {
		j := &p.Jobs[jr]
		if j.IsShipment() {
			return j.Amount
		}
		return j.Delivery.Add(j.Pickup)
	}
	reach := func(jr int) int64 {
		l := p.Jobs[jr].Loc
		return v.EdgeCost(v.StartLoc, l) + v.EdgeCost(l, v.EndLoc)
	}
	deadline := func(jr int) int64 {
		j := &p.Jobs[jr]
		if j.IsShipment() {
			return p.Jobs[j.Partner].TimeWindows.LatestEnd()
		}
		return j.TimeWindows.LatestEnd()
	}
	var less func(a, b int) bool
	switch s.params.Init {
	case InitHigherAmount:
		less = func(a, b int) bool { return amount(b).LexLess(amount(a)) }
	case InitNearest:
		less = func(a, b int) bool { return reach(a) < reach(b) }
	case InitFurthest:
		less = func(a, b int) bool { return reach(a) > reach(b) }
	case InitEarliestDeadline:
		less = func(a, b int) bool { return deadline(a) < deadline(b) }
	default:
		return nil
	}
	sort.SliceStable(out, func(i, k int) bool {
		a, b := out[i], out[k]
		if p.Jobs[a].Priority != p.Jobs[b].Priority {
			return p.Jobs[a].Priority > p.Jobs[b].Priority
		}
		return less(a, b)
	})
	return out
}

// seedRoute puts the first Init candidate that fits into an empty route.
func (s *search) seedRoute(vr int) (bool, error) {
	if len(s.sol.routes[vr]) > 0 {
		return false, nil
	}
	for _, jr := range s.initCandidates(vr, s.pending()) {
		ins := s.bestInsertion(vr, jr, math.MaxInt64)
		if !ins.ok {
			continue
		}
		return true, s.insert(opInsert, jr, ins)
	}
	return false, nil
}

// vehicleOrder sorts vehicles by decreasing capacity then availability.
func (s *search) vehicleOrder() []int {
	p := s.p
	order := make([]int, len(p.Vehicles))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, k int) bool {
		a, b := &p.Vehicles[order[i]], &p.Vehicles[order[k]]
		if !a.Capacity.Equal(b.Capacity) {
			return b.Capacity.LexLess(a.Capacity)
		}
		return a.TW.Length() > b.TW.Length()
	})
	return order
}

// basic fills one vehicle at a time. The score of a job is its insertion
// cost minus Regret times the cheapest cost of serving it from one of the
// vehicles still to fill, so jobs others could serve cheaply are left to them.
func (s *search) basic() error {
	p := s.p
	order := s.vehicleOrder()
	for oi, vr := range order {
		if _, err := s.seedRoute(vr); err != nil {
			return err
		}
		pending := s.pending()
		s.rng.Shuffle(len(pending), func(i, k int) { pending[i], pending[k] = pending[k], pending[i] })
		later := make(map[int]int64, len(pending))
		for _, jr := range pending {
			alt := p.CostUpperBound()
			for _, other := range order[oi+1:] {
				if !p.Compatible(other, jr) {
					continue
				}
				ov := &p.Vehicles[other]
				c := s.cm.insertCost(ov, fullView(s.sol.routes[other]), 0, s.pair(jr)...)
				alt = min(alt, c)
			}
			later[jr] = alt
		}
		for {
			bestJob, bestScore := -1, math.Inf(1)
			var bestIns insertion
			for _, jr := range pending {
				if s.sol.vehicleOf[jr] >= 0 {
					continue
				}
				ins := s.bestInsertion(vr, jr, math.MaxInt64)
				if !ins.ok {
					continue
				}
				score := float64(ins.delta) - s.params.Regret*float64(later[jr])
				if bestJob >= 0 && p.Jobs[jr].Priority < p.Jobs[bestJob].Priority {
					continue
				}
				if bestJob < 0 || p.Jobs[jr].Priority > p.Jobs[bestJob].Priority || score < bestScore {
					bestJob, bestScore, bestIns = jr, score, ins
				}
			}
			if bestJob < 0 {
				break
			}
			if err := s.insert(opInsert, bestJob, bestIns); err != nil {
				return err
			}
		}
	}
	return nil
}

// pair returns the tasks a job brings into a route, in route order.
func (s *search) pair(jr int) []int {
	if j := &s.p.Jobs[jr]; j.IsShipment() {
		return []int{jr, j.Partner}
	}
	return []int{jr}
}

type cachedInsertion struct {
	ins     insertion
	version int
	valid   bool
}

// dynamic repeatedly inserts, across all vehicles, the pending job with the
// highest priority and then the lowest regret score: its best insertion cost
// minus Regret times the gap to its best insertion on another vehicle.
func (s *search) dynamic(op Operator) error {
	p := s.p
	pending := s.pending()
	s.rng.Shuffle(len(pending), func(i, k int) { pending[i], pending[k] = pending[k], pending[i] })
	cache := make(map[int][]cachedInsertion, len(pending))
	for _, jr := range pending {
		cache[jr] = make([]cachedInsertion, len(p.Vehicles))
	}
	for len(pending) > 0 {
		if s.expired() {
			return nil
		}
		bestIdx, bestScore := -1, math.Inf(1)
		var bestIns insertion
		for idx, jr := range pending {
			first, second := noInsertion(), noInsertion()
			for vr := range p.Vehicles {
				c := &cache[jr][vr]
				if !c.valid || c.version != s.version[vr] {
					c.ins = s.bestInsertion(vr, jr, math.MaxInt64)
					c.version, c.valid = s.version[vr], true
				}
				ins := c.ins
				if !ins.ok {
					continue
				}
				if ins.delta < first.delta {
					first, second = ins, first
				} else if ins.delta < second.delta {
					second = ins
				}
			}
			if !first.ok {
				continue
			}
			alt := p.CostUpperBound()
			if second.ok {
				alt = second.delta
			}
			score := float64(first.delta) - s.params.Regret*float64(alt-first.delta)
			if bestIdx >= 0 && p.Jobs[jr].Priority < p.Jobs[pending[bestIdx]].Priority {
				continue
			}
			if bestIdx < 0 || p.Jobs[jr].Priority > p.Jobs[pending[bestIdx]].Priority || score < bestScore {
				bestIdx, bestScore, bestIns = idx, score, first
			}
		}
		if bestIdx < 0 {
			return nil
		}
		jr := pending[bestIdx]
		if err := s.insert(op, jr, bestIns); err != nil {
			return err
		}
		pending = append(pending[:bestIdx], pending[bestIdx+1:]...)
	}
	return nil
}
