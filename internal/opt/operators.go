package opt

import (
	"fleetroute/internal/model"
	"fleetroute/internal/problem"
)

// Operator names a neighbourhood move.
type Operator int

const (
	OpUnassignedInsertion Operator = iota
	OpRelocate
	OpExchange
	OpOrOpt
	OpCrossExchange
	OpTwoOptStar
	OpShipmentRelocate
	OpTwoOpt
	opInsert
	opRuin
	numOperators
)

var operatorNames = [numOperators]string{
	"unassigned_insertion", "relocate", "exchange", "or_opt", "cross_exchange",
	"two_opt_star", "shipment_relocate", "two_opt", "insert", "ruin",
}

func (o Operator) String() string {
	if o < 0 || o >= numOperators {
		return "unknown"
	}
	return operatorNames[o]
}

// Operators lists the local search operators in scan order.
var Operators = []Operator{
	OpUnassignedInsertion, OpRelocate, OpExchange, OpOrOpt,
	OpCrossExchange, OpTwoOptStar, OpShipmentRelocate, OpTwoOpt,
}

// scan returns the best improving move of op, or nil.
func (s *search) scan(op Operator) *move {
	switch op {
	case OpUnassignedInsertion:
		return s.unassignedInsertion()
	case OpRelocate:
		return s.relocate()
	case OpExchange:
		return s.exchange()
	case OpOrOpt:
		return s.orOpt()
	case OpCrossExchange:
		return s.crossExchange()
	case OpTwoOptStar:
		return s.twoOptStar()
	case OpShipmentRelocate:
		return s.shipmentRelocate()
	case OpTwoOpt:
		return s.twoOpt()
	}
	return nil
}

func hasPinned(p *problem.Problem, seq []int) bool {
	for _, jr := range seq {
		if p.Jobs[jr].IsPinned() {
			return true
		}
	}
	return false
}

func hasShipment(p *problem.Problem, seq []int) bool {
	for _, jr := range seq {
		if p.Jobs[jr].IsShipment() {
			return true
		}
	}
	return false
}

func (s *search) allCompatible(vr int, seq []int) bool {
	for _, jr := range seq {
		if !s.p.Compatible(vr, jr) {
			return false
		}
	}
	return true
}

// without copies route minus the n jobs at position i.
func without(dst, route []int, i, n int) []int {
	dst = append(dst, route[:i]...)
	return append(dst, route[i+n:]...)
}

func replaced(dst, route []int, i, n int, seq []int) []int {
	dst = append(dst, route[:i]...)
	dst = append(dst, seq...)
	return append(dst, route[i+n:]...)
}

func cloneInts(a []int) []int { return append(make([]int, 0, len(a)), a...) }

// unassignedInsertion places the pending job with the highest priority that
// fits anywhere, at its cheapest position. Any such move improves the
// objective, whatever its cost.
func (s *search) unassignedInsertion() *move {
	p := s.p
	bestJob := -1
	var best insertion
	for _, jr := range s.pending() {
		if bestJob >= 0 && p.Jobs[jr].Priority < p.Jobs[bestJob].Priority {
			continue
		}
		limit := best.delta
		if bestJob < 0 || p.Jobs[jr].Priority > p.Jobs[bestJob].Priority {
			limit = noInsertion().delta
		}
		for vr := range p.Vehicles {
			ins := s.bestInsertion(vr, jr, limit)
			if !ins.ok {
				continue
			}
			bestJob, best, limit = jr, ins, ins.delta
		}
	}
	if bestJob < 0 {
		return nil
	}
	w := fullView(s.sol.routes[best.veh])
	var seq []int
	if j := &p.Jobs[bestJob]; j.IsShipment() {
		seq = insertPairAt(nil, w, best.gp, best.gd, bestJob, j.Partner)
	} else {
		seq = insertAt(nil, w, best.gp, bestJob)
	}
	return &move{op: OpUnassignedInsertion, r1: best.veh, r2: -1, seq1: seq, d1: best.delta}
}

// relocate moves one job to another position, in its route or another one.
// Shipment halves only move inside their route.
func (s *search) relocate() *move {
	p := s.p
	var best *move
	var bestGain int64
	for r1 := range p.Vehicles {
		route1 := s.sol.routes[r1]
		v1 := &p.Vehicles[r1]
		for i, jr := range route1 {
			j := &p.Jobs[jr]
			if j.IsPinned() {
				continue
			}
			rem := s.cm.removeCost(v1, route1, i, 1)
			w := view{base: route1, skipA: i, skipB: -1}
			for g := 0; g <= w.len(); g++ {
				if g == i {
					continue
				}
				gain := rem + s.cm.insertCost(v1, w, g, jr)
				if gain >= bestGain {
					continue
				}
				seq := insertAt(s.scratch(1), w, g, jr)
				s.keep(1, seq)
				if s.eval.feasible(r1, seq) {
					best = &move{op: OpRelocate, r1: r1, r2: -1, seq1: cloneInts(seq), d1: gain}
					bestGain = gain
				}
			}
			if j.IsShipment() {
				continue
			}
			var rest []int
			restOK := -1
			for r2 := range p.Vehicles {
				route2 := s.sol.routes[r2]
				v2 := &p.Vehicles[r2]
				if r2 == r1 || !p.Compatible(r2, jr) || len(route2)+1 > v2.MaxTasks {
					continue
				}
				w2 := fullView(route2)
				for g := 0; g <= len(route2); g++ {
					ins := s.cm.insertCost(v2, w2, g, jr)
					if rem+ins >= bestGain {
						continue
					}
					if restOK < 0 {
						rest = without(nil, route1, i, 1)
						restOK = 0
						if s.eval.feasible(r1, rest) {
							restOK = 1
						}
					}
					if restOK == 0 {
						break
					}
					seq := insertAt(s.scratch(2), w2, g, jr)
					s.keep(2, seq)
					if s.eval.feasible(r2, seq) {
						best = &move{op: OpRelocate, r1: r1, r2: r2, seq1: rest, seq2: cloneInts(seq), d1: rem, d2: ins}
						bestGain = rem + ins
					}
				}
			}
		}
	}
	return best
}

// exchange swaps two single jobs of different routes.
func (s *search) exchange() *move {
	p := s.p
	var best *move
	var bestGain int64
	for r1 := range p.Vehicles {
		route1 := s.sol.routes[r1]
		v1 := &p.Vehicles[r1]
		for r2 := r1 + 1; r2 < len(p.Vehicles); r2++ {
			route2 := s.sol.routes[r2]
			v2 := &p.Vehicles[r2]
			for i, a := range route1 {
				ja := &p.Jobs[a]
				if ja.IsPinned() || ja.IsShipment() || !p.Compatible(r2, a) {
					continue
				}
				for k, b := range route2 {
					jb := &p.Jobs[b]
					if jb.IsPinned() || jb.IsShipment() || !p.Compatible(r1, b) {
						continue
					}
					d1 := s.cm.replaceCost(v1, route1, i, 1, b)
					d2 := s.cm.replaceCost(v2, route2, k, 1, a)
					if d1+d2 >= bestGain {
						continue
					}
					seq1 := replaced(s.scratch(1), route1, i, 1, []int{b})
					seq2 := replaced(s.scratch(2), route2, k, 1, []int{a})
					s.keep(1, seq1)
					s.keep(2, seq2)
					if s.eval.feasible(r1, seq1) && s.eval.feasible(r2, seq2) {
						best = &move{op: OpExchange, r1: r1, r2: r2, seq1: cloneInts(seq1), seq2: cloneInts(seq2), d1: d1, d2: d2}
						bestGain = d1 + d2
					}
				}
			}
		}
	}
	return best
}

// orOpt moves a segment of two or three consecutive jobs elsewhere. Segments
// holding shipment halves only move inside their route.
func (s *search) orOpt() *move {
	p := s.p
	var best *move
	var bestGain int64
	for r1 := range p.Vehicles {
		route1 := s.sol.routes[r1]
		v1 := &p.Vehicles[r1]
		for n := 2; n <= 3; n++ {
			for i := 0; i+n <= len(route1); i++ {
				seg := route1[i : i+n]
				if hasPinned(p, seg) {
					continue
				}
				rem := s.cm.removeCost(v1, route1, i, n)
				rest := without(s.scratch(3), route1, i, n)
				s.keep(3, rest)
				wr := fullView(rest)
				for g := 0; g <= len(rest); g++ {
					if g == i {
						continue
					}
					gain := rem + s.cm.insertCost(v1, wr, g, seg...)
					if gain >= bestGain {
						continue
					}
					seq := insertAt(s.scratch(1), wr, g, seg...)
					s.keep(1, seq)
					if s.eval.feasible(r1, seq) {
						best = &move{op: OpOrOpt, r1: r1, r2: -1, seq1: cloneInts(seq), d1: gain}
						bestGain = gain
					}
				}
				if hasShipment(p, seg) {
					continue
				}
				restFeasible := -1
				for r2 := range p.Vehicles {
					route2 := s.sol.routes[r2]
					v2 := &p.Vehicles[r2]
					if r2 == r1 || len(route2)+n > v2.MaxTasks || !s.allCompatible(r2, seg) {
						continue
					}
					w2 := fullView(route2)
					for g := 0; g <= len(route2); g++ {
						ins := s.cm.insertCost(v2, w2, g, seg...)
						if rem+ins >= bestGain {
							continue
						}
						if restFeasible < 0 {
							restFeasible = 0
							if s.eval.feasible(r1, rest) {
								restFeasible = 1
							}
						}
						if restFeasible == 0 {
							break
						}
						seq := insertAt(s.scratch(2), w2, g, seg...)
						s.keep(2, seq)
						if s.eval.feasible(r2, seq) {
							best = &move{op: OpOrOpt, r1: r1, r2: r2, seq1: cloneInts(rest), seq2: cloneInts(seq), d1: rem, d2: ins}
							bestGain = rem + ins
						}
					}
				}
			}
		}
	}
	return best
}

// crossExchange swaps segments of one or two jobs between two routes, at
// least one of them of length two.
func (s *search) crossExchange() *move {
	p := s.p
	var best *move
	var bestGain int64
	for r1 := range p.Vehicles {
		route1 := s.sol.routes[r1]
		v1 := &p.Vehicles[r1]
		for r2 := r1 + 1; r2 < len(p.Vehicles); r2++ {
			route2 := s.sol.routes[r2]
			v2 := &p.Vehicles[r2]
			for la := 1; la <= 2; la++ {
				for lb := 1; lb <= 2; lb++ {
					if la == 1 && lb == 1 {
						continue
					}
					if len(route1)-la+lb > v1.MaxTasks || len(route2)-lb+la > v2.MaxTasks {
						continue
					}
					for i := 0; i+la <= len(route1); i++ {
						segA := route1[i : i+la]
						if hasPinned(p, segA) || hasShipment(p, segA) || !s.allCompatible(r2, segA) {
							continue
						}
						for k := 0; k+lb <= len(route2); k++ {
							segB := route2[k : k+lb]
							if hasPinned(p, segB) || hasShipment(p, segB) || !s.allCompatible(r1, segB) {
								continue
							}
							d1 := s.cm.replaceCost(v1, route1, i, la, segB...)
							d2 := s.cm.replaceCost(v2, route2, k, lb, segA...)
							if d1+d2 >= bestGain {
								continue
							}
							seq1 := replaced(s.scratch(1), route1, i, la, segB)
							seq2 := replaced(s.scratch(2), route2, k, lb, segA)
							s.keep(1, seq1)
							s.keep(2, seq2)
							if s.eval.feasible(r1, seq1) && s.eval.feasible(r2, seq2) {
								best = &move{op: OpCrossExchange, r1: r1, r2: r2, seq1: cloneInts(seq1), seq2: cloneInts(seq2), d1: d1, d2: d2}
								bestGain = d1 + d2
							}
						}
					}
				}
			}
		}
	}
	return best
}

// pinFreeFrom is the first position after the last pinned job of route.
func pinFreeFrom(p *problem.Problem, route []int) int {
	from := 0
	for i, jr := range route {
		if p.Jobs[jr].IsPinned() {
			from = i + 1
		}
	}
	return from
}

// compatibleFrom is the first position from which every job of route can be
// served by vehicle vr.
func (s *search) compatibleFrom(vr int, route []int) int {
	from := 0
	for i, jr := range route {
		if !s.p.Compatible(vr, jr) {
			from = i + 1
		}
	}
	return from
}

// twoOptStar swaps the tails of two routes.
func (s *search) twoOptStar() *move {
	p := s.p
	var best *move
	var bestGain int64
	for r1 := range p.Vehicles {
		route1 := s.sol.routes[r1]
		v1 := &p.Vehicles[r1]
		from1 := pinFreeFrom(p, route1)
		for r2 := r1 + 1; r2 < len(p.Vehicles); r2++ {
			route2 := s.sol.routes[r2]
			v2 := &p.Vehicles[r2]
			if len(route1) == 0 && len(route2) == 0 {
				continue
			}
			start1 := max(from1, s.compatibleFrom(r2, route1))
			start2 := max(pinFreeFrom(p, route2), s.compatibleFrom(r1, route2))
			for i := start1; i <= len(route1); i++ {
				for k := start2; k <= len(route2); k++ {
					if i == len(route1) && k == len(route2) {
						continue
					}
					if i+len(route2)-k > v1.MaxTasks || k+len(route1)-i > v2.MaxTasks {
						continue
					}
					seq1 := append(append(s.scratch(1), route1[:i]...), route2[k:]...)
					seq2 := append(append(s.scratch(2), route2[:k]...), route1[i:]...)
					s.keep(1, seq1)
					s.keep(2, seq2)
					d1 := s.cm.routeCost(v1, seq1) - s.sol.costs[r1]
					d2 := s.cm.routeCost(v2, seq2) - s.sol.costs[r2]
					if d1+d2 >= bestGain {
						continue
					}
					if s.eval.feasible(r1, seq1) && s.eval.feasible(r2, seq2) {
						best = &move{op: OpTwoOptStar, r1: r1, r2: r2, seq1: cloneInts(seq1), seq2: cloneInts(seq2), d1: d1, d2: d2}
						bestGain = d1 + d2
					}
				}
			}
		}
	}
	return best
}

// shipmentRelocate moves a pickup and its delivery together, to new
// positions in the same route or another one.
func (s *search) shipmentRelocate() *move {
	p := s.p
	var best *move
	var bestGain int64
	for r1 := range p.Vehicles {
		route1 := s.sol.routes[r1]
		v1 := &p.Vehicles[r1]
		for i, jr := range route1 {
			j := &p.Jobs[jr]
			if j.Kind != model.JobPickup || j.IsPinned() {
				continue
			}
			k := -1
			for x := i + 1; x < len(route1); x++ {
				if route1[x] == j.Partner {
					k = x
					break
				}
			}
			if k < 0 {
				continue
			}
			rem := s.cm.removePairCost(v1, route1, i, k)
			var rest []int
			restOK := -1
			for r2 := range p.Vehicles {
				v2 := &p.Vehicles[r2]
				var w view
				if r2 == r1 {
					w = view{base: route1, skipA: i, skipB: k}
				} else {
					if !p.Compatible(r2, jr) || len(s.sol.routes[r2])+2 > v2.MaxTasks {
						continue
					}
					w = fullView(s.sol.routes[r2])
				}
				for gp := 0; gp <= w.len(); gp++ {
					for gd := gp; gd <= w.len(); gd++ {
						if r2 == r1 && gp == i && gd == k-1 {
							continue
						}
						ins := s.cm.shipmentInsertCost(v2, w, gp, gd, jr, j.Partner)
						if rem+ins >= bestGain {
							continue
						}
						seq := insertPairAt(s.scratch(2), w, gp, gd, jr, j.Partner)
						s.keep(2, seq)
						if r2 == r1 {
							if s.eval.feasible(r1, seq) {
								best = &move{op: OpShipmentRelocate, r1: r1, r2: -1, seq1: cloneInts(seq), d1: rem + ins}
								bestGain = rem + ins
							}
							continue
						}
						if restOK < 0 {
							rest = view{base: route1, skipA: i, skipB: k}.appendTo(nil)
							restOK = 0
							if s.eval.feasible(r1, rest) {
								restOK = 1
							}
						}
						if restOK == 1 && s.eval.feasible(r2, seq) {
							best = &move{op: OpShipmentRelocate, r1: r1, r2: r2, seq1: rest, seq2: cloneInts(seq), d1: rem, d2: ins}
							bestGain = rem + ins
						}
					}
				}
			}
		}
	}
	return best
}

// twoOpt reverses a segment of a route. Segments holding pinned jobs are
// never reversed.
func (s *search) twoOpt() *move {
	p := s.p
	var best *move
	var bestGain int64
	for r := range p.Vehicles {
		route := s.sol.routes[r]
		v := &p.Vehicles[r]
		for i := 0; i < len(route)-1; i++ {
			if p.Jobs[route[i]].IsPinned() {
				continue
			}
			for k := i + 1; k < len(route); k++ {
				if p.Jobs[route[k]].IsPinned() {
					break
				}
				seq := append(s.scratch(1), route...)
				for a, b := i, k; a < b; a, b = a+1, b-1 {
					seq[a], seq[b] = seq[b], seq[a]
				}
				s.keep(1, seq)
				d := s.cm.routeCost(v, seq) - s.sol.costs[r]
				if d >= bestGain {
					continue
				}
				if s.eval.feasible(r, seq) {
					best = &move{op: OpTwoOpt, r1: r, r2: -1, seq1: cloneInts(seq), d1: d}
					bestGain = d
				}
			}
		}
	}
	return best
}
