package opt

import (
	"context"
	"math/rand"

	"github.com/sirupsen/logrus"

	"fleetroute/internal/model"
	"fleetroute/internal/problem"
)

// solution is the mutable state of one search: a job sequence per vehicle
// rank and the running internal cost of each route.
type solution struct {
	routes    [][]int
	costs     []int64
	vehicleOf []int
	excluded  []bool
}

func newSolution(p *problem.Problem) *solution {
	s := &solution{
		routes:    make([][]int, len(p.Vehicles)),
		costs:     make([]int64, len(p.Vehicles)),
		vehicleOf: make([]int, len(p.Jobs)),
		excluded:  make([]bool, len(p.Jobs)),
	}
	for i := range s.vehicleOf {
		s.vehicleOf[i] = -1
	}
	return s
}

func (s *solution) clone() *solution {
	out := &solution{
		routes:    make([][]int, len(s.routes)),
		costs:     append([]int64(nil), s.costs...),
		vehicleOf: append([]int(nil), s.vehicleOf...),
		excluded:  append([]bool(nil), s.excluded...),
	}
	for i, r := range s.routes {
		out.routes[i] = append([]int(nil), r...)
	}
	return out
}

func (s *solution) cost() int64 {
	var total int64
	for _, c := range s.costs {
		total += c
	}
	return total
}

// objective orders solutions: assigned priority first, then assigned task
// count, then cost.
type objective struct {
	priority int64
	assigned int
	cost     int64
}

func (a objective) better(b objective) bool {
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	if a.assigned != b.assigned {
		return a.assigned > b.assigned
	}
	return a.cost < b.cost
}

func (s *solution) objective(p *problem.Problem) objective {
	var o objective
	for jr, vr := range s.vehicleOf {
		if vr >= 0 {
			o.assigned++
			o.priority += int64(p.Jobs[jr].Priority)
		}
	}
	o.cost = s.cost()
	return o
}

// move replaces the sequences of one or two routes. d1 and d2 are the
// internal cost changes of r1 and r2.
type move struct {
	op   Operator
	r1   int
	r2   int
	seq1 []int
	seq2 []int
	d1   int64
	d2   int64
}

func (m *move) gain() int64 { return m.d1 + m.d2 }

// search is one independent construction + local search run. It owns its
// solution, evaluator and random stream.
type search struct {
	p       *problem.Problem
	index   int
	params  Params
	rng     *rand.Rand
	eval    *evaluator
	cm      costModel
	sol     *solution
	log     logrus.FieldLogger
	ctx     context.Context
	stats   SearchStats
	version []int
	buf     [4][]int
}

func newSearch(ctx context.Context, p *problem.Problem, index int, params Params, rng *rand.Rand, log logrus.FieldLogger) *search {
	return &search{
		p:       p,
		index:   index,
		params:  params,
		rng:     rng,
		eval:    newEvaluator(p),
		cm:      costModel{p: p},
		sol:     newSolution(p),
		log:     log,
		ctx:     ctx,
		version: make([]int, len(p.Vehicles)),
	}
}

// expired reports whether the solve deadline passed or the solve was
// cancelled. The current best solution is kept either way.
func (s *search) expired() bool { return s.ctx.Err() != nil }

// scratch returns an empty reusable buffer.
func (s *search) scratch(i int) []int { return s.buf[i][:0] }

// keep stores a grown scratch buffer for reuse.
func (s *search) keep(i int, b []int) { s.buf[i] = b[:0] }

// commit applies m and checks both running costs against a full recompute.
func (s *search) commit(m *move) error {
	routes := []int{m.r1}
	if m.r2 >= 0 && m.r2 != m.r1 {
		routes = append(routes, m.r2)
	}
	for _, r := range routes {
		for _, jr := range s.sol.routes[r] {
			s.sol.vehicleOf[jr] = -1
		}
	}
	s.sol.routes[m.r1] = m.seq1
	s.sol.costs[m.r1] += m.d1
	if len(routes) == 2 {
		s.sol.routes[m.r2] = m.seq2
		s.sol.costs[m.r2] += m.d2
	}
	for _, r := range routes {
		s.version[r]++
		for _, jr := range s.sol.routes[r] {
			s.sol.vehicleOf[jr] = r
		}
	}
	s.stats.Moves[m.op]++
	for _, r := range routes {
		if err := s.verify(m.op, r); err != nil {
			return err
		}
	}
	return nil
}

func (s *search) verify(op Operator, r int) error {
	v := &s.p.Vehicles[r]
	want := s.cm.routeCost(v, s.sol.routes[r])
	if got := s.sol.costs[r]; got != want {
		return problem.Internal("search", "%s left vehicle %d at running cost %d, recomputed %d", op, v.ID, got, want)
	}
	return nil
}

// pending lists unassigned jobs that may still be inserted, shipments by
// their pickup only.
func (s *search) pending() []int {
	var out []int
	for jr, vr := range s.sol.vehicleOf {
		j := &s.p.Jobs[jr]
		if vr >= 0 || s.sol.excluded[jr] || j.IsPinned() {
			continue
		}
		if j.IsShipment() && j.Kind != model.JobPickup {
			continue
		}
		out = append(out, jr)
	}
	return out
}

// tasks is the number of route steps a job brings: two for a shipment.
func (s *search) tasks(jr int) int {
	if s.p.Jobs[jr].IsShipment() {
		return 2
	}
	return 1
}
