package opt

import (
	"fleetroute/internal/model"
	"fleetroute/internal/problem"
)

// stepRecord is one timed step of an evaluated route.
type stepRecord struct {
	typ        model.StepType
	job        int
	brk        int
	loc        int
	arrival    int64
	travel     int64
	distance   int64
	setup      int64
	service    int64
	waiting    int64
	load       model.Amount
	violations []model.ViolationEntry
}

// schedule is the full timing of one route. With collect set, evaluation
// continues past violations and records them all.
type schedule struct {
	collect    bool
	steps      []stepRecord
	travel     int64
	distance   int64
	setup      int64
	service    int64
	waiting    int64
	violations []model.ViolationEntry
}

func (s *schedule) addRouteViolation(e model.ViolationEntry) {
	for i, v := range s.violations {
		if v.Cause == e.Cause {
			s.violations[i].Duration += e.Duration
			return
		}
	}
	s.violations = append(s.violations, e)
}

// evaluator checks routes of one problem. It keeps scratch space and must
// not be shared between goroutines.
type evaluator struct {
	p     *problem.Problem
	load  model.Amount
	pos   []int
	epoch []uint32
	cur   uint32
	// openPickups tolerates pickups whose delivery is not in the route yet.
	openPickups bool
}

func newEvaluator(p *problem.Problem) *evaluator {
	return &evaluator{
		p:     p,
		load:  p.ZeroAmount(),
		pos:   make([]int, len(p.Jobs)),
		epoch: make([]uint32, len(p.Jobs)),
	}
}

// feasible reports whether vehicle vr can serve route as ordered.
func (e *evaluator) feasible(vr int, route []int) bool {
	return e.run(vr, route, nil) == ""
}

// violation returns the first broken constraint, or "".
func (e *evaluator) violation(vr int, route []int) model.Violation {
	return e.run(vr, route, nil)
}

// schedule times a route. Unless collect is set the route should be feasible.
func (e *evaluator) schedule(vr int, route []int, collect bool) *schedule {
	s := &schedule{collect: collect}
	e.run(vr, route, s)
	return s
}

func (e *evaluator) inRoute(jr int) (int, bool) {
	if e.epoch[jr] != e.cur {
		return 0, false
	}
	return e.pos[jr], true
}

// serviceStart returns the begin time for a task ready at arrival, and how
// late it is against its windows and forced bounds.
func serviceStart(tws model.TimeWindows, f model.ForcedService, arrival int64) (begin, late int64) {
	ready := arrival
	if f.After != nil && *f.After > ready {
		ready = *f.After
	}
	if f.At != nil && *f.At > ready {
		ready = *f.At
	}
	begin, ok := tws.Earliest(ready)
	if !ok {
		begin = ready
		late = ready - tws.LatestEnd()
	}
	if f.At != nil && begin > *f.At {
		late = max(late, begin-*f.At)
	}
	if f.Before != nil && begin > *f.Before {
		late = max(late, begin-*f.Before)
	}
	return begin, late
}

func setupAt(prev int, j *problem.Job) int64 {
	if prev == j.Loc {
		return 0
	}
	return j.Setup
}

// anchorGap is the gap index where a forced break must be taken, if its
// anchor is part of the route.
func (e *evaluator) anchorGap(b *problem.BreakSlot) (int, bool) {
	switch b.Anchor {
	case problem.AnchorFree:
		return 0, false
	case problem.AnchorStart:
		return 0, true
	}
	i, ok := e.inRoute(b.Anchor)
	return i + 1, ok
}

// takeBreak decides whether slot bi is taken in gap i, i.e. at prev before
// travelling to route[i] (or to the end when i == len(route)).
func (e *evaluator) takeBreak(v *problem.Vehicle, bi, i int, route []int, t int64, prev int) bool {
	if i == len(route) {
		return true
	}
	for k := bi; k < len(v.Slots); k++ {
		if g, ok := e.anchorGap(&v.Slots[k]); ok && g <= i {
			return true
		}
	}
	b := &v.Slots[bi]
	if _, ok := e.anchorGap(b); ok {
		return false
	}
	begin, late := serviceStart(b.TimeWindows, b.Forced, t)
	if late > 0 {
		return true
	}
	j := &e.p.Jobs[route[i]]
	travel := v.Duration(prev, j.Loc)
	next, _ := serviceStart(j.TimeWindows, j.Forced, t+travel)
	done := next + setupAt(prev, j) + j.Service
	if _, late := serviceStart(b.TimeWindows, b.Forced, done); late > 0 {
		return true
	}
	withBreak, _ := serviceStart(j.TimeWindows, j.Forced, begin+b.Service+travel)
	return withBreak <= next
}

// run evaluates route for vehicle vr and returns the first violation. When
// rec is set the timing is recorded, and with rec.collect every violation is
// recorded instead of stopping at the first.
func (e *evaluator) run(vr int, route []int, rec *schedule) model.Violation {
	p := e.p
	v := &p.Vehicles[vr]
	if len(route) == 0 {
		return ""
	}
	collect := rec != nil && rec.collect
	var first model.Violation
	// fail reports whether evaluation must stop.
	fail := func(kind model.Violation, d int64, onStep bool) bool {
		if first == "" {
			first = kind
		}
		if !collect {
			return true
		}
		entry := model.ViolationEntry{Cause: kind, Duration: d}
		if onStep && len(rec.steps) > 0 {
			last := &rec.steps[len(rec.steps)-1]
			last.violations = append(last.violations, entry)
		}
		rec.addRouteViolation(entry)
		return false
	}
	lateKind := model.ViolationTimeWindow
	if collect {
		lateKind = model.ViolationDelay
	}
	record := func(s stepRecord) {
		if rec != nil {
			s.load = e.load.Clone()
			rec.steps = append(rec.steps, s)
		}
	}

	e.cur++
	if e.cur == 0 {
		clear(e.epoch)
		e.cur = 1
	}
	for i, jr := range route {
		e.pos[jr] = i
		e.epoch[jr] = e.cur
	}

	if len(route) > v.MaxTasks && fail(model.ViolationMaxTasks, int64(len(route)-v.MaxTasks), false) {
		return first
	}

	load := e.load
	clear(load)
	for _, jr := range route {
		if j := &p.Jobs[jr]; !j.IsShipment() {
			load.AddInPlace(j.Delivery)
		}
	}

	t := v.TW.Start
	if f := v.ForcedStart; f.At != nil {
		t = *f.At
	} else if f.After != nil && *f.After > t {
		t = *f.After
	}
	// an open start has no step; the route begins at its first task
	if v.HasStart() {
		record(stepRecord{typ: model.StepStart, job: -1, brk: -1, loc: v.StartLoc, arrival: t})
	}
	if t < v.TW.Start && fail(model.ViolationLeadTime, v.TW.Start-t, true) {
		return first
	}
	if f := v.ForcedStart; f.Before != nil && t > *f.Before && fail(lateKind, t-*f.Before, true) {
		return first
	}
	if !load.LessOrEqual(v.Capacity) && fail(model.ViolationLoad, 0, true) {
		return first
	}

	prev := v.StartLoc
	var travel, dist, setupSum, service, waiting int64
	bi := 0
	for i := 0; i <= len(route); i++ {
		for bi < len(v.Slots) && e.takeBreak(v, bi, i, route, t, prev) {
			b := &v.Slots[bi]
			bi++
			begin, late := serviceStart(b.TimeWindows, b.Forced, t)
			if _, ok := b.TimeWindows.Earliest(t); !ok && b.Forced.IsZero() {
				if fail(model.ViolationMissingBreak, 0, false) {
					return first
				}
				continue
			}
			record(stepRecord{
				typ: model.StepBreak, job: -1, brk: bi - 1, loc: prev, arrival: t,
				travel: travel, distance: dist, service: b.Service, waiting: begin - t,
			})
			waiting += begin - t
			service += b.Service
			t = begin + b.Service
			if late > 0 && fail(lateKind, late, true) {
				return first
			}
			if b.MaxLoad != nil && !load.LessOrEqual(b.MaxLoad) && fail(model.ViolationLoad, 0, true) {
				return first
			}
		}
		if i == len(route) {
			break
		}

		jr := route[i]
		j := &p.Jobs[jr]
		d := v.Duration(prev, j.Loc)
		travel += d
		dist += v.Distance(prev, j.Loc)
		arrival := t + d
		setup := setupAt(prev, j)
		begin, late := serviceStart(j.TimeWindows, j.Forced, arrival)
		switch j.Kind {
		case model.JobPickup:
			load.AddInPlace(j.Amount)
		case model.JobDelivery:
			load.SubInPlace(j.Amount)
		default:
			load.SubInPlace(j.Delivery)
			load.AddInPlace(j.Pickup)
		}
		record(stepRecord{
			typ: model.StepJob, job: jr, brk: -1, loc: j.Loc, arrival: arrival,
			travel: travel, distance: dist, setup: setup, service: j.Service, waiting: begin - arrival,
		})
		waiting += begin - arrival
		setupSum += setup
		service += j.Service
		t = begin + setup + j.Service
		prev = j.Loc

		if late > 0 && fail(lateKind, late, true) {
			return first
		}
		if !load.LessOrEqual(v.Capacity) && fail(model.ViolationLoad, 0, true) {
			return first
		}
		if !j.Skills.SubsetOf(v.Skills) && fail(model.ViolationSkills, 0, true) {
			return first
		}
		if j.IsShipment() {
			var bad bool
			switch other, ok := e.inRoute(j.Partner); {
			case !ok:
				bad = !e.openPickups || j.Kind != model.JobPickup
			case j.Kind == model.JobPickup:
				bad = other < i
			default:
				bad = other > i
			}
			if bad && fail(model.ViolationPrecedence, 0, true) {
				return first
			}
		}
	}

	d := v.Duration(prev, v.EndLoc)
	travel += d
	dist += v.Distance(prev, v.EndLoc)
	arrival := t + d
	end := arrival
	f := v.ForcedEnd
	if f.After != nil && *f.After > end {
		end = *f.After
	}
	if f.At != nil && *f.At > end {
		end = *f.At
	}
	var late int64
	if end > v.TW.End {
		late = end - v.TW.End
	}
	if f.At != nil && end > *f.At {
		late = max(late, end-*f.At)
	}
	if f.Before != nil && end > *f.Before {
		late = max(late, end-*f.Before)
	}
	if v.HasEnd() {
		record(stepRecord{
			typ: model.StepEnd, job: -1, brk: -1, loc: v.EndLoc, arrival: end,
			travel: travel, distance: dist, waiting: end - arrival,
		})
		waiting += end - arrival
	}
	if late > 0 && fail(lateKind, late, v.HasEnd()) {
		return first
	}
	if travel > v.MaxTravel && fail(model.ViolationMaxTravelTime, travel-v.MaxTravel, false) {
		return first
	}
	if dist > v.MaxDist && fail(model.ViolationMaxDistance, dist-v.MaxDist, false) {
		return first
	}
	if rec != nil {
		rec.travel, rec.distance = travel, dist
		rec.setup, rec.service, rec.waiting = setupSum, service, waiting
	}
	return first
}
