package opt

import (
	"fleetroute/internal/model"
	"fleetroute/internal/problem"
)

func stepType(p *problem.Problem, r *stepRecord) string {
	switch r.typ {
	case model.StepStart:
		return model.StepTypeStart
	case model.StepEnd:
		return model.StepTypeEnd
	case model.StepBreak:
		return model.StepTypeBreak
	}
	switch p.Jobs[r.job].Kind {
	case model.JobPickup:
		return model.StepTypePickup
	case model.JobDelivery:
		return model.StepTypeDelivery
	}
	return model.StepTypeJob
}

func violations(v []model.ViolationEntry) []model.ViolationEntry {
	if v == nil {
		return []model.ViolationEntry{}
	}
	return v
}

func mergeViolations(dst []model.ViolationEntry, src []model.ViolationEntry) []model.ViolationEntry {
	for _, e := range src {
		found := false
		for i := range dst {
			if dst[i].Cause == e.Cause {
				dst[i].Duration += e.Duration
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, e)
		}
	}
	return dst
}

// renderRoute turns a timed route into its output form.
func renderRoute(p *problem.Problem, vr int, route []int, sc *schedule, cost int64) model.Route {
	v := &p.Vehicles[vr]
	out := model.Route{
		VehicleID:   v.ID,
		Cost:        p.Scale.UserCost(cost),
		Setup:       sc.setup,
		Service:     sc.service,
		Duration:    sc.travel,
		WaitingTime: sc.waiting,
		Distance:    sc.distance,
		Delivery:    p.ZeroAmount(),
		Pickup:      p.ZeroAmount(),
		Profile:     v.ProfileOrDefault(),
		Description: v.Description,
		Violations:  violations(sc.violations),
	}
	for _, jr := range route {
		j := &p.Jobs[jr]
		out.Priority += int64(j.Priority)
		switch j.Kind {
		case model.JobPickup:
			out.Pickup.AddInPlace(j.Amount)
		case model.JobDelivery:
			out.Delivery.AddInPlace(j.Amount)
		default:
			out.Delivery.AddInPlace(j.Delivery)
			out.Pickup.AddInPlace(j.Pickup)
		}
	}
	out.Steps = make([]model.Step, 0, len(sc.steps))
	for i := range sc.steps {
		r := &sc.steps[i]
		st := model.Step{
			Type:        stepType(p, r),
			Arrival:     r.arrival,
			Duration:    r.travel,
			Setup:       r.setup,
			Service:     r.service,
			WaitingTime: r.waiting,
			Distance:    r.distance,
			Load:        r.load,
			Violations:  violations(r.violations),
		}
		switch r.typ {
		case model.StepStart:
			if v.Start != nil {
				st.Location, st.LocationIndex = model.RenderLocation(*v.Start)
			}
		case model.StepEnd:
			if v.End != nil {
				st.Location, st.LocationIndex = model.RenderLocation(*v.End)
			}
		case model.StepBreak:
			b := &v.Slots[r.brk]
			id := b.ID
			st.ID = &id
			st.Description = b.Description
		default:
			j := &p.Jobs[r.job]
			id := j.ID
			st.ID = &id
			st.Description = j.Description
			st.Location, st.LocationIndex = model.RenderLocation(j.Location)
		}
		out.Steps = append(out.Steps, st)
	}
	return out
}

// render builds the solution for the given routes. Jobs in no route are
// listed as unassigned, in input order.
func render(p *problem.Problem, routes [][]int, scheds []*schedule, costs []int64) *model.Solution {
	sol := &model.Solution{
		Unassigned: []model.UnassignedJob{},
		Routes:     []model.Route{},
	}
	sum := &sol.Summary
	sum.Delivery, sum.Pickup = p.ZeroAmount(), p.ZeroAmount()
	sum.Violations = []model.ViolationEntry{}
	assigned := make([]bool, len(p.Jobs))
	var cost int64
	for vr, route := range routes {
		if len(route) == 0 {
			continue
		}
		for _, jr := range route {
			assigned[jr] = true
		}
		r := renderRoute(p, vr, route, scheds[vr], costs[vr])
		cost += costs[vr]
		sum.Setup += r.Setup
		sum.Service += r.Service
		sum.Duration += r.Duration
		sum.WaitingTime += r.WaitingTime
		sum.Priority += r.Priority
		sum.Distance += r.Distance
		sum.Delivery.AddInPlace(r.Delivery)
		sum.Pickup.AddInPlace(r.Pickup)
		sum.Violations = mergeViolations(sum.Violations, r.Violations)
		sol.Routes = append(sol.Routes, r)
	}
	// rounded once so per-route rounding does not add up
	sum.Cost = p.Scale.UserCost(cost)
	sum.Routes = len(sol.Routes)
	for jr := range p.Jobs {
		if assigned[jr] {
			continue
		}
		j := &p.Jobs[jr]
		u := model.UnassignedJob{ID: j.ID, Type: j.Kind.String(), Description: j.Description}
		u.Location, u.LocationIndex = model.RenderLocation(j.Location)
		sol.Unassigned = append(sol.Unassigned, u)
	}
	sum.Unassigned = len(sol.Unassigned)
	return sol
}
