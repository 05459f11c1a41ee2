package opt

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"fleetroute/internal/model"
	"fleetroute/internal/problem"
)

// Check evaluates the forced steps of every vehicle as given, without
// optimising, and reports each broken constraint on its step, its route
// and the summary. Jobs no vehicle is forced to serve are unassigned.
func Check(in *problem.Input, threads int, opts ...Option) (*model.Solution, error) {
	o := newOptions(opts)
	if threads < 1 {
		return nil, problem.Invalid("check", "thread count must be positive, got %d", threads)
	}
	loadStart := time.Now()
	p, err := in.Compile(o.scale)
	if err != nil {
		return nil, fmt.Errorf("check: %w", err)
	}
	loading := time.Since(loadStart)

	start := time.Now()
	routes := make([][]int, len(p.Vehicles))
	scheds := make([]*schedule, len(p.Vehicles))
	costs := make([]int64, len(p.Vehicles))
	cm := costModel{p: p}
	var g errgroup.Group
	g.SetLimit(threads)
	for vr := range p.Vehicles {
		if len(p.Vehicles[vr].Forced) == 0 {
			continue
		}
		g.Go(func() error {
			route := p.Vehicles[vr].Forced
			routes[vr] = route
			scheds[vr] = newEvaluator(p).schedule(vr, route, true)
			costs[vr] = cm.routeCost(&p.Vehicles[vr], route)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("check: %w", err)
	}
	sol := render(p, routes, scheds, costs)
	sol.SetComputingTimes(loading, time.Since(start))
	o.log.WithFields(logrus.Fields{
		"routes":     sol.Summary.Routes,
		"violations": len(sol.Summary.Violations),
	}).Info("[opt] check done")
	return sol, nil
}
