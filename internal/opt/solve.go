package opt

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"fleetroute/internal/model"
	"fleetroute/internal/problem"
)

// SearchReport describes one finished search.
type SearchReport struct {
	Index      int
	Params     Params
	Seed       int64
	Cost       int64
	Unassigned int
	Priority   int64
	Elapsed    time.Duration
	Stats      SearchStats
}

// SolveReport describes a finished solve.
type SolveReport struct {
	Level      int
	Threads    int
	Searches   int
	Best       int
	Cost       int64
	Unassigned int
	// MeanCost and StdDevCost are taken over the costs of all searches.
	MeanCost   float64
	StdDevCost float64
	Loading    time.Duration
	Solving    time.Duration
}

// Observer is told about search and solve progress. SearchDone is called
// from worker goroutines, so implementations must be safe for concurrent use.
type Observer interface {
	SearchDone(SearchReport)
	SolveDone(SolveReport)
}

type options struct {
	seed      int64
	timeout   time.Duration
	log       logrus.FieldLogger
	scale     problem.Scale
	observers []Observer
}

// Option configures Solve and Check.
type Option func(*options)

// WithSeed sets the base seed of every search stream. Zero selects the
// default seed, so results are reproducible unless a seed is given.
func WithSeed(seed int64) Option { return func(o *options) { o.seed = seed } }

// WithTimeout bounds the solving time. When it elapses every search stops
// and the best solution found so far is returned.
func WithTimeout(d time.Duration) Option { return func(o *options) { o.timeout = d } }

func WithLogger(l logrus.FieldLogger) Option { return func(o *options) { o.log = l } }

// WithScale overrides the conversion between user and internal cost units.
func WithScale(s problem.Scale) Option { return func(o *options) { o.scale = s } }

// WithObserver adds an observer. Metrics and progress publishers hook in here.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observers = append(o.observers, obs) }
}

func newOptions(opts []Option) *options {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	o := &options{log: discard, scale: problem.DefaultScale()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type searchResult struct {
	sol    *solution
	obj    objective
	report SearchReport
}

// Solve compiles the input and runs the searches of the given exploration
// level on up to threads workers. Input errors are returned before any
// search starts. Jobs that fit nowhere are reported as unassigned.
func Solve(in *problem.Input, level, threads int, opts ...Option) (*model.Solution, error) {
	return SolveContext(context.Background(), in, level, threads, opts...)
}

// SolveContext is Solve with a context. Cancelling ctx stops the searches
// early; the best solution found so far is still returned.
func SolveContext(ctx context.Context, in *problem.Input, level, threads int, opts ...Option) (*model.Solution, error) {
	o := newOptions(opts)
	if level < 0 || level > MaxExplorationLevel {
		return nil, problem.Invalid("solve", "exploration level %d outside [0, %d]", level, MaxExplorationLevel)
	}
	if threads < 1 {
		return nil, problem.Invalid("solve", "thread count must be positive, got %d", threads)
	}

	loadStart := time.Now()
	p, err := in.Compile(o.scale)
	if err != nil {
		return nil, fmt.Errorf("solve: %w", err)
	}
	loading := time.Since(loadStart)

	solveStart := time.Now()
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	params := searchesFor(level)
	results := make([]*searchResult, len(params))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(threads)
	for i, prm := range params {
		g.Go(func() error {
			r, err := runSearch(gctx, p, i, prm, o)
			if err != nil {
				return fmt.Errorf("search %d (%s): %w", i, prm, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		o.log.WithError(err).Error("[opt] solve aborted")
		return nil, fmt.Errorf("solve: %w", err)
	}

	best := 0
	costs := make([]float64, len(results))
	for i, r := range results {
		costs[i] = float64(r.report.Cost)
		if r.obj.better(results[best].obj) {
			best = i
		}
	}
	win := results[best].sol
	eval := newEvaluator(p)
	scheds := make([]*schedule, len(p.Vehicles))
	for vr, route := range win.routes {
		if len(route) > 0 {
			scheds[vr] = eval.schedule(vr, route, false)
		}
	}
	sol := render(p, win.routes, scheds, win.costs)
	solving := time.Since(solveStart)
	sol.SetComputingTimes(loading, solving)

	rep := SolveReport{
		Level:      level,
		Threads:    threads,
		Searches:   len(results),
		Best:       best,
		Cost:       sol.Summary.Cost,
		Unassigned: sol.Summary.Unassigned,
		Loading:    loading,
		Solving:    solving,
	}
	rep.MeanCost, rep.StdDevCost = stat.MeanStdDev(costs, nil)
	if math.IsNaN(rep.StdDevCost) {
		rep.StdDevCost = 0
	}
	o.log.WithFields(logrus.Fields{
		"searches":   rep.Searches,
		"best":       best,
		"cost":       rep.Cost,
		"unassigned": rep.Unassigned,
		"mean_cost":  rep.MeanCost,
	}).Infof("[opt] solved in %s", solving)
	for _, obs := range o.observers {
		obs.SolveDone(rep)
	}
	return sol, nil
}

func runSearch(ctx context.Context, p *problem.Problem, index int, params Params, o *options) (*searchResult, error) {
	start := time.Now()
	log := o.log.WithFields(logrus.Fields{"search": index, "params": params.String()})
	s := newSearch(ctx, p, index, params, searchRNG(o.seed, index), log)
	sol, err := s.run()
	if err != nil {
		return nil, err
	}
	obj := sol.objective(p)
	rep := SearchReport{
		Index:      index,
		Params:     params,
		Seed:       deriveSeed(o.seed, uint64(index)),
		Cost:       p.Scale.UserCost(obj.cost),
		Unassigned: len(p.Jobs) - obj.assigned,
		Priority:   obj.priority,
		Elapsed:    time.Since(start),
		Stats:      s.stats,
	}
	log.WithFields(logrus.Fields{"cost": rep.Cost, "unassigned": rep.Unassigned, "rounds": s.stats.Rounds}).
		Debug("[opt] search done")
	for _, obs := range o.observers {
		obs.SearchDone(rep)
	}
	return &searchResult{sol: sol, obj: obj, report: rep}, nil
}
