// Package runner executes solver runs and records them.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"fleetroute/internal/config"
	"fleetroute/internal/events"
	"fleetroute/internal/metrics"
	"fleetroute/internal/model"
	"fleetroute/internal/opt"
	"fleetroute/internal/problem"
	"fleetroute/internal/store"
	"fleetroute/internal/synth"
)

// ErrBusy is returned by Start when every run slot is taken.
var ErrBusy = errors.New("runner: too many runs in progress")

// Request asks for one solve of a generated instance. Nil fields take the
// configured defaults.
type Request struct {
	Level     *int           `json:"level,omitempty"`
	Threads   *int           `json:"threads,omitempty"`
	Seed      *int64         `json:"seed,omitempty"`
	TimeoutMs *int64         `json:"timeoutMs,omitempty"`
	Synth     *synth.Options `json:"synth,omitempty"`
}

type Runner struct {
	store  store.Store
	broker events.Broker
	cfg    config.Config
	log    logrus.FieldLogger

	slots *semaphore.Weighted
	wg    sync.WaitGroup
	// base parents background runs so Shutdown can cancel them.
	base   context.Context
	cancel context.CancelFunc
}

func New(s store.Store, b events.Broker, cfg config.Config, log logrus.FieldLogger) *Runner {
	base, cancel := context.WithCancel(context.Background())
	return &Runner{
		store:  s,
		broker: b,
		cfg:    cfg,
		log:    log,
		slots:  semaphore.NewWeighted(int64(cfg.API.MaxConcurrentRuns)),
		base:   base,
		cancel: cancel,
	}
}

type plan struct {
	level, threads int
	seed           int64
	timeout        time.Duration
	synth          synth.Options
}

func (r *Runner) plan(req Request) (plan, error) {
	p := plan{
		level:   r.cfg.Solver.Level,
		threads: r.cfg.Solver.Threads,
		seed:    r.cfg.Solver.Seed,
		timeout: r.cfg.Solver.Timeout,
		synth:   r.cfg.Synth,
	}
	if req.Level != nil {
		p.level = *req.Level
	}
	if req.Threads != nil {
		p.threads = *req.Threads
	}
	if req.Seed != nil {
		p.seed = *req.Seed
	}
	if req.TimeoutMs != nil {
		p.timeout = time.Duration(*req.TimeoutMs) * time.Millisecond
	}
	if req.Synth != nil {
		p.synth = *req.Synth
	}
	if p.level < 0 || p.level > opt.MaxExplorationLevel {
		return plan{}, problem.Invalid("run", "exploration level %d outside [0, %d]", p.level, opt.MaxExplorationLevel)
	}
	if p.threads < 1 {
		return plan{}, problem.Invalid("run", "thread count must be positive, got %d", p.threads)
	}
	if p.timeout < 0 {
		return plan{}, problem.Invalid("run", "negative timeout")
	}
	if err := r.cfg.API.CheckInstance(p.synth); err != nil {
		return plan{}, problem.Invalid("run", "instance too large: %v", err)
	}
	return p, nil
}

func (r *Runner) record(p plan) store.Run {
	return store.Run{
		ID:        uuid.New().String(),
		Status:    store.StatusRunning,
		Source:    "synth",
		Level:     p.level,
		Threads:   p.threads,
		Seed:      p.seed,
		CreatedAt: time.Now().UTC(),
	}
}

// Run solves req synchronously and returns the finished record.
func (r *Runner) Run(ctx context.Context, req Request) (store.Run, error) {
	p, err := r.plan(req)
	if err != nil {
		return store.Run{}, err
	}
	run := r.record(p)
	if _, err := r.store.SaveRun(ctx, run); err != nil {
		return store.Run{}, fmt.Errorf("save run: %w", err)
	}
	return r.execute(ctx, run, p)
}

// Start records a running run and solves it in the background. Watchers
// follow it through the broker under the returned run id.
func (r *Runner) Start(ctx context.Context, req Request) (store.Run, error) {
	p, err := r.plan(req)
	if err != nil {
		return store.Run{}, err
	}
	if !r.slots.TryAcquire(1) {
		return store.Run{}, ErrBusy
	}
	run := r.record(p)
	if _, err := r.store.SaveRun(ctx, run); err != nil {
		r.slots.Release(1)
		return store.Run{}, fmt.Errorf("save run: %w", err)
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.slots.Release(1)
		_, _ = r.execute(r.base, run, p)
	}()
	return run, nil
}

// Shutdown cancels background runs and waits for them to be recorded.
func (r *Runner) Shutdown() {
	r.cancel()
	r.wg.Wait()
}

func (r *Runner) execute(ctx context.Context, run store.Run, p plan) (store.Run, error) {
	log := r.log.WithField("run_id", run.ID)
	progress := events.NewProgress(r.broker, run.ID, r.cfg.Events.Rate, r.cfg.Events.Burst)

	sol, report, err := r.solve(ctx, p, log, progress)
	done := time.Now().UTC()
	run.FinishedAt = &done
	if err != nil {
		run.Status, run.Error = store.StatusFailed, err.Error()
		log.WithError(err).Warn("[runner] run failed")
	} else {
		run.Status = store.StatusDone
		run.Cost, run.Unassigned = sol.Summary.Cost, sol.Summary.Unassigned
		run.Solution, run.Report = sol, report
		log.WithFields(logrus.Fields{"cost": run.Cost, "unassigned": run.Unassigned}).Info("[runner] run done")
	}
	// the run outlives a cancelled request context, so record it regardless
	if _, serr := r.store.SaveRun(context.WithoutCancel(ctx), run); serr != nil {
		log.WithError(serr).Error("[runner] save run")
		if err == nil {
			err = fmt.Errorf("save run: %w", serr)
		}
	}
	if err != nil {
		progress.Failed(err)
	} else {
		progress.Finish()
	}
	return run, err
}

func (r *Runner) solve(ctx context.Context, p plan, log logrus.FieldLogger, progress *events.Progress) (*model.Solution, *opt.SolveReport, error) {
	in, err := synth.Generate(p.synth)
	if err != nil {
		return nil, nil, &problem.Error{Kind: problem.KindInput, Op: "run", Err: err}
	}
	sol, err := opt.SolveContext(ctx, in, p.level, p.threads,
		opt.WithSeed(p.seed),
		opt.WithTimeout(p.timeout),
		opt.WithScale(r.cfg.Scale),
		opt.WithLogger(log),
		opt.WithObserver(metrics.Recorder{}),
		opt.WithObserver(progress),
	)
	if err != nil {
		return nil, nil, err
	}
	return sol, progress.Report(), nil
}
