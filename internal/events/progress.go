package events

import (
	"sync"

	"golang.org/x/time/rate"

	"fleetroute/internal/opt"
)

// Progress publishes the progress of one run to a broker. best.improved
// events are throttled by the limiter and may be dropped; search.done and
// the final run.done or run.failed always go out. The final event is sent by
// Finish or Failed once the caller has recorded the run, so a watcher that
// finds the run still running is sure to receive it.
type Progress struct {
	broker  Broker
	runID   string
	limiter *rate.Limiter

	mu      sync.Mutex
	have    bool
	best    opt.SearchReport
	dropped int
	report  *opt.SolveReport
}

var _ opt.Observer = (*Progress)(nil)

// NewProgress allows perSecond best.improved events with the given burst.
// A non-positive perSecond disables throttling.
func NewProgress(b Broker, runID string, perSecond float64, burst int) *Progress {
	lim := rate.NewLimiter(rate.Inf, 0)
	if perSecond > 0 {
		lim = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
	return &Progress{broker: b, runID: runID, limiter: lim}
}

func improves(a, b opt.SearchReport) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if a.Unassigned != b.Unassigned {
		return a.Unassigned < b.Unassigned
	}
	return a.Cost < b.Cost
}

func searchData(r opt.SearchReport) map[string]any {
	return map[string]any{
		"search":     r.Index,
		"params":     r.Params.String(),
		"cost":       r.Cost,
		"unassigned": r.Unassigned,
		"priority":   r.Priority,
		"elapsedMs":  r.Elapsed.Milliseconds(),
		"rounds":     r.Stats.Rounds,
	}
}

func (p *Progress) SearchDone(r opt.SearchReport) {
	p.mu.Lock()
	better := !p.have || improves(r, p.best)
	if better {
		p.have, p.best = true, r
	}
	send := better && p.limiter.Allow()
	if better && !send {
		p.dropped++
	}
	p.mu.Unlock()

	p.broker.Publish(p.runID, Event{Type: TypeSearchDone, RunID: p.runID, Data: searchData(r)})
	if send {
		p.broker.Publish(p.runID, Event{Type: TypeBestImproved, RunID: p.runID, Data: searchData(r)})
	}
}

func (p *Progress) SolveDone(r opt.SolveReport) {
	p.mu.Lock()
	p.report = &r
	p.mu.Unlock()
}

// Report returns the solve report, or nil before the solve finished.
func (p *Progress) Report() *opt.SolveReport {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.report
}

// Finish publishes run.done with the solve report.
func (p *Progress) Finish() {
	p.mu.Lock()
	r, dropped := p.report, p.dropped
	p.mu.Unlock()
	data := map[string]any{"throttled": dropped}
	if r != nil {
		data["level"] = r.Level
		data["threads"] = r.Threads
		data["searches"] = r.Searches
		data["best"] = r.Best
		data["cost"] = r.Cost
		data["unassigned"] = r.Unassigned
		data["meanCost"] = r.MeanCost
		data["stdDevCost"] = r.StdDevCost
		data["solvingMs"] = r.Solving.Milliseconds()
	}
	p.broker.Publish(p.runID, Event{Type: TypeRunDone, RunID: p.runID, Data: data})
}

// Failed publishes run.failed carrying err.
func (p *Progress) Failed(err error) {
	p.broker.Publish(p.runID, Event{Type: TypeRunFailed, RunID: p.runID, Data: map[string]any{"error": err.Error()}})
}
