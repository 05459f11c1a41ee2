// Package metrics holds the prometheus collectors of the solver service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"fleetroute/internal/buildinfo"
	"fleetroute/internal/opt"
)

var (
	// Registry is the dedicated Prometheus registry served on /metrics.
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status.
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds.
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// Solves counts finished solves by exploration level.
	Solves = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fleetroute_solves_total", Help: "Finished solves by exploration level."},
		[]string{"level"},
	)
	// SolveDuration tracks wall-clock solving time in seconds.
	SolveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "fleetroute_solve_duration_seconds", Help: "Solving time in seconds.", Buckets: []float64{.01, .05, .1, .5, 1, 2, 5, 10, 30, 60}},
		[]string{"level"},
	)
	// Searches counts finished searches by construction heuristic.
	Searches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fleetroute_searches_total", Help: "Finished searches by construction heuristic."},
		[]string{"heuristic"},
	)
	// Moves counts committed local search moves by operator.
	Moves = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fleetroute_moves_total", Help: "Committed local search moves by operator."},
		[]string{"operator"},
	)
	// Rounds counts ruin and recreate rounds by outcome.
	Rounds = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fleetroute_rounds_total", Help: "Ruin and recreate rounds by outcome."},
		[]string{"outcome"},
	)
	// BestCost is the cost of the last selected solution.
	BestCost = prometheus.NewGauge(prometheus.GaugeOpts{Name: "fleetroute_best_cost", Help: "Cost of the last selected solution."})
	// Unassigned is the number of unassigned tasks in the last selected solution.
	Unassigned = prometheus.NewGauge(prometheus.GaugeOpts{Name: "fleetroute_unassigned", Help: "Unassigned tasks in the last selected solution."})
	// CostSpread is the standard deviation of search costs in the last solve.
	CostSpread = prometheus.NewGauge(prometheus.GaugeOpts{Name: "fleetroute_search_cost_stddev", Help: "Standard deviation of search costs in the last solve."})

	// WebhookDeliveries counts webhook delivery outcomes by event type and status.
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds.
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "status"},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "fleetroute_build_info", Help: "Build information."},
		[]string{"version", "commit"},
	)
)

var regOnce sync.Once

// RegisterDefault registers all collectors on Registry once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests, HTTPDuration)
		Registry.MustRegister(Solves, SolveDuration, Searches, Moves, Rounds, BestCost, Unassigned, CostSpread)
		Registry.MustRegister(WebhookDeliveries, WebhookLatency)
		Registry.MustRegister(buildInfo)
		info := buildinfo.Get()
		buildInfo.WithLabelValues(info.Version, info.Commit).Set(1)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Recorder feeds solver progress into the collectors.
type Recorder struct{}

var _ opt.Observer = Recorder{}

func (Recorder) SearchDone(r opt.SearchReport) {
	Searches.WithLabelValues(r.Params.Heuristic.String()).Inc()
	for _, op := range opt.Operators {
		if n := r.Stats.MoveCount(op); n > 0 {
			Moves.WithLabelValues(op.String()).Add(float64(n))
		}
	}
	improved := r.Stats.Improvements
	worse := r.Stats.AcceptedWorse
	Rounds.WithLabelValues("improved").Add(float64(improved))
	Rounds.WithLabelValues("accepted_worse").Add(float64(worse))
	Rounds.WithLabelValues("other").Add(float64(max(0, r.Stats.Rounds-improved-worse)))
}

func (Recorder) SolveDone(r opt.SolveReport) {
	level := levelLabel(r.Level)
	Solves.WithLabelValues(level).Inc()
	SolveDuration.WithLabelValues(level).Observe(r.Solving.Seconds())
	BestCost.Set(float64(r.Cost))
	Unassigned.Set(float64(r.Unassigned))
	CostSpread.Set(r.StdDevCost)
}

func levelLabel(l int) string {
	if l < 0 || l > 9 {
		return "other"
	}
	return string(rune('0' + l))
}
