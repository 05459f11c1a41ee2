package runner

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"fleetroute/internal/config"
	"fleetroute/internal/events"
	"fleetroute/internal/problem"
	"fleetroute/internal/store"
	"fleetroute/internal/synth"
)

func newRunner(t *testing.T) (*Runner, *store.Memory, *events.Memory) {
	t.Helper()
	cfg := config.Default()
	cfg.Solver.Level, cfg.Solver.Threads = 1, 2
	cfg.Synth.Jobs, cfg.Synth.Shipments, cfg.Synth.Vehicles = 12, 2, 2
	cfg.API.MaxConcurrentRuns = 1
	cfg.Events.Rate = 0
	log := logrus.New()
	log.SetOutput(io.Discard)
	st, b := store.NewMemory(), events.NewMemory()
	r := New(st, b, cfg, log)
	t.Cleanup(r.Shutdown)
	return r, st, b
}

func TestRunRecordsSolution(t *testing.T) {
	r, st, _ := newRunner(t)
	seed := int64(7)
	run, err := r.Run(context.Background(), Request{Seed: &seed})
	require.NoError(t, err)
	require.Equal(t, store.StatusDone, run.Status)
	require.NotNil(t, run.Solution)
	require.NotNil(t, run.FinishedAt)
	require.Equal(t, run.Solution.Summary.Cost, run.Cost)
	require.Equal(t, 1, run.Level)
	require.Equal(t, 8, run.Report.Searches)

	got, err := st.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	require.Equal(t, store.StatusDone, got.Status)
	require.Equal(t, run.Cost, got.Cost)

	// same seed, same instance, same answer
	again, err := r.Run(context.Background(), Request{Seed: &seed})
	require.NoError(t, err)
	require.Equal(t, run.Cost, again.Cost)
	require.NotEqual(t, run.ID, again.ID)
}

func TestRunRejectsBadRequests(t *testing.T) {
	r, _, _ := newRunner(t)
	level, threads := 9, 0
	_, err := r.Run(context.Background(), Request{Level: &level})
	require.ErrorIs(t, err, problem.ErrInput)
	_, err = r.Run(context.Background(), Request{Threads: &threads})
	require.ErrorIs(t, err, problem.ErrInput)

	run, err := r.Run(context.Background(), Request{Synth: &synth.Options{}})
	require.ErrorIs(t, err, problem.ErrInput)
	require.Equal(t, store.StatusFailed, run.Status)
	require.NotEmpty(t, run.Error)
}

func TestRunRejectsOversizedInstances(t *testing.T) {
	r, st, _ := newRunner(t)
	for _, o := range []synth.Options{
		{Jobs: 1 << 22, Vehicles: 1},
		{Jobs: 1, Shipments: 1 << 40, Vehicles: 1},
		{Jobs: 1, Vehicles: r.cfg.API.MaxVehicles + 1},
	} {
		_, err := r.Start(context.Background(), Request{Synth: &o})
		require.ErrorIs(t, err, problem.ErrInput, "%+v", o)
		require.ErrorContains(t, err, "too large")
	}
	runs, _, err := st.ListRuns(context.Background(), "", 10)
	require.NoError(t, err)
	require.Empty(t, runs)

	// right at the cap is accepted
	o := synth.Options{Jobs: r.cfg.API.MaxTasks - 2, Shipments: 1, Vehicles: 1}
	_, err = r.plan(Request{Synth: &o})
	require.NoError(t, err)
}

// recordingBroker keeps every published event.
type recordingBroker struct {
	*events.Memory
	mu  sync.Mutex
	got []events.Event
}

func (b *recordingBroker) Publish(runID string, evt events.Event) {
	b.mu.Lock()
	b.got = append(b.got, evt)
	b.mu.Unlock()
	b.Memory.Publish(runID, evt)
}

func (b *recordingBroker) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, e := range b.got {
		out = append(out, e.Type)
	}
	return out
}

func TestStartRunsInBackground(t *testing.T) {
	r, st, _ := newRunner(t)
	b := &recordingBroker{Memory: events.NewMemory()}
	r.broker = b

	require.True(t, r.slots.TryAcquire(1))
	_, err := r.Start(context.Background(), Request{})
	require.ErrorIs(t, err, ErrBusy)
	r.slots.Release(1)

	run, err := r.Start(context.Background(), Request{})
	require.NoError(t, err)
	require.Equal(t, store.StatusRunning, run.Status)

	require.Eventually(t, func() bool {
		got, err := st.GetRun(context.Background(), run.ID)
		return err == nil && got.Status == store.StatusDone
	}, 20*time.Second, 10*time.Millisecond)
	r.Shutdown()

	types := b.types()
	require.Equal(t, events.TypeRunDone, types[len(types)-1])
	require.Contains(t, types, events.TypeBestImproved)
	done := 0
	for _, typ := range types {
		if typ == events.TypeSearchDone {
			done++
		}
	}
	require.Equal(t, 8, done)
}
