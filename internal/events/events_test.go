package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fleetroute/internal/opt"
)

func recv(t *testing.T, ch chan Event) Event {
	t.Helper()
	select {
	case evt, ok := <-ch:
		require.True(t, ok, "channel closed")
		return evt
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
	return Event{}
}

func TestMemoryPublishSubscribe(t *testing.T) {
	b := NewMemory()
	ch := b.Subscribe("r1")
	other := b.Subscribe("r2")

	b.Publish("r1", Event{Type: "test.event", RunID: "r1", Data: map[string]any{"x": 1}})
	got := recv(t, ch)
	require.Equal(t, "test.event", got.Type)
	require.Equal(t, 1, got.Data["x"])
	require.Empty(t, other)

	b.Unsubscribe("r1", ch)
	_, ok := <-ch
	require.False(t, ok)
	// a second unsubscribe must not close twice
	b.Unsubscribe("r1", ch)
	b.Publish("r1", Event{Type: "after"})
}

func TestMemoryPublishDoesNotBlock(t *testing.T) {
	b := NewMemory()
	ch := b.Subscribe("r1")
	for i := 0; i < cap(ch)+5; i++ {
		b.Publish("r1", Event{Type: "flood"})
	}
	require.Len(t, ch, cap(ch))
}

func TestProgressThrottlesOnlyImprovements(t *testing.T) {
	b := NewMemory()
	ch := b.Subscribe("run")
	p := NewProgress(b, "run", 0.001, 1)

	p.SearchDone(opt.SearchReport{Index: 0, Cost: 900, Unassigned: 1})
	p.SearchDone(opt.SearchReport{Index: 1, Cost: 800, Unassigned: 0})
	p.SearchDone(opt.SearchReport{Index: 2, Cost: 950, Unassigned: 0})
	p.SolveDone(opt.SolveReport{Searches: 3, Best: 1, Cost: 800})
	require.Equal(t, 3, p.Report().Searches)
	p.Finish()

	var types []string
	for len(ch) > 0 {
		types = append(types, recv(t, ch).Type)
	}
	require.Equal(t, []string{
		TypeSearchDone, TypeBestImproved,
		TypeSearchDone,
		TypeSearchDone,
		TypeRunDone,
	}, types)

	p.Failed(errTest("boom"))
	evt := recv(t, ch)
	require.Equal(t, TypeRunFailed, evt.Type)
	require.Equal(t, "boom", evt.Data["error"])
}

func TestProgressUnthrottled(t *testing.T) {
	b := NewMemory()
	ch := b.Subscribe("run")
	p := NewProgress(b, "run", 0, 0)
	p.SearchDone(opt.SearchReport{Cost: 10, Priority: 1})
	p.SearchDone(opt.SearchReport{Cost: 50, Priority: 3})
	require.Nil(t, p.Report())
	p.Finish()

	var improved []any
	for len(ch) > 0 {
		if evt := recv(t, ch); evt.Type == TypeBestImproved {
			improved = append(improved, evt.Data["priority"])
		}
	}
	require.Equal(t, []any{int64(1), int64(3)}, improved)
}

type errTest string

func (e errTest) Error() string { return string(e) }
