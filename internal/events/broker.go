// Package events fans solver progress out to watchers of a run.
package events

import "sync"

// Event types published for a run.
const (
	TypeSearchDone   = "search.done"
	TypeBestImproved = "best.improved"
	TypeRunDone      = "run.done"
	TypeRunFailed    = "run.failed"
)

// Event is one progress message of a run.
type Event struct {
	Type  string         `json:"type"`
	RunID string         `json:"runId"`
	Data  map[string]any `json:"data,omitempty"`
}

// Broker delivers events to the subscribers of a run.
type Broker interface {
	Subscribe(runID string) chan Event
	Unsubscribe(runID string, ch chan Event)
	Publish(runID string, evt Event)
}

// Memory is an in-process Broker.
type Memory struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

var _ Broker = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{subs: make(map[string]map[chan Event]struct{})}
}

func (b *Memory) Subscribe(runID string) chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[runID]
	if !ok {
		set = make(map[chan Event]struct{})
		b.subs[runID] = set
	}
	set[ch] = struct{}{}
	return ch
}

// Unsubscribe removes and closes ch. Unknown channels are ignored.
func (b *Memory) Unsubscribe(runID string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[runID]
	if !ok {
		return
	}
	if _, ok := set[ch]; !ok {
		return
	}
	delete(set, ch)
	close(ch)
	if len(set) == 0 {
		delete(b.subs, runID)
	}
}

// Publish never blocks: a subscriber whose buffer is full misses the event.
func (b *Memory) Publish(runID string, evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[runID] {
		select {
		case ch <- evt:
		default:
		}
	}
}
