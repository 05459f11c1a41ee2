package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Redis is a Broker over Redis pub/sub, for several service replicas
// sharing one run stream.
type Redis struct {
	client *redis.Client
	log    logrus.FieldLogger

	mu   sync.Mutex
	subs map[chan Event]*redis.PubSub
}

var _ Broker = (*Redis)(nil)

// NewRedis connects to the Redis server at url (redis://...) and pings it.
func NewRedis(ctx context.Context, url string, log logrus.FieldLogger) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opt)
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.Ping(pctx).Err(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return &Redis{client: c, log: log, subs: make(map[chan Event]*redis.PubSub)}, nil
}

func channel(runID string) string { return "run:" + runID }

func (b *Redis) Subscribe(runID string) chan Event {
	ps := b.client.Subscribe(context.Background(), channel(runID))
	// wait for the confirmation so nothing published after Subscribe returns is missed
	rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if _, err := ps.Receive(rctx); err != nil {
		b.log.WithError(err).WithField("run_id", runID).Warn("[events] subscribe")
	}
	cancel()
	out := make(chan Event, 16)
	b.mu.Lock()
	b.subs[out] = ps
	b.mu.Unlock()
	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			var evt Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				b.log.WithError(err).WithField("run_id", runID).Warn("[events] dropping malformed message")
				continue
			}
			select {
			case out <- evt:
			default:
			}
		}
	}()
	return out
}

// Unsubscribe closes the pub/sub connection behind ch; ch is closed once
// its reader goroutine drains.
func (b *Redis) Unsubscribe(_ string, ch chan Event) {
	b.mu.Lock()
	ps, ok := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()
	if ok {
		_ = ps.Close()
	}
}

func (b *Redis) Publish(runID string, evt Event) {
	body, err := json.Marshal(evt)
	if err != nil {
		b.log.WithError(err).Warn("[events] encode")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.client.Publish(ctx, channel(runID), body).Err(); err != nil {
		b.log.WithError(err).WithField("run_id", runID).Warn("[events] publish")
	}
}

// Close releases every subscription and the client.
func (b *Redis) Close() error {
	b.mu.Lock()
	for ch, ps := range b.subs {
		_ = ps.Close()
		delete(b.subs, ch)
	}
	b.mu.Unlock()
	return b.client.Close()
}
