// Package webhooks posts the outcome of runs to an HTTP endpoint.
package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"fleetroute/internal/events"
	"fleetroute/internal/metrics"
)

type delivery struct {
	id        string
	eventType string
	payload   []byte
}

// Notifier delivers run.done and run.failed events, signed with the shared
// secret, retrying with exponential backoff up to MaxAttempts.
type Notifier struct {
	URL         string
	Secret      string
	HTTP        *http.Client
	MaxAttempts int
	Log         logrus.FieldLogger

	backoff func(attempt int) time.Duration
	queue   chan delivery
	wg      sync.WaitGroup
}

func NewNotifier(url, secret string, maxAttempts int, log logrus.FieldLogger) *Notifier {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Notifier{
		URL:         url,
		Secret:      secret,
		HTTP:        &http.Client{Timeout: 5 * time.Second},
		MaxAttempts: maxAttempts,
		Log:         log,
		backoff:     nextBackoff,
		queue:       make(chan delivery, 64),
	}
}

// Start runs the delivery worker until ctx is done or Close is called.
func (n *Notifier) Start(ctx context.Context) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-n.queue:
				if !ok {
					return
				}
				n.deliver(ctx, d)
			}
		}
	}()
}

// Close stops accepting events and waits for queued deliveries.
func (n *Notifier) Close() error {
	close(n.queue)
	n.wg.Wait()
	return nil
}

// Notify queues evt when it ends a run. A full queue drops the event.
func (n *Notifier) Notify(evt events.Event) {
	if evt.Type != events.TypeRunDone && evt.Type != events.TypeRunFailed {
		return
	}
	d := delivery{id: "evt_" + uuid.New().String(), eventType: evt.Type}
	body, err := json.Marshal(map[string]any{
		"id":    d.id,
		"type":  evt.Type,
		"runId": evt.RunID,
		"ts":    time.Now().UTC().Format(time.RFC3339),
		"data":  evt.Data,
	})
	if err != nil {
		n.Log.WithError(err).Warn("[webhooks] encode")
		return
	}
	d.payload = body
	select {
	case n.queue <- d:
	default:
		metrics.WebhookDeliveries.WithLabelValues(evt.Type, "dropped").Inc()
		n.Log.WithField("run_id", evt.RunID).Warn("[webhooks] queue full, dropping")
	}
}

func (n *Notifier) deliver(ctx context.Context, d delivery) {
	log := n.Log.WithFields(logrus.Fields{"delivery": d.id, "event_type": d.eventType})
	for attempt := 0; attempt < n.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(n.backoff(attempt - 1)):
			}
		}
		code, err := n.post(ctx, d)
		if err == nil {
			return
		}
		log.WithError(err).WithFields(logrus.Fields{"attempt": attempt + 1, "code": code}).Warn("[webhooks] delivery failed")
	}
	metrics.WebhookDeliveries.WithLabelValues(d.eventType, "dead").Inc()
}

func (n *Notifier) post(ctx context.Context, d delivery) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(d.payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", d.eventType)
	req.Header.Set("X-Delivery-Id", d.id)
	if n.Secret != "" {
		req.Header.Set("X-Signature", Sign(n.Secret, d.payload))
	}
	start := time.Now()
	resp, err := n.HTTP.Do(req)
	latency := float64(time.Since(start).Milliseconds())
	if err != nil {
		metrics.WebhookDeliveries.WithLabelValues(d.eventType, "error").Inc()
		metrics.WebhookLatency.WithLabelValues(d.eventType, "error").Observe(latency)
		return 0, err
	}
	_ = resp.Body.Close()
	status := strconv.Itoa(resp.StatusCode)
	metrics.WebhookDeliveries.WithLabelValues(d.eventType, status).Inc()
	metrics.WebhookLatency.WithLabelValues(d.eventType, status).Observe(latency)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}

// broker forwards every event to the wrapped broker and final ones to the
// notifier.
type broker struct {
	events.Broker
	n *Notifier
}

// Wrap returns a broker that also notifies the webhook of finished runs.
func (n *Notifier) Wrap(b events.Broker) events.Broker {
	return broker{Broker: b, n: n}
}

func (b broker) Publish(runID string, evt events.Event) {
	b.Broker.Publish(runID, evt)
	b.n.Notify(evt)
}
