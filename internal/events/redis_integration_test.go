//go:build redis_integration

package events

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestRedisRoundTrip(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set; skipping integration test")
	}
	log := logrus.New()
	log.SetOutput(io.Discard)
	b, err := NewRedis(context.Background(), url, log)
	require.NoError(t, err)
	defer b.Close()

	ch := b.Subscribe("it")
	// pub/sub registration is asynchronous on the server
	time.Sleep(100 * time.Millisecond)
	b.Publish("it", Event{Type: TypeRunDone, RunID: "it", Data: map[string]any{"cost": 1}})
	select {
	case evt := <-ch:
		require.Equal(t, TypeRunDone, evt.Type)
		require.Equal(t, float64(1), evt.Data["cost"])
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
	b.Unsubscribe("it", ch)
}
