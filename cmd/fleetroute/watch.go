package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/gorilla/websocket"

	"fleetroute/internal/events"
	"fleetroute/internal/store"
)

// watch starts a run on a fleetroute server and prints its events until the
// run finishes.
func watch(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("watch", os.Stderr)
	addr := fs.String("addr", "http://localhost:8080", "server base URL")
	tok := fs.String("token", os.Getenv("FLEETROUTE_TOKEN"), "bearer token")
	body := fs.String("request", "{}", "run request JSON")
	runID := fs.String("run", "", "watch an existing run instead of starting one")
	if err := fs.Parse(args); err != nil {
		return err
	}
	base, err := url.Parse(strings.TrimRight(*addr, "/"))
	if err != nil {
		return err
	}

	id := *runID
	if id == "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, base.String()+"/v1/runs", bytes.NewBufferString(*body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if *tok != "" {
			req.Header.Set("Authorization", "Bearer "+*tok)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusAccepted {
			msg, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("start run: %s: %s", resp.Status, bytes.TrimSpace(msg))
		}
		var run store.Run
		if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
			return err
		}
		id = run.ID
		fmt.Fprintf(stdout, "run %s started\n", id)
	}

	u := *base
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path += "/v1/runs/" + id + "/events"
	if *tok != "" {
		u.RawQuery = url.Values{"access_token": {*tok}}.Encode()
	}
	c, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = c.Close() }()
	go func() {
		<-ctx.Done()
		_ = c.Close()
	}()

	for {
		var evt events.Event
		if err := c.ReadJSON(&evt); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		data, _ := json.Marshal(evt.Data)
		fmt.Fprintf(stdout, "%-14s %s\n", evt.Type, data)
	}
}
