package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"fleetroute/internal/auth"
	"fleetroute/internal/events"
	"fleetroute/internal/store"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 20 * time.Second
	wsWriteWait  = 5 * time.Second
)

// RunEventsHandler streams the progress events of a run over a websocket
// and closes the stream after run.done or run.failed. A finished run gets
// its final event from the store.
func (s *Server) RunEventsHandler(w http.ResponseWriter, r *http.Request) {
	if !s.require(w, r, auth.RoleViewer) {
		return
	}
	id := r.PathValue("id")
	// subscribe before reading the status so the final event cannot slip by
	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)
	run, err := s.Store.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()
	log := s.Log.WithField("run_id", id)

	// reader: answers control frames and notices the client leaving
	gone := make(chan struct{})
	conn.SetReadLimit(1 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(wsPongWait)) })
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	write := func(evt events.Event) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(evt)
	}
	closeWith := func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"), time.Now().Add(wsWriteWait))
	}

	if run.Status != store.StatusRunning {
		_ = write(finalEvent(run))
		closeWith()
		return
	}

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := write(evt); err != nil {
				log.WithError(err).Debug("[api] event stream write")
				return
			}
			if evt.Type == events.TypeRunDone || evt.Type == events.TypeRunFailed {
				closeWith()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func finalEvent(run store.Run) events.Event {
	if run.Status == store.StatusFailed {
		return events.Event{Type: events.TypeRunFailed, RunID: run.ID, Data: map[string]any{"error": run.Error}}
	}
	return events.Event{Type: events.TypeRunDone, RunID: run.ID, Data: map[string]any{
		"cost":       run.Cost,
		"unassigned": run.Unassigned,
	}}
}
