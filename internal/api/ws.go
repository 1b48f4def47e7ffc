package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"trading-backtestv1/internal/jobs"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
	wsBuffer     = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// stream pushes the job's snapshots until it reaches a terminal state, then
// closes the connection normally.
func (h *handler) stream(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	// subscribe before reading the current state so no transition is missed
	updates, cancel := h.opts.Jobs.Subscribe(wsBuffer)
	defer cancel()

	job, ok := h.opts.Jobs.Registry().Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	snap := job.Snapshot()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[api] ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	// reader only detects the peer going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(s jobs.Snapshot) bool {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(s) == nil
	}
	if !send(snap) {
		return
	}

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	last := snap
	for !last.Status.Terminal() {
		select {
		case s, ok := <-updates:
			if !ok {
				return
			}
			if s.ID != id || s.Progress < last.Progress && !s.Status.Terminal() {
				continue
			}
			if !send(s) {
				return
			}
			last = s
		case <-job.Done():
			// updates may have been dropped; the final state is authoritative
			final := job.Snapshot()
			if !send(final) {
				return
			}
			last = final
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}

	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(last.Status)))
}
