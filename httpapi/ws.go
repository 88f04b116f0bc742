package httpapi

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/evcharge/central/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is a same-origin (or operator-trusted) client; the wire
	// protocol itself carries no secrets, so a permissive origin check is
	// acceptable here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const wsWriteTimeout = 5 * time.Second

// dashboardWS upgrades the connection and streams every events.Event as a
// JSON line, additive to the polling /api/* surface. One subscription per
// connection; closing the socket or a failed write ends the feed. Events
// that arrive while the subscription buffer is full are skipped, not fatal.
func dashboardWS(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("httpapi: websocket upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		ch, unsubscribe := d.Bus.Subscribe(32)
		defer unsubscribe()

		// Drain (and discard) client reads so a closed/broken socket is
		// noticed promptly via a read error, per gorilla/websocket's
		// documented pattern for write-only connections.
		go func() {
			for {
				if _, _, err := conn.NextReader(); err != nil {
					conn.Close()
					return
				}
			}
		}()

		for ev := range ch {
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(wireEvent(ev)); err != nil {
				return
			}
		}
	}
}

type wsEvent struct {
	Type string         `json:"type"`
	CPID string         `json:"cp_id,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

func wireEvent(ev events.Event) wsEvent {
	return wsEvent{Type: ev.Type, CPID: ev.CPID, Data: ev.Data}
}
