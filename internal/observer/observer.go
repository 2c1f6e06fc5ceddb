// Package observer mirrors outbound wire traffic to any attached
// developer tool over a websocket, for field diagnostics — a
// supplemented feature beyond spec.md's serial-only external interface
// (see SPEC_FULL.md "Domain Stack"). It never originates a mutation: it
// only ever relays bytes the engine already decided to send.
package observer

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// envelope mirrors the teacher's internal/web/ws.go messageEnvelope
// shape, generalized from AllStar node state to a raw wire frame.
type envelope struct {
	MessageType string `json:"messageType"`
	SessionID   string `json:"sessionId"`
	Frame       string `json:"frame"` // the raw outbound payload, as text
	Timestamp   int64  `json:"timestamp"`
}

// Hub manages observer websocket clients and broadcasts every mirrored
// frame to all of them.
type Hub struct {
	mu        sync.RWMutex
	clients   map[*websocket.Conn]struct{}
	sessionID string
}

// NewHub creates a Hub and stamps it with a fresh boot-session id, so a
// developer watching across a watchdog reset can tell reboots apart.
func NewHub() *Hub {
	return &Hub{clients: map[*websocket.Conn]struct{}{}, sessionID: uuid.NewString()}
}

// SessionID returns this boot cycle's correlation id.
func (h *Hub) SessionID() string { return h.sessionID }

// HandleWS upgrades and registers a client.
func (h *Hub) HandleWS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		h.mu.Lock()
		h.clients[conn] = struct{}{}
		h.mu.Unlock()

		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			conn.Close(websocket.StatusNormalClosure, "")
		}()

		ctx := r.Context()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}
}

// Mirror relays one outbound payload to every connected client. Wired
// as serial.Link.OnSend so the engine calls it synchronously on the hot
// path. Each client write is bounded by a 500ms timeout; a frame that
// cannot be written in time is lost for that client, which stays
// registered.
func (h *Hub) Mirror(payload []byte) {
	env := envelope{
		MessageType: "wire.outbound",
		SessionID:   h.sessionID,
		Frame:       string(payload),
		Timestamp:   time.Now().UnixMilli(),
	}
	body, err := json.Marshal(env)
	if err != nil {
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		if err := c.Write(ctx, websocket.MessageText, body); err != nil {
			log.Printf("observer: dropping frame for slow client: %v", err)
		}
		cancel()
	}
}
