package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

const broadcastTimeout = 10 * time.Second

// Hub tracks live-reload websocket clients and broadcasts reload
// notifications to all of them.
type Hub struct {
	mu      sync.Mutex
	clients map[string]*websocket.Conn
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]*websocket.Conn)}
}

// ServeHTTP upgrades the request to a websocket and parks it until the
// client disconnects. The client never sends meaningful data; the read
// loop only exists to observe the close.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Preview runs on an ephemeral localhost port, so the page
		// origin never matches a fixed allowlist.
		InsecureSkipVerify: true,
	})
	if err != nil {
		slog.Debug("Websocket upgrade failed", "error", err)
		return
	}

	id := uuid.NewString()
	h.add(id, conn)
	reloadClients.Inc()
	slog.Debug("Reload client connected", "client", id, "total", h.Count())

	defer func() {
		h.remove(id)
		reloadClients.Dec()
		conn.Close(websocket.StatusNormalClosure, "")
		slog.Debug("Reload client disconnected", "client", id)
	}()

	ctx := r.Context()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

// Broadcast sends "reload" to every connected client, dropping clients
// whose writes fail.
func (h *Hub) Broadcast(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, broadcastTimeout)
	defer cancel()

	h.mu.Lock()
	conns := make(map[string]*websocket.Conn, len(h.clients))
	for id, conn := range h.clients {
		conns[id] = conn
	}
	h.mu.Unlock()

	for id, conn := range conns {
		if err := conn.Write(ctx, websocket.MessageText, []byte("reload")); err != nil {
			slog.Debug("Reload send failed, dropping client", "client", id, "error", err)
			h.remove(id)
			conn.Close(websocket.StatusGoingAway, "write failed")
		}
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) add(id string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[id] = conn
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, id)
}
