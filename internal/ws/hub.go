// Package ws streams session state to websocket subscribers and feeds
// frames received over the same socket back into the session.
package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/facegate/internal/domain"
)

type Hub struct {
	clients   map[*Client]bool
	sessions  map[uuid.UUID]map[*Client]bool
	broadcast chan Event
	stopped   bool
	mu        sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*Client]bool),
		sessions:  make(map[uuid.UUID]map[*Client]bool),
		broadcast: make(chan Event, 256),
	}
}

// Run dispatches events until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case event := <-h.broadcast:
			h.broadcastToSession(event)
		}
	}
}

// Register subscribes client to its session. It reports false once the hub
// has stopped; the client is then never served.
func (h *Hub) Register(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return false
	}

	h.clients[client] = true

	if h.sessions[client.sessionID] == nil {
		h.sessions[client.sessionID] = make(map[*Client]bool)
	}
	h.sessions[client.sessionID][client] = true
	return true
}

// Unregister drops client and closes its send channel. Safe to call more
// than once and after the hub has stopped.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.dropLocked(client)
}

func (h *Hub) dropLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}

	delete(h.clients, client)
	delete(h.sessions[client.sessionID], client)

	if len(h.sessions[client.sessionID]) == 0 {
		delete(h.sessions, client.sessionID)
	}

	close(client.send)
}

// Send queues message for one registered client without blocking. A client
// that is gone or too slow is skipped.
func (h *Hub) Send(client *Client, message []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.clients[client] {
		return false
	}

	select {
	case client.send <- message:
		return true
	default:
		h.dropLocked(client)
		return false
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stopped = true
	for client := range h.clients {
		h.dropLocked(client)
	}
}

func (h *Hub) broadcastToSession(event Event) {
	message, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.sessions[event.SessionID] {
		select {
		case client.send <- message:
		default:
			// slow consumer
			h.dropLocked(client)
		}
	}
}

// Publish queues a session snapshot for the session's subscribers. It never
// blocks; events are dropped when the queue is full.
func (h *Hub) Publish(snap domain.SessionSnapshot) {
	event := Event{
		SessionID: snap.ID,
		Type:      EventSessionUpdated,
		Data:      snap,
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- event:
	default:
	}
}

func (h *Hub) ConnectedClients(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.sessions[sessionID])
}
