// Package gateway exposes the measurement and swing engines over HTTP and
// streams pivot-job progress over WebSocket.
package gateway

import (
	"log"
	"sync"

	"swing-systemv1/internal/metrics"

	"github.com/gorilla/websocket"
)

// Hub tracks connected WebSocket clients. Each client watches exactly one
// pivot job; fan-out happens per connection through its own watcher, so
// the hub only handles registration and shutdown.
type Hub struct {
	met *metrics.Metrics

	mu      sync.RWMutex
	clients map[*Client]bool
}

// NewHub creates a hub. met may be nil.
func NewHub(met *metrics.Metrics) *Hub {
	return &Hub{met: met, clients: make(map[*Client]bool)}
}

// Attach registers an upgraded connection. The caller wires the client's
// watch and then starts the pumps; that ordering keeps stopWatch visible
// to readPump's cleanup.
func (h *Hub) Attach(conn *websocket.Conn, taskID string) *Client {
	client := &Client{
		conn:   conn,
		send:   make(chan []byte, 64),
		hub:    h,
		taskID: taskID,
	}

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	if h.met != nil {
		h.met.WSClients.Set(float64(count))
	}
	log.Printf("[gateway] ws client connected for %s (%d total)", taskID, count)
	return client
}

// RemoveClient unregisters a client and closes its send channel.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()

	c.closeSend()
	if h.met != nil {
		h.met.WSClients.Set(float64(count))
	}
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown disconnects every client.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.conn.Close()
	}
}
