package gateway

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client is a single WebSocket peer watching one pivot job.
type Client struct {
	conn   *websocket.Conn
	hub    *Hub
	taskID string

	mu     sync.Mutex
	send   chan []byte
	closed bool

	// stopWatch ends the client's progress watch on disconnect. Assigned
	// before start launches the pumps, never written after.
	stopWatch func()
}

// Send queues a frame for delivery, dropping it if the client is slow or
// already removed. Watcher callbacks may race removal, so the closed flag
// and the channel close share the client lock.
func (c *Client) Send(payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// closeSend closes the send channel exactly once; late Sends become no-ops.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// start launches the read and write pumps. stopWatch must already be set;
// readPump's cleanup reads it unsynchronized.
func (c *Client) start() {
	go c.writePump()
	go c.readPump()
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

			// Write coalescing: batch queued frames into a single
			// WebSocket message with newline separators
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		if c.stopWatch != nil {
			c.stopWatch()
		}
		c.hub.RemoveClient(c)
		c.conn.Close()
		log.Printf("[gateway] ws client disconnected from %s", c.taskID)
	}()

	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		// The stream is one-way; the only inbound frame is an
		// application-level ping for RTT measurement.
		var base struct {
			Ping int64 `json:"ping"`
		}
		if json.Unmarshal(msg, &base) != nil || base.Ping == 0 {
			continue
		}
		c.Send(map[string]any{
			"type":      "pong",
			"ping":      base.Ping,
			"server_ts": time.Now().UnixMilli(),
		})
	}
}
