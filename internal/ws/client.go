package ws

import (
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// FrameSink receives frames read from a client.
type FrameSink interface {
	PushFrame(id uuid.UUID, frame []byte) error
}

type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	sessionID uuid.UUID
	frames    FrameSink
	send      chan []byte
}

// ReadPump forwards every text or binary message as a frame. The connection
// ends when the session no longer accepts frames.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		kind, message, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		if err := c.frames.PushFrame(c.sessionID, message); err != nil {
			break
		}
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}
