package ws

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/facegate/internal/domain"
)

// Sessions is what a websocket connection needs from the session manager.
type Sessions interface {
	FrameSink
	Get(id uuid.UUID) (domain.SessionSnapshot, error)
}

// Handler serves /ws/sessions/:id. The client subscribes first and then
// gets the current snapshot, so no state change falls between the two.
func Handler(hub *Hub, sessions Sessions, logger *slog.Logger) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		sessionID, err := uuid.Parse(c.Params("id"))
		if err != nil {
			_ = c.Close()
			return
		}

		client := &Client{
			hub:       hub,
			conn:      c,
			sessionID: sessionID,
			frames:    sessions,
			send:      make(chan []byte, 256),
		}

		if !hub.Register(client) {
			_ = c.Close()
			return
		}

		snap, err := sessions.Get(sessionID)
		if err != nil {
			logger.Debug("websocket for unknown session", "session_id", sessionID, "error", err)
			hub.Unregister(client)
			_ = c.Close()
			return
		}

		if initial, err := snapshotMessage(snap); err == nil {
			hub.Send(client, initial)
		}

		go client.WritePump()
		client.ReadPump()
	})
}

func snapshotMessage(snap domain.SessionSnapshot) ([]byte, error) {
	return json.Marshal(Event{
		SessionID: snap.ID,
		Type:      EventSessionUpdated,
		Data:      snap,
		Timestamp: time.Now(),
	})
}

func UpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}
