package ws

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventSessionUpdated EventType = "session.updated"
	EventFrameRejected  EventType = "frame.rejected"
)

type Event struct {
	SessionID uuid.UUID   `json:"session_id"`
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}
