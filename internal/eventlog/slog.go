package eventlog

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/saturnino-fabrica-de-software/facegate/internal/domain"
)

// SlogLog writes each event as an audit line through slog.
type SlogLog struct {
	logger *slog.Logger
}

func NewSlogLog(logger *slog.Logger) *SlogLog {
	return &SlogLog{
		logger: logger.With("component", "audit"),
	}
}

func (l *SlogLog) Append(ctx context.Context, event domain.MatchEvent) error {
	event = prepare(event)

	eventJSON, err := json.Marshal(event)
	if err != nil {
		l.logger.ErrorContext(ctx, "failed to marshal match event",
			slog.String("error", err.Error()),
			slog.String("session_id", event.SessionID.String()),
		)
		return err
	}

	username := "Unknown"
	if event.Username != nil {
		username = *event.Username
	}

	l.logger.InfoContext(ctx, "face_login_event",
		slog.String("event_id", event.ID.String()),
		slog.String("session_id", event.SessionID.String()),
		slog.String("username", username),
		slog.String("result", string(event.Result)),
		slog.String("event_data", string(eventJSON)),
	)

	return nil
}
