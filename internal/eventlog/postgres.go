package eventlog

import (
	"context"
	"fmt"

	"github.com/saturnino-fabrica-de-software/facegate/internal/database"
	"github.com/saturnino-fabrica-de-software/facegate/internal/domain"
)

// PostgresLog stores events in the face_login_events table.
type PostgresLog struct {
	pool database.PgxPool
}

func NewPostgresLog(pool database.PgxPool) *PostgresLog {
	return &PostgresLog{pool: pool}
}

func (l *PostgresLog) Append(ctx context.Context, event domain.MatchEvent) error {
	event = prepare(event)

	query := `
		INSERT INTO face_login_events (id, session_id, username, result, confidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := l.pool.Exec(ctx, query,
		event.ID,
		event.SessionID,
		event.Username,
		string(event.Result),
		event.Confidence,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert match event: %w", err)
	}

	return nil
}

// Recent returns the latest events, newest first.
func (l *PostgresLog) Recent(ctx context.Context, limit int) ([]domain.MatchEvent, error) {
	query := `
		SELECT id, session_id, username, result, confidence, created_at
		FROM face_login_events
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := l.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list match events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.MatchEvent, 0, limit)
	for rows.Next() {
		var event domain.MatchEvent
		var result string
		if err := rows.Scan(&event.ID, &event.SessionID, &event.Username, &result, &event.Confidence, &event.Timestamp); err != nil {
			return nil, fmt.Errorf("scan match event: %w", err)
		}
		event.Result = domain.MatchOutcome(result)
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate match events: %w", err)
	}

	return events, nil
}
