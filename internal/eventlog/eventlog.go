// Package eventlog records terminal verification outcomes. Sessions treat
// every sink as best effort: an Append error is logged and dropped.
package eventlog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/facegate/internal/domain"
)

// Log is an append-only sink for match events.
type Log interface {
	Append(ctx context.Context, event domain.MatchEvent) error
}

// prepare fills the fields callers may leave empty.
func prepare(event domain.MatchEvent) domain.MatchEvent {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	return event
}

// Multi fans an event out to several sinks. Every sink is attempted; the
// returned error joins the individual failures.
type Multi []Log

func (m Multi) Append(ctx context.Context, event domain.MatchEvent) error {
	event = prepare(event)

	var errs []error
	for _, log := range m {
		if err := log.Append(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NoOp discards events (for testing or when the event log is disabled)
type NoOp struct{}

func (NoOp) Append(_ context.Context, _ domain.MatchEvent) error {
	return nil
}
