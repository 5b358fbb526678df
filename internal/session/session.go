// Package session runs enrollment and verification sessions: bounded-time
// loops that sample a capture device, extract feature vectors and either
// store one (enrollment) or match it against the directory (verification).
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/facegate/internal/biometric"
	"github.com/saturnino-fabrica-de-software/facegate/internal/capture"
	"github.com/saturnino-fabrica-de-software/facegate/internal/directory"
	"github.com/saturnino-fabrica-de-software/facegate/internal/domain"
	"github.com/saturnino-fabrica-de-software/facegate/internal/eventlog"
	"github.com/saturnino-fabrica-de-software/facegate/internal/provider"
)

// eventTimeout bounds event log writes, which outlive a cancelled loop.
const eventTimeout = 5 * time.Second

// Deps are the collaborators every session is bound to when it is built.
type Deps struct {
	Matcher   *biometric.Matcher
	Extractor provider.Extractor
	Directory directory.Directory
	Events    eventlog.Log
	Devices   *capture.Exclusive
	Logger    *slog.Logger

	// Observer, when set, receives a snapshot after every state change.
	// It is called outside the session lock and must not block for long.
	Observer func(domain.SessionSnapshot)
}

func (d Deps) withDefaults() Deps {
	if d.Events == nil {
		d.Events = eventlog.NoOp{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Devices == nil {
		d.Devices = capture.NewExclusive()
	}
	return d
}

// Session is the part of both session kinds the Manager works with.
type Session interface {
	ID() uuid.UUID
	Snapshot() domain.SessionSnapshot
	Cancel() error
	Wait(ctx context.Context) (domain.SessionSnapshot, error)
}

// base holds the state machine bookkeeping shared by both session kinds.
type base struct {
	id       uuid.UUID
	mode     domain.SessionMode
	deviceID string
	device   capture.Device
	deps     Deps
	logger   *slog.Logger

	mu         sync.Mutex
	status     domain.SessionStatus
	username   string
	startedAt  time.Time
	deadline   time.Time
	confidence *float64
	attempts   int
	failure    error
	updatedAt  time.Time
	cancel     context.CancelFunc
	done       chan struct{}
}

func (b *base) init(id uuid.UUID, mode domain.SessionMode, deviceID string, device capture.Device, deps Deps) {
	deps = deps.withDefaults()

	closed := make(chan struct{})
	close(closed)

	b.id = id
	b.mode = mode
	b.deviceID = deviceID
	b.device = device
	b.deps = deps
	b.logger = deps.Logger.With("component", "session", "session_id", id.String(), "mode", string(mode))
	b.status = domain.StatusIdle
	b.updatedAt = time.Now()
	b.done = closed
}

func (b *base) ID() uuid.UUID {
	return b.id
}

func (b *base) Snapshot() domain.SessionSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.snapshotLocked()
}

func (b *base) snapshotLocked() domain.SessionSnapshot {
	snap := domain.SessionSnapshot{
		ID:        b.id,
		Mode:      b.mode,
		Status:    b.status,
		Username:  b.username,
		DeviceID:  b.deviceID,
		StartedAt: b.startedAt,
		Deadline:  b.deadline,
		Attempts:  b.attempts,
		UpdatedAt: b.updatedAt,
	}
	if b.confidence != nil {
		c := *b.confidence
		snap.Confidence = &c
	}
	if b.failure != nil {
		snap.ErrorCode = errorCode(b.failure)
	}
	return snap
}

// Err returns the error that moved the session to Failed, if any.
func (b *base) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.failure
}

// Wait blocks until the current loop has stopped and released the device,
// and returns the state it left behind. A session that is not running
// returns immediately.
func (b *base) Wait(ctx context.Context) (domain.SessionSnapshot, error) {
	b.mu.Lock()
	done := b.done
	b.mu.Unlock()

	select {
	case <-ctx.Done():
		return domain.SessionSnapshot{}, ctx.Err()
	case <-done:
		return b.Snapshot(), nil
	}
}

func (b *base) notify(snap domain.SessionSnapshot) {
	if b.deps.Observer != nil {
		b.deps.Observer(snap)
	}
}

// transition moves to `to` if the current status is one of `from`.
func (b *base) transition(to domain.SessionStatus, from ...domain.SessionStatus) bool {
	b.mu.Lock()
	if !slices.Contains(from, b.status) {
		b.mu.Unlock()
		return false
	}
	b.status = to
	b.updatedAt = time.Now()
	snap := b.snapshotLocked()
	b.mu.Unlock()

	b.notify(snap)
	return true
}

// fail moves to Failed if the current status is one of `from`.
func (b *base) fail(err error, from ...domain.SessionStatus) bool {
	b.mu.Lock()
	if !slices.Contains(from, b.status) {
		b.mu.Unlock()
		return false
	}
	b.status = domain.StatusFailed
	b.failure = err
	b.updatedAt = time.Now()
	snap := b.snapshotLocked()
	b.mu.Unlock()

	b.logger.Warn("session failed", "error", err, "error_code", snap.ErrorCode)
	b.notify(snap)
	return true
}

func (b *base) countAttempt() {
	b.mu.Lock()
	b.attempts++
	b.mu.Unlock()
}

func (b *base) currentStatus() domain.SessionStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.status
}

// launch starts run on its own goroutine holding lease. run starts each
// tick through spawn. The lease outlives run until every spawned tick has
// returned, so an extraction that ignores cancellation keeps the device
// busy instead of overlapping with the next loop. done is closed last.
// Callers hold b.mu.
func (b *base) launch(parent context.Context, lease *capture.Lease, run func(ctx context.Context, spawn func(func()))) {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	b.cancel = cancel
	b.done = done

	var ticks sync.WaitGroup
	spawn := func(tick func()) {
		ticks.Add(1)
		go func() {
			defer ticks.Done()
			tick()
		}()
	}

	go func() {
		defer close(done)
		defer lease.Release()
		defer ticks.Wait()
		defer cancel()

		run(ctx, spawn)
	}()
}

// cancelSession moves any non-terminal status outside `blocked` to
// Cancelled, stops the loop and waits for it to release the device. The
// status changes at once; the wait covers an extraction still in flight.
func (b *base) cancelSession(blocked ...domain.SessionStatus) error {
	b.mu.Lock()
	if b.status.Terminal() || slices.Contains(blocked, b.status) {
		status := b.status
		b.mu.Unlock()
		return domain.ErrInvalidSessionState.WithError(fmt.Errorf("cannot cancel a %s session", status))
	}
	b.status = domain.StatusCancelled
	b.updatedAt = time.Now()
	cancel, done := b.cancel, b.done
	snap := b.snapshotLocked()
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	<-done

	b.logger.Info("session cancelled")
	b.notify(snap)
	return nil
}

// sample captures one frame and runs the extractor on it. onFrame runs
// between the two steps.
func (b *base) sample(ctx context.Context, onFrame func()) ([]biometric.FeatureVector, error) {
	frame, err := b.device.Capture(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture frame: %w", err)
	}

	if onFrame != nil {
		onFrame()
	}

	vectors, err := b.deps.Extractor.Extract(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("extract features: %w", err)
	}
	return vectors, nil
}

// invalidState builds the error for an operation the status does not allow.
func invalidState(op string, status domain.SessionStatus) error {
	return domain.ErrInvalidSessionState.WithError(fmt.Errorf("%s not allowed while %s", op, status))
}

// directoryError makes sure a directory failure carries DIRECTORY_IO_ERROR.
func directoryError(err error) error {
	if errors.Is(err, domain.ErrDirectoryIO) {
		return err
	}
	return domain.ErrDirectoryIO.WithError(err)
}

func errorCode(err error) string {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return domain.ErrInternal.Code
}
