package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/facegate/internal/biometric"
	"github.com/saturnino-fabrica-de-software/facegate/internal/capture"
	"github.com/saturnino-fabrica-de-software/facegate/internal/domain"
)

// commitTimeout bounds the directory read-modify-write of a commit.
const commitTimeout = 10 * time.Second

// EnrollConfig holds the enrollment loop settings.
type EnrollConfig struct {
	Deadline     time.Duration
	PollInterval time.Duration
	// RequireConfirmation parks a captured face in AwaitingConfirmation
	// until Confirm decides whether to store it.
	RequireConfirmation bool
}

func DefaultEnrollConfig() EnrollConfig {
	return EnrollConfig{
		Deadline:            30 * time.Second,
		PollInterval:        100 * time.Millisecond,
		RequireConfirmation: true,
	}
}

// Enrollment captures one face for an existing user and stores its vector:
//
//	Idle -> Capturing -> Extracting -> AwaitingConfirmation -> Committing -> Done
//	any non-terminal state except Committing -> Cancelled | Failed
type Enrollment struct {
	base
	cfg EnrollConfig

	// pending is the vector waiting for confirmation.
	pending biometric.FeatureVector
	commits chan biometric.FeatureVector
}

type enrollTick struct {
	vectors []biometric.FeatureVector
	err     error
	fatal   error
}

func NewEnrollment(id uuid.UUID, username, deviceID string, device capture.Device, deps Deps, cfg EnrollConfig) *Enrollment {
	e := &Enrollment{
		cfg:     cfg,
		commits: make(chan biometric.FeatureVector, 1),
	}
	e.init(id, domain.ModeEnroll, deviceID, device, deps)
	e.username = username
	return e
}

// Start checks that the target user exists, acquires the device and begins
// capturing. An unknown user fails the session before anything is written.
func (e *Enrollment) Start(ctx context.Context) error {
	if status := e.currentStatus(); status != domain.StatusIdle {
		return invalidState("start", status)
	}

	users, err := e.deps.Directory.LoadAll(ctx)
	if err != nil {
		err = directoryError(err)
		e.fail(err, domain.StatusIdle)
		return err
	}
	if domain.FindUser(users, e.username) < 0 {
		err := domain.ErrUnknownUser.WithError(fmt.Errorf("user %q is not registered", e.username))
		e.fail(err, domain.StatusIdle)
		return err
	}

	e.mu.Lock()
	if e.status != domain.StatusIdle {
		status := e.status
		e.mu.Unlock()
		return invalidState("start", status)
	}

	lease, err := e.deps.Devices.Acquire(e.deviceID, e.id)
	if err != nil {
		e.status = domain.StatusFailed
		e.failure = err
		e.updatedAt = time.Now()
		snap := e.snapshotLocked()
		e.mu.Unlock()

		e.notify(snap)
		return err
	}

	now := time.Now()
	e.startedAt = now
	e.deadline = now.Add(e.cfg.Deadline)
	e.status = domain.StatusCapturing
	e.updatedAt = now

	deadline := e.deadline
	e.launch(ctx, lease, func(runCtx context.Context, spawn func(func())) {
		e.run(runCtx, deadline, spawn)
	})
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.logger.Info("enrollment started", "username", e.username, "device_id", e.deviceID)
	e.notify(snap)
	return nil
}

// Confirm answers the "register this face?" question. Declining discards
// the vector and resumes capturing. Accepting commits it and returns once
// the commit has finished.
func (e *Enrollment) Confirm(ctx context.Context, accept bool) (domain.SessionSnapshot, error) {
	e.mu.Lock()
	if e.status != domain.StatusAwaitingConfirmation {
		status := e.status
		e.mu.Unlock()
		return domain.SessionSnapshot{}, invalidState("confirm", status)
	}

	vector := e.pending
	e.pending = nil
	e.updatedAt = time.Now()

	if !accept {
		e.status = domain.StatusCapturing
		snap := e.snapshotLocked()
		e.mu.Unlock()

		e.logger.Info("enrollment face declined")
		e.notify(snap)
		return snap, nil
	}

	e.status = domain.StatusCommitting
	done := e.done
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.notify(snap)
	e.commits <- vector

	select {
	case <-ctx.Done():
		return domain.SessionSnapshot{}, ctx.Err()
	case <-done:
	}

	snap = e.Snapshot()
	return snap, e.Err()
}

// Cancel abandons the enrollment without writing. A commit already in
// progress cannot be cancelled.
func (e *Enrollment) Cancel() error {
	return e.cancelSession(domain.StatusCommitting)
}

func (e *Enrollment) run(ctx context.Context, deadline time.Time, spawn func(func())) {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	tickCtx, cancelTicks := context.WithCancel(ctx)
	defer cancelTicks()

	results := make(chan enrollTick, 1)
	inFlight := false

	launchTick := func() {
		if inFlight || e.currentStatus() != domain.StatusCapturing {
			return
		}
		inFlight = true
		spawn(func() {
			results <- e.tick(tickCtx)
		})
	}

	launchTick()

	for {
		select {
		case <-ctx.Done():
			// An accepted face is committed even on shutdown; Confirm has
			// already moved to Committing and is about to hand it over.
			if e.currentStatus() == domain.StatusCommitting {
				e.commit(ctx, <-e.commits)
				return
			}
			e.transition(domain.StatusCancelled,
				domain.StatusCapturing, domain.StatusExtracting, domain.StatusAwaitingConfirmation)
			return

		case <-timer.C:
			expired := domain.ErrSessionExpired.WithError(fmt.Errorf("no face enrolled within %s", e.cfg.Deadline))
			if e.fail(expired, domain.StatusCapturing, domain.StatusExtracting, domain.StatusAwaitingConfirmation) {
				return
			}

		case <-ticker.C:
			launchTick()

		case r := <-results:
			inFlight = false

			if r.fatal != nil {
				if e.fail(r.fatal, domain.StatusCapturing, domain.StatusExtracting) {
					return
				}
				continue
			}
			if r.err != nil {
				if ctx.Err() == nil {
					e.logger.Warn("capture tick skipped", "error", r.err)
				}
				e.transition(domain.StatusCapturing, domain.StatusExtracting)
				continue
			}

			e.countAttempt()

			if len(r.vectors) != 1 {
				e.logger.Debug("capture tick without a single face", "faces", len(r.vectors))
				e.transition(domain.StatusCapturing, domain.StatusExtracting)
				continue
			}

			vector := r.vectors[0]
			if err := e.deps.Matcher.Profile().Conforms(vector); err != nil {
				if e.fail(err, domain.StatusExtracting) {
					return
				}
				continue
			}

			if e.cfg.RequireConfirmation {
				e.await(vector)
				continue
			}

			if e.transition(domain.StatusCommitting, domain.StatusExtracting) {
				e.commit(ctx, vector)
				return
			}

		case vector := <-e.commits:
			e.commit(ctx, vector)
			return
		}
	}
}

func (e *Enrollment) tick(ctx context.Context) enrollTick {
	vectors, err := e.sample(ctx, func() {
		e.transition(domain.StatusExtracting, domain.StatusCapturing)
	})
	if err != nil {
		if errors.Is(err, capture.ErrDeviceClosed) {
			return enrollTick{fatal: domain.ErrDeviceBusy.WithError(err)}
		}
		return enrollTick{err: err}
	}
	return enrollTick{vectors: vectors}
}

func (e *Enrollment) await(vector biometric.FeatureVector) {
	e.mu.Lock()
	if e.status != domain.StatusExtracting {
		e.mu.Unlock()
		return
	}
	e.status = domain.StatusAwaitingConfirmation
	e.pending = vector
	e.updatedAt = time.Now()
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.logger.Info("enrollment face captured, awaiting confirmation")
	e.notify(snap)
}

// commit replaces the target's vector with a read-modify-write of the whole
// directory. Any failure discards the vector.
func (e *Enrollment) commit(ctx context.Context, vector biometric.FeatureVector) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancel()

	users, err := e.deps.Directory.LoadAll(ctx)
	if err != nil {
		e.fail(directoryError(err), domain.StatusCommitting)
		return
	}

	i := domain.FindUser(users, e.username)
	if i < 0 {
		e.fail(domain.ErrUnknownUser.WithError(fmt.Errorf("user %q was removed before commit", e.username)),
			domain.StatusCommitting)
		return
	}

	users[i].FaceVector = append([]float64(nil), vector...)
	users[i].FaceMethod = string(e.deps.Matcher.Profile().Method)

	if err := e.deps.Directory.SaveAll(ctx, users); err != nil {
		e.fail(directoryError(err), domain.StatusCommitting)
		return
	}

	if e.transition(domain.StatusDone, domain.StatusCommitting) {
		e.logger.Info("face enrolled", "username", e.username, "dimension", len(vector))
	}
}
