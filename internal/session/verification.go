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

// VerifyConfig holds the verification loop timings.
type VerifyConfig struct {
	Deadline     time.Duration
	PollInterval time.Duration
	// MinConfirmConfidence refuses Confirm below this score. Zero disables it.
	MinConfirmConfidence float64
}

// DefaultVerifyConfig polls every 100ms for up to 5s.
func DefaultVerifyConfig() VerifyConfig {
	return VerifyConfig{
		Deadline:     5 * time.Second,
		PollInterval: 100 * time.Millisecond,
	}
}

// Verification is a face login attempt. It polls the device until one
// enrolled user is matched, the deadline passes or it is cancelled:
//
//	Idle -> Polling -> Matched | TimedOut | Cancelled | Failed
//	TimedOut -> Polling (Retry)
//	Matched -> ConfirmedLogin (Confirm)
type Verification struct {
	base
	cfg   VerifyConfig
	match domain.MatchResult
}

// verifyTick is the outcome of one poll tick.
type verifyTick struct {
	faces int
	match domain.MatchResult
	// err skips the tick; fatal ends the session in Failed.
	err   error
	fatal error
}

func NewVerification(id uuid.UUID, deviceID string, device capture.Device, deps Deps, cfg VerifyConfig) *Verification {
	v := &Verification{cfg: cfg}
	v.init(id, domain.ModeVerify, deviceID, device, deps)
	return v
}

// Start acquires the device and begins polling. ctx bounds the lifetime of
// the loop, not just the call.
func (v *Verification) Start(ctx context.Context) error {
	v.mu.Lock()
	if v.status != domain.StatusIdle {
		status := v.status
		v.mu.Unlock()
		return invalidState("start", status)
	}

	lease, err := v.deps.Devices.Acquire(v.deviceID, v.id)
	if err != nil {
		v.status = domain.StatusFailed
		v.failure = err
		v.updatedAt = time.Now()
		snap := v.snapshotLocked()
		v.mu.Unlock()

		v.notify(snap)
		return err
	}

	v.startedAt = time.Now()
	snap := v.pollLocked(ctx, lease)
	v.mu.Unlock()

	v.logger.Info("verification started", "device_id", v.deviceID, "deadline", snap.Deadline)
	v.notify(snap)
	return nil
}

// Retry re-enters Polling with a fresh deadline after a timeout.
func (v *Verification) Retry(ctx context.Context) error {
	v.mu.Lock()
	if v.status != domain.StatusTimedOut {
		status := v.status
		v.mu.Unlock()
		return invalidState("retry", status)
	}

	lease, err := v.deps.Devices.Acquire(v.deviceID, v.id)
	if err != nil {
		v.mu.Unlock()
		return err
	}

	snap := v.pollLocked(ctx, lease)
	v.mu.Unlock()

	v.logger.Info("verification retried", "deadline", snap.Deadline)
	v.notify(snap)
	return nil
}

func (v *Verification) pollLocked(ctx context.Context, lease *capture.Lease) domain.SessionSnapshot {
	now := time.Now()
	v.deadline = now.Add(v.cfg.Deadline)
	v.status = domain.StatusPolling
	v.updatedAt = now

	deadline := v.deadline
	v.launch(ctx, lease, func(runCtx context.Context, spawn func(func())) {
		v.run(runCtx, deadline, spawn)
	})

	return v.snapshotLocked()
}

// Confirm finalizes a match into a login. It is the only way to reach
// ConfirmedLogin.
func (v *Verification) Confirm() (domain.MatchResult, error) {
	v.mu.Lock()
	if v.status != domain.StatusMatched {
		status := v.status
		v.mu.Unlock()
		return domain.MatchResult{}, invalidState("confirm", status)
	}

	if floor := v.cfg.MinConfirmConfidence; floor > 0 && v.match.Confidence < floor {
		confidence := v.match.Confidence
		v.mu.Unlock()
		return domain.MatchResult{}, domain.ErrLowConfidence.WithError(
			fmt.Errorf("confidence %.1f is below %.1f", confidence, floor))
	}

	v.status = domain.StatusConfirmedLogin
	v.updatedAt = time.Now()
	result := v.match
	snap := v.snapshotLocked()
	v.mu.Unlock()

	v.logger.Info("face login confirmed", "username", snap.Username)
	v.notify(snap)
	return result, nil
}

// Cancel stops polling and releases the device. Allowed from any
// non-terminal state.
func (v *Verification) Cancel() error {
	return v.cancelSession()
}

// Match returns the accepted match once the session reached Matched.
func (v *Verification) Match() (domain.MatchResult, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch v.status {
	case domain.StatusMatched, domain.StatusConfirmedLogin:
		return v.match, true
	}
	return domain.MatchResult{}, false
}

func (v *Verification) run(ctx context.Context, deadline time.Time, spawn func(func())) {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	ticker := time.NewTicker(v.cfg.PollInterval)
	defer ticker.Stop()

	tickCtx, cancelTicks := context.WithCancel(ctx)
	defer cancelTicks()

	// One tick in flight at most, so one slot never blocks the sender.
	results := make(chan verifyTick, 1)
	inFlight := false

	launchTick := func() {
		inFlight = true
		spawn(func() {
			results <- v.tick(tickCtx)
		})
	}

	launchTick()

	for {
		select {
		case <-ctx.Done():
			v.transition(domain.StatusCancelled, domain.StatusPolling)
			return

		case <-timer.C:
			if v.transition(domain.StatusTimedOut, domain.StatusPolling) {
				v.logger.Info("verification timed out")
				v.record(ctx, domain.MatchEvent{Result: domain.OutcomeFail})
				return
			}

		case <-ticker.C:
			if inFlight {
				continue
			}
			launchTick()

		case r := <-results:
			inFlight = false

			if r.fatal != nil {
				if v.fail(r.fatal, domain.StatusPolling) {
					return
				}
				continue
			}
			if r.err != nil {
				if ctx.Err() == nil {
					v.logger.Warn("poll tick skipped", "error", r.err)
				}
				continue
			}

			v.countAttempt()

			if r.faces != 1 {
				v.logger.Debug("poll tick without a single face", "faces", r.faces)
				continue
			}
			if !r.match.Accepted {
				v.logger.Debug("no match", "distance", r.match.Distance)
				continue
			}

			if v.matched(r.match) {
				username := *r.match.CandidateUsername
				confidence := r.match.Confidence
				v.record(ctx, domain.MatchEvent{
					Username:   &username,
					Result:     domain.OutcomeMatch,
					Confidence: &confidence,
				})
				return
			}
		}
	}
}

// tick captures a frame, extracts and, for exactly one face, matches it
// against a fresh read of the directory.
func (v *Verification) tick(ctx context.Context) verifyTick {
	vectors, err := v.sample(ctx, nil)
	if err != nil {
		if errors.Is(err, capture.ErrDeviceClosed) {
			return verifyTick{fatal: domain.ErrDeviceBusy.WithError(err)}
		}
		return verifyTick{err: err}
	}

	if len(vectors) != 1 {
		return verifyTick{faces: len(vectors)}
	}

	query := vectors[0]
	if err := v.deps.Matcher.Profile().Conforms(query); err != nil {
		return verifyTick{faces: 1, fatal: err}
	}

	users, err := v.deps.Directory.LoadAll(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return verifyTick{err: err}
		}
		return verifyTick{faces: 1, fatal: directoryError(err)}
	}

	result, err := v.deps.Matcher.Match(query, biometric.CandidatesFrom(users))
	if err != nil {
		return verifyTick{faces: 1, fatal: err}
	}

	return verifyTick{faces: 1, match: result}
}

// matched performs the single Polling -> Matched transition.
func (v *Verification) matched(result domain.MatchResult) bool {
	v.mu.Lock()
	if v.status != domain.StatusPolling {
		v.mu.Unlock()
		return false
	}

	confidence := result.Confidence
	v.status = domain.StatusMatched
	v.match = result
	v.username = *result.CandidateUsername
	v.confidence = &confidence
	v.updatedAt = time.Now()
	snap := v.snapshotLocked()
	v.mu.Unlock()

	v.logger.Info("face matched",
		"username", snap.Username,
		"distance", result.Distance,
		"confidence", confidence,
	)
	v.notify(snap)
	return true
}

// record appends a terminal event. Failures are logged and dropped.
func (v *Verification) record(ctx context.Context, event domain.MatchEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventTimeout)
	defer cancel()

	event.ID = uuid.New()
	event.SessionID = v.id
	event.Timestamp = time.Now().UTC()

	if err := v.deps.Events.Append(ctx, event); err != nil {
		v.logger.Warn("failed to append match event", "error", err, "result", string(event.Result))
	}
}
