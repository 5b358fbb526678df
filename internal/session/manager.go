package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/facegate/internal/capture"
	"github.com/saturnino-fabrica-de-software/facegate/internal/domain"
)

// ErrManagerStopped is returned when a session is started after Shutdown.
var ErrManagerStopped = errors.New("session manager stopped")

// ManagerConfig configures the sessions a Manager creates.
type ManagerConfig struct {
	Verify VerifyConfig
	Enroll EnrollConfig
	// Retention is how long a session that stopped running stays queryable.
	Retention time.Duration
}

type entry struct {
	session Session
	feed    *capture.Feed
}

// Manager owns every live session. Frames reach a session through the
// capture.Feed the Manager creates for it.
type Manager struct {
	cfg    ManagerConfig
	deps   Deps
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	sessions map[uuid.UUID]*entry
}

func NewManager(cfg ManagerConfig, deps Deps) *Manager {
	deps = deps.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		cfg:      cfg,
		deps:     deps,
		logger:   deps.Logger.With("component", "session_manager"),
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[uuid.UUID]*entry),
	}
}

// StartVerification creates and starts a face login session on deviceID.
func (m *Manager) StartVerification(deviceID string) (domain.SessionSnapshot, error) {
	if m.ctx.Err() != nil {
		return domain.SessionSnapshot{}, ErrManagerStopped
	}

	feed := capture.NewFeed()
	v := NewVerification(uuid.New(), deviceID, feed, m.deps, m.cfg.Verify)

	if err := v.Start(m.ctx); err != nil {
		_ = feed.Close()
		return domain.SessionSnapshot{}, err
	}

	m.add(v, feed)
	return v.Snapshot(), nil
}

// StartEnrollment creates and starts an enrollment for username on deviceID.
func (m *Manager) StartEnrollment(username, deviceID string) (domain.SessionSnapshot, error) {
	if m.ctx.Err() != nil {
		return domain.SessionSnapshot{}, ErrManagerStopped
	}

	feed := capture.NewFeed()
	e := NewEnrollment(uuid.New(), username, deviceID, feed, m.deps, m.cfg.Enroll)

	if err := e.Start(m.ctx); err != nil {
		_ = feed.Close()
		return domain.SessionSnapshot{}, err
	}

	m.add(e, feed)
	return e.Snapshot(), nil
}

func (m *Manager) add(s Session, feed *capture.Feed) {
	m.mu.Lock()
	m.sessions[s.ID()] = &entry{session: s, feed: feed}
	m.mu.Unlock()
}

func (m *Manager) lookup(id uuid.UUID) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound.WithError(fmt.Errorf("session %s", id))
	}
	return e, nil
}

func (m *Manager) Get(id uuid.UUID) (domain.SessionSnapshot, error) {
	e, err := m.lookup(id)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	return e.session.Snapshot(), nil
}

// PushFrame hands a captured frame to the session's device. Frames for a
// session that is not sampling are dropped.
func (m *Manager) PushFrame(id uuid.UUID, frame []byte) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}

	if !e.feed.Push(frame) {
		return domain.ErrInvalidSessionState.WithError(fmt.Errorf("session %s no longer accepts frames", id))
	}
	return nil
}

func (m *Manager) verification(id uuid.UUID) (*Verification, error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	v, ok := e.session.(*Verification)
	if !ok {
		return nil, domain.ErrInvalidSessionState.WithError(fmt.Errorf("session %s is not a verification", id))
	}
	return v, nil
}

func (m *Manager) enrollment(id uuid.UUID) (*Enrollment, error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	en, ok := e.session.(*Enrollment)
	if !ok {
		return nil, domain.ErrInvalidSessionState.WithError(fmt.Errorf("session %s is not an enrollment", id))
	}
	return en, nil
}

// Retry restarts a timed out verification with a fresh deadline.
func (m *Manager) Retry(id uuid.UUID) (domain.SessionSnapshot, error) {
	v, err := m.verification(id)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	if err := v.Retry(m.ctx); err != nil {
		return domain.SessionSnapshot{}, err
	}
	return v.Snapshot(), nil
}

// ConfirmLogin turns a matched verification into a confirmed login.
func (m *Manager) ConfirmLogin(id uuid.UUID) (domain.MatchResult, error) {
	v, err := m.verification(id)
	if err != nil {
		return domain.MatchResult{}, err
	}
	return v.Confirm()
}

// ConfirmEnrollment accepts or declines the face an enrollment captured.
func (m *Manager) ConfirmEnrollment(ctx context.Context, id uuid.UUID, accept bool) (domain.SessionSnapshot, error) {
	e, err := m.enrollment(id)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	return e.Confirm(ctx, accept)
}

func (m *Manager) Cancel(id uuid.UUID) (domain.SessionSnapshot, error) {
	e, err := m.lookup(id)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	if err := e.session.Cancel(); err != nil {
		return domain.SessionSnapshot{}, err
	}
	return e.session.Snapshot(), nil
}

// Len returns the number of sessions currently tracked.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.sessions)
}

// Reap drops sessions that have not been running for longer than the
// retention period. Idle-but-resumable sessions (TimedOut, Matched) are
// cancelled first so their devices and feeds are released.
func (m *Manager) Reap(now time.Time) int {
	m.mu.Lock()
	var expired []*entry
	for id, e := range m.sessions {
		snap := e.session.Snapshot()
		if running(snap.Status) || now.Sub(snap.UpdatedAt) < m.cfg.Retention {
			continue
		}
		expired = append(expired, e)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, e := range expired {
		if !e.session.Snapshot().Status.Terminal() {
			_ = e.session.Cancel()
		}
		_ = e.feed.Close()
	}

	return len(expired)
}

func running(status domain.SessionStatus) bool {
	switch status {
	case domain.StatusPolling, domain.StatusCapturing, domain.StatusExtracting,
		domain.StatusAwaitingConfirmation, domain.StatusCommitting:
		return true
	}
	return false
}

// RunReaper reaps periodically until ctx is done.
func (m *Manager) RunReaper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Info("session reaper started", "interval", interval, "retention", m.cfg.Retention)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("session reaper stopped")
			return
		case now := <-ticker.C:
			if n := m.Reap(now); n > 0 {
				m.logger.Debug("sessions reaped", "count", n)
			}
		}
	}
}

// Shutdown cancels every session and waits for their loops to stop.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()

	m.mu.Lock()
	entries := make([]*entry, 0, len(m.sessions))
	for id, e := range m.sessions {
		entries = append(entries, e)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, e := range entries {
		if _, err := e.session.Wait(ctx); err != nil {
			return fmt.Errorf("wait for session %s: %w", e.session.ID(), err)
		}
		_ = e.feed.Close()
	}

	m.logger.Info("session manager stopped", "sessions", len(entries))
	return nil
}
