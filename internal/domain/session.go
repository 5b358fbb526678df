package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionMode distinguishes enrollment from verification sessions.
type SessionMode string

const (
	ModeEnroll SessionMode = "enroll"
	ModeVerify SessionMode = "verify"
)

// SessionStatus is the state of a session state machine.
type SessionStatus string

const (
	StatusIdle SessionStatus = "idle"

	// enrollment
	StatusCapturing            SessionStatus = "capturing"
	StatusExtracting           SessionStatus = "extracting"
	StatusAwaitingConfirmation SessionStatus = "awaiting_confirmation"
	StatusCommitting           SessionStatus = "committing"
	StatusDone                 SessionStatus = "done"

	// verification
	StatusPolling        SessionStatus = "polling"
	StatusMatched        SessionStatus = "matched"
	StatusTimedOut       SessionStatus = "timed_out"
	StatusConfirmedLogin SessionStatus = "confirmed_login"

	StatusFailed    SessionStatus = "failed"
	StatusCancelled SessionStatus = "cancelled"
)

// Terminal reports whether no further transition can leave the status.
// TimedOut is not terminal because a retry re-enters polling.
func (s SessionStatus) Terminal() bool {
	switch s {
	case StatusDone, StatusConfirmedLogin, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// SessionSnapshot is a point-in-time copy of a session's observable state.
type SessionSnapshot struct {
	ID         uuid.UUID     `json:"id"`
	Mode       SessionMode   `json:"mode"`
	Status     SessionStatus `json:"status"`
	Username   string        `json:"username,omitempty"`
	DeviceID   string        `json:"device_id"`
	StartedAt  time.Time     `json:"started_at"`
	Deadline   time.Time     `json:"deadline"`
	Confidence *float64      `json:"confidence,omitempty"`
	Attempts   int           `json:"attempts"`
	ErrorCode  string        `json:"error_code,omitempty"`
	UpdatedAt  time.Time     `json:"updated_at"`
}
