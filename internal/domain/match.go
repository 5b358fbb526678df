package domain

import (
	"time"

	"github.com/google/uuid"
)

// MatchResult is the outcome of one matcher run. It is computed per attempt
// and never persisted.
type MatchResult struct {
	CandidateUsername *string `json:"candidate_username"`
	Distance          float64 `json:"distance"`
	Confidence        float64 `json:"confidence"`
	Accepted          bool    `json:"accepted"`
}

// MatchOutcome is the result recorded for a terminal verification event.
type MatchOutcome string

const (
	OutcomeMatch MatchOutcome = "match"
	OutcomeFail  MatchOutcome = "fail"
)

// MatchEvent is an immutable audit record of a terminal verification outcome.
type MatchEvent struct {
	ID         uuid.UUID    `json:"id"`
	SessionID  uuid.UUID    `json:"session_id"`
	Username   *string      `json:"username"`
	Result     MatchOutcome `json:"result"`
	Confidence *float64     `json:"confidence"`
	Timestamp  time.Time    `json:"timestamp"`
}
