package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates exam session states.
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusFinished   SessionStatus = "FINISHED"
	SessionStatusTimeout    SessionStatus = "TIMEOUT"
)

// StatusRank orders session statuses by priority. A transition may only
// raise the rank, so a terminal session can never regress to IN_PROGRESS.
var StatusRank = map[SessionStatus]int{
	SessionStatusInProgress: 0,
	SessionStatusFinished:   1,
	SessionStatusTimeout:    1,
}

// Terminal reports whether the status permits no further transitions.
func (s SessionStatus) Terminal() bool {
	return StatusRank[s] > StatusRank[SessionStatusInProgress]
}

// CanTransitionTo reports whether moving from s to next is a legal,
// rank-raising transition.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	return StatusRank[next] > StatusRank[s]
}

// Session represents one user's timed attempt at one exam.
type Session struct {
	ID         uuid.UUID     `json:"id"`
	UserID     int           `json:"user_id"`
	ExamID     uuid.UUID     `json:"exam_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Status     SessionStatus `json:"status"`
	TotalScore *float64      `json:"total_score,omitempty"`
}

// SessionState is the resume payload for a page reload: everything the
// client needs to restore an in-flight attempt.
type SessionState struct {
	SessionID        uuid.UUID         `json:"session_id"`
	Status           SessionStatus     `json:"status"`
	RemainingMs      int64             `json:"remaining_ms"`
	AutosavedAnswers map[string]string `json:"autosaved_answers"`
}

// StartResult is returned by session start: the session (new or resumed),
// the stripped question paper and any previously autosaved answers.
type StartResult struct {
	Session   *Session          `json:"session"`
	Resumed   bool              `json:"resumed"`
	Questions []QuestionForUser `json:"questions"`
	Answers   []Answer          `json:"answers"`
}
