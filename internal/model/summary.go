package model

import (
	"time"

	"github.com/google/uuid"
)

// FinishedSession is one scored attempt joined with its exam's maximum
// possible score, the aggregation input for user summaries.
type FinishedSession struct {
	SessionID  uuid.UUID `json:"session_id"`
	ExamID     uuid.UUID `json:"exam_id"`
	ExamTitle  string    `json:"exam_title"`
	TotalScore float64   `json:"total_score"`
	MaxScore   float64   `json:"max_score"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Percentage returns score/max as a 0–100 percentage; 0 when the exam has
// no scoreable points.
func (f FinishedSession) Percentage() float64 {
	if f.MaxScore <= 0 {
		return 0
	}
	return f.TotalScore / f.MaxScore * 100
}

// UserSummary aggregates a user's finished sessions. Pure read-side data;
// nothing here re-scores.
type UserSummary struct {
	UserID         int     `json:"user_id"`
	TakenCount     int     `json:"taken_count"`
	AveragePercent float64 `json:"average_percent"`
	HighestPercent float64 `json:"highest_percent"`
	LowestPercent  float64 `json:"lowest_percent"`
	PassCount      int     `json:"pass_count"`
	PassRate       float64 `json:"pass_rate"`
	PassPercent    float64 `json:"pass_percent"`
}

// ExamResultRow is one row of the per-exam results listing.
type ExamResultRow struct {
	SessionID  uuid.UUID     `json:"session_id"`
	UserID     int           `json:"user_id"`
	Status     SessionStatus `json:"status"`
	TotalScore *float64      `json:"total_score"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at"`
}
