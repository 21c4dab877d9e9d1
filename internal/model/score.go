package model

import (
	"github.com/google/uuid"
)

// CategoryBreakdown is the per-category slice of a score. Every category
// declared by the exam appears, even with zero answered questions, so
// consumers never branch on missing keys.
type CategoryBreakdown struct {
	Category     string  `json:"category"`
	Score        float64 `json:"score"`
	MaxScore     float64 `json:"max_score"`
	CorrectCount int     `json:"correct_count"`
	TotalCount   int     `json:"total_count"`
}

// ScoreResult is the outcome of a finalized session.
type ScoreResult struct {
	SessionID      uuid.UUID           `json:"session_id"`
	ExamID         uuid.UUID           `json:"exam_id"`
	TotalScore     float64             `json:"total_score"`
	MaxScore       float64             `json:"max_score"`
	AnsweredCount  int                 `json:"answered_count"`
	CorrectCount   int                 `json:"correct_count"`
	TotalQuestions int                 `json:"total_questions"`
	ElapsedSeconds int64               `json:"elapsed_seconds"`
	PerCategory    []CategoryBreakdown `json:"per_category"`
}
