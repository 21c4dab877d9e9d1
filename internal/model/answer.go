package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Answer is one autosaved answer row, unique per (session, question).
// SelectedOption is nil while unanswered; IsCorrect stays nil until the
// session is finalized.
type Answer struct {
	ID             uuid.UUID  `json:"id"`
	SessionID      uuid.UUID  `json:"session_id"`
	QuestionID     uuid.UUID  `json:"question_id"`
	SelectedOption *string    `json:"selected_option"`
	AnsweredAt     time.Time  `json:"answered_at"`
	IsCorrect      *bool      `json:"is_correct,omitempty"`
}

// ValidOption reports whether opt is one of the fixed A–E letters.
func ValidOption(opt string) bool {
	return len(opt) == 1 && strings.ContainsRune(OptionLetters, rune(opt[0]))
}

// SubmitAnswerRequest is the autosave payload. A null selected_option is a
// valid write that clears a prior answer.
type SubmitAnswerRequest struct {
	SelectedOption *string `json:"selected_option" binding:"omitempty,oneof=A B C D E"`
}

// AnswerVerdict carries the correctness of one answered question into the
// finalize transaction.
type AnswerVerdict struct {
	QuestionID uuid.UUID
	IsCorrect  bool
}

// Progress is the answered/total snapshot returned with every autosave.
type Progress struct {
	AnsweredCount  int     `json:"answered_count"`
	TotalQuestions int     `json:"total_questions"`
	Percentage     float64 `json:"percentage"`
}

// ReviewItem is one question in the post-submission review: the full
// question with the key revealed next to the taker's answer.
type ReviewItem struct {
	QuestionID     uuid.UUID `json:"question_id"`
	OrderNum       int       `json:"order_num"`
	Category       string    `json:"category"`
	Text           string    `json:"text"`
	Options        []string  `json:"options"`
	CorrectOption  string    `json:"correct_option"`
	PointValue     float64   `json:"point_value"`
	SelectedOption *string   `json:"selected_option"`
	IsCorrect      *bool     `json:"is_correct"`
}
