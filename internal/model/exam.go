package model

import (
	"time"

	"github.com/google/uuid"
)

// OptionLetters maps option index to its letter. Options are a fixed-size
// ordered list; the letter is derived from the position, never stored.
const OptionLetters = "ABCDE"

// MaxOptions bounds the per-question option list.
const MaxOptions = len(OptionLetters)

// Exam is the catalog entry this engine reads. The catalog owns it;
// nothing here mutates it.
type Exam struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	DurationMinutes int       `json:"duration_minutes"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// QuestionRef is the read-only projection of a catalog question used for
// timing, validation and scoring. Cached per session-start call only.
type QuestionRef struct {
	ID            uuid.UUID `json:"id"`
	ExamID        uuid.UUID `json:"exam_id"`
	OrderNum      int       `json:"order_num"`
	Category      string    `json:"category"`
	Text          string    `json:"text"`
	Options       []string  `json:"options"`
	CorrectOption string    `json:"correct_option"`
	PointValue    float64   `json:"point_value"`
}

// ExamForSession is the catalog payload consumed at session start and
// submission: duration plus the ordered question list with answer keys.
type ExamForSession struct {
	Exam      Exam          `json:"exam"`
	Questions []QuestionRef `json:"questions"`
}

// QuestionByID returns the question with the given id, or nil if the id
// does not belong to this exam.
func (e *ExamForSession) QuestionByID(id uuid.UUID) *QuestionRef {
	for i := range e.Questions {
		if e.Questions[i].ID == id {
			return &e.Questions[i]
		}
	}
	return nil
}

// QuestionForUser is a question with the answer key stripped, safe to send
// to an exam taker.
type QuestionForUser struct {
	ID       uuid.UUID `json:"id"`
	OrderNum int       `json:"order_num"`
	Category string    `json:"category"`
	Text     string    `json:"text"`
	Options  []string  `json:"options"`
}

// ExamPaper is the Redis-cached payload sent to takers (no correct answers).
type ExamPaper struct {
	ExamID          uuid.UUID         `json:"exam_id"`
	Title           string            `json:"title"`
	DurationMinutes int               `json:"duration_minutes"`
	Questions       []QuestionForUser `json:"questions"`
}

// StripAnswers builds the taker-safe paper from a catalog payload.
func (e *ExamForSession) StripAnswers() *ExamPaper {
	qs := make([]QuestionForUser, 0, len(e.Questions))
	for _, q := range e.Questions {
		qs = append(qs, QuestionForUser{
			ID:       q.ID,
			OrderNum: q.OrderNum,
			Category: q.Category,
			Text:     q.Text,
			Options:  q.Options,
		})
	}
	return &ExamPaper{
		ExamID:          e.Exam.ID,
		Title:           e.Exam.Title,
		DurationMinutes: e.Exam.DurationMinutes,
		Questions:       qs,
	}
}
