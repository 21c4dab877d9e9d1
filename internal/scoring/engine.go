// Package scoring is the deterministic, side-effect-free scoring engine.
// Input is the ordered question key plus the submitted options; output is
// the total and per-category breakdown. No partial credit, no negative
// marking.
package scoring

import (
	"github.com/civitest/civitest-backend/internal/model"
	"github.com/google/uuid"
)

// Input is one question key paired with the taker's submitted option.
// Selected is nil when the question was never answered (or was cleared).
type Input struct {
	QuestionID    uuid.UUID
	Category      string
	CorrectOption string
	PointValue    float64
	Selected      *string
}

// Result is the engine's output. Verdicts covers answered questions only,
// in input order, so the caller can persist correctness per answer row.
type Result struct {
	TotalScore     float64
	MaxScore       float64
	AnsweredCount  int
	CorrectCount   int
	TotalQuestions int
	PerCategory    []model.CategoryBreakdown
	Verdicts       []model.AnswerVerdict
}

// Score evaluates all questions of an exam against the submitted answers.
// Correctness is an exact, case-sensitive single-letter match; a nil
// selection never matches. Categories appear in first-seen (question
// order) and every declared category is present in the breakdown.
func Score(items []Input) Result {
	res := Result{TotalQuestions: len(items)}

	byCategory := make(map[string]*model.CategoryBreakdown)
	order := make([]string, 0)

	for _, it := range items {
		cat, ok := byCategory[it.Category]
		if !ok {
			cat = &model.CategoryBreakdown{Category: it.Category}
			byCategory[it.Category] = cat
			order = append(order, it.Category)
		}

		cat.TotalCount++
		cat.MaxScore += it.PointValue
		res.MaxScore += it.PointValue

		if it.Selected == nil {
			continue
		}
		res.AnsweredCount++

		correct := *it.Selected == it.CorrectOption
		res.Verdicts = append(res.Verdicts, model.AnswerVerdict{
			QuestionID: it.QuestionID,
			IsCorrect:  correct,
		})

		if correct {
			res.CorrectCount++
			res.TotalScore += it.PointValue
			cat.CorrectCount++
			cat.Score += it.PointValue
		}
	}

	res.PerCategory = make([]model.CategoryBreakdown, 0, len(order))
	for _, name := range order {
		res.PerCategory = append(res.PerCategory, *byCategory[name])
	}

	return res
}
