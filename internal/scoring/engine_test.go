package scoring

import (
	"testing"

	"github.com/google/uuid"
)

func strPtr(s string) *string { return &s }

func TestScore_MixedCategories(t *testing.T) {
	// Three questions, categories A (1 question) and B (2), 10 points each.
	// Q1 correct, Q2 wrong, Q3 unanswered.
	q1, q2, q3 := uuid.New(), uuid.New(), uuid.New()
	items := []Input{
		{QuestionID: q1, Category: "A", CorrectOption: "B", PointValue: 10, Selected: strPtr("B")},
		{QuestionID: q2, Category: "B", CorrectOption: "C", PointValue: 10, Selected: strPtr("A")},
		{QuestionID: q3, Category: "B", CorrectOption: "D", PointValue: 10, Selected: nil},
	}

	got := Score(items)

	if got.TotalScore != 10 {
		t.Fatalf("TotalScore = %v, want 10", got.TotalScore)
	}
	if got.MaxScore != 30 {
		t.Fatalf("MaxScore = %v, want 30", got.MaxScore)
	}
	if got.AnsweredCount != 2 || got.CorrectCount != 1 || got.TotalQuestions != 3 {
		t.Fatalf("counts = answered %d correct %d total %d, want 2/1/3",
			got.AnsweredCount, got.CorrectCount, got.TotalQuestions)
	}

	if len(got.PerCategory) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(got.PerCategory))
	}
	a, b := got.PerCategory[0], got.PerCategory[1]
	if a.Category != "A" || a.Score != 10 || a.MaxScore != 10 || a.CorrectCount != 1 || a.TotalCount != 1 {
		t.Fatalf("category A breakdown wrong: %+v", a)
	}
	if b.Category != "B" || b.Score != 0 || b.MaxScore != 20 || b.CorrectCount != 0 || b.TotalCount != 2 {
		t.Fatalf("category B breakdown wrong: %+v", b)
	}

	if len(got.Verdicts) != 2 {
		t.Fatalf("expected verdicts only for answered questions, got %d", len(got.Verdicts))
	}
	if got.Verdicts[0].QuestionID != q1 || !got.Verdicts[0].IsCorrect {
		t.Fatalf("q1 verdict wrong: %+v", got.Verdicts[0])
	}
	if got.Verdicts[1].QuestionID != q2 || got.Verdicts[1].IsCorrect {
		t.Fatalf("q2 verdict wrong: %+v", got.Verdicts[1])
	}
}

func TestScore_EmptyCategoryStillPresent(t *testing.T) {
	// A category whose questions are all unanswered must still appear.
	items := []Input{
		{QuestionID: uuid.New(), Category: "verbal", CorrectOption: "A", PointValue: 5, Selected: strPtr("A")},
		{QuestionID: uuid.New(), Category: "numerical", CorrectOption: "B", PointValue: 5, Selected: nil},
	}

	got := Score(items)

	if len(got.PerCategory) != 2 {
		t.Fatalf("expected both categories, got %d", len(got.PerCategory))
	}
	num := got.PerCategory[1]
	if num.Category != "numerical" || num.TotalCount != 1 || num.CorrectCount != 0 || num.MaxScore != 5 {
		t.Fatalf("empty category breakdown wrong: %+v", num)
	}
}

func TestScore_CaseSensitiveExactMatch(t *testing.T) {
	tests := []struct {
		name     string
		selected *string
		correct  string
		want     bool
	}{
		{name: "exact match", selected: strPtr("C"), correct: "C", want: true},
		{name: "lowercase never matches", selected: strPtr("c"), correct: "C", want: false},
		{name: "nil never matches", selected: nil, correct: "C", want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Score([]Input{{
				QuestionID:    uuid.New(),
				Category:      "x",
				CorrectOption: tc.correct,
				PointValue:    1,
				Selected:      tc.selected,
			}})
			if (got.TotalScore == 1) != tc.want {
				t.Fatalf("score = %v, want correct=%v", got.TotalScore, tc.want)
			}
		})
	}
}

func TestScore_Deterministic(t *testing.T) {
	items := []Input{
		{QuestionID: uuid.New(), Category: "b", CorrectOption: "A", PointValue: 3, Selected: strPtr("A")},
		{QuestionID: uuid.New(), Category: "a", CorrectOption: "B", PointValue: 7, Selected: strPtr("E")},
		{QuestionID: uuid.New(), Category: "b", CorrectOption: "C", PointValue: 2, Selected: strPtr("C")},
	}

	first := Score(items)
	for i := 0; i < 10; i++ {
		again := Score(items)
		if again.TotalScore != first.TotalScore || len(again.PerCategory) != len(first.PerCategory) {
			t.Fatalf("run %d diverged: %+v vs %+v", i, again, first)
		}
		for j := range again.PerCategory {
			if again.PerCategory[j] != first.PerCategory[j] {
				t.Fatalf("category order/content not deterministic: %+v vs %+v",
					again.PerCategory[j], first.PerCategory[j])
			}
		}
	}
}

func TestScore_NoQuestions(t *testing.T) {
	got := Score(nil)
	if got.TotalScore != 0 || got.MaxScore != 0 || got.TotalQuestions != 0 || len(got.PerCategory) != 0 {
		t.Fatalf("empty input should yield zero result, got %+v", got)
	}
}
