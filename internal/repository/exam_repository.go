package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/civitest/civitest-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrExamNotFound is returned when the catalog has no such exam.
var ErrExamNotFound = errors.New("exam not found")

// ExamRepository is the read-only catalog reader. This engine never
// mutates exams or questions.
type ExamRepository struct {
	db Querier
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(db Querier) *ExamRepository {
	return &ExamRepository{db: db}
}

// GetByID retrieves a single exam row.
func (r *ExamRepository) GetByID(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	err := r.db.QueryRow(ctx,
		`SELECT id, title, duration_minutes, created_at, updated_at
		 FROM exams
		 WHERE id = $1`, examID,
	).Scan(&e.ID, &e.Title, &e.DurationMinutes, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	return e, nil
}

// GetExamForSession retrieves the exam together with its ordered question
// list including answer keys. Callers must not leak the keys to takers.
func (r *ExamRepository) GetExamForSession(ctx context.Context, examID uuid.UUID) (*model.ExamForSession, error) {
	exam, err := r.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, exam_id, order_num, category, text, options, correct_option, point_value
		 FROM questions
		 WHERE exam_id = $1
		 ORDER BY order_num ASC`, examID,
	)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var questions []model.QuestionRef
	for rows.Next() {
		var q model.QuestionRef
		if err := rows.Scan(&q.ID, &q.ExamID, &q.OrderNum, &q.Category, &q.Text, &q.Options, &q.CorrectOption, &q.PointValue); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}

	return &model.ExamForSession{Exam: *exam, Questions: questions}, nil
}
