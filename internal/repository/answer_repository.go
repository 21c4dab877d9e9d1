package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/civitest/civitest-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrSessionClosed is returned by Upsert when the owning session is no
// longer IN_PROGRESS, so a write racing a finalize can never land on a
// scored session.
var ErrSessionClosed = errors.New("session no longer accepts answer writes")

// AnswerRepository handles per-question answer rows. Rows are unique per
// (session_id, question_id); autosave is an explicit set-or-replace on that
// natural key so ownership and deadline checks can never be bypassed.
type AnswerRepository struct {
	db Querier
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(db Querier) *AnswerRepository {
	return &AnswerRepository{db: db}
}

// Upsert creates or replaces the answer for (session, question). A nil
// SelectedOption is a valid write that clears a prior answer. Correctness
// is never touched here — autosave must not reveal it.
//
// The row source selects from sessions under FOR UPDATE: a write racing a
// finalize blocks on the session row lock, re-evaluates the status after
// the finalize commits and inserts nothing. Zero rows maps to
// ErrSessionClosed.
func (r *AnswerRepository) Upsert(ctx context.Context, a *model.Answer) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO answers (session_id, question_id, selected_option)
		 SELECT s.id, $2, $3
		 FROM sessions s
		 WHERE s.id = $1 AND s.status = $4
		 FOR UPDATE
		 ON CONFLICT (session_id, question_id) DO UPDATE
		 SET selected_option = EXCLUDED.selected_option,
		     answered_at = NOW()
		 RETURNING id, answered_at`,
		a.SessionID, a.QuestionID, a.SelectedOption, model.SessionStatusInProgress,
	).Scan(&a.ID, &a.AnsweredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("upsert answer: %w", ErrSessionClosed)
		}
		return fmt.Errorf("upsert answer: %w", err)
	}
	return nil
}

// listSessionAnswers reads all answer rows for a session in question order.
// Shared between the pool-backed list and the finalize transaction.
func listSessionAnswers(ctx context.Context, q Querier, sessionID uuid.UUID) ([]model.Answer, error) {
	rows, err := q.Query(ctx,
		`SELECT a.id, a.session_id, a.question_id, a.selected_option, a.answered_at, a.is_correct
		 FROM answers a
		 JOIN questions q ON q.id = a.question_id
		 WHERE a.session_id = $1
		 ORDER BY q.order_num ASC`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.Answer
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.ID, &a.SessionID, &a.QuestionID, &a.SelectedOption, &a.AnsweredAt, &a.IsCorrect); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// ListBySession retrieves all answer rows for a session in question order.
func (r *AnswerRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Answer, error) {
	return listSessionAnswers(ctx, r.db, sessionID)
}

// CountAnswered returns how many questions currently hold a non-null
// selection, for progress snapshots.
func (r *AnswerRepository) CountAnswered(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM answers
		 WHERE session_id = $1 AND selected_option IS NOT NULL`, sessionID,
	).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}
