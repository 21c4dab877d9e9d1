package repository

import (
	"context"
	"fmt"

	"github.com/civitest/civitest-backend/internal/model"
	"github.com/google/uuid"
)

// SummaryRepository serves the read side: already-scored sessions joined
// with catalog data. Nothing here re-scores.
type SummaryRepository struct {
	db Querier
}

// NewSummaryRepository creates a new SummaryRepository.
func NewSummaryRepository(db Querier) *SummaryRepository {
	return &SummaryRepository{db: db}
}

// ListFinishedByUser retrieves a user's FINISHED sessions with each exam's
// maximum possible score, oldest first.
func (r *SummaryRepository) ListFinishedByUser(ctx context.Context, userID int) ([]model.FinishedSession, error) {
	rows, err := r.db.Query(ctx,
		`SELECT s.id, s.exam_id, e.title,
		        COALESCE(s.total_score, 0),
		        COALESCE(m.max_score, 0),
		        s.started_at, s.finished_at
		 FROM sessions s
		 JOIN exams e ON e.id = s.exam_id
		 LEFT JOIN (
			SELECT exam_id, SUM(point_value) AS max_score
			FROM questions
			GROUP BY exam_id
		 ) m ON m.exam_id = s.exam_id
		 WHERE s.user_id = $1 AND s.status = $2
		 ORDER BY s.finished_at ASC`,
		userID, model.SessionStatusFinished,
	)
	if err != nil {
		return nil, fmt.Errorf("list finished sessions: %w", err)
	}
	defer rows.Close()

	var out []model.FinishedSession
	for rows.Next() {
		var f model.FinishedSession
		if err := rows.Scan(&f.SessionID, &f.ExamID, &f.ExamTitle, &f.TotalScore, &f.MaxScore, &f.StartedAt, &f.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ListResultsByExam retrieves all session results for one exam, paginated.
func (r *SummaryRepository) ListResultsByExam(ctx context.Context, examID uuid.UUID, page, perPage int) ([]model.ExamResultRow, int64, error) {
	offset := (page - 1) * perPage

	var total int64
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM sessions WHERE exam_id = $1`, examID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, status, total_score, started_at, finished_at
		 FROM sessions
		 WHERE exam_id = $1
		 ORDER BY started_at ASC
		 LIMIT $2 OFFSET $3`, examID, perPage, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []model.ExamResultRow
	for rows.Next() {
		var row model.ExamResultRow
		if err := rows.Scan(&row.SessionID, &row.UserID, &row.Status, &row.TotalScore, &row.StartedAt, &row.FinishedAt); err != nil {
			return nil, 0, err
		}
		results = append(results, row)
	}

	return results, total, rows.Err()
}
