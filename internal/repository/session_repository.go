package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/civitest/civitest-backend/internal/model"
	"github.com/civitest/civitest-backend/internal/timer"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionRepository handles exam session data access. Cross-row invariants
// (one session per user+exam, single-fire finalize) live here, in the
// store's uniqueness and conditional-update guarantees, because multiple
// service instances may run concurrently.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `id, user_id, exam_id, started_at, finished_at, status, total_score`

func scanSession(row interface {
	Scan(dest ...any) error
}) (*model.Session, error) {
	s := &model.Session{}
	if err := row.Scan(&s.ID, &s.UserID, &s.ExamID, &s.StartedAt, &s.FinishedAt, &s.Status, &s.TotalScore); err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new IN_PROGRESS session. The unique (user_id, exam_id)
// index resolves concurrent starts: the loser gets pgx.ErrNoRows from the
// DO NOTHING and must refetch the winner's row.
func (r *SessionRepository) Create(ctx context.Context, s *model.Session) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO sessions (user_id, exam_id, status)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, exam_id) DO NOTHING
		 RETURNING id, started_at`,
		s.UserID, s.ExamID, model.SessionStatusInProgress,
	).Scan(&s.ID, &s.StartedAt)
}

// GetByID retrieves a session by id.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
}

// GetByUserAndExam retrieves the session for a user+exam pair, if any.
func (r *SessionRepository) GetByUserAndExam(ctx context.Context, userID int, examID uuid.UUID) (*model.Session, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = $1 AND exam_id = $2`,
		userID, examID))
}

// ListByUser retrieves all sessions for a user, newest first.
func (r *SessionRepository) ListByUser(ctx context.Context, userID int) ([]model.Session, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM sessions
		 WHERE user_id = $1
		 ORDER BY started_at DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// OwnerOf returns the user id owning a session, so collaborators
// (proctoring) can authorize their own writes without duplicating
// ownership logic.
func (r *SessionRepository) OwnerOf(ctx context.Context, id uuid.UUID) (int, error) {
	var userID int
	err := r.pool.QueryRow(ctx,
		`SELECT user_id FROM sessions WHERE id = $1`, id,
	).Scan(&userID)
	if err != nil {
		return 0, err
	}
	return userID, nil
}

// MarkTimeout transitions an IN_PROGRESS session to TIMEOUT. The status
// predicate makes the transition single-fire; false means the session was
// already terminal.
func (r *SessionRepository) MarkTimeout(ctx context.Context, id uuid.UUID, finishedAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sessions
		 SET status = $1, finished_at = $2
		 WHERE id = $3 AND status = $4`,
		model.SessionStatusTimeout, finishedAt, id, model.SessionStatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// FinalizeScored flips a session to FINISHED and persists answer
// correctness in one transaction, so a crash mid-scoring can never leave
// FINISHED with partially updated answers. The session row is locked FOR
// UPDATE first, which makes scoring at-most-once (the loser of a
// concurrent submit race gets false) and serializes against answer
// upserts, which select from the same row: score sees exactly the answer
// sheet the session finishes with.
func (r *SessionRepository) FinalizeScored(ctx context.Context, id uuid.UUID, score func(answers []model.Answer) (verdicts []model.AnswerVerdict, totalScore float64), finishedAt time.Time) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin finalize tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status model.SessionStatus
	err = tx.QueryRow(ctx,
		`SELECT status FROM sessions WHERE id = $1 FOR UPDATE`, id,
	).Scan(&status)
	if err != nil {
		return false, fmt.Errorf("lock session: %w", err)
	}
	if status != model.SessionStatusInProgress {
		// Lost the race: someone else already finalized or timed out.
		return false, nil
	}

	answers, err := listSessionAnswers(ctx, tx, id)
	if err != nil {
		return false, fmt.Errorf("read answers: %w", err)
	}
	verdicts, totalScore := score(answers)

	if _, err := tx.Exec(ctx,
		`UPDATE sessions
		 SET status = $1, finished_at = $2, total_score = $3
		 WHERE id = $4`,
		model.SessionStatusFinished, finishedAt, totalScore, id); err != nil {
		return false, fmt.Errorf("finalize session: %w", err)
	}

	if len(verdicts) > 0 {
		questionIDs := make([]uuid.UUID, len(verdicts))
		corrects := make([]bool, len(verdicts))
		for i, v := range verdicts {
			questionIDs[i] = v.QuestionID
			corrects[i] = v.IsCorrect
		}

		// Bulk correctness update via UNNEST, one round trip for the
		// whole answer sheet.
		if _, err := tx.Exec(ctx,
			`UPDATE answers AS a
			 SET is_correct = v.is_correct
			 FROM (
				SELECT u.question_id, u.is_correct
				FROM UNNEST($2::uuid[], $3::bool[]) AS u (question_id, is_correct)
			 ) AS v
			 WHERE a.session_id = $1
			   AND a.question_id = v.question_id`,
			id, questionIDs, corrects); err != nil {
			return false, fmt.Errorf("persist verdicts: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit finalize: %w", err)
	}
	return true, nil
}

// SweepExpired transitions every IN_PROGRESS session whose grace window
// has lapsed to TIMEOUT. Returns the number of sessions swept.
func (r *SessionRepository) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sessions AS s
		 SET status = $1, finished_at = $2
		 FROM exams AS e
		 WHERE s.exam_id = e.id
		   AND s.status = $3
		   AND s.started_at + make_interval(mins => e.duration_minutes) + $4::interval < $2`,
		model.SessionStatusTimeout, now, model.SessionStatusInProgress, timer.Grace)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
