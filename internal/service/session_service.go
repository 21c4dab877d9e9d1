package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/civitest/civitest-backend/internal/config"
	"github.com/civitest/civitest-backend/internal/model"
	"github.com/civitest/civitest-backend/internal/repository"
	"github.com/civitest/civitest-backend/internal/scoring"
	"github.com/civitest/civitest-backend/internal/timer"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// paperCacheTTL bounds how long a stripped paper lives in Redis.
const paperCacheTTL = time.Hour

// SessionStore is the persisted attempt store consumed by the lifecycle
// service. Satisfied by repository.SessionRepository.
type SessionStore interface {
	Create(ctx context.Context, s *model.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error)
	GetByUserAndExam(ctx context.Context, userID int, examID uuid.UUID) (*model.Session, error)
	ListByUser(ctx context.Context, userID int) ([]model.Session, error)
	OwnerOf(ctx context.Context, id uuid.UUID) (int, error)
	MarkTimeout(ctx context.Context, id uuid.UUID, finishedAt time.Time) (bool, error)
	// FinalizeScored flips the session to FINISHED at most once. The store
	// calls score with the answer rows as read inside its own transaction,
	// after locking out concurrent answer writes, and persists the verdicts
	// it returns atomically with the status flip.
	FinalizeScored(ctx context.Context, id uuid.UUID, score func(answers []model.Answer) (verdicts []model.AnswerVerdict, totalScore float64), finishedAt time.Time) (bool, error)
}

// AnswerStore is the per-question answer store. Satisfied by
// repository.AnswerRepository.
type AnswerStore interface {
	Upsert(ctx context.Context, a *model.Answer) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Answer, error)
	CountAnswered(ctx context.Context, sessionID uuid.UUID) (int, error)
}

// Catalog is the read-only exam catalog reader. Satisfied by
// repository.ExamRepository.
type Catalog interface {
	GetExamForSession(ctx context.Context, examID uuid.UUID) (*model.ExamForSession, error)
}

// SessionService orchestrates the timed attempt lifecycle: start, answer
// autosave, finalize and ownership-checked reads. The timer policy runs
// before every mutation; scoring happens exactly once inside the store's
// finalize transaction.
type SessionService struct {
	sessions SessionStore
	answers  AnswerStore
	catalog  Catalog
	rdb      *redis.Client
	clock    timer.Clock
	log      zerolog.Logger
}

// NewSessionService creates a new SessionService. rdb may be nil; the
// paper cache then degrades to catalog reads.
func NewSessionService(
	sessions SessionStore,
	answers AnswerStore,
	catalog Catalog,
	rdb *redis.Client,
	clock timer.Clock,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		sessions: sessions,
		answers:  answers,
		catalog:  catalog,
		rdb:      rdb,
		clock:    clock,
		log:      log.With().Str("component", "session_service").Logger(),
	}
}

// loadExam fetches the catalog payload and applies the start preconditions:
// the exam must exist, carry a duration and have at least one question.
func (s *SessionService) loadExam(ctx context.Context, examID uuid.UUID) (*model.ExamForSession, error) {
	exam, err := s.catalog.GetExamForSession(ctx, examID)
	if err != nil {
		if errors.Is(err, repository.ErrExamNotFound) || errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: exam %s", ErrNotFound, examID)
		}
		return nil, fmt.Errorf("load exam: %w", err)
	}
	if exam.Exam.DurationMinutes <= 0 {
		return nil, fmt.Errorf("%w: exam has no configured duration", ErrBusinessRule)
	}
	if len(exam.Questions) == 0 {
		return nil, fmt.Errorf("%w: exam has no questions", ErrBusinessRule)
	}
	return exam, nil
}

// Start opens an attempt, or resumes the existing non-terminal one
// (idempotent: reloads and double-clicks get the same session back).
// A terminal prior attempt rejects with ErrAlreadyCompleted.
func (s *SessionService) Start(ctx context.Context, userID int, examID uuid.UUID) (*model.StartResult, error) {
	exam, err := s.loadExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	existing, err := s.sessions.GetByUserAndExam(ctx, userID, examID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check existing session: %w", err)
	}
	if existing != nil {
		return s.resume(ctx, existing, exam)
	}

	session := &model.Session{
		UserID: userID,
		ExamID: examID,
		Status: model.SessionStatusInProgress,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost the create race: hand the caller the winner's row.
			winner, fetchErr := s.sessions.GetByUserAndExam(ctx, userID, examID)
			if fetchErr != nil {
				return nil, fmt.Errorf("concurrent start detected, fetch failed: %w", fetchErr)
			}
			return s.resume(ctx, winner, exam)
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.log.Info().
		Str("session_id", session.ID.String()).
		Int("user_id", userID).
		Str("exam_id", examID.String()).
		Msg("session started")

	return &model.StartResult{
		Session:   session,
		Resumed:   false,
		Questions: exam.StripAnswers().Questions,
		Answers:   []model.Answer{},
	}, nil
}

func (s *SessionService) resume(ctx context.Context, session *model.Session, exam *model.ExamForSession) (*model.StartResult, error) {
	if session.Status.Terminal() {
		return nil, fmt.Errorf("%w: session %s is %s", ErrAlreadyCompleted, session.ID, session.Status)
	}

	answers, err := s.answers.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("list autosaved answers: %w", err)
	}
	if answers == nil {
		answers = []model.Answer{}
	}

	return &model.StartResult{
		Session:   session,
		Resumed:   true,
		Questions: exam.StripAnswers().Questions,
		Answers:   answers,
	}, nil
}

// loadOwned fetches a session and verifies the caller owns it.
func (s *SessionService) loadOwned(ctx context.Context, sessionID uuid.UUID, callerID int) (*model.Session, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session.UserID != callerID {
		return nil, fmt.Errorf("%w: session %s", ErrUnauthorized, sessionID)
	}
	return session, nil
}

// expire transitions a session whose grace window lapsed. The conditional
// update decides what actually happened under concurrency: if another call
// finalized first the caller sees AlreadyCompleted, otherwise the session
// is now TIMEOUT and the caller sees SessionExpired.
func (s *SessionService) expire(ctx context.Context, session *model.Session, now time.Time) error {
	flipped, err := s.sessions.MarkTimeout(ctx, session.ID, now)
	if err != nil {
		return fmt.Errorf("mark timeout: %w", err)
	}
	if !flipped {
		current, err := s.sessions.GetByID(ctx, session.ID)
		if err == nil && current.Status == model.SessionStatusFinished {
			return fmt.Errorf("%w: session %s", ErrAlreadyCompleted, session.ID)
		}
		return fmt.Errorf("%w: session %s", ErrSessionExpired, session.ID)
	}

	s.log.Info().
		Str("session_id", session.ID.String()).
		Msg("session timed out")

	return fmt.Errorf("%w: session %s", ErrSessionExpired, session.ID)
}

// SubmitAnswer upserts one autosaved answer. A nil selected option clears
// a prior answer. Correctness is never computed here — autosave must not
// reveal it.
func (s *SessionService) SubmitAnswer(ctx context.Context, sessionID uuid.UUID, callerID int, questionID uuid.UUID, selected *string) (*model.Answer, *model.Progress, error) {
	if selected != nil && !model.ValidOption(*selected) {
		return nil, nil, fmt.Errorf("%w: option %q is not one of A-E", ErrBusinessRule, *selected)
	}

	session, err := s.loadOwned(ctx, sessionID, callerID)
	if err != nil {
		return nil, nil, err
	}
	if session.Status.Terminal() {
		return nil, nil, fmt.Errorf("%w: session %s is %s", ErrAlreadyCompleted, sessionID, session.Status)
	}

	exam, err := s.loadExam(ctx, session.ExamID)
	if err != nil {
		return nil, nil, err
	}

	now := s.clock.Now()
	if !timer.WithinGrace(session.StartedAt, exam.Exam.DurationMinutes, now) {
		return nil, nil, s.expire(ctx, session, now)
	}

	if exam.QuestionByID(questionID) == nil {
		return nil, nil, fmt.Errorf("%w: question %s", ErrInvalidReference, questionID)
	}

	answer := &model.Answer{
		SessionID:      sessionID,
		QuestionID:     questionID,
		SelectedOption: selected,
	}
	if err := s.answers.Upsert(ctx, answer); err != nil {
		if errors.Is(err, repository.ErrSessionClosed) {
			// The session went terminal between the status check above and
			// the store write. The store's own guard rejected the row.
			current, cerr := s.sessions.GetByID(ctx, sessionID)
			if cerr == nil && current.Status == model.SessionStatusTimeout {
				return nil, nil, fmt.Errorf("%w: session %s", ErrSessionExpired, sessionID)
			}
			return nil, nil, fmt.Errorf("%w: session %s", ErrAlreadyCompleted, sessionID)
		}
		return nil, nil, err
	}

	answered, err := s.answers.CountAnswered(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("count answered: %w", err)
	}

	total := len(exam.Questions)
	progress := &model.Progress{
		AnsweredCount:  answered,
		TotalQuestions: total,
		Percentage:     float64(answered) / float64(total) * 100,
	}
	return answer, progress, nil
}

// SubmitExam finalizes an attempt: scores every question, persists
// correctness and flips the session to FINISHED, all inside the store's
// transaction. A submit past the grace window transitions to TIMEOUT and
// yields no score. Concurrent submits finalize at most once; losers see
// ErrAlreadyCompleted.
func (s *SessionService) SubmitExam(ctx context.Context, sessionID uuid.UUID, callerID int) (*model.ScoreResult, error) {
	session, err := s.loadOwned(ctx, sessionID, callerID)
	if err != nil {
		return nil, err
	}
	if session.Status.Terminal() {
		return nil, fmt.Errorf("%w: session %s is %s", ErrAlreadyCompleted, sessionID, session.Status)
	}

	exam, err := s.loadExam(ctx, session.ExamID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if !timer.WithinGrace(session.StartedAt, exam.Exam.DurationMinutes, now) {
		return nil, s.expire(ctx, session, now)
	}

	// The answer sheet is read by the store inside the finalize
	// transaction, after concurrent answer writes are locked out, so the
	// score covers exactly the rows the session finishes with.
	var scored scoring.Result
	finalized, err := s.sessions.FinalizeScored(ctx, sessionID, func(answers []model.Answer) ([]model.AnswerVerdict, float64) {
		selectedByQuestion := make(map[uuid.UUID]*string, len(answers))
		for i := range answers {
			selectedByQuestion[answers[i].QuestionID] = answers[i].SelectedOption
		}

		items := make([]scoring.Input, 0, len(exam.Questions))
		for _, q := range exam.Questions {
			items = append(items, scoring.Input{
				QuestionID:    q.ID,
				Category:      q.Category,
				CorrectOption: q.CorrectOption,
				PointValue:    q.PointValue,
				Selected:      selectedByQuestion[q.ID],
			})
		}
		scored = scoring.Score(items)

		// Cleared rows score false as well: a null selection never
		// matches, and review must not show them as unscored.
		verdicts := scored.Verdicts
		for i := range answers {
			if answers[i].SelectedOption == nil {
				verdicts = append(verdicts, model.AnswerVerdict{QuestionID: answers[i].QuestionID})
			}
		}
		return verdicts, scored.TotalScore
	}, now)
	if err != nil {
		return nil, fmt.Errorf("finalize session: %w", err)
	}
	if !finalized {
		return nil, fmt.Errorf("%w: session %s", ErrAlreadyCompleted, sessionID)
	}

	s.log.Info().
		Str("session_id", sessionID.String()).
		Float64("total_score", scored.TotalScore).
		Int("answered", scored.AnsweredCount).
		Msg("session finished")

	return &model.ScoreResult{
		SessionID:      sessionID,
		ExamID:         session.ExamID,
		TotalScore:     scored.TotalScore,
		MaxScore:       scored.MaxScore,
		AnsweredCount:  scored.AnsweredCount,
		CorrectCount:   scored.CorrectCount,
		TotalQuestions: scored.TotalQuestions,
		ElapsedSeconds: timer.ElapsedSeconds(session.StartedAt, now),
		PerCategory:    scored.PerCategory,
	}, nil
}

// GetSession is the ownership-checked session read.
func (s *SessionService) GetSession(ctx context.Context, sessionID uuid.UUID, callerID int) (*model.Session, error) {
	return s.loadOwned(ctx, sessionID, callerID)
}

// GetState returns the resume payload for a page reload: autosaved answers
// plus the remaining time as this server's clock sees it.
func (s *SessionService) GetState(ctx context.Context, sessionID uuid.UUID, callerID int) (*model.SessionState, error) {
	session, err := s.loadOwned(ctx, sessionID, callerID)
	if err != nil {
		return nil, err
	}

	exam, err := s.loadExam(ctx, session.ExamID)
	if err != nil {
		return nil, err
	}

	var remaining time.Duration
	if !session.Status.Terminal() {
		remaining = timer.Remaining(session.StartedAt, exam.Exam.DurationMinutes, s.clock.Now())
	}

	answers, err := s.answers.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	autosaved := make(map[string]string, len(answers))
	for _, a := range answers {
		if a.SelectedOption != nil {
			autosaved[a.QuestionID.String()] = *a.SelectedOption
		}
	}

	return &model.SessionState{
		SessionID:        sessionID,
		Status:           session.Status,
		RemainingMs:      remaining.Milliseconds(),
		AutosavedAnswers: autosaved,
	}, nil
}

// GetPaper returns the exam's question list with the answer key stripped,
// for the session owner only. Served from Redis when possible.
func (s *SessionService) GetPaper(ctx context.Context, sessionID uuid.UUID, callerID int) (*model.ExamPaper, error) {
	session, err := s.loadOwned(ctx, sessionID, callerID)
	if err != nil {
		return nil, err
	}

	cacheKey := config.CacheKey.ExamPaperKey(session.ExamID.String())
	if s.rdb != nil {
		if raw, err := s.rdb.Get(ctx, cacheKey).Result(); err == nil {
			paper := &model.ExamPaper{}
			if err := json.Unmarshal([]byte(raw), paper); err == nil {
				return paper, nil
			}
		}
	}

	exam, err := s.loadExam(ctx, session.ExamID)
	if err != nil {
		return nil, err
	}
	paper := exam.StripAnswers()

	if s.rdb != nil {
		if raw, err := json.Marshal(paper); err == nil {
			if err := s.rdb.Set(ctx, cacheKey, raw, paperCacheTTL).Err(); err != nil {
				s.log.Warn().Err(err).Msg("paper cache write failed")
			}
		}
	}

	return paper, nil
}

// GetAnswersForReview reveals the answer key next to the taker's answers.
// Only permitted once the session is terminal.
func (s *SessionService) GetAnswersForReview(ctx context.Context, sessionID uuid.UUID, callerID int) ([]model.ReviewItem, error) {
	session, err := s.loadOwned(ctx, sessionID, callerID)
	if err != nil {
		return nil, err
	}
	if !session.Status.Terminal() {
		return nil, fmt.Errorf("%w: review unavailable before submission", ErrBusinessRule)
	}

	exam, err := s.loadExam(ctx, session.ExamID)
	if err != nil {
		return nil, err
	}

	answers, err := s.answers.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	byQuestion := make(map[uuid.UUID]*model.Answer, len(answers))
	for i := range answers {
		byQuestion[answers[i].QuestionID] = &answers[i]
	}

	items := make([]model.ReviewItem, 0, len(exam.Questions))
	for _, q := range exam.Questions {
		item := model.ReviewItem{
			QuestionID:    q.ID,
			OrderNum:      q.OrderNum,
			Category:      q.Category,
			Text:          q.Text,
			Options:       q.Options,
			CorrectOption: q.CorrectOption,
			PointValue:    q.PointValue,
		}
		if a, ok := byQuestion[q.ID]; ok {
			item.SelectedOption = a.SelectedOption
			item.IsCorrect = a.IsCorrect
		}
		items = append(items, item)
	}
	return items, nil
}

// ListSessionsForUser returns all of the caller's sessions, newest first.
func (s *SessionService) ListSessionsForUser(ctx context.Context, userID int) ([]model.Session, error) {
	sessions, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if sessions == nil {
		sessions = []model.Session{}
	}
	return sessions, nil
}

// OwnerOf exposes session ownership to collaborators (proctoring event
// writers) without duplicating the check.
func (s *SessionService) OwnerOf(ctx context.Context, sessionID uuid.UUID) (int, error) {
	userID, err := s.sessions.OwnerOf(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
		}
		return 0, fmt.Errorf("lookup owner: %w", err)
	}
	return userID, nil
}
