package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/civitest/civitest-backend/internal/model"
	"github.com/civitest/civitest-backend/internal/repository"
	"github.com/civitest/civitest-backend/internal/timer"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fakeSessionStore struct {
	sessions map[uuid.UUID]*model.Session
	now      func() time.Time
	answers  *fakeAnswerStore
	// finalizeCalls counts FinalizeScored invocations that flipped state.
	finalizeCalls int
}

func newFakeSessionStore(now func() time.Time) *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[uuid.UUID]*model.Session), now: now}
}

func (f *fakeSessionStore) Create(ctx context.Context, s *model.Session) error {
	for _, existing := range f.sessions {
		if existing.UserID == s.UserID && existing.ExamID == s.ExamID {
			return pgx.ErrNoRows
		}
	}
	s.ID = uuid.New()
	s.StartedAt = f.now()
	copied := *s
	f.sessions[s.ID] = &copied
	return nil
}

func (f *fakeSessionStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *s
	return &copied, nil
}

func (f *fakeSessionStore) GetByUserAndExam(ctx context.Context, userID int, examID uuid.UUID) (*model.Session, error) {
	for _, s := range f.sessions {
		if s.UserID == userID && s.ExamID == examID {
			copied := *s
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeSessionStore) ListByUser(ctx context.Context, userID int) ([]model.Session, error) {
	var out []model.Session
	for _, s := range f.sessions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSessionStore) OwnerOf(ctx context.Context, id uuid.UUID) (int, error) {
	s, ok := f.sessions[id]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	return s.UserID, nil
}

func (f *fakeSessionStore) MarkTimeout(ctx context.Context, id uuid.UUID, finishedAt time.Time) (bool, error) {
	s, ok := f.sessions[id]
	if !ok || s.Status != model.SessionStatusInProgress {
		return false, nil
	}
	s.Status = model.SessionStatusTimeout
	s.FinishedAt = &finishedAt
	return true, nil
}

// FinalizeScored mirrors the store contract: the answer sheet is read and
// verdicts are applied while the session flips, never after.
func (f *fakeSessionStore) FinalizeScored(ctx context.Context, id uuid.UUID, score func(answers []model.Answer) ([]model.AnswerVerdict, float64), finishedAt time.Time) (bool, error) {
	s, ok := f.sessions[id]
	if !ok || s.Status != model.SessionStatusInProgress {
		return false, nil
	}
	rows, err := f.answers.ListBySession(ctx, id)
	if err != nil {
		return false, err
	}
	verdicts, totalScore := score(rows)
	for _, v := range verdicts {
		if a, ok := f.answers.answers[answerKey{id, v.QuestionID}]; ok {
			correct := v.IsCorrect
			a.IsCorrect = &correct
		}
	}
	s.Status = model.SessionStatusFinished
	s.FinishedAt = &finishedAt
	s.TotalScore = &totalScore
	f.finalizeCalls++
	return true, nil
}

type answerKey struct {
	session  uuid.UUID
	question uuid.UUID
}

type fakeAnswerStore struct {
	answers  map[answerKey]*model.Answer
	sessions *fakeSessionStore
}

func newFakeAnswerStore() *fakeAnswerStore {
	return &fakeAnswerStore{answers: make(map[answerKey]*model.Answer)}
}

// Upsert enforces the same guard as the SQL store: writes against a
// session that is no longer IN_PROGRESS are rejected.
func (f *fakeAnswerStore) Upsert(ctx context.Context, a *model.Answer) error {
	if f.sessions != nil {
		s, ok := f.sessions.sessions[a.SessionID]
		if !ok || s.Status != model.SessionStatusInProgress {
			return repository.ErrSessionClosed
		}
	}
	key := answerKey{a.SessionID, a.QuestionID}
	if existing, ok := f.answers[key]; ok {
		existing.SelectedOption = a.SelectedOption
		a.ID = existing.ID
		a.AnsweredAt = time.Now()
		return nil
	}
	a.ID = uuid.New()
	a.AnsweredAt = time.Now()
	copied := *a
	f.answers[key] = &copied
	return nil
}

func (f *fakeAnswerStore) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Answer, error) {
	var out []model.Answer
	for k, a := range f.answers {
		if k.session == sessionID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAnswerStore) CountAnswered(ctx context.Context, sessionID uuid.UUID) (int, error) {
	count := 0
	for k, a := range f.answers {
		if k.session == sessionID && a.SelectedOption != nil {
			count++
		}
	}
	return count, nil
}

type fakeCatalog struct {
	exams map[uuid.UUID]*model.ExamForSession
}

func (f *fakeCatalog) GetExamForSession(ctx context.Context, examID uuid.UUID) (*model.ExamForSession, error) {
	e, ok := f.exams[examID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return e, nil
}

func strPtr(s string) *string { return &s }

// testExam builds a 30-minute exam with three 10-point questions, two in
// category "Verbal" and one in "Numeric".
func testExam() *model.ExamForSession {
	examID := uuid.New()
	return &model.ExamForSession{
		Exam: model.Exam{
			ID:              examID,
			Title:           "Civil Service Mock A",
			DurationMinutes: 30,
		},
		Questions: []model.QuestionRef{
			{ID: uuid.New(), ExamID: examID, OrderNum: 1, Category: "Verbal", Text: "Q1", Options: []string{"a", "b", "c", "d", "e"}, CorrectOption: "A", PointValue: 10},
			{ID: uuid.New(), ExamID: examID, OrderNum: 2, Category: "Verbal", Text: "Q2", Options: []string{"a", "b", "c", "d", "e"}, CorrectOption: "B", PointValue: 10},
			{ID: uuid.New(), ExamID: examID, OrderNum: 3, Category: "Numeric", Text: "Q3", Options: []string{"a", "b", "c", "d", "e"}, CorrectOption: "C", PointValue: 10},
		},
	}
}

func newTestService(exam *model.ExamForSession, clock timer.Clock) (*SessionService, *fakeSessionStore, *fakeAnswerStore) {
	sessions := newFakeSessionStore(clock.Now)
	answers := newFakeAnswerStore()
	sessions.answers = answers
	answers.sessions = sessions
	catalog := &fakeCatalog{exams: map[uuid.UUID]*model.ExamForSession{exam.Exam.ID: exam}}
	svc := NewSessionService(sessions, answers, catalog, nil, clock, zerolog.Nop())
	return svc, sessions, answers
}

func TestStartCreatesSession(t *testing.T) {
	exam := testExam()
	clock := &fakeClock{now: time.Now()}
	svc, _, _ := newTestService(exam, clock)

	result, err := svc.Start(context.Background(), 1, exam.Exam.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if result.Resumed {
		t.Error("first start should not be a resume")
	}
	if result.Session.Status != model.SessionStatusInProgress {
		t.Errorf("status = %s, want IN_PROGRESS", result.Session.Status)
	}
	if len(result.Questions) != 3 {
		t.Errorf("questions = %d, want 3", len(result.Questions))
	}
	for _, q := range result.Questions {
		if len(q.Options) != 5 {
			t.Errorf("question %s options = %d, want 5", q.ID, len(q.Options))
		}
	}
}

func TestStartIsIdempotent(t *testing.T) {
	exam := testExam()
	clock := &fakeClock{now: time.Now()}
	svc, _, _ := newTestService(exam, clock)

	first, err := svc.Start(context.Background(), 1, exam.Exam.ID)
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}
	second, err := svc.Start(context.Background(), 1, exam.Exam.ID)
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if !second.Resumed {
		t.Error("second start should resume")
	}
	if second.Session.ID != first.Session.ID {
		t.Errorf("second start returned session %s, want %s", second.Session.ID, first.Session.ID)
	}
}

func TestStartResumesWithAutosavedAnswers(t *testing.T) {
	exam := testExam()
	clock := &fakeClock{now: time.Now()}
	svc, _, _ := newTestService(exam, clock)

	first, err := svc.Start(context.Background(), 1, exam.Exam.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, _, err := svc.SubmitAnswer(context.Background(), first.Session.ID, 1, exam.Questions[0].ID, strPtr("A")); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}

	resumed, err := svc.Start(context.Background(), 1, exam.Exam.ID)
	if err != nil {
		t.Fatalf("resume Start: %v", err)
	}
	if len(resumed.Answers) != 1 {
		t.Fatalf("resumed answers = %d, want 1", len(resumed.Answers))
	}
	if got := resumed.Answers[0].SelectedOption; got == nil || *got != "A" {
		t.Errorf("resumed answer = %v, want A", got)
	}
}

func TestStartAfterCompletionRejected(t *testing.T) {
	exam := testExam()
	clock := &fakeClock{now: time.Now()}
	svc, _, _ := newTestService(exam, clock)

	first, err := svc.Start(context.Background(), 1, exam.Exam.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.SubmitExam(context.Background(), first.Session.ID, 1); err != nil {
		t.Fatalf("SubmitExam: %v", err)
	}

	_, err = svc.Start(context.Background(), 1, exam.Exam.ID)
	if !errors.Is(err, ErrAlreadyCompleted) {
		t.Errorf("err = %v, want ErrAlreadyCompleted", err)
	}
}

func TestStartUnknownExam(t *testing.T) {
	exam := testExam()
	clock := &fakeClock{now: time.Now()}
	svc, _, _ := newTestService(exam, clock)

	_, err := svc.Start(context.Background(), 1, uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStartExamWithoutQuestions(t *testing.T) {
	exam := testExam()
	exam.Questions = nil
	clock := &fakeClock{now: time.Now()}
	svc, _, _ := newTestService(exam, clock)

	_, err := svc.Start(context.Background(), 1, exam.Exam.ID)
	if !errors.Is(err, ErrBusinessRule) {
		t.Errorf("err = %v, want ErrBusinessRule", err)
	}
}

func TestSubmitAnswerUpsert(t *testing.T) {
	exam := testExam()
	clock := &fakeClock{now: time.Now()}
	svc, _, answers := newTestService(exam, clock)

	started, err := svc.Start(context.Background(), 1, exam.Exam.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	sid := started.Session.ID
	qid := exam.Questions[0].ID

	_, progress, err := svc.SubmitAnswer(context.Background(), sid, 1, qid, strPtr("A"))
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if progress.AnsweredCount != 1 || progress.TotalQuestions != 3 {
		t.Errorf("progress = %d/%d, want 1/3", progress.AnsweredCount, progress.TotalQuestions)
	}

	// Second write to the same question replaces, not duplicates.
	_, progress, err = svc.SubmitAnswer(context.Background(), sid, 1, qid, strPtr("B"))
	if err != nil {
		t.Fatalf("second SubmitAnswer: %v", err)
	}
	if progress.AnsweredCount != 1 {
		t.Errorf("answered = %d after overwrite, want 1", progress.AnsweredCount)
	}

	list, _ := answers.ListBySession(context.Background(), sid)
	if len(list) != 1 {
		t.Fatalf("stored answers = %d, want 1", len(list))
	}
	if *list[0].SelectedOption != "B" {
		t.Errorf("stored option = %s, want B", *list[0].SelectedOption)
	}

	// A nil write clears the answer.
	_, progress, err = svc.SubmitAnswer(context.Background(), sid, 1, qid, nil)
	if err != nil {
		t.Fatalf("clearing SubmitAnswer: %v", err)
	}
	if progress.AnsweredCount != 0 {
		t.Errorf("answered = %d after clear, want 0", progress.AnsweredCount)
	}
}

func TestSubmitAnswerInvalidQuestion(t *testing.T) {
	exam := testExam()
	clock := &fakeClock{now: time.Now()}
	svc, _, _ := newTestService(exam, clock)

	started, err := svc.Start(context.Background(), 1, exam.Exam.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, _, err = svc.SubmitAnswer(context.Background(), started.Session.ID, 1, uuid.New(), strPtr("A"))
	if !errors.Is(err, ErrInvalidReference) {
		t.Errorf("err = %v, want ErrInvalidReference", err)
	}
}

func TestSubmitAnswerInvalidOption(t *testing.T) {
	exam := testExam()
	clock := &fakeClock{now: time.Now()}
	svc, _, _ := newTestService(exam, clock)

	started, err := svc.Start(context.Background(), 1, exam.Exam.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	for _, opt := range []string{"F", "a", "AB", ""} {
		_, _, err = svc.SubmitAnswer(context.Background(), started.Session.ID, 1, exam.Questions[0].ID, strPtr(opt))
		if !errors.Is(err, ErrBusinessRule) {
			t.Errorf("option %q: err = %v, want ErrBusinessRule", opt, err)
		}
	}
}

func TestSubmitAnswerOwnership(t *testing.T) {
	exam := testExam()
	clock := &fakeClock{now: time.Now()}
	svc, _, _ := newTestService(exam, clock)

	started, err := svc.Start(context.Background(), 1, exam.Exam.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, _, err = svc.SubmitAnswer(context.Background(), started.Session.ID, 2, exam.Questions[0].ID, strPtr("A"))
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
}

func TestSubmitAnswerAfterGraceTimesOut(t *testing.T) {
	exam := testExam()
	clock := &fakeClock{now: time.Now()}
	svc, sessions, _ := newTestService(exam, clock)

	started, err := svc.Start(context.Background(), 1, exam.Exam.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	clock.Advance(time.Duration(exam.Exam.DurationMinutes)*time.Minute + timer.Grace + time.Second)

	_, _, err = svc.SubmitAnswer(context.Background(), started.Session.ID, 1, exam.Questions[0].ID, strPtr("A"))
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}

	current, _ := sessions.GetByID(context.Background(), started.Session.ID)
	if current.Status != model.SessionStatusTimeout {
		t.Errorf("status = %s, want TIMEOUT", current.Status)
	}
	if current.TotalScore != nil {
		t.Error("timed-out session must not carry a score")
	}
}

func TestSubmitAnswerWithinGraceSucceeds(t *testing.T) {
	exam := testExam()
	clock := &fakeClock{now: time.Now()}
	svc, _, _ := newTestService(exam, clock)

	started, err := svc.Start(context.Background(), 1, exam.Exam.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Nominal time is up, grace is not.
	clock.Advance(time.Duration(exam.Exam.DurationMinutes)*time.Minute + timer.Grace - time.Second)

	_, _, err = svc.SubmitAnswer(context.Background(), started.Session.ID, 1, exam.Questions[0].ID, strPtr("A"))
	if err != nil {
		t.Errorf("submit within grace failed: %v", err)
	}
}

func TestSubmitExamScores(t *testing.T) {
	exam := testExam()
	clock := &fakeClock{now: time.Now()}
	svc, _, _ := newTestService(exam, clock)

	started, err := svc.Start(context.Background(), 1, exam.Exam.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	sid := started.Session.ID

	// Q1 correct, Q2 wrong, Q3 unanswered.
	if _, _, err := svc.SubmitAnswer(context.Background(), sid, 1, exam.Questions[0].ID, strPtr("A")); err != nil {
		t.Fatalf("answer Q1: %v", err)
	}
	if _, _, err := svc.SubmitAnswer(context.Background(), sid, 1, exam.Questions[1].ID, strPtr("C")); err != nil {
		t.Fatalf("answer Q2: %v", err)
	}

	clock.Advance(10 * time.Minute)

	result, err := svc.SubmitExam(context.Background(), sid, 1)
	if err != nil {
		t.Fatalf("SubmitExam: %v", err)
	}
	if result.TotalScore != 10 {
		t.Errorf("total = %v, want 10", result.TotalScore)
	}
	if result.MaxScore != 30 {
		t.Errorf("max = %v, want 30", result.MaxScore)
	}
	if result.AnsweredCount != 2 || result.CorrectCount != 1 {
		t.Errorf("answered/correct = %d/%d, want 2/1", result.AnsweredCount, result.CorrectCount)
	}
	if result.ElapsedSeconds != 600 {
		t.Errorf("elapsed = %d, want 600", result.ElapsedSeconds)
	}
	if len(result.PerCategory) != 2 {
		t.Fatalf("categories = %d, want 2", len(result.PerCategory))
	}
}

func TestSubmitExamAtMostOnce(t *testing.T) {
	exam := testExam()
	clock := &fakeClock{now: time.Now()}
	svc, sessions, _ := newTestService(exam, clock)

	started, err := svc.Start(context.Background(), 1, exam.Exam.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := svc.SubmitExam(context.Background(), started.Session.ID, 1); err != nil {
		t.Fatalf("first SubmitExam: %v", err)
	}
	_, err = svc.SubmitExam(context.Background(), started.Session.ID, 1)
	if !errors.Is(err, ErrAlreadyCompleted) {
		t.Errorf("second submit err = %v, want ErrAlreadyCompleted", err)
	}
	if sessions.finalizeCalls != 1 {
		t.Errorf("finalize ran %d times, want 1", sessions.finalizeCalls)
	}
}

func TestSubmitExamAfterGraceNoScore(t *testing.T) {
	exam := testExam()
	clock := &fakeClock{now: time.Now()}
	svc, sessions, _ := newTestService(exam, clock)

	started, err := svc.Start(context.Background(), 1, exam.Exam.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, _, err := svc.SubmitAnswer(context.Background(), started.Session.ID, 1, exam.Questions[0].ID, strPtr("A")); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}

	clock.Advance(time.Duration(exam.Exam.DurationMinutes)*time.Minute + timer.Grace + time.Second)

	_, err = svc.SubmitExam(context.Background(), started.Session.ID, 1)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}

	current, _ := sessions.GetByID(context.Background(), started.Session.ID)
	if current.Status != model.SessionStatusTimeout {
		t.Errorf("status = %s, want TIMEOUT", current.Status)
	}
	if current.TotalScore != nil {
		t.Error("timed-out session must not carry a score")
	}
	if sessions.finalizeCalls != 0 {
		t.Errorf("finalize ran %d times, want 0", sessions.finalizeCalls)
	}
}

// hookedAnswerStore runs a callback once before the next store write, to
// interleave another operation between a caller's checks and its write.
type hookedAnswerStore struct {
	*fakeAnswerStore
	beforeUpsert func()
}

func (h *hookedAnswerStore) Upsert(ctx context.Context, a *model.Answer) error {
	if hook := h.beforeUpsert; hook != nil {
		h.beforeUpsert = nil
		hook()
	}
	return h.fakeAnswerStore.Upsert(ctx, a)
}

func TestAutosaveRacingFinalizeIsRejected(t *testing.T) {
	exam := testExam()
	clock := &fakeClock{now: time.Now()}
	sessions := newFakeSessionStore(clock.Now)
	answers := newFakeAnswerStore()
	sessions.answers = answers
	answers.sessions = sessions
	hooked := &hookedAnswerStore{fakeAnswerStore: answers}
	catalog := &fakeCatalog{exams: map[uuid.UUID]*model.ExamForSession{exam.Exam.ID: exam}}
	svc := NewSessionService(sessions, hooked, catalog, nil, clock, zerolog.Nop())

	started, err := svc.Start(context.Background(), 1, exam.Exam.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	sid := started.Session.ID

	if _, _, err := svc.SubmitAnswer(context.Background(), sid, 1, exam.Questions[0].ID, strPtr("A")); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}

	// The next autosave passes its in-service status check, then the exam
	// finalizes before the answer write reaches the store.
	hooked.beforeUpsert = func() {
		if _, err := svc.SubmitExam(context.Background(), sid, 1); err != nil {
			t.Fatalf("SubmitExam during race: %v", err)
		}
	}

	_, _, err = svc.SubmitAnswer(context.Background(), sid, 1, exam.Questions[1].ID, strPtr("B"))
	if !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("racing autosave err = %v, want ErrAlreadyCompleted", err)
	}

	// The finished session holds exactly the rows that were scored.
	rows, _ := answers.ListBySession(context.Background(), sid)
	if len(rows) != 1 {
		t.Fatalf("stored answers = %d, want 1", len(rows))
	}
	if rows[0].IsCorrect == nil {
		t.Error("finished session holds an unscored answer")
	}
	current, _ := sessions.GetByID(context.Background(), sid)
	if current.Status != model.SessionStatusFinished {
		t.Errorf("status = %s, want FINISHED", current.Status)
	}
	if current.TotalScore == nil || *current.TotalScore != 10 {
		t.Errorf("total = %v, want 10", current.TotalScore)
	}
}

func TestSubmitExamScoresClearedRows(t *testing.T) {
	exam := testExam()
	clock := &fakeClock{now: time.Now()}
	svc, _, answers := newTestService(exam, clock)

	started, err := svc.Start(context.Background(), 1, exam.Exam.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	sid := started.Session.ID

	// Q1 answered then cleared, Q2 answered correctly.
	if _, _, err := svc.SubmitAnswer(context.Background(), sid, 1, exam.Questions[0].ID, strPtr("A")); err != nil {
		t.Fatalf("answer Q1: %v", err)
	}
	if _, _, err := svc.SubmitAnswer(context.Background(), sid, 1, exam.Questions[0].ID, nil); err != nil {
		t.Fatalf("clear Q1: %v", err)
	}
	if _, _, err := svc.SubmitAnswer(context.Background(), sid, 1, exam.Questions[1].ID, strPtr("B")); err != nil {
		t.Fatalf("answer Q2: %v", err)
	}

	result, err := svc.SubmitExam(context.Background(), sid, 1)
	if err != nil {
		t.Fatalf("SubmitExam: %v", err)
	}
	if result.AnsweredCount != 1 {
		t.Errorf("answered = %d, want 1 (cleared rows do not count)", result.AnsweredCount)
	}

	rows, _ := answers.ListBySession(context.Background(), sid)
	for _, row := range rows {
		if row.IsCorrect == nil {
			t.Errorf("question %s left unscored after submit", row.QuestionID)
			continue
		}
		if row.QuestionID == exam.Questions[0].ID && *row.IsCorrect {
			t.Error("cleared row scored correct; a null selection never matches")
		}
	}
}

func TestGetStateReportsRemaining(t *testing.T) {
	exam := testExam()
	clock := &fakeClock{now: time.Now()}
	svc, _, _ := newTestService(exam, clock)

	started, err := svc.Start(context.Background(), 1, exam.Exam.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, _, err := svc.SubmitAnswer(context.Background(), started.Session.ID, 1, exam.Questions[0].ID, strPtr("D")); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}

	clock.Advance(10 * time.Minute)

	state, err := svc.GetState(context.Background(), started.Session.ID, 1)
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if want := (20 * time.Minute).Milliseconds(); state.RemainingMs != want {
		t.Errorf("remaining = %dms, want %dms", state.RemainingMs, want)
	}
	if got := state.AutosavedAnswers[exam.Questions[0].ID.String()]; got != "D" {
		t.Errorf("autosaved = %q, want D", got)
	}
}

func TestGetStateZeroAfterTerminal(t *testing.T) {
	exam := testExam()
	clock := &fakeClock{now: time.Now()}
	svc, _, _ := newTestService(exam, clock)

	started, err := svc.Start(context.Background(), 1, exam.Exam.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.SubmitExam(context.Background(), started.Session.ID, 1); err != nil {
		t.Fatalf("SubmitExam: %v", err)
	}

	state, err := svc.GetState(context.Background(), started.Session.ID, 1)
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if state.RemainingMs != 0 {
		t.Errorf("remaining = %d on terminal session, want 0", state.RemainingMs)
	}
	if state.Status != model.SessionStatusFinished {
		t.Errorf("status = %s, want FINISHED", state.Status)
	}
}

func TestGetPaperStripsAnswerKey(t *testing.T) {
	exam := testExam()
	clock := &fakeClock{now: time.Now()}
	svc, _, _ := newTestService(exam, clock)

	started, err := svc.Start(context.Background(), 1, exam.Exam.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	paper, err := svc.GetPaper(context.Background(), started.Session.ID, 1)
	if err != nil {
		t.Fatalf("GetPaper: %v", err)
	}
	if len(paper.Questions) != 3 {
		t.Errorf("questions = %d, want 3", len(paper.Questions))
	}
	if paper.DurationMinutes != 30 {
		t.Errorf("duration = %d, want 30", paper.DurationMinutes)
	}
}

func TestReviewGatedUntilTerminal(t *testing.T) {
	exam := testExam()
	clock := &fakeClock{now: time.Now()}
	svc, _, _ := newTestService(exam, clock)

	started, err := svc.Start(context.Background(), 1, exam.Exam.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, err = svc.GetAnswersForReview(context.Background(), started.Session.ID, 1)
	if !errors.Is(err, ErrBusinessRule) {
		t.Fatalf("review before submit err = %v, want ErrBusinessRule", err)
	}

	if _, _, err := svc.SubmitAnswer(context.Background(), started.Session.ID, 1, exam.Questions[0].ID, strPtr("A")); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if _, err := svc.SubmitExam(context.Background(), started.Session.ID, 1); err != nil {
		t.Fatalf("SubmitExam: %v", err)
	}

	items, err := svc.GetAnswersForReview(context.Background(), started.Session.ID, 1)
	if err != nil {
		t.Fatalf("review after submit: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("review items = %d, want 3", len(items))
	}
	for _, item := range items {
		if item.CorrectOption == "" {
			t.Errorf("question %s missing answer key in review", item.QuestionID)
		}
	}
	if got := items[0].SelectedOption; got == nil || *got != "A" {
		t.Errorf("review selected = %v, want A", got)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	exam := testExam()
	clock := &fakeClock{now: time.Now()}
	svc, _, _ := newTestService(exam, clock)

	_, err := svc.GetSession(context.Background(), uuid.New(), 1)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
