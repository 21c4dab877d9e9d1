package handler

import (
	"errors"
	"net/http"

	"github.com/civitest/civitest-backend/internal/middleware"
	"github.com/civitest/civitest-backend/internal/model"
	"github.com/civitest/civitest-backend/internal/response"
	"github.com/civitest/civitest-backend/internal/service"
	"github.com/civitest/civitest-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SessionHandler handles exam-taker endpoints: starting sessions,
// autosaving answers, submitting and reading back results.
type SessionHandler struct {
	sessions *service.SessionService
	results  *service.ResultsService
	access   service.AccessChecker
	log      zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(
	sessions *service.SessionService,
	results *service.ResultsService,
	access service.AccessChecker,
	log zerolog.Logger,
) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		results:  results,
		access:   access,
		log:      log.With().Str("component", "session_handler").Logger(),
	}
}

// failDomain maps a lifecycle service error to its response code and HTTP
// status. Ordering follows condition priority: existence, ownership,
// completion, expiry, reference, then generic business rules.
func (h *SessionHandler) failDomain(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrUnauthorized):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case errors.Is(err, service.ErrAlreadyCompleted):
		response.Fail(c, http.StatusConflict, response.ErrAlreadyCompleted)
	case errors.Is(err, service.ErrSessionExpired):
		response.Fail(c, http.StatusGone, response.ErrSessionExpired)
	case errors.Is(err, service.ErrInvalidReference):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrInvalidReference)
	case errors.Is(err, service.ErrBusinessRule):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrBusinessRule)
	case errors.Is(err, service.ErrConflict):
		response.Fail(c, http.StatusConflict, response.ErrConflict)
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("unhandled service error")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// StartSession godoc
// POST /api/v1/exams/:exam_id/sessions
// Opens a session for the caller, or resumes the existing one (idempotent).
func (h *SessionHandler) StartSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	allowed, err := h.access.HasAccess(c.Request.Context(), claims.UserID, examID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if !allowed {
		response.Fail(c, http.StatusForbidden, response.ErrNoExamAccess)
		return
	}

	result, err := h.sessions.Start(c.Request.Context(), claims.UserID, examID)
	if err != nil {
		h.failDomain(c, err)
		return
	}

	status := http.StatusCreated
	if result.Resumed {
		status = http.StatusOK
	}
	response.Success(c, status, result)
}

// GetSession godoc
// GET /api/v1/sessions/:session_id
func (h *SessionHandler) GetSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	session, err := h.sessions.GetSession(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		h.failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// GetSessionState godoc
// GET /api/v1/sessions/:session_id/state
// The page-reload endpoint: autosaved answers plus server-side remaining time.
func (h *SessionHandler) GetSessionState(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	state, err := h.sessions.GetState(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		h.failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// GetSessionPaper godoc
// GET /api/v1/sessions/:session_id/paper
// Returns the question list with the answer key stripped.
func (h *SessionHandler) GetSessionPaper(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	paper, err := h.sessions.GetPaper(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		h.failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, paper)
}

// SubmitAnswer godoc
// PUT /api/v1/sessions/:session_id/answers/:question_id
// Autosaves one answer. A null selected_option clears a prior answer.
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	answer, progress, err := h.sessions.SubmitAnswer(c.Request.Context(), sessionID, claims.UserID, questionID, req.SelectedOption)
	if err != nil {
		h.failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"answer":   answer,
		"progress": progress,
	})
}

// SubmitExam godoc
// POST /api/v1/sessions/:session_id/submit
// Finalizes the session and returns the score breakdown.
func (h *SessionHandler) SubmitExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	result, err := h.sessions.SubmitExam(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		h.failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// GetSessionReview godoc
// GET /api/v1/sessions/:session_id/review
// Reveals the answer key next to the taker's answers, post-submission only.
func (h *SessionHandler) GetSessionReview(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	items, err := h.sessions.GetAnswersForReview(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		h.failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"questions": items})
}

// ListMySessions godoc
// GET /api/v1/sessions
func (h *SessionHandler) ListMySessions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessions, err := h.sessions.ListSessionsForUser(c.Request.Context(), claims.UserID)
	if err != nil {
		h.failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"sessions": sessions})
}

// GetMySummary godoc
// GET /api/v1/me/summary
// Aggregates the caller's finished sessions with the pass threshold applied.
func (h *SessionHandler) GetMySummary(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	summary, sessions, err := h.results.UserSummary(c.Request.Context(), claims.UserID)
	if err != nil {
		h.failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"summary":  summary,
		"sessions": sessions,
	})
}
