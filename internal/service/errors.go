package service

import "errors"

// Business-condition errors returned by the lifecycle and results services.
// Handlers translate these to response codes; nothing here is retried.
var (
	// ErrNotFound — session, exam or question missing.
	ErrNotFound = errors.New("resource not found")
	// ErrUnauthorized — caller is not the session owner.
	ErrUnauthorized = errors.New("caller does not own this resource")
	// ErrBusinessRule — precondition failures like an exam without
	// questions or a review request before submission.
	ErrBusinessRule = errors.New("business rule violation")
	// ErrAlreadyCompleted — duplicate start or submit on a terminal session.
	ErrAlreadyCompleted = errors.New("session is already completed")
	// ErrSessionExpired — the grace window lapsed; the session was just
	// transitioned to TIMEOUT without a score.
	ErrSessionExpired = errors.New("session time window has expired")
	// ErrInvalidReference — question not part of this exam's set.
	ErrInvalidReference = errors.New("question does not belong to this exam")
	// ErrConflict — a race on a unique constraint that the domain cannot
	// absorb as idempotent success.
	ErrConflict = errors.New("conflicting concurrent update")
)
