package service

import (
	"context"

	"github.com/google/uuid"
)

// AccessChecker is the entitlement gate consulted before a session starts.
// The real policy (payments, enrollment) lives in an external subsystem;
// this engine only trusts the boolean.
type AccessChecker interface {
	HasAccess(ctx context.Context, userID int, examID uuid.UUID) (bool, error)
}

// AllowAllAccess grants every start request. Used when no entitlement
// collaborator is wired (dev, self-hosted deployments).
type AllowAllAccess struct{}

func (AllowAllAccess) HasAccess(ctx context.Context, userID int, examID uuid.UUID) (bool, error) {
	return true, nil
}
