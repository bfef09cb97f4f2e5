package orchestrators

import (
	"context"
	"errors"

	"loyaltyloop/internal/application/apperr"
	"loyaltyloop/internal/domain/identity"
	"loyaltyloop/internal/domain/loyalty"
)

// BusinessStore is the workspace's business record as the orchestrators see it.
type BusinessStore interface {
	Current() *loyalty.Business
	AddProgram(p loyalty.Program) error
	AddCustomer(c loyalty.Customer) error
	AddTransaction(t loyalty.Transaction) error
	AddReward(r loyalty.Reward) error
	SaveBusiness(patch loyalty.ProfilePatch) error
}

// SessionStore is the subset of the session the orchestrators drive.
type SessionStore interface {
	CompleteSetup(ctx context.Context) error
	LoginAsRole(ctx context.Context, role identity.Role) (identity.Identity, error)
	SetBypassEnabled(ctx context.Context, v bool) error
}

// Orchestrator errors
var (
	ErrCustomerNotFound  = errors.New("customer not found")
	ErrDuplicateCustomer = loyalty.ErrDuplicateCustomer
	ErrInvalidAmount     = errors.New("purchase amount must be greater than zero")
	ErrInvalidRedemption = errors.New("redeemed points must be greater than zero")
)

// noBusiness is the StateError for op when the workspace has no business record.
func noBusiness(op string) error {
	return &apperr.StateError{Op: op, Reason: "no business is loaded"}
}
