package orchestrators

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"loyaltyloop/internal/domain/loyalty"
)

// RegisterCustomerInput carries input for the orchestrator.
type RegisterCustomerInput struct {
	Name  string
	Email string
	Phone string
}

// RegisterCustomerDeps holds dependencies for RegisterCustomer.
type RegisterCustomerDeps struct {
	Business BusinessStore
	Now      func() time.Time
}

// ExecuteRegisterCustomer enrols a customer with zero balance.
// PRE: a business is loaded
// POST: customer appended; TotalMembers and ActiveMembers each one higher
// INVARIANT: email is unique within the business (case-insensitive)
func ExecuteRegisterCustomer(ctx context.Context, input RegisterCustomerInput, deps RegisterCustomerDeps) (loyalty.Customer, error) {
	if deps.Business.Current() == nil {
		return loyalty.Customer{}, noBusiness("RegisterCustomer")
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))

	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}
	c := loyalty.Customer{
		ID:         uuid.New().String(),
		Name:       strings.TrimSpace(input.Name),
		Email:      email,
		Phone:      strings.TrimSpace(input.Phone),
		DateJoined: now(),
	}
	if err := deps.Business.AddCustomer(c); err != nil {
		return loyalty.Customer{}, err
	}
	return c, nil
}
