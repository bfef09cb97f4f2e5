package account

import (
	"context"
	"errors"

	domain "loyaltyloop/internal/domain/account"
)

// ErrNotFound is returned when no account matches a lookup.
var ErrNotFound = errors.New("account not found")

// ErrDuplicateEmail is returned when an insert collides with an existing email.
var ErrDuplicateEmail = errors.New("account email already registered")

// Store persists Account state.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Account, error)
	GetByEmail(ctx context.Context, email string) (domain.Account, error)
	Create(ctx context.Context, value domain.Account) error
	Save(ctx context.Context, value domain.Account) error
	List(ctx context.Context, filter ListFilter) ([]domain.Account, error)
	Count(ctx context.Context) (int, error)
}

// ListFilter carries filtering parameters for List operations.
type ListFilter struct {
	Limit      int
	Offset     int
	BusinessID string
}
