package orchestrators

import (
	"context"
	"time"

	"github.com/google/uuid"

	"loyaltyloop/internal/domain/loyalty"
)

// RecordTransactionInput carries input for the orchestrator.
type RecordTransactionInput struct {
	CustomerID     string
	Type           string
	Amount         float64 // purchases only
	PointsRedeemed int     // redemptions only
}

// RecordTransactionDeps holds dependencies for RecordTransaction.
type RecordTransactionDeps struct {
	Business BusinessStore
	Now      func() time.Time
}

// ExecuteRecordTransaction records a purchase or redemption against an existing customer.
// PRE: a business is loaded; input.CustomerID names one of its customers
// POST: purchases earn floor(amount * DefaultPointsPerDollar) points; redemptions move the entered points
// INVARIANT: the customer record itself is not modified
func ExecuteRecordTransaction(ctx context.Context, input RecordTransactionInput, deps RecordTransactionDeps) (loyalty.Transaction, error) {
	b := deps.Business.Current()
	if b == nil {
		return loyalty.Transaction{}, noBusiness("RecordTransaction")
	}
	c, ok := b.FindCustomer(input.CustomerID)
	if !ok {
		return loyalty.Transaction{}, ErrCustomerNotFound
	}

	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}
	t := loyalty.Transaction{
		ID:           uuid.New().String(),
		CustomerID:   c.ID,
		CustomerName: c.Name,
		Date:         now(),
		Type:         input.Type,
	}

	switch input.Type {
	case loyalty.TxPurchase:
		if input.Amount <= 0 {
			return loyalty.Transaction{}, ErrInvalidAmount
		}
		t.Amount = input.Amount
		t.PointsEarned = loyalty.PointsForPurchase(input.Amount, loyalty.DefaultPointsPerDollar)
	case loyalty.TxRedemption:
		if input.PointsRedeemed <= 0 {
			return loyalty.Transaction{}, ErrInvalidRedemption
		}
		t.PointsEarned = input.PointsRedeemed
	default:
		return loyalty.Transaction{}, loyalty.ErrInvalidTxType
	}

	if err := deps.Business.AddTransaction(t); err != nil {
		return loyalty.Transaction{}, err
	}
	return t, nil
}
