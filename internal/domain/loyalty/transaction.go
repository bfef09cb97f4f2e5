package loyalty

import (
	"errors"
	"math"
	"strings"
	"time"
)

// Transaction type constants
const (
	TxPurchase   = "purchase"
	TxRedemption = "redemption"
)

// Domain errors
var (
	ErrMissingCustomerRef = errors.New("transaction must reference a customer")
	ErrInvalidTxType      = errors.New("transaction type must be 'purchase' or 'redemption'")
	ErrNegativeAmount     = errors.New("transaction amount cannot be negative")
	ErrNegativePoints     = errors.New("transaction points cannot be negative")
)

// Transaction is a single purchase or redemption by one customer.
// PointsEarned holds the points moved: issued for purchases, spent for redemptions.
type Transaction struct {
	ID           string
	CustomerID   string
	CustomerName string
	Date         time.Time
	Amount       float64
	PointsEarned int
	Type         string
}

// Validate checks if the Transaction has valid data.
// PRE: Transaction struct is populated
// POST: Returns nil if valid, error otherwise
func (t *Transaction) Validate() error {
	if strings.TrimSpace(t.CustomerID) == "" {
		return ErrMissingCustomerRef
	}
	if t.Type != TxPurchase && t.Type != TxRedemption {
		return ErrInvalidTxType
	}
	if t.Amount < 0 || math.IsNaN(t.Amount) || math.IsInf(t.Amount, 0) {
		return ErrNegativeAmount
	}
	if t.PointsEarned < 0 {
		return ErrNegativePoints
	}
	return nil
}

// PointsForPurchase converts a spend into points at the given earn rate, rounding down.
// A non-positive rate falls back to DefaultPointsPerDollar.
func PointsForPurchase(amount float64, pointsPerDollar int) int {
	if pointsPerDollar < 1 {
		pointsPerDollar = DefaultPointsPerDollar
	}
	if amount <= 0 {
		return 0
	}
	return int(math.Floor(amount * float64(pointsPerDollar)))
}
