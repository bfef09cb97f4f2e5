package loyalty

import (
	"errors"
	"strings"
	"time"
	"unicode"
)

// MinPhoneDigits is the shortest phone number the customer form accepts.
const MinPhoneDigits = 10

// Domain errors
var (
	ErrEmptyCustomerName  = errors.New("customer name cannot be empty")
	ErrInvalidCustomerEml = errors.New("customer email must contain '@'")
	ErrPhoneTooShort      = errors.New("phone number must be at least 10 digits")
	ErrNegativeBalance    = errors.New("customer counters cannot be negative")
)

// Customer is a loyalty member of one business.
type Customer struct {
	ID         string
	Name       string
	Email      string
	Phone      string
	DateJoined time.Time
	Points     int
	Visits     int
	TotalSpent float64
	LastVisit  time.Time
}

// Validate checks if the Customer has valid data.
// PRE: Customer struct is populated
// POST: Returns nil if valid, error otherwise
func (c *Customer) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyCustomerName
	}
	if !strings.Contains(c.Email, "@") {
		return ErrInvalidCustomerEml
	}
	if countDigits(c.Phone) < MinPhoneDigits {
		return ErrPhoneTooShort
	}
	if c.Points < 0 || c.Visits < 0 || c.TotalSpent < 0 {
		return ErrNegativeBalance
	}
	return nil
}

// Matches reports whether the customer's name, email or phone contains term (case-insensitive).
func (c *Customer) Matches(term string) bool {
	if term == "" {
		return true
	}
	t := strings.ToLower(term)
	return strings.Contains(strings.ToLower(c.Name), t) ||
		strings.Contains(strings.ToLower(c.Email), t) ||
		strings.Contains(c.Phone, term)
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
