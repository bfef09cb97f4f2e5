package loyalty

import (
	"errors"
	"strings"
	"time"
)

// Default branding for a freshly created business.
const (
	DefaultBusinessName   = "Coffee Haven"
	DefaultPrimaryColor   = "#0F52BA"
	DefaultSecondaryColor = "#FFD700"
	DefaultIndustry       = "Food & Beverage"
)

// Domain errors
var (
	ErrEmptyBusinessName = errors.New("business name cannot be empty")
	ErrInvalidColor      = errors.New("colour must be a #RRGGBB hex value")
	ErrUnknownCustomer   = errors.New("transaction references an unknown customer")
	ErrDuplicateCustomer = errors.New("a customer with this email already exists")
)

// Metrics is the aggregate maintained alongside the collections.
// INVARIANT: no field is ever decremented
type Metrics struct {
	TotalMembers      int
	ActiveMembers     int
	PointsIssued      int
	PointsRedeemed    int
	RepeatRate        float64
	AverageOrderValue float64
}

// Business is one tenant's in-memory record.
type Business struct {
	ID             string
	OwnerID        string
	Name           string
	Logo           string
	PrimaryColor   string
	SecondaryColor string
	Industry       string
	CreatedAt      time.Time

	Programs     []Program
	Customers    []Customer
	Transactions []Transaction
	Rewards      []Reward
	Metrics      Metrics
}

// ProfilePatch carries the profile fields a save may change. Nil fields are left alone.
type ProfilePatch struct {
	Name           *string
	Logo           *string
	PrimaryColor   *string
	SecondaryColor *string
	Industry       *string
}

// NewBusiness returns an empty business with the default branding.
// POST: all collections empty, metrics zero
func NewBusiness(id, ownerID string, now time.Time) *Business {
	return &Business{
		ID:             id,
		OwnerID:        ownerID,
		Name:           DefaultBusinessName,
		PrimaryColor:   DefaultPrimaryColor,
		SecondaryColor: DefaultSecondaryColor,
		Industry:       DefaultIndustry,
		CreatedAt:      now,
		Programs:       []Program{},
		Customers:      []Customer{},
		Transactions:   []Transaction{},
		Rewards:        []Reward{},
	}
}

// AddProgram validates and appends p.
// POST: on error the business is unchanged
func (b *Business) AddProgram(p Program) error {
	if err := p.Validate(); err != nil {
		return err
	}
	b.Programs = append(b.Programs, p.clone())
	return nil
}

// AddCustomer validates and appends c.
// POST: on success TotalMembers and ActiveMembers are each one higher, other metrics unchanged
// INVARIANT: customer emails are unique within the business (case-insensitive)
func (b *Business) AddCustomer(c Customer) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if _, exists := b.FindCustomerByEmail(c.Email); exists {
		return ErrDuplicateCustomer
	}
	b.Customers = append(b.Customers, c)
	b.Metrics.TotalMembers++
	b.Metrics.ActiveMembers++
	return nil
}

// AddTransaction validates and appends t.
// PRE: t.CustomerID names a customer of this business
// POST: purchases add PointsEarned to PointsIssued, redemptions add it to PointsRedeemed
func (b *Business) AddTransaction(t Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if _, ok := b.FindCustomer(t.CustomerID); !ok {
		return ErrUnknownCustomer
	}
	b.Transactions = append(b.Transactions, t)
	switch t.Type {
	case TxPurchase:
		b.Metrics.PointsIssued += t.PointsEarned
	case TxRedemption:
		b.Metrics.PointsRedeemed += t.PointsEarned
	}
	return nil
}

// AddReward validates and appends r.
func (b *Business) AddReward(r Reward) error {
	if err := r.Validate(); err != nil {
		return err
	}
	b.Rewards = append(b.Rewards, r)
	return nil
}

// Validate checks a patch before it is applied.
func (p ProfilePatch) Validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return ErrEmptyBusinessName
	}
	if p.PrimaryColor != nil && !isHexColor(*p.PrimaryColor) {
		return ErrInvalidColor
	}
	if p.SecondaryColor != nil && !isHexColor(*p.SecondaryColor) {
		return ErrInvalidColor
	}
	return nil
}

// ApplyProfile merges the set fields of p into b.
// POST: on error the business is unchanged
func (b *Business) ApplyProfile(p ProfilePatch) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.Name != nil {
		b.Name = strings.TrimSpace(*p.Name)
	}
	if p.Logo != nil {
		b.Logo = *p.Logo
	}
	if p.PrimaryColor != nil {
		b.PrimaryColor = *p.PrimaryColor
	}
	if p.SecondaryColor != nil {
		b.SecondaryColor = *p.SecondaryColor
	}
	if p.Industry != nil {
		b.Industry = *p.Industry
	}
	return nil
}

// FindCustomer returns the customer with the given id.
func (b *Business) FindCustomer(id string) (Customer, bool) {
	for _, c := range b.Customers {
		if c.ID == id {
			return c, true
		}
	}
	return Customer{}, false
}

// FindCustomerByEmail matches case-insensitively.
func (b *Business) FindCustomerByEmail(email string) (Customer, bool) {
	for _, c := range b.Customers {
		if strings.EqualFold(c.Email, email) {
			return c, true
		}
	}
	return Customer{}, false
}

// ActivePrograms counts programs flagged active.
func (b *Business) ActivePrograms() int {
	n := 0
	for _, p := range b.Programs {
		if p.Active {
			n++
		}
	}
	return n
}

// Clone returns a deep copy safe to hand to readers.
func (b *Business) Clone() *Business {
	if b == nil {
		return nil
	}
	out := *b
	out.Programs = make([]Program, len(b.Programs))
	for i, p := range b.Programs {
		out.Programs[i] = p.clone()
	}
	out.Customers = append([]Customer{}, b.Customers...)
	out.Transactions = append([]Transaction{}, b.Transactions...)
	out.Rewards = append([]Reward{}, b.Rewards...)
	return &out
}

func isHexColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, r := range s[1:] {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
