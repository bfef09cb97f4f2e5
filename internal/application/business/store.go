// Package business holds the in-memory business record for one signed-in identity.
package business

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"loyaltyloop/internal/application/apperr"
	"loyaltyloop/internal/domain/identity"
	"loyaltyloop/internal/domain/loyalty"
)

// Store owns at most one Business. It is created when an identity appears
// and cleared when the identity goes away.
type Store struct {
	mu      sync.RWMutex
	current *loyalty.Business
	ownerID string

	now   func() time.Time
	newID func() string
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// InitializeForIdentity creates a fresh Business for id, keeps the existing one
// when id is the same principal, and clears the record when id is nil.
func (s *Store) InitializeForIdentity(id identity.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == nil {
		if s.current != nil {
			slog.Info("business_event", "event", "cleared", "business_id", s.current.ID)
		}
		s.current = nil
		s.ownerID = ""
		return
	}
	if s.current != nil && s.ownerID == id.ID() {
		return
	}
	s.current = loyalty.NewBusiness(id.BusinessID(), id.ID(), s.now())
	s.ownerID = id.ID()
	slog.Info("business_event", "event", "created", "business_id", s.current.ID, "owner_id", id.ID())
}

// Current returns a copy of the Business, or nil when there is none.
func (s *Store) Current() *loyalty.Business {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// NewID returns a fresh entity id.
func (s *Store) NewID() string { return s.newID() }

// Now returns the store's clock reading.
func (s *Store) Now() time.Time { return s.now() }

// AddProgram validates and appends p.
// PRE: a Business exists
// POST: on error nothing changed
func (s *Store) AddProgram(p loyalty.Program) error {
	return s.mutate("AddProgram", func(b *loyalty.Business) error {
		if p.ID == "" {
			p.ID = s.newID()
		}
		return b.AddProgram(p)
	}, "program_added")
}

// AddCustomer validates and appends c.
// POST: TotalMembers and ActiveMembers are each one higher
func (s *Store) AddCustomer(c loyalty.Customer) error {
	return s.mutate("AddCustomer", func(b *loyalty.Business) error {
		if c.ID == "" {
			c.ID = s.newID()
		}
		if c.DateJoined.IsZero() {
			c.DateJoined = s.now()
		}
		return b.AddCustomer(c)
	}, "customer_added")
}

// AddTransaction validates and appends t.
// PRE: t.CustomerID names an existing customer
// POST: only PointsIssued (purchase) or PointsRedeemed (redemption) moves
func (s *Store) AddTransaction(t loyalty.Transaction) error {
	return s.mutate("AddTransaction", func(b *loyalty.Business) error {
		if t.ID == "" {
			t.ID = s.newID()
		}
		if t.Date.IsZero() {
			t.Date = s.now()
		}
		return b.AddTransaction(t)
	}, "transaction_added")
}

// AddReward validates and appends r.
func (s *Store) AddReward(r loyalty.Reward) error {
	return s.mutate("AddReward", func(b *loyalty.Business) error {
		if r.ID == "" {
			r.ID = s.newID()
		}
		return b.AddReward(r)
	}, "reward_added")
}

// SaveBusiness merges the set profile fields of patch into the Business.
func (s *Store) SaveBusiness(patch loyalty.ProfilePatch) error {
	return s.mutate("SaveBusiness", func(b *loyalty.Business) error {
		return b.ApplyProfile(patch)
	}, "profile_saved")
}

func (s *Store) mutate(op string, fn func(*loyalty.Business) error, event string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return &apperr.StateError{Op: op, Reason: "no business is loaded"}
	}
	if err := fn(s.current); err != nil {
		return err
	}
	slog.Info("business_event", "event", event, "business_id", s.current.ID)
	return nil
}
