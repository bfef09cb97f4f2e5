package loyalty

import (
	"errors"
	"strings"
)

// Domain errors
var (
	ErrEmptyRewardName   = errors.New("reward name cannot be empty")
	ErrInvalidPointsCost = errors.New("reward points cost must be at least 1")
)

// Reward is something a customer can redeem points for.
type Reward struct {
	ID          string
	Name        string
	Description string
	PointsCost  int
	Active      bool
}

// Validate checks if the Reward has valid data.
// PRE: Reward struct is populated
// POST: Returns nil if valid, error otherwise
func (r *Reward) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyRewardName
	}
	if r.PointsCost < 1 {
		return ErrInvalidPointsCost
	}
	return nil
}
