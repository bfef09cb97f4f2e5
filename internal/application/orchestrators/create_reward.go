package orchestrators

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"loyaltyloop/internal/domain/loyalty"
)

// CreateRewardInput carries input for the orchestrator.
type CreateRewardInput struct {
	Name        string
	Description string
	PointsCost  int
	Active      bool
}

// CreateRewardDeps holds dependencies for CreateReward.
type CreateRewardDeps struct {
	Business BusinessStore
}

// ExecuteCreateReward adds a redeemable reward.
// PRE: a business is loaded
// POST: reward appended with a fresh ID
func ExecuteCreateReward(ctx context.Context, input CreateRewardInput, deps CreateRewardDeps) (loyalty.Reward, error) {
	r := loyalty.Reward{
		ID:          uuid.New().String(),
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		PointsCost:  input.PointsCost,
		Active:      input.Active,
	}
	if err := deps.Business.AddReward(r); err != nil {
		return loyalty.Reward{}, err
	}
	return r, nil
}
