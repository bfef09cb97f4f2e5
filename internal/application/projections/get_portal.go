package projections

import (
	"context"
	"errors"

	"loyaltyloop/internal/application/listutil"
	"loyaltyloop/internal/domain/loyalty"
)

// ErrNoCustomerRecord is returned when the signed-in customer has no record at this business.
var ErrNoCustomerRecord = errors.New("no customer record for this account")

var sortBySpentDesc = listutil.SortParams{Sort: "spent", Dir: "desc"}

// GetPortalQuery carries query parameters.
type GetPortalQuery struct {
	Email string // the signed-in customer's address
}

// RewardView is a reward as one customer sees it.
type RewardView struct {
	loyalty.Reward
	Affordable   bool
	PointsNeeded int // 0 when affordable
}

// GetPortalResult carries the query result.
type GetPortalResult struct {
	BusinessName string
	PrimaryColor string
	Customer     CustomerRow
	History      []loyalty.Transaction // newest first
	Rewards      []RewardView          // active rewards only
	Tier         loyalty.Tier
	NextTier     *loyalty.Tier
	TierProgress int // percent of the way from Tier to NextTier; 100 at the top tier
}

// GetPortalDeps holds dependencies for GetPortal.
type GetPortalDeps struct {
	Business BusinessReader
}

// QueryGetPortal builds the customer's balance, history and rewards.
// PRE: a business is loaded
// POST: ErrNoCustomerRecord when no customer has query.Email
// INVARIANT: balance = purchase points - redemption points
func QueryGetPortal(ctx context.Context, query GetPortalQuery, deps GetPortalDeps) (GetPortalResult, error) {
	b, err := currentBusiness(deps.Business)
	if err != nil {
		return GetPortalResult{}, err
	}
	c, ok := b.FindCustomerByEmail(query.Email)
	if !ok || query.Email == "" {
		return GetPortalResult{}, ErrNoCustomerRecord
	}

	row := ledgerByCustomer(b.Transactions).row(c)
	res := GetPortalResult{
		BusinessName: b.Name,
		PrimaryColor: b.PrimaryColor,
		Customer:     row,
		History: listutil.Filter(newestFirst(b.Transactions, 0), func(t loyalty.Transaction) bool {
			return t.CustomerID == c.ID
		}),
		Rewards: []RewardView{},
	}

	for _, r := range b.Rewards {
		if !r.Active {
			continue
		}
		v := RewardView{Reward: r, Affordable: row.Balance >= r.PointsCost}
		if !v.Affordable {
			v.PointsNeeded = r.PointsCost - row.Balance
		}
		res.Rewards = append(res.Rewards, v)
	}

	res.Tier, res.NextTier = loyalty.TierFor(tiersFor(b), row.Balance)
	res.TierProgress = tierProgress(res.Tier, res.NextTier, row.Balance)
	return res, nil
}

// tiersFor returns the first active tiered program's ladder, or the default ladder.
func tiersFor(b *loyalty.Business) []loyalty.Tier {
	for _, p := range b.Programs {
		if p.Active && p.Type == loyalty.ProgramTiered && len(p.Rules.Tiers) > 0 {
			return p.Rules.Tiers
		}
	}
	return loyalty.DefaultTiers()
}

func tierProgress(cur loyalty.Tier, next *loyalty.Tier, points int) int {
	if next == nil {
		return 100
	}
	span := next.Threshold - cur.Threshold
	if span <= 0 {
		return 0
	}
	pct := 100 * (points - cur.Threshold) / span
	return max(0, min(pct, 100))
}
