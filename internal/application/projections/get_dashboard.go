package projections

import (
	"context"
	"slices"

	"loyaltyloop/internal/domain/loyalty"
)

// RecentTransactionLimit is how many transactions the dashboard lists.
const RecentTransactionLimit = 5

// GetDashboardQuery carries query parameters.
type GetDashboardQuery struct{}

// GetDashboardResult carries the query result.
type GetDashboardResult struct {
	BusinessName       string
	PrimaryColor       string
	Metrics            loyalty.Metrics
	ActivePrograms     int
	TotalPrograms      int
	TotalRewards       int
	RecentTransactions []loyalty.Transaction
}

// GetDashboardDeps holds dependencies for GetDashboard.
type GetDashboardDeps struct {
	Business BusinessReader
}

// QueryGetDashboard returns the owner's at-a-glance view.
// PRE: a business is loaded
// POST: RecentTransactions holds at most RecentTransactionLimit entries, newest first
func QueryGetDashboard(ctx context.Context, query GetDashboardQuery, deps GetDashboardDeps) (GetDashboardResult, error) {
	b, err := currentBusiness(deps.Business)
	if err != nil {
		return GetDashboardResult{}, err
	}
	return GetDashboardResult{
		BusinessName:       b.Name,
		PrimaryColor:       b.PrimaryColor,
		Metrics:            b.Metrics,
		ActivePrograms:     b.ActivePrograms(),
		TotalPrograms:      len(b.Programs),
		TotalRewards:       len(b.Rewards),
		RecentTransactions: newestFirst(b.Transactions, RecentTransactionLimit),
	}, nil
}

// newestFirst returns up to limit transactions ordered by date, newest first.
// Equal dates keep reverse insertion order. limit <= 0 means all.
func newestFirst(txs []loyalty.Transaction, limit int) []loyalty.Transaction {
	out := slices.Clone(txs)
	slices.Reverse(out)
	slices.SortStableFunc(out, func(a, b loyalty.Transaction) int {
		return b.Date.Compare(a.Date)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []loyalty.Transaction{}
	}
	return out
}
