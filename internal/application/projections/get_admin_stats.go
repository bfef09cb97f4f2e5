package projections

import (
	"context"
	"time"

	"loyaltyloop/internal/adapters/http/perf"
)

// AdminStatsWindow is how far back request latencies are aggregated.
const AdminStatsWindow = time.Hour

// GetAdminStatsQuery carries query parameters.
type GetAdminStatsQuery struct {
	Now time.Time
}

// GetAdminStatsResult carries the query result.
type GetAdminStatsResult struct {
	Accounts       int
	Workspaces     int
	SignedIn       int
	BypassSessions int
	ByRole         map[string]int
	RequestP50Ms   float64
	RequestP95Ms   float64
	RequestP99Ms   float64
	TotalRequests  int64
	SlowestPaths   []perf.PathStat
	SlowestQueries []perf.PathStat
}

// GetAdminStatsDeps holds dependencies for GetAdminStats.
type GetAdminStatsDeps struct {
	Accounts   AccountCounter
	Workspaces WorkspaceLister
	Latency    LatencySource // optional
}

// QueryGetAdminStats summarises the platform for the admin view.
// POST: ByRole counts signed-in workspaces only
func QueryGetAdminStats(ctx context.Context, query GetAdminStatsQuery, deps GetAdminStatsDeps) (GetAdminStatsResult, error) {
	n, err := deps.Accounts.CountAccounts(ctx)
	if err != nil {
		return GetAdminStatsResult{}, err
	}
	res := GetAdminStatsResult{Accounts: n, ByRole: map[string]int{}}

	for _, w := range deps.Workspaces.Summaries() {
		res.Workspaces++
		if w.Bypass {
			res.BypassSessions++
		}
		if w.Authenticated {
			res.SignedIn++
			res.ByRole[w.Role]++
		}
	}

	if deps.Latency != nil {
		now := query.Now
		if now.IsZero() {
			now = time.Now()
		}
		snap := deps.Latency.Snapshot(now.Add(-AdminStatsWindow), 5)
		res.RequestP50Ms = snap.RequestP50Ms
		res.RequestP95Ms = snap.RequestP95Ms
		res.RequestP99Ms = snap.RequestP99Ms
		res.TotalRequests = snap.TotalRequests
		res.SlowestPaths = snap.SlowestPaths
		res.SlowestQueries = snap.SlowestQueries
	}
	return res, nil
}
