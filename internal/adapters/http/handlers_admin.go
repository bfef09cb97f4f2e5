package web

import (
	"net/http"
	"time"

	"loyaltyloop/internal/application/projections"
	"loyaltyloop/internal/application/session"
	"loyaltyloop/internal/application/workspace"
)

func (s *server) viewAdmin(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	deps := projections.GetAdminStatsDeps{
		Accounts:   s.deps.Accounts,
		Workspaces: s.deps.Workspaces,
	}
	if s.deps.Collector != nil {
		deps.Latency = s.deps.Collector
	}
	stats, err := projections.QueryGetAdminStats(r.Context(), projections.GetAdminStatsQuery{Now: time.Now()}, deps)
	if err != nil {
		internalError(w, err)
		return
	}
	s.render(w, r, st, "admin", map[string]any{
		"Title":  "Platform admin",
		"Stats":  stats,
		"Window": projections.AdminStatsWindow,
	})
}
