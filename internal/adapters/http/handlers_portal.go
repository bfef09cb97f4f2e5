package web

import (
	"errors"
	"net/http"

	"loyaltyloop/internal/application/projections"
	"loyaltyloop/internal/application/session"
	"loyaltyloop/internal/application/workspace"
)

// portalEmail picks whose card the portal shows. A mock identity has no
// customer record of its own, so it previews the business's first customer.
func portalEmail(ws *workspace.Workspace, st session.State) string {
	if st.Identity == nil {
		return ""
	}
	if st.Identity.IsMock() {
		if b := ws.Business.Current(); b != nil && len(b.Customers) > 0 {
			return b.Customers[0].Email
		}
	}
	return st.Identity.Email()
}

func (s *server) portalPage(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State, name, title string) {
	res, err := projections.QueryGetPortal(r.Context(), projections.GetPortalQuery{Email: portalEmail(ws, st)}, projections.GetPortalDeps{Business: ws.Business})
	switch {
	case errors.Is(err, projections.ErrNoBusiness), errors.Is(err, projections.ErrNoCustomerRecord):
		s.render(w, r, st, "portal_missing", map[string]any{"Title": title})
		return
	case err != nil:
		internalError(w, err)
		return
	}
	s.render(w, r, st, name, map[string]any{
		"Title":   title,
		"Portal":  res,
		"Preview": st.Identity != nil && st.Identity.IsMock(),
	})
}

func (s *server) viewPortal(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	s.portalPage(w, r, ws, st, "portal", "My rewards card")
}

func (s *server) viewPortalRewards(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	s.portalPage(w, r, ws, st, "portal_rewards", "Rewards")
}

func (s *server) viewPortalProfile(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	s.portalPage(w, r, ws, st, "portal_profile", "My profile")
}
