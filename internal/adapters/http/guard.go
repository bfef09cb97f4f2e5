package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"loyaltyloop/internal/adapters/http/middleware"
	"loyaltyloop/internal/application/access"
	"loyaltyloop/internal/application/session"
	"loyaltyloop/internal/application/workspace"
)

// actionFunc handles a request once its workspace is resolved.
type actionFunc func(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State)

// loadingRefreshSeconds is how soon the loading page asks the browser to retry.
const loadingRefreshSeconds = "1"

func (s *server) workspace(r *http.Request) (*workspace.Workspace, error) {
	id, ok := middleware.DeviceID(r.Context())
	if !ok {
		return nil, errors.New("request has no device id")
	}
	return s.deps.Workspaces.Get(r.Context(), id)
}

// settle waits up to LoadingWait for the session to leave Loading.
// The returned state may still be loading.
func (s *server) settle(ctx context.Context, ws *workspace.Workspace) session.State {
	st := ws.Session.State()
	if !st.Loading {
		return st
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.LoadingWait)
	defer cancel()
	st, _ = ws.Session.WaitReady(ctx)
	return st
}

func (s *server) guardEvent(path string, d access.Decision, st session.State) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.GuardDecision(d.Kind.String())
	}
	slog.Debug("guard_event",
		"path", path,
		"decision", d.Kind.String(),
		"view", d.View,
		"location", d.Location,
		"bypass", st.BypassEnabled,
		"authenticated", st.Authenticated(),
	)
}

// handleView serves every page navigation.
func (s *server) handleView(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspace(r)
	if err != nil {
		internalError(w, err)
		return
	}

	q := r.URL.Query()
	if session.HasStartupParams(q) {
		s.applyStartupParams(w, r, ws, q)
		return
	}

	st := s.settle(r.Context(), ws)
	d := access.Decide(r.URL.Path, st)
	s.guardEvent(r.URL.Path, d, st)

	switch d.Kind {
	case access.Loading:
		w.Header().Set("Refresh", loadingRefreshSeconds)
		w.Header().Set("Cache-Control", "no-store")
		s.render(w, r, st, "loading", nil)
	case access.Redirect:
		http.Redirect(w, r, d.Location, http.StatusSeeOther)
	case access.NotFound:
		s.renderStatus(w, r, st, http.StatusNotFound, "not_found", nil)
	case access.Render:
		view, ok := s.viewTable[d.View]
		if !ok {
			internalError(w, errors.New("no handler for view "+d.View))
			return
		}
		view(w, r, ws, st)
	}
}

// applyStartupParams persists ?bypassLogin=true&role=R, re-initializes the
// session and redirects to the same path without the parameters.
func (s *server) applyStartupParams(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, q url.Values) {
	ctx := r.Context()
	changed, err := session.ApplyStartupParams(ctx, ws.Prefs, q, s.opts.BypassCapable)
	if err != nil {
		internalError(w, err)
		return
	}
	if changed {
		if err := ws.Session.Initialize(ctx); err != nil {
			internalError(w, err)
			return
		}
	}
	q.Del(session.ParamBypassLogin)
	q.Del(session.ParamRole)
	target := url.URL{Path: r.URL.Path, RawQuery: q.Encode()}
	http.Redirect(w, r, target.String(), http.StatusSeeOther)
}

// public resolves the workspace without gating.
func (s *server) public(h actionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := s.workspace(r)
		if err != nil {
			internalError(w, err)
			return
		}
		h(w, r, ws, s.settle(r.Context(), ws))
	}
}

// gated applies the view gate to form posts.
func (s *server) gated(h actionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := s.workspace(r)
		if err != nil {
			internalError(w, err)
			return
		}
		st := s.settle(r.Context(), ws)
		if st.Loading {
			w.Header().Set("Retry-After", loadingRefreshSeconds)
			http.Error(w, "session is still loading", http.StatusServiceUnavailable)
			return
		}
		if !access.Allowed(st) {
			http.Redirect(w, r, access.LoginFor(r.URL.Path), http.StatusSeeOther)
			return
		}
		h(w, r, ws, st)
	}
}

// api applies the gate to JSON endpoints, answering with status codes instead of redirects.
func (s *server) api(h actionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := s.workspace(r)
		if err != nil {
			internalError(w, err)
			return
		}
		st := s.settle(r.Context(), ws)
		if st.Loading {
			w.Header().Set("Retry-After", loadingRefreshSeconds)
			writeJSONError(w, http.StatusServiceUnavailable, "session is still loading")
			return
		}
		if !access.Allowed(st) {
			writeJSONError(w, http.StatusUnauthorized, "sign in required")
			return
		}
		h(w, r, ws, st)
	}
}

// views maps gate view names to their renderers.
func (s *server) views() map[string]actionFunc {
	return map[string]actionFunc{
		"home":            s.viewHome,
		"login":           s.viewLogin,
		"register":        s.viewRegister,
		"forgot_password": s.viewForgotPassword,
		"customer_login":  s.viewCustomerLogin,
		"dashboard":       s.viewDashboard,
		"programs":        s.viewPrograms,
		"customers":       s.viewCustomers,
		"transactions":    s.viewTransactions,
		"reports":         s.viewReports,
		"settings":        s.viewSettings,
		"setup":           s.viewSetup,
		"admin":           s.viewAdmin,
		"portal":          s.viewPortal,
		"portal_rewards":  s.viewPortalRewards,
		"portal_profile":  s.viewPortalProfile,
	}
}
