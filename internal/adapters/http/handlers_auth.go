package web

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"loyaltyloop/internal/adapters/authprovider"
	"loyaltyloop/internal/application/access"
	"loyaltyloop/internal/application/apperr"
	"loyaltyloop/internal/application/session"
	"loyaltyloop/internal/application/workspace"
	"loyaltyloop/internal/domain/identity"
)

const minPasswordLength = 6

func (s *server) viewHome(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	s.render(w, r, st, "home", map[string]any{"Title": "LoyaltyLoop"})
}

func (s *server) viewLogin(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	s.render(w, r, st, "login", map[string]any{
		"Title":  "Business sign in",
		"Action": "/login",
		"Email":  r.URL.Query().Get("email"),
	})
}

func (s *server) viewCustomerLogin(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	s.render(w, r, st, "login", map[string]any{
		"Title":    "Customer sign in",
		"Action":   "/customer/login",
		"Email":    r.URL.Query().Get("email"),
		"Customer": true,
	})
}

func (s *server) viewRegister(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	s.render(w, r, st, "register", map[string]any{"Title": "Create your account"})
}

func (s *server) viewForgotPassword(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	s.render(w, r, st, "forgot_password", map[string]any{"Title": "Reset password"})
}

// authEvent records the outcome of a session operation.
func (s *server) authEvent(op string, err error) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.AuthEvent(op, err)
	}
}

// formFailure redirects back to a form with the user-facing message for err.
func (s *server) formFailure(w http.ResponseWriter, r *http.Request, back string, err error) {
	if _, msg, ok := userError(err); ok {
		redirectWith(w, r, back, "error", msg)
		return
	}
	internalError(w, err)
}

func (s *server) signIn(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, back, landing string) {
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	if email == "" || password == "" {
		redirectWith(w, r, back, "error", "Email and password are required.")
		return
	}
	_, err := ws.Session.Login(r.Context(), email, password)
	s.authEvent("login", err)
	if err != nil {
		slog.Info("auth_event", "event", "login_rejected", "device", ws.DeviceID, "error", err)
		s.formFailure(w, r, back, err)
		return
	}
	http.Redirect(w, r, landing, http.StatusSeeOther)
}

func (s *server) handleLoginPost(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	s.signIn(w, r, ws, access.LoginPath, "/dashboard")
}

func (s *server) handleCustomerLoginPost(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	s.signIn(w, r, ws, access.CustomerLoginPath, "/portal")
}

func (s *server) handleRegisterPost(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	if email == "" || password == "" {
		redirectWith(w, r, "/register", "error", "Email and password are required.")
		return
	}
	if password != r.FormValue("confirm") {
		redirectWith(w, r, "/register", "error", "Passwords do not match.")
		return
	}
	if len(password) < minPasswordLength {
		redirectWith(w, r, "/register", "error", (&apperr.AuthError{Code: apperr.CodeWeakPassword}).Message())
		return
	}
	_, err := ws.Session.Register(r.Context(), email, password)
	s.authEvent("register", err)
	if err != nil {
		s.formFailure(w, r, "/register", err)
		return
	}
	http.Redirect(w, r, "/setup", http.StatusSeeOther)
}

func (s *server) handleForgotPasswordPost(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	email := strings.TrimSpace(r.FormValue("email"))
	if email == "" {
		redirectWith(w, r, "/forgot-password", "error", "Email is required.")
		return
	}
	err := ws.Session.ResetPassword(r.Context(), email)
	s.authEvent("reset_password", err)
	if err != nil {
		s.formFailure(w, r, "/forgot-password", err)
		return
	}
	redirectWith(w, r, "/forgot-password", "notice", "Check your email for a link to reset your password.")
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	err := ws.Session.Logout(r.Context())
	s.authEvent("logout", err)
	if err != nil {
		s.formFailure(w, r, "/", err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleAuthAction shows the new-password form for an emailed reset link.
func (s *server) handleAuthAction(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	q := r.URL.Query()
	if q.Get("mode") != "resetPassword" || s.deps.Resets == nil {
		s.renderStatus(w, r, st, http.StatusNotFound, "not_found", nil)
		return
	}
	code := q.Get("oobCode")
	data := map[string]any{"Title": "Choose a new password", "Code": code}
	email, err := s.deps.Resets.VerifyResetCode(r.Context(), code)
	switch {
	case errors.Is(err, authprovider.ErrInvalidResetCode):
		data["Invalid"] = true
		data["Error"] = err.Error()
	case err != nil:
		internalError(w, err)
		return
	default:
		data["Email"] = email
	}
	s.render(w, r, st, "auth_action", data)
}

func (s *server) handleAuthActionPost(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	if s.deps.Resets == nil {
		http.NotFound(w, r)
		return
	}
	code := r.FormValue("oobCode")
	back := "/auth/action?" + url.Values{"mode": {"resetPassword"}, "oobCode": {code}}.Encode()
	password := r.FormValue("password")
	if password != r.FormValue("confirm") {
		redirectWith(w, r, back, "error", "Passwords do not match.")
		return
	}
	err := s.deps.Resets.ConfirmPasswordReset(r.Context(), code, password)
	s.authEvent("confirm_reset", err)
	switch {
	case errors.Is(err, authprovider.ErrInvalidResetCode):
		redirectWith(w, r, access.LoginPath, "error", err.Error())
	case errors.Is(err, apperr.ErrWeakPassword):
		redirectWith(w, r, back, "error", (&apperr.AuthError{Code: apperr.CodeWeakPassword}).Message())
	case err != nil:
		internalError(w, err)
	default:
		redirectWith(w, r, access.LoginPath, "notice", "Password updated. Sign in with your new password.")
	}
}

// handleDevBypass toggles the persisted bypass flag from the home page panel.
func (s *server) handleDevBypass(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	enabled := r.FormValue("enabled") == "true"
	err := s.toggleBypass(r, ws, enabled)
	if err != nil {
		s.formFailure(w, r, "/", err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleDevLoginAs signs in as a mock identity and lands on the role's home view.
func (s *server) handleDevLoginAs(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	res, err := s.loginAs(r, ws, r.FormValue("role"))
	if err != nil {
		s.formFailure(w, r, "/", err)
		return
	}
	http.Redirect(w, r, res.Redirect, http.StatusSeeOther)
}

// roleLabel is the display name shown on the dev panel buttons.
func roleLabel(r identity.Role) string {
	s := r.String()
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
