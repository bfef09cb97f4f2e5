package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"loyaltyloop/internal/domain/identity"
)

// Startup query parameters.
const (
	ParamBypassLogin = "bypassLogin"
	ParamRole        = "role"
)

// HasStartupParams reports whether q carries the bypass activation parameter.
func HasStartupParams(q url.Values) bool {
	return q.Get(ParamBypassLogin) == "true"
}

// ApplyStartupParams writes bypassLogin=true and an optional role into prefs
// before the session initializes. The role is only honoured together with
// bypassLogin=true; unknown roles are logged and skipped.
// POST: returns true when prefs changed
func ApplyStartupParams(ctx context.Context, prefs Prefs, q url.Values, bypassCapable bool) (bool, error) {
	if !HasStartupParams(q) {
		return false, nil
	}
	if !bypassCapable {
		slog.Warn("bypass_event", "event", "startup_param_ignored")
		return false, nil
	}
	if err := prefs.Set(ctx, KeyBypassLogin, "true"); err != nil {
		return false, fmt.Errorf("apply startup params: %w", err)
	}
	slog.Info("bypass_event", "event", "bypass_from_url")

	raw := q.Get(ParamRole)
	if raw == "" {
		return true, nil
	}
	role, err := identity.ParseRole(raw)
	if err != nil {
		slog.Warn("bypass_event", "event", "startup_role_rejected", "value", raw)
		return true, nil
	}
	if err := prefs.Set(ctx, KeyUserRole, string(role)); err != nil {
		return true, fmt.Errorf("apply startup params: %w", err)
	}
	slog.Info("bypass_event", "event", "role_from_url", "role", role)
	return true, nil
}
