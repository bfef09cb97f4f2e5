package orchestrators

import (
	"context"
	"errors"

	"loyaltyloop/internal/domain/identity"
)

// DevMode errors
var (
	ErrDevModeUnavailable = errors.New("bypass login is not available in this build")
	ErrDevModeInvalidRole = errors.New("target role is not valid")
)

// DevLoginAsInput carries input for the login-as orchestrator.
type DevLoginAsInput struct {
	Role          string
	BypassCapable bool
}

// DevLoginAsResult carries where the new identity should land.
type DevLoginAsResult struct {
	Identity identity.Identity
	Redirect string
}

// DevLoginAsDeps holds dependencies for DevLoginAs.
type DevLoginAsDeps struct {
	Session SessionStore
}

// ExecuteDevLoginAs turns bypass on, signs in as a mock identity for the role
// and picks the role's landing view.
// PRE: bypass-capable build
// POST: bypass flag and role persisted; later reloads reproduce the role
func ExecuteDevLoginAs(ctx context.Context, input DevLoginAsInput, deps DevLoginAsDeps) (DevLoginAsResult, error) {
	if !input.BypassCapable {
		return DevLoginAsResult{}, ErrDevModeUnavailable
	}
	role, err := identity.ParseRole(input.Role)
	if err != nil {
		return DevLoginAsResult{}, ErrDevModeInvalidRole
	}

	id, err := deps.Session.LoginAsRole(ctx, role)
	if err != nil {
		return DevLoginAsResult{}, err
	}
	if err := deps.Session.SetBypassEnabled(ctx, true); err != nil {
		return DevLoginAsResult{}, err
	}
	return DevLoginAsResult{Identity: id, Redirect: role.LandingPath()}, nil
}

// DevToggleBypassInput carries input for the bypass toggle.
type DevToggleBypassInput struct {
	Enabled       bool
	BypassCapable bool
}

// ExecuteDevToggleBypass persists the bypass flag and re-initializes the session.
// Disabling is always allowed so a stale flag can be cleared.
func ExecuteDevToggleBypass(ctx context.Context, input DevToggleBypassInput, deps DevLoginAsDeps) error {
	if input.Enabled && !input.BypassCapable {
		return ErrDevModeUnavailable
	}
	return deps.Session.SetBypassEnabled(ctx, input.Enabled)
}
