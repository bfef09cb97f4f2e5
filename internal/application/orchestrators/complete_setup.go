package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"loyaltyloop/internal/domain/loyalty"
)

// ErrSetupNameRequired is returned when the wizard is submitted without a business name.
var ErrSetupNameRequired = errors.New("business name is required")

// CompleteSetupInput carries the onboarding wizard's answers.
type CompleteSetupInput struct {
	Name        string
	Industry    string
	ProgramType string // optional starter program
}

// CompleteSetupDeps holds dependencies for CompleteSetup.
type CompleteSetupDeps struct {
	Business BusinessStore
	Session  SessionStore
}

// ExecuteCompleteSetup saves the business profile, optionally creates a starter
// program, and marks setup complete on the session.
// PRE: a business is loaded and an identity is signed in
// POST: the identity reports setup complete
func ExecuteCompleteSetup(ctx context.Context, input CompleteSetupInput, deps CompleteSetupDeps) error {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return ErrSetupNameRequired
	}
	industry := strings.TrimSpace(input.Industry)
	patch := loyalty.ProfilePatch{Name: &name}
	if industry != "" {
		patch.Industry = &industry
	}
	if err := deps.Business.SaveBusiness(patch); err != nil {
		return err
	}

	if input.ProgramType != "" {
		_, err := ExecuteCreateProgram(ctx, CreateProgramInput{
			Name:   starterProgramName(input.ProgramType),
			Type:   input.ProgramType,
			Active: true,
		}, CreateProgramDeps{Business: deps.Business})
		if err != nil {
			return err
		}
	}

	if err := deps.Session.CompleteSetup(ctx); err != nil {
		return err
	}
	slog.Info("business_event", "event", "setup_complete", "program_type", input.ProgramType)
	return nil
}

func starterProgramName(programType string) string {
	switch programType {
	case loyalty.ProgramPunchcard:
		return "Punch Card"
	case loyalty.ProgramTiered:
		return "VIP Tiers"
	default:
		return "Points Rewards"
	}
}
