package orchestrators

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"loyaltyloop/internal/domain/loyalty"
)

// CreateProgramInput carries input for the orchestrator.
type CreateProgramInput struct {
	Name            string
	Type            string
	Description     string
	PointsPerDollar int
	PunchesNeeded   int
	Tiers           []loyalty.Tier
	Active          bool
}

// CreateProgramDeps holds dependencies for CreateProgram.
type CreateProgramDeps struct {
	Business BusinessStore
}

// ExecuteCreateProgram adds a loyalty program, filling type-specific defaults.
// PRE: a business is loaded
// POST: program appended with a fresh ID; only the rule matching its type is set
func ExecuteCreateProgram(ctx context.Context, input CreateProgramInput, deps CreateProgramDeps) (loyalty.Program, error) {
	p := loyalty.Program{
		ID:          uuid.New().String(),
		Name:        strings.TrimSpace(input.Name),
		Type:        input.Type,
		Description: strings.TrimSpace(input.Description),
		Active:      input.Active,
	}

	switch input.Type {
	case loyalty.ProgramPoints:
		p.Rules.PointsPerDollar = input.PointsPerDollar
		if p.Rules.PointsPerDollar == 0 {
			p.Rules.PointsPerDollar = loyalty.DefaultPointsPerDollar
		}
	case loyalty.ProgramPunchcard:
		p.Rules.PunchesNeeded = input.PunchesNeeded
		if p.Rules.PunchesNeeded == 0 {
			p.Rules.PunchesNeeded = loyalty.DefaultPunchesNeeded
		}
	case loyalty.ProgramTiered:
		p.Rules.Tiers = input.Tiers
		if len(p.Rules.Tiers) == 0 {
			p.Rules.Tiers = loyalty.DefaultTiers()
		}
	}

	if err := deps.Business.AddProgram(p); err != nil {
		return loyalty.Program{}, err
	}
	return p, nil
}
