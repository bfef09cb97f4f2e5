package loyalty

import (
	"errors"
	"strings"
)

// Program type constants
const (
	ProgramPoints    = "points"
	ProgramPunchcard = "punchcard"
	ProgramTiered    = "tiered"
)

// ValidProgramTypes contains all valid program types.
var ValidProgramTypes = []string{ProgramPoints, ProgramPunchcard, ProgramTiered}

// DefaultPointsPerDollar is the earn rate used when a purchase is recorded.
const DefaultPointsPerDollar = 5

// DefaultPunchesNeeded is the punch-card size offered by the program form.
const DefaultPunchesNeeded = 10

// Domain errors
var (
	ErrEmptyProgramName    = errors.New("program name cannot be empty")
	ErrInvalidProgramType  = errors.New("program type must be one of: points, punchcard, tiered")
	ErrInvalidEarnRate     = errors.New("points per dollar must be at least 1")
	ErrInvalidPunchCount   = errors.New("punches needed must be at least 1")
	ErrTiersRequired       = errors.New("tiered program needs at least one tier")
	ErrTierThresholdsOrder = errors.New("tier thresholds must be strictly increasing")
)

// Tier is one level of a tiered program.
type Tier struct {
	Name      string
	Threshold int
	Benefits  []string
}

// ProgramRules holds the type-specific settings; only the field matching the type is set.
type ProgramRules struct {
	PointsPerDollar int
	PunchesNeeded   int
	Tiers           []Tier
}

// Program is a rewards scheme a business offers its customers.
type Program struct {
	ID          string
	Name        string
	Type        string
	Description string // Markdown
	Rules       ProgramRules
	Active      bool
}

// DefaultTiers returns the Bronze/Silver/Gold ladder offered for new tiered programs.
func DefaultTiers() []Tier {
	return []Tier{
		{Name: "Bronze", Threshold: 0, Benefits: []string{"Basic rewards"}},
		{Name: "Silver", Threshold: 500, Benefits: []string{"Basic rewards", "10% bonus points"}},
		{Name: "Gold", Threshold: 1000, Benefits: []string{"All Silver benefits", "Priority service", "Exclusive offers"}},
	}
}

// Validate checks if the Program has valid data.
// PRE: Program struct is populated
// POST: Returns nil if valid, error otherwise
func (p *Program) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyProgramName
	}
	switch p.Type {
	case ProgramPoints:
		if p.Rules.PointsPerDollar < 1 {
			return ErrInvalidEarnRate
		}
	case ProgramPunchcard:
		if p.Rules.PunchesNeeded < 1 {
			return ErrInvalidPunchCount
		}
	case ProgramTiered:
		if len(p.Rules.Tiers) == 0 {
			return ErrTiersRequired
		}
		for i := 1; i < len(p.Rules.Tiers); i++ {
			if p.Rules.Tiers[i].Threshold <= p.Rules.Tiers[i-1].Threshold {
				return ErrTierThresholdsOrder
			}
		}
	default:
		return ErrInvalidProgramType
	}
	return nil
}

// TierFor returns the highest tier whose threshold is at or below points, and the next tier if any.
// INVARIANT: tiers are not mutated
func TierFor(tiers []Tier, points int) (current Tier, next *Tier) {
	for i, t := range tiers {
		if points >= t.Threshold {
			current = t
			continue
		}
		n := tiers[i]
		return current, &n
	}
	return current, nil
}

func (p Program) clone() Program {
	out := p
	if p.Rules.Tiers != nil {
		out.Rules.Tiers = make([]Tier, len(p.Rules.Tiers))
		for i, t := range p.Rules.Tiers {
			t.Benefits = append([]string(nil), t.Benefits...)
			out.Rules.Tiers[i] = t
		}
	}
	return out
}
