package loyalty_test

import (
	"testing"

	"loyaltyloop/internal/domain/loyalty"
)

func TestProgram_Validate(t *testing.T) {
	tests := []struct {
		name    string
		program loyalty.Program
		wantErr error
	}{
		{
			name:    "valid points",
			program: loyalty.Program{Name: "Coffee Points", Type: loyalty.ProgramPoints, Rules: loyalty.ProgramRules{PointsPerDollar: 5}},
		},
		{
			name:    "valid punchcard",
			program: loyalty.Program{Name: "Tenth Free", Type: loyalty.ProgramPunchcard, Rules: loyalty.ProgramRules{PunchesNeeded: 10}},
		},
		{
			name:    "valid tiered",
			program: loyalty.Program{Name: "VIP", Type: loyalty.ProgramTiered, Rules: loyalty.ProgramRules{Tiers: loyalty.DefaultTiers()}},
		},
		{
			name:    "empty name",
			program: loyalty.Program{Type: loyalty.ProgramPoints, Rules: loyalty.ProgramRules{PointsPerDollar: 5}},
			wantErr: loyalty.ErrEmptyProgramName,
		},
		{
			name:    "unknown type",
			program: loyalty.Program{Name: "X", Type: "cashback"},
			wantErr: loyalty.ErrInvalidProgramType,
		},
		{
			name:    "zero earn rate",
			program: loyalty.Program{Name: "X", Type: loyalty.ProgramPoints},
			wantErr: loyalty.ErrInvalidEarnRate,
		},
		{
			name:    "zero punches",
			program: loyalty.Program{Name: "X", Type: loyalty.ProgramPunchcard},
			wantErr: loyalty.ErrInvalidPunchCount,
		},
		{
			name:    "no tiers",
			program: loyalty.Program{Name: "X", Type: loyalty.ProgramTiered},
			wantErr: loyalty.ErrTiersRequired,
		},
		{
			name: "unordered tiers",
			program: loyalty.Program{Name: "X", Type: loyalty.ProgramTiered, Rules: loyalty.ProgramRules{Tiers: []loyalty.Tier{
				{Name: "A", Threshold: 100}, {Name: "B", Threshold: 100},
			}}},
			wantErr: loyalty.ErrTierThresholdsOrder,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.program.Validate(); err != tt.wantErr {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTierFor(t *testing.T) {
	tiers := loyalty.DefaultTiers()

	tests := []struct {
		points   int
		wantTier string
		wantNext string
	}{
		{0, "Bronze", "Silver"},
		{499, "Bronze", "Silver"},
		{500, "Silver", "Gold"},
		{1500, "Gold", ""},
	}

	for _, tt := range tests {
		cur, next := loyalty.TierFor(tiers, tt.points)
		if cur.Name != tt.wantTier {
			t.Errorf("TierFor(%d) current = %q, want %q", tt.points, cur.Name, tt.wantTier)
		}
		gotNext := ""
		if next != nil {
			gotNext = next.Name
		}
		if gotNext != tt.wantNext {
			t.Errorf("TierFor(%d) next = %q, want %q", tt.points, gotNext, tt.wantNext)
		}
	}
}

func TestPointsForPurchase(t *testing.T) {
	tests := []struct {
		amount float64
		rate   int
		want   int
	}{
		{24.00, 5, 120},
		{4.99, 5, 24},
		{10, 0, 50},
		{0, 5, 0},
		{-3, 5, 0},
		{7.5, 2, 15},
	}
	for _, tt := range tests {
		if got := loyalty.PointsForPurchase(tt.amount, tt.rate); got != tt.want {
			t.Errorf("PointsForPurchase(%v, %d) = %d, want %d", tt.amount, tt.rate, got, tt.want)
		}
	}
}

func TestCustomer_Matches(t *testing.T) {
	c := loyalty.Customer{Name: "Grace Hopper", Email: "grace@navy.test", Phone: "0215550199"}
	for _, term := range []string{"", "grace", "HOPPER", "navy", "555"} {
		if !c.Matches(term) {
			t.Errorf("expected match for %q", term)
		}
	}
	if c.Matches("lovelace") {
		t.Error("unexpected match")
	}
}

func TestReward_Validate(t *testing.T) {
	if err := (&loyalty.Reward{Name: "Free Coffee", PointsCost: 100}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (&loyalty.Reward{Name: "", PointsCost: 100}).Validate(); err != loyalty.ErrEmptyRewardName {
		t.Errorf("expected ErrEmptyRewardName, got %v", err)
	}
	if err := (&loyalty.Reward{Name: "Free", PointsCost: 0}).Validate(); err != loyalty.ErrInvalidPointsCost {
		t.Errorf("expected ErrInvalidPointsCost, got %v", err)
	}
}
