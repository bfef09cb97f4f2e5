package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"loyaltyloop/internal/domain/loyalty"
)

// DemoAccountSeedDeps holds what the demo account seed needs.
type DemoAccountSeedDeps struct {
	Accounts demoAccountEnsurer
}

type demoAccountEnsurer interface {
	EnsureAccount(ctx context.Context, email, password string) (bool, error)
}

// demoAccountDef defines a single demo account to seed.
type demoAccountDef struct {
	Email    string
	Password string
}

// demoAccounts returns the sign-in accounts created for local development.
// Roles are chosen per device, so the accounts differ only by address.
func demoAccounts() []demoAccountDef {
	return []demoAccountDef{
		{Email: "owner@coffeehaven.test", Password: "loyalty-owner"},
		{Email: "staff@coffeehaven.test", Password: "loyalty-staff"},
		{Email: "customer@coffeehaven.test", Password: "loyalty-customer"},
	}
}

// ExecuteSeedDemoAccounts creates the demo accounts if they don't already exist.
// PRE: database is initialized
// POST: every demo account exists; existing accounts are left alone
func ExecuteSeedDemoAccounts(ctx context.Context, deps DemoAccountSeedDeps) error {
	created := 0
	for _, def := range demoAccounts() {
		ok, err := deps.Accounts.EnsureAccount(ctx, def.Email, def.Password)
		if err != nil {
			return fmt.Errorf("seed demo account %s: %w", def.Email, err)
		}
		if ok {
			created++
			slog.Info("seed_event", "event", "demo_account_created", "email", def.Email)
		}
	}
	if created > 0 {
		slog.Info("seed_event", "event", "demo_accounts_seeded", "created", created)
	}
	return nil
}

// SeedDemoBusinessDeps holds dependencies for SeedDemoBusiness.
type SeedDemoBusinessDeps struct {
	Business BusinessStore
	Now      func() time.Time
}

// ExecuteSeedDemoBusiness fills an empty business with sample programs,
// customers, transactions and rewards.
// PRE: a business is loaded
// POST: a business that already has customers is left alone; returns false in that case
func ExecuteSeedDemoBusiness(ctx context.Context, deps SeedDemoBusinessDeps) (bool, error) {
	b := deps.Business.Current()
	if b == nil {
		return false, noBusiness("SeedDemoBusiness")
	}
	if len(b.Customers) > 0 {
		return false, nil
	}
	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}

	programs := []CreateProgramInput{
		{Name: "Coffee Points", Type: loyalty.ProgramPoints, Description: "Earn **5 points** for every dollar.", Active: true},
		{Name: "Tenth Cup Free", Type: loyalty.ProgramPunchcard, Description: "Buy nine, get the *tenth* on us.", Active: true},
		{Name: "Regulars Club", Type: loyalty.ProgramTiered, Description: "Climb from Bronze to Gold.", Active: false},
	}
	for _, in := range programs {
		if _, err := ExecuteCreateProgram(ctx, in, CreateProgramDeps{Business: deps.Business}); err != nil {
			return false, fmt.Errorf("seed program %s: %w", in.Name, err)
		}
	}

	customers := []RegisterCustomerInput{
		{Name: "Aroha Ngata", Email: "customer@coffeehaven.test", Phone: "021 555 0101"},
		{Name: "Ben Carter", Email: "ben@example.test", Phone: "021 555 0102"},
		{Name: "Mei Lin", Email: "mei@example.test", Phone: "021 555 0103"},
	}
	ids := make([]string, 0, len(customers))
	for _, in := range customers {
		c, err := ExecuteRegisterCustomer(ctx, in, RegisterCustomerDeps{Business: deps.Business, Now: now})
		if err != nil {
			return false, fmt.Errorf("seed customer %s: %w", in.Name, err)
		}
		ids = append(ids, c.ID)
	}

	txs := []RecordTransactionInput{
		{CustomerID: ids[0], Type: loyalty.TxPurchase, Amount: 24.50},
		{CustomerID: ids[0], Type: loyalty.TxPurchase, Amount: 8.00},
		{CustomerID: ids[1], Type: loyalty.TxPurchase, Amount: 12.75},
		{CustomerID: ids[0], Type: loyalty.TxRedemption, PointsRedeemed: 100},
		{CustomerID: ids[2], Type: loyalty.TxPurchase, Amount: 5.20},
	}
	for _, in := range txs {
		if _, err := ExecuteRecordTransaction(ctx, in, RecordTransactionDeps{Business: deps.Business, Now: now}); err != nil {
			return false, fmt.Errorf("seed transaction: %w", err)
		}
	}

	rewards := []CreateRewardInput{
		{Name: "Free Coffee", Description: "Any regular hot drink.", PointsCost: 100, Active: true},
		{Name: "Pastry", Description: "Pick from the cabinet.", PointsCost: 150, Active: true},
		{Name: "Bag of Beans", Description: "250g of the house blend.", PointsCost: 500, Active: true},
	}
	for _, in := range rewards {
		if _, err := ExecuteCreateReward(ctx, in, CreateRewardDeps{Business: deps.Business}); err != nil {
			return false, fmt.Errorf("seed reward %s: %w", in.Name, err)
		}
	}

	slog.Info("seed_event", "event", "demo_business_seeded", "customers", len(ids), "transactions", len(txs))
	return true, nil
}
