package projections

import (
	"context"
	"errors"
	"time"

	"loyaltyloop/internal/adapters/http/perf"
	"loyaltyloop/internal/domain/loyalty"
)

// ErrNoBusiness is returned by business views when no business is loaded.
var ErrNoBusiness = errors.New("no business is loaded")

// BusinessReader gives read access to the workspace's business record.
type BusinessReader interface {
	Current() *loyalty.Business
}

// AccountCounter reports how many provider accounts exist.
type AccountCounter interface {
	CountAccounts(ctx context.Context) (int, error)
}

// WorkspaceSummary describes one live device workspace.
type WorkspaceSummary struct {
	DeviceID      string
	Role          string // empty when nobody is signed in
	Bypass        bool
	Authenticated bool
	LastSeen      time.Time
}

// WorkspaceLister lists live workspaces.
type WorkspaceLister interface {
	Summaries() []WorkspaceSummary
}

// LatencySource provides request timing aggregates.
type LatencySource interface {
	Snapshot(since time.Time, topN int) perf.Snapshot
}

func currentBusiness(r BusinessReader) (*loyalty.Business, error) {
	b := r.Current()
	if b == nil {
		return nil, ErrNoBusiness
	}
	return b, nil
}
