// Package workspace keeps one session and one business record per device.
//
// A device is identified by an opaque id (the HTTP layer keeps it in a
// cookie). Its Workspace is created on first use and evicted after it has
// been idle for the configured TTL.
package workspace

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"loyaltyloop/internal/application/business"
	"loyaltyloop/internal/application/orchestrators"
	"loyaltyloop/internal/application/projections"
	"loyaltyloop/internal/application/session"
)

// DefaultIdleTTL is how long an unused workspace is kept.
const DefaultIdleTTL = 2 * time.Hour

// ErrEmptyDevice is returned by Get for an empty device id.
var ErrEmptyDevice = errors.New("device id cannot be empty")

// PrefsFactory returns the preference scope for a device.
type PrefsFactory func(deviceID string) session.Prefs

// ProviderFactory returns the auth provider as seen from a device.
type ProviderFactory func(deviceID string) session.AuthProvider

// Config holds registry settings.
type Config struct {
	BypassCapable bool
	IdleTTL       time.Duration // defaults to DefaultIdleTTL
	SeedDemo      bool          // fill new business records with demo data
}

// Workspace is one device's session and business record.
type Workspace struct {
	DeviceID string
	Session  *session.Store
	Business *business.Store
	Prefs    session.Prefs

	initOnce sync.Once
	initErr  error

	mu       sync.Mutex
	lastSeen time.Time
}

// LastSeen returns when the workspace was last used.
func (w *Workspace) LastSeen() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen
}

func (w *Workspace) touch(now time.Time) {
	w.mu.Lock()
	w.lastSeen = now
	w.mu.Unlock()
}

// Registry owns every live workspace.
type Registry struct {
	cfg         Config
	newPrefs    PrefsFactory
	newProvider ProviderFactory
	now         func() time.Time

	mu     sync.Mutex
	spaces map[string]*Workspace
}

// NewRegistry creates an empty registry.
// PRE: newPrefs and newProvider are non-nil
func NewRegistry(cfg Config, newPrefs PrefsFactory, newProvider ProviderFactory) *Registry {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	return &Registry{
		cfg:         cfg,
		newPrefs:    newPrefs,
		newProvider: newProvider,
		now:         time.Now,
		spaces:      make(map[string]*Workspace),
	}
}

// Get returns the device's workspace, creating and initializing it on first use.
// POST: the returned workspace's session has been initialized once
func (r *Registry) Get(ctx context.Context, deviceID string) (*Workspace, error) {
	if deviceID == "" {
		return nil, ErrEmptyDevice
	}
	now := r.now()

	r.mu.Lock()
	ws, ok := r.spaces[deviceID]
	if !ok {
		ws = r.build(deviceID)
		r.spaces[deviceID] = ws
	}
	r.mu.Unlock()
	ws.touch(now)

	ws.initOnce.Do(func() {
		ws.initErr = ws.Session.Initialize(ctx)
		if ws.initErr == nil {
			slog.Info("workspace_event", "event", "created", "device_id", deviceID)
		}
	})
	if ws.initErr != nil {
		r.remove(deviceID, ws)
		return nil, ws.initErr
	}
	return ws, nil
}

func (r *Registry) build(deviceID string) *Workspace {
	prefs := r.newPrefs(deviceID)
	ws := &Workspace{
		DeviceID: deviceID,
		Prefs:    prefs,
		Session: session.New(prefs, r.newProvider(deviceID),
			session.WithBypassCapable(r.cfg.BypassCapable),
			session.WithLabel(deviceID),
		),
		Business: business.New(),
	}
	ws.Session.OnChange(func(st session.State) {
		ws.Business.InitializeForIdentity(st.Identity)
		if !r.cfg.SeedDemo || st.Identity == nil {
			return
		}
		if _, err := orchestrators.ExecuteSeedDemoBusiness(context.Background(), orchestrators.SeedDemoBusinessDeps{
			Business: ws.Business,
			Now:      ws.Business.Now,
		}); err != nil {
			slog.Error("workspace_event", "event", "seed_failed", "device_id", deviceID, "error", err)
		}
	})
	return ws
}

// remove drops deviceID if it still maps to ws.
func (r *Registry) remove(deviceID string, ws *Workspace) {
	r.mu.Lock()
	if r.spaces[deviceID] == ws {
		delete(r.spaces, deviceID)
	}
	r.mu.Unlock()
	ws.Session.Close()
}

// Len returns the number of live workspaces.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.spaces)
}

// Summaries describes every live workspace, most recently used first.
func (r *Registry) Summaries() []projections.WorkspaceSummary {
	r.mu.Lock()
	spaces := make([]*Workspace, 0, len(r.spaces))
	for _, ws := range r.spaces {
		spaces = append(spaces, ws)
	}
	r.mu.Unlock()

	out := make([]projections.WorkspaceSummary, 0, len(spaces))
	for _, ws := range spaces {
		st := ws.Session.State()
		sum := projections.WorkspaceSummary{
			DeviceID:      ws.DeviceID,
			Bypass:        st.BypassEnabled,
			Authenticated: st.Authenticated(),
			LastSeen:      ws.LastSeen(),
		}
		if st.Identity != nil {
			sum.Role = st.Identity.Role().String()
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastSeen.Equal(out[j].LastSeen) {
			return out[i].LastSeen.After(out[j].LastSeen)
		}
		return out[i].DeviceID < out[j].DeviceID
	})
	return out
}

// Sweep evicts workspaces idle since before now minus the TTL.
// POST: returns the number evicted
func (r *Registry) Sweep(now time.Time) int {
	cutoff := now.Add(-r.cfg.IdleTTL)
	var idle []*Workspace

	r.mu.Lock()
	for id, ws := range r.spaces {
		if ws.LastSeen().Before(cutoff) {
			idle = append(idle, ws)
			delete(r.spaces, id)
		}
	}
	r.mu.Unlock()

	for _, ws := range idle {
		ws.Session.Close()
		slog.Info("workspace_event", "event", "evicted", "device_id", ws.DeviceID)
	}
	return len(idle)
}

// Run sweeps every interval until ctx ends.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			r.Sweep(now)
		}
	}
}

// Close evicts every workspace.
func (r *Registry) Close() {
	r.mu.Lock()
	spaces := r.spaces
	r.spaces = make(map[string]*Workspace)
	r.mu.Unlock()
	for _, ws := range spaces {
		ws.Session.Close()
	}
}
