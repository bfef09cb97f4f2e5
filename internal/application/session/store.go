// Package session holds who is acting on a device and whether real
// authentication is being skipped.
//
// A Store is the single writer of its State. Auth operations (Login, Logout,
// Register, ResetPassword, LoginAsRole, SetBypassEnabled, CompleteSetup) run one
// at a time per Store; a second caller waits for the first to finish.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"loyaltyloop/internal/application/apperr"
	"loyaltyloop/internal/domain/identity"
)

// Persisted preference keys.
const (
	KeyBypassLogin   = "bypassLogin"
	KeyUserRole      = "userRole"
	KeySetupComplete = "setupComplete"
)

// ErrBypassUnavailable is returned by bypass-only operations in builds without bypass support.
var ErrBypassUnavailable = errors.New("bypass login is not available in this build")

// ErrClosed is returned by operations on a closed Store.
var ErrClosed = errors.New("session store is closed")

// Prefs is the device-local key/value state that survives reloads.
type Prefs interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// AuthProvider is the upstream authentication service. The Store uses these five operations and nothing else.
type AuthProvider interface {
	OnAuthStateChanged(fn func(*identity.ProviderUser)) (unsubscribe func())
	SignIn(ctx context.Context, email, password string) (*identity.ProviderUser, error)
	SignOut(ctx context.Context) error
	CreateAccount(ctx context.Context, email, password string) (*identity.ProviderUser, error)
	SendPasswordReset(ctx context.Context, email string) error
}

// State is a value snapshot of the session.
// INVARIANT: while Loading is true no gated view may render
type State struct {
	Identity      identity.Identity // nil when nobody is signed in
	Loading       bool
	BypassEnabled bool
}

// Authenticated reports whether an identity is present.
func (s State) Authenticated() bool { return s.Identity != nil }

// Option configures a Store.
type Option func(*Store)

// WithBypassCapable enables the development bypass operations.
func WithBypassCapable(v bool) Option {
	return func(s *Store) { s.bypassCapable = v }
}

// WithLabel tags log events with the owning device.
func WithLabel(deviceID string) Option {
	return func(s *Store) { s.label = deviceID }
}

// Store is one device's session.
type Store struct {
	prefs         Prefs
	auth          AuthProvider
	bypassCapable bool
	label         string

	// authMu serializes auth operations and re-initialization.
	authMu sync.Mutex

	// notifyMu orders state changes with their listener calls.
	notifyMu sync.Mutex

	mu          sync.Mutex
	state       State
	gen         uint64
	unsubscribe func()
	ready       chan struct{}
	readyClosed bool
	listeners   []func(State)
	closed      bool
}

// New returns a Store in the loading state. Call Initialize to resolve it.
func New(prefs Prefs, auth AuthProvider, opts ...Option) *Store {
	s := &Store{
		prefs: prefs,
		auth:  auth,
		state: State{Loading: true},
		ready: make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// BypassCapable reports whether bypass operations are compiled in.
func (s *Store) BypassCapable() bool { return s.bypassCapable }

// State returns a snapshot of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OnChange registers fn to receive every new state, in order.
// fn must not call mutating Store methods.
func (s *Store) OnChange(fn func(State)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// WaitReady blocks until Loading is false or ctx ends.
func (s *Store) WaitReady(ctx context.Context) (State, error) {
	for {
		s.mu.Lock()
		st, ready := s.state, s.ready
		s.mu.Unlock()
		if !st.Loading {
			return st, nil
		}
		select {
		case <-ready:
		case <-ctx.Done():
			return st, ctx.Err()
		}
	}
}

// Initialize resolves the session from persisted preferences.
//
// With bypass on, a MockIdentity for the persisted role is made current at once.
// Otherwise the Store enters Loading and subscribes to the provider; each
// notification replaces the identity and the first one ends Loading.
// Re-initializing drops the previous subscription; its late notifications are ignored.
func (s *Store) Initialize(ctx context.Context) error {
	s.authMu.Lock()
	defer s.authMu.Unlock()
	return s.initialize(ctx)
}

func (s *Store) initialize(ctx context.Context) error {
	if s.isClosed() {
		return ErrClosed
	}
	bypass, err := s.readBool(ctx, KeyBypassLogin)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	if bypass && !s.bypassCapable {
		slog.Warn("bypass_event", "event", "bypass_ignored", "device_id", s.label)
		bypass = false
	}

	if bypass {
		role, err := s.readRole(ctx)
		if err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
		s.transition(func(st *State) (drop func()) {
			drop = s.resetSubscriptionLocked()
			st.Identity = identity.NewMockIdentity(role)
			st.Loading = false
			st.BypassEnabled = true
			return drop
		})
		slog.Info("bypass_event", "event", "mock_identity", "role", role, "device_id", s.label)
		return nil
	}

	var gen uint64
	s.transition(func(st *State) (drop func()) {
		drop = s.resetSubscriptionLocked()
		gen = s.gen
		st.Identity = nil
		st.Loading = true
		st.BypassEnabled = false
		return drop
	})

	unsub := s.auth.OnAuthStateChanged(func(u *identity.ProviderUser) {
		s.applyProviderUser(gen, u)
	})

	s.mu.Lock()
	current := s.gen == gen && !s.closed
	if current {
		s.unsubscribe = unsub
	}
	s.mu.Unlock()
	if !current {
		unsub()
	}
	return nil
}

// resetSubscriptionLocked starts a new generation and returns the old unsubscribe func.
// PRE: s.mu held
func (s *Store) resetSubscriptionLocked() func() {
	s.gen++
	drop := s.unsubscribe
	s.unsubscribe = nil
	return drop
}

// transition applies fn under the state lock and then notifies listeners in order.
// fn may return a func to run after the lock is released.
func (s *Store) transition(fn func(st *State) func()) State {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	after := fn(&s.state)
	st := s.state
	if st.Loading && s.readyClosed {
		s.ready = make(chan struct{})
		s.readyClosed = false
	}
	if !st.Loading && !s.readyClosed {
		close(s.ready)
		s.readyClosed = true
	}
	listeners := append(([]func(State))(nil), s.listeners...)
	s.mu.Unlock()

	if after != nil {
		after()
	}
	for _, l := range listeners {
		l(st)
	}
	return st
}

// applyProviderUser handles a provider notification for subscription gen.
func (s *Store) applyProviderUser(gen uint64, u *identity.ProviderUser) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var id identity.Identity
	if u != nil {
		decorated, err := s.decorate(ctx, *u)
		if err != nil {
			slog.Error("session_decorate_failed", "device_id", s.label, "error", err)
			decorated = identity.NewRealIdentity(*u, identity.DefaultRole, false)
		}
		id = decorated
	}

	s.mu.Lock()
	stale := gen != s.gen || s.closed
	s.mu.Unlock()
	if stale {
		return
	}

	s.transition(func(st *State) func() {
		if gen != s.gen {
			return nil
		}
		st.Identity = id
		st.Loading = false
		return nil
	})
}

// setReal makes a provider user current without waiting for the notification.
func (s *Store) setReal(ctx context.Context, u *identity.ProviderUser) (identity.Identity, error) {
	var id identity.Identity
	if u != nil {
		decorated, err := s.decorate(ctx, *u)
		if err != nil {
			return nil, err
		}
		id = decorated
	}
	s.transition(func(st *State) func() {
		st.Identity = id
		st.Loading = false
		return nil
	})
	return id, nil
}

func (s *Store) setMock(role identity.Role) identity.Identity {
	id := identity.NewMockIdentity(role)
	s.transition(func(st *State) func() {
		st.Identity = id
		st.Loading = false
		return nil
	})
	return id
}

func (s *Store) decorate(ctx context.Context, u identity.ProviderUser) (identity.RealIdentity, error) {
	role, err := s.readRole(ctx)
	if err != nil {
		return identity.RealIdentity{}, err
	}
	setup, err := s.readBool(ctx, KeySetupComplete)
	if err != nil {
		return identity.RealIdentity{}, err
	}
	return identity.NewRealIdentity(u, role, setup), nil
}

// LoginAsRole persists role and makes a MockIdentity for it current, without any credential check.
// PRE: bypass-capable build
// POST: later Initialize calls in bypass mode reproduce role
func (s *Store) LoginAsRole(ctx context.Context, role identity.Role) (identity.Identity, error) {
	if !s.bypassCapable {
		return nil, ErrBypassUnavailable
	}
	r, err := identity.ParseRole(string(role))
	if err != nil {
		return nil, err
	}
	s.authMu.Lock()
	defer s.authMu.Unlock()
	if s.isClosed() {
		return nil, ErrClosed
	}
	if err := s.prefs.Set(ctx, KeyUserRole, string(r)); err != nil {
		return nil, fmt.Errorf("login as role: %w", err)
	}
	slog.Info("bypass_event", "event", "login_as_role", "role", r, "device_id", s.label)
	return s.setMock(r), nil
}

// Login signs in. With bypass on the credentials are ignored and an owner MockIdentity is made current.
// Provider failures are returned as *apperr.AuthError and are not retried.
func (s *Store) Login(ctx context.Context, email, password string) (identity.Identity, error) {
	s.authMu.Lock()
	defer s.authMu.Unlock()
	if s.isClosed() {
		return nil, ErrClosed
	}

	if s.State().BypassEnabled {
		slog.Info("bypass_event", "event", "login_short_circuit", "device_id", s.label)
		return s.setMock(identity.RoleOwner), nil
	}

	u, err := s.auth.SignIn(ctx, email, password)
	if err != nil {
		ae := apperr.NewAuthError("login", err)
		slog.Info("auth_event", "event", "login_failed", "code", ae.Code, "device_id", s.label)
		return nil, ae
	}
	slog.Info("auth_event", "event", "login_success", "device_id", s.label)
	return s.setReal(ctx, u)
}

// Logout clears the identity. With bypass on no provider call is made.
func (s *Store) Logout(ctx context.Context) error {
	s.authMu.Lock()
	defer s.authMu.Unlock()
	if s.isClosed() {
		return ErrClosed
	}

	if !s.State().BypassEnabled {
		if err := s.auth.SignOut(ctx); err != nil {
			ae := apperr.NewAuthError("logout", err)
			slog.Warn("auth_event", "event", "logout_failed", "code", ae.Code, "device_id", s.label)
			return ae
		}
	}
	s.transition(func(st *State) func() {
		st.Identity = nil
		st.Loading = false
		return nil
	})
	slog.Info("auth_event", "event", "logout", "device_id", s.label)
	return nil
}

// Register creates an account. With bypass on an owner MockIdentity is made current instead.
func (s *Store) Register(ctx context.Context, email, password string) (identity.Identity, error) {
	s.authMu.Lock()
	defer s.authMu.Unlock()
	if s.isClosed() {
		return nil, ErrClosed
	}

	if s.State().BypassEnabled {
		slog.Info("bypass_event", "event", "register_short_circuit", "device_id", s.label)
		return s.setMock(identity.RoleOwner), nil
	}

	u, err := s.auth.CreateAccount(ctx, email, password)
	if err != nil {
		ae := apperr.NewAuthError("register", err)
		slog.Info("auth_event", "event", "register_failed", "code", ae.Code, "device_id", s.label)
		return nil, ae
	}
	slog.Info("auth_event", "event", "register_success", "device_id", s.label)
	return s.setReal(ctx, u)
}

// ResetPassword asks the provider to email a reset link. With bypass on it succeeds without doing anything.
func (s *Store) ResetPassword(ctx context.Context, email string) error {
	s.authMu.Lock()
	defer s.authMu.Unlock()
	if s.isClosed() {
		return ErrClosed
	}

	if s.State().BypassEnabled {
		return nil
	}
	if err := s.auth.SendPasswordReset(ctx, email); err != nil {
		ae := apperr.NewAuthError("reset_password", err)
		slog.Info("auth_event", "event", "reset_failed", "code", ae.Code, "device_id", s.label)
		return ae
	}
	slog.Info("auth_event", "event", "reset_sent", "device_id", s.label)
	return nil
}

// SetBypassEnabled persists the flag and re-initializes.
func (s *Store) SetBypassEnabled(ctx context.Context, v bool) error {
	if v && !s.bypassCapable {
		return ErrBypassUnavailable
	}
	s.authMu.Lock()
	defer s.authMu.Unlock()
	if s.isClosed() {
		return ErrClosed
	}
	if err := s.prefs.Set(ctx, KeyBypassLogin, formatBool(v)); err != nil {
		return fmt.Errorf("set bypass: %w", err)
	}
	slog.Info("bypass_event", "event", "bypass_toggled", "enabled", v, "device_id", s.label)
	return s.initialize(ctx)
}

// CompleteSetup persists setupComplete=true and refreshes the current real identity.
// PRE: an identity is present
func (s *Store) CompleteSetup(ctx context.Context) error {
	s.authMu.Lock()
	defer s.authMu.Unlock()
	if s.isClosed() {
		return ErrClosed
	}
	if !s.State().Authenticated() {
		return &apperr.StateError{Op: "CompleteSetup", Reason: "no identity is signed in"}
	}
	if err := s.prefs.Set(ctx, KeySetupComplete, "true"); err != nil {
		return fmt.Errorf("complete setup: %w", err)
	}
	s.transition(func(st *State) func() {
		if real, ok := st.Identity.(identity.RealIdentity); ok {
			real.SetupComplete = true
			st.Identity = real
		}
		return nil
	})
	return nil
}

// Close drops the provider subscription. Later operations fail with ErrClosed.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.gen++
	drop := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()
	if drop != nil {
		drop()
	}
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Store) readBool(ctx context.Context, key string) (bool, error) {
	v, ok, err := s.prefs.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return ok && v == "true", nil
}

// readRole parses the persisted role at the read boundary. Unknown values fall back to the default.
func (s *Store) readRole(ctx context.Context) (identity.Role, error) {
	v, ok, err := s.prefs.Get(ctx, KeyUserRole)
	if err != nil {
		return "", err
	}
	if !ok {
		return identity.DefaultRole, nil
	}
	r, perr := identity.ParseRole(v)
	if perr != nil {
		slog.Warn("session_role_invalid", "value", v, "device_id", s.label)
		return identity.DefaultRole, nil
	}
	return r, nil
}

func formatBool(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
