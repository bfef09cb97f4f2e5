// Package web serves the LoyaltyLoop pages, form posts and JSON API.
package web

import (
	"context"
	"net/http"
	"time"

	"loyaltyloop/internal/adapters/http/middleware"
	"loyaltyloop/internal/adapters/http/perf"
	"loyaltyloop/internal/adapters/metrics"
	"loyaltyloop/internal/application/projections"
	"loyaltyloop/internal/application/workspace"
)

// PasswordResetter completes the emailed password-reset flow.
type PasswordResetter interface {
	VerifyResetCode(ctx context.Context, code string) (string, error)
	ConfirmPasswordReset(ctx context.Context, code, newPassword string) error
}

// Options holds the settings the HTTP layer reads.
type Options struct {
	BypassCapable  bool
	LoadingWait    time.Duration // how long a request waits for a loading session
	SecureCookies  bool
	CSRFKey        []byte
	TrustedOrigins []string
	RateLimit      int // requests per second per IP; 0 disables
	SlowRequest    time.Duration
}

// Deps holds everything the handlers use.
type Deps struct {
	Workspaces *workspace.Registry
	Accounts   projections.AccountCounter
	Resets     PasswordResetter
	Collector  *perf.Collector  // optional
	Metrics    *metrics.Metrics // optional
	Ping       func(ctx context.Context) error
	Options    Options
}

type server struct {
	deps      Deps
	opts      Options
	pages     *pageSet
	viewTable map[string]actionFunc
}

func newServer(deps Deps) *server {
	if deps.Options.LoadingWait <= 0 {
		deps.Options.LoadingWait = 1500 * time.Millisecond
	}
	s := &server{deps: deps, opts: deps.Options, pages: mustParsePages()}
	s.viewTable = s.views()
	return s
}

// NewMux wires handlers and the middleware chain.
// Order, outermost first: Timing, RateLimit, CSRF, SecurityHeaders, Device.
func NewMux(ctx context.Context, deps Deps) http.Handler {
	s := newServer(deps)

	mws := []func(http.Handler) http.Handler{
		middleware.SecurityHeaders,
		middleware.CSRF(s.opts.CSRFKey, middleware.CSRFOptions{
			Secure:         s.opts.SecureCookies,
			TrustedOrigins: s.opts.TrustedOrigins,
		}),
	}
	if s.opts.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(s.opts.RateLimit, time.Second)
		go limiter.Run(ctx)
		mws = append(mws, middleware.RateLimit(limiter))
	}
	timing := middleware.TimingOptions{SlowRequest: s.opts.SlowRequest}
	if deps.Metrics != nil {
		timing.Observe = deps.Metrics.ObserveRequest
	}
	mws = append(mws, middleware.Timing(deps.Collector, timing))

	return middleware.Chain(s.handler(), mws...)
}

// handler is the mux behind the device middleware.
func (s *server) handler() http.Handler {
	return middleware.Device(middleware.DeviceOptions{Secure: s.opts.SecureCookies})(s.routes())
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Every page navigation goes through the guard.
	mux.HandleFunc("GET /", s.handleView)

	mux.HandleFunc("POST /login", s.public(s.handleLoginPost))
	mux.HandleFunc("POST /customer/login", s.public(s.handleCustomerLoginPost))
	mux.HandleFunc("POST /register", s.public(s.handleRegisterPost))
	mux.HandleFunc("POST /forgot-password", s.public(s.handleForgotPasswordPost))
	mux.HandleFunc("POST /logout", s.public(s.handleLogout))
	mux.HandleFunc("GET /auth/action", s.public(s.handleAuthAction))
	mux.HandleFunc("POST /auth/action", s.public(s.handleAuthActionPost))

	mux.HandleFunc("POST /setup", s.gated(s.handleSetupPost))
	mux.HandleFunc("POST /dashboard/programs", s.gated(s.handleProgramPost))
	mux.HandleFunc("POST /dashboard/rewards", s.gated(s.handleRewardPost))
	mux.HandleFunc("POST /dashboard/customers", s.gated(s.handleCustomerPost))
	mux.HandleFunc("POST /dashboard/transactions", s.gated(s.handleTransactionPost))
	mux.HandleFunc("POST /dashboard/settings", s.gated(s.handleSettingsPost))

	mux.HandleFunc("POST /dev/bypass", s.public(s.handleDevBypass))
	mux.HandleFunc("POST /dev/login-as", s.public(s.handleDevLoginAs))

	mux.HandleFunc("GET /api/session", s.public(s.handleAPISession))
	mux.HandleFunc("POST /api/session/login", s.public(s.handleAPILogin))
	mux.HandleFunc("POST /api/session/logout", s.public(s.handleAPILogout))
	mux.HandleFunc("POST /api/session/login-as", s.public(s.handleAPILoginAs))
	mux.HandleFunc("POST /api/session/bypass", s.public(s.handleAPIBypass))
	mux.HandleFunc("GET /api/business", s.api(s.handleAPIBusiness))
	mux.HandleFunc("PATCH /api/business", s.api(s.handleAPIBusinessPatch))
	mux.HandleFunc("GET /api/business/programs", s.api(s.handleAPIPrograms))
	mux.HandleFunc("POST /api/business/programs", s.api(s.handleAPIProgramCreate))
	mux.HandleFunc("GET /api/business/customers", s.api(s.handleAPICustomers))
	mux.HandleFunc("POST /api/business/customers", s.api(s.handleAPICustomerCreate))
	mux.HandleFunc("GET /api/business/transactions", s.api(s.handleAPITransactions))
	mux.HandleFunc("POST /api/business/transactions", s.api(s.handleAPITransactionCreate))
	mux.HandleFunc("GET /api/business/rewards", s.api(s.handleAPIRewards))
	mux.HandleFunc("POST /api/business/rewards", s.api(s.handleAPIRewardCreate))

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	if s.deps.Metrics != nil {
		mux.Handle("GET /metrics", s.deps.Metrics.Handler())
	}
	return mux
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ping(ctx); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}
