package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"loyaltyloop/internal/adapters/authprovider"
	emailPkg "loyaltyloop/internal/adapters/email"
	web "loyaltyloop/internal/adapters/http"
	"loyaltyloop/internal/adapters/http/perf"
	"loyaltyloop/internal/adapters/metrics"
	"loyaltyloop/internal/adapters/storage"
	accountStore "loyaltyloop/internal/adapters/storage/account"
	"loyaltyloop/internal/adapters/storage/authsession"
	"loyaltyloop/internal/adapters/storage/prefs"
	"loyaltyloop/internal/application/orchestrators"
	"loyaltyloop/internal/application/session"
	"loyaltyloop/internal/application/workspace"
	"loyaltyloop/internal/config"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

const (
	sweepInterval = time.Minute
	purgeInterval = time.Hour
	// redisPrefsTTL matches the device cookie lifetime.
	redisPrefsTTL = 400 * 24 * time.Hour
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if cfg.CSRFKeyGenerated {
		log.Println("LOYALTY_CSRF_KEY not set, using a random key (forms break across restarts)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()
	log.Println("Database initialized successfully!")

	// The registry is built after metrics, which reports its size.
	var registry *workspace.Registry
	m := metrics.New(func() int {
		if registry == nil {
			return 0
		}
		return registry.Len()
	})

	collector := perf.NewCollector(perf.DefaultRingSize)
	timedDB := storage.NewTimedDB(db, collector,
		storage.WithSlowThreshold(cfg.SlowQuery),
		storage.WithObserver(m.ObserveQuery),
	)

	var sender emailPkg.Sender
	if cfg.ResendKey != "" {
		sender = emailPkg.NewResendSender(cfg.ResendKey, cfg.ResendFrom, cfg.ReplyTo)
		log.Println("Email sender configured (Resend)")
	} else {
		sender = emailPkg.NewNoopSender()
		if cfg.Production() {
			log.Println("WARNING: LOYALTY_RESEND_KEY is not set, password reset email is DISABLED in production")
		} else {
			log.Println("Email sender configured (noop, set LOYALTY_RESEND_KEY for real delivery)")
		}
	}

	svc, err := authprovider.New(accountStore.NewSQLiteStore(timedDB), authsession.NewSQLiteStore(timedDB), sender, authprovider.Config{
		ResetSecret: cfg.ResetSecret,
		BaseURL:     cfg.BaseURL,
	})
	if err != nil {
		log.Fatalf("failed to start auth provider: %v", err)
	}

	if cfg.SeedDemo {
		if err := orchestrators.ExecuteSeedDemoAccounts(ctx, orchestrators.DemoAccountSeedDeps{Accounts: svc}); err != nil {
			log.Fatalf("failed to seed demo accounts: %v", err)
		}
		log.Println("Demo accounts ready (dev mode)")
	}

	prefStore, pingPrefs, err := openPrefs(ctx, cfg, timedDB)
	if err != nil {
		log.Fatalf("failed to open preference store: %v", err)
	}

	registry = workspace.NewRegistry(workspace.Config{
		BypassCapable: cfg.Bypass,
		IdleTTL:       cfg.WorkspaceIdle,
		SeedDemo:      cfg.SeedDemo,
	},
		func(deviceID string) session.Prefs { return prefs.Scope(prefStore, deviceID) },
		func(deviceID string) session.AuthProvider { return svc.Client(deviceID) },
	)
	defer registry.Close()
	go registry.Run(ctx, sweepInterval)
	go purgeSessions(ctx, svc)

	mux := web.NewMux(ctx, web.Deps{
		Workspaces: registry,
		Accounts:   svc,
		Resets:     svc,
		Collector:  collector,
		Metrics:    m,
		Ping: func(ctx context.Context) error {
			if err := timedDB.PingContext(ctx); err != nil {
				return err
			}
			return pingPrefs(ctx)
		},
		Options: web.Options{
			BypassCapable:  cfg.Bypass,
			LoadingWait:    cfg.LoadingWait,
			SecureCookies:  cfg.Production(),
			CSRFKey:        cfg.CSRFKey,
			TrustedOrigins: trustedOrigins(cfg.BaseURL),
			RateLimit:      cfg.RateLimit,
			SlowRequest:    cfg.SlowRequest,
		},
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("LoyaltyLoop %s starting on %s (env=%s, prefs=%s, bypass=%t)", version, cfg.Addr, cfg.Env, cfg.PrefsBackend, cfg.Bypass)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
}

// openPrefs builds the configured preference backend and its health check.
func openPrefs(ctx context.Context, cfg config.Config, db storage.SQLDB) (prefs.Store, func(context.Context) error, error) {
	noPing := func(context.Context) error { return nil }
	switch cfg.PrefsBackend {
	case config.PrefsRedis:
		rs := prefs.NewRedisStore(prefs.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB), redisPrefsTTL)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rs.Ping(pingCtx); err != nil {
			return nil, nil, err
		}
		log.Printf("Preferences stored in Redis at %s", cfg.RedisAddr)
		return rs, rs.Ping, nil
	case config.PrefsMemory:
		log.Println("Preferences stored in memory (lost on restart)")
		return prefs.NewMemoryStore(), noPing, nil
	default:
		return prefs.NewSQLiteStore(db), noPing, nil
	}
}

// purgeSessions deletes expired device sessions until ctx ends.
func purgeSessions(ctx context.Context, svc *authprovider.Service) {
	t := time.NewTicker(purgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := svc.PurgeExpiredSessions(ctx)
			if err != nil {
				log.Printf("session purge failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("purged %d expired sessions", n)
			}
		}
	}
}

// trustedOrigins lets gorilla/csrf accept the configured host behind TLS-terminating proxies.
func trustedOrigins(baseURL string) []string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil
	}
	return []string{u.Host}
}
