package browser_test

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"

	"loyaltyloop/internal/adapters/authprovider"
	"loyaltyloop/internal/adapters/email"
	web "loyaltyloop/internal/adapters/http"
	"loyaltyloop/internal/adapters/http/perf"
	"loyaltyloop/internal/adapters/storage"
	accountStore "loyaltyloop/internal/adapters/storage/account"
	"loyaltyloop/internal/adapters/storage/authsession"
	"loyaltyloop/internal/adapters/storage/prefs"
	"loyaltyloop/internal/application/orchestrators"
	"loyaltyloop/internal/application/session"
	"loyaltyloop/internal/application/workspace"
	domain "loyaltyloop/internal/domain/account"
)

// testApp holds the running test server and Playwright handles.
type testApp struct {
	BaseURL string
	Server  *http.Server
	PW      *playwright.Playwright
	Browser playwright.Browser
}

// newTestApp starts a bypass-capable server on a temp SQLite DB and a headless browser.
// The test is skipped under -short or when no Playwright browser is installed.
func newTestApp(t *testing.T) *testApp {
	t.Helper()
	if testing.Short() {
		t.Skip("browser tests are skipped in -short mode")
	}
	domain.BcryptCost = 4

	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test DB: %v", err)
	}

	svc, err := authprovider.New(accountStore.NewSQLiteStore(db), authsession.NewSQLiteStore(db), email.NewNoopSender(), authprovider.Config{
		ResetSecret: []byte("browser-test-secret"),
		BaseURL:     "http://127.0.0.1",
	})
	if err != nil {
		t.Fatalf("failed to start auth provider: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := orchestrators.ExecuteSeedDemoAccounts(ctx, orchestrators.DemoAccountSeedDeps{Accounts: svc}); err != nil {
		t.Fatalf("failed to seed demo accounts: %v", err)
	}

	store := prefs.NewSQLiteStore(db)
	reg := workspace.NewRegistry(workspace.Config{BypassCapable: true, SeedDemo: true},
		func(deviceID string) session.Prefs { return prefs.Scope(store, deviceID) },
		func(deviceID string) session.AuthProvider { return svc.Client(deviceID) },
	)

	// Find a free port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	mux := web.NewMux(ctx, web.Deps{
		Workspaces: reg,
		Accounts:   svc,
		Resets:     svc,
		Collector:  perf.NewCollector(100),
		Ping:       db.PingContext,
		Options: web.Options{
			BypassCapable:  true,
			LoadingWait:    2 * time.Second,
			CSRFKey:        []byte("0123456789abcdef0123456789abcdef"),
			TrustedOrigins: []string{fmt.Sprintf("127.0.0.1:%d", port), fmt.Sprintf("localhost:%d", port)},
		},
	})
	srv := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", port),
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("test server error: %v", err)
		}
	}()

	// Wait for server to be ready
	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	for i := 0; i < 50; i++ {
		resp, err := http.Get(baseURL + "/healthz")
		if err == nil {
			resp.Body.Close()
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	pw, err := playwright.Run()
	if err != nil {
		cancel()
		srv.Close()
		t.Skipf("playwright unavailable: %v", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		pw.Stop()
		cancel()
		srv.Close()
		t.Skipf("chromium unavailable: %v", err)
	}

	t.Cleanup(func() {
		browser.Close()
		pw.Stop()
		srv.Close()
		reg.Close()
		cancel()
		db.Close()
	})

	return &testApp{BaseURL: baseURL, Server: srv, PW: pw, Browser: browser}
}

// newPage creates a new browser page (tab).
func (a *testApp) newPage(t *testing.T) playwright.Page {
	t.Helper()
	page, err := a.Browser.NewPage()
	if err != nil {
		t.Fatalf("failed to create page: %v", err)
	}
	t.Cleanup(func() { page.Close() })
	return page
}

// waitFor waits until the page lands on path.
func (a *testApp) waitFor(t *testing.T, page playwright.Page, path string) {
	t.Helper()
	if err := page.WaitForURL(a.BaseURL+path, playwright.PageWaitForURLOptions{
		Timeout: playwright.Float(10000),
	}); err != nil {
		t.Fatalf("expected to land on %s, at %s: %v", path, page.URL(), err)
	}
}
