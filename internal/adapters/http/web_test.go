package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"

	"loyaltyloop/internal/adapters/authprovider"
	"loyaltyloop/internal/adapters/email"
	"loyaltyloop/internal/adapters/http/middleware"
	"loyaltyloop/internal/adapters/http/perf"
	"loyaltyloop/internal/adapters/storage"
	accountStore "loyaltyloop/internal/adapters/storage/account"
	"loyaltyloop/internal/adapters/storage/authsession"
	"loyaltyloop/internal/adapters/storage/prefs"
	"loyaltyloop/internal/application/session"
	"loyaltyloop/internal/application/workspace"
	domain "loyaltyloop/internal/domain/account"
)

func init() {
	domain.BcryptCost = 4
}

type harness struct {
	t   *testing.T
	h   http.Handler
	svc *authprovider.Service
	reg *workspace.Registry
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	svc, err := authprovider.New(accountStore.NewSQLiteStore(db), authsession.NewSQLiteStore(db), email.NewNoopSender(), authprovider.Config{
		ResetSecret: []byte("test-secret"),
		BaseURL:     "http://loyalty.test",
	})
	if err != nil {
		t.Fatalf("authprovider.New: %v", err)
	}

	store := prefs.NewMemoryStore()
	reg := workspace.NewRegistry(workspace.Config{BypassCapable: opts.BypassCapable, SeedDemo: true},
		func(deviceID string) session.Prefs { return prefs.Scope(store, deviceID) },
		func(deviceID string) session.AuthProvider { return svc.Client(deviceID) },
	)
	t.Cleanup(reg.Close)

	s := newServer(Deps{
		Workspaces: reg,
		Accounts:   svc,
		Resets:     svc,
		Collector:  perf.NewCollector(100),
		Ping:       db.PingContext,
		Options:    opts,
	})
	return &harness{t: t, h: s.handler(), svc: svc, reg: reg}
}

// device returns a fresh browser identity.
func device() string { return uuid.NewString() }

func (h *harness) send(dev string, req *http.Request) *httptest.ResponseRecorder {
	req.AddCookie(&http.Cookie{Name: middleware.DeviceCookie, Value: dev})
	rr := httptest.NewRecorder()
	h.h.ServeHTTP(rr, req)
	return rr
}

func (h *harness) get(dev, target string) *httptest.ResponseRecorder {
	return h.send(dev, httptest.NewRequest("GET", target, nil))
}

func (h *harness) post(dev, target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return h.send(dev, req)
}

func (h *harness) json(dev, method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	return h.send(dev, req)
}

func expectRedirect(t *testing.T, rr *httptest.ResponseRecorder, want string) {
	t.Helper()
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303; body: %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Location"); got != want {
		t.Fatalf("Location = %q, want %q", got, want)
	}
}

func expectRedirectPrefix(t *testing.T, rr *httptest.ResponseRecorder, prefix string) {
	t.Helper()
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303; body: %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Location"); !strings.HasPrefix(got, prefix) {
		t.Fatalf("Location = %q, want prefix %q", got, prefix)
	}
}

func expectPage(t *testing.T, rr *httptest.ResponseRecorder, contains ...string) {
	t.Helper()
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	for _, s := range contains {
		if !strings.Contains(body, s) {
			t.Errorf("body missing %q", s)
		}
	}
}

func TestHandleView_AnonymousIsSentToLogin(t *testing.T) {
	h := newHarness(t, Options{BypassCapable: true})
	tests := []struct {
		path string
		want string
	}{
		{"/dashboard", "/login"},
		{"/dashboard/customers", "/login"},
		{"/dashboard/does-not-exist", "/login"},
		{"/setup", "/login"},
		{"/admin", "/login"},
		{"/portal", "/customer/login"},
		{"/portal/rewards", "/customer/login"},
	}
	dev := device()
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			expectRedirect(t, h.get(dev, tt.path), tt.want)
		})
	}
}

func TestHandleView_PublicPages(t *testing.T) {
	h := newHarness(t, Options{})
	tests := []struct {
		path string
		want string
	}{
		{"/", "Reward the customers"},
		{"/login", "Business sign in"},
		{"/customer/login", "Customer sign in"},
		{"/register", "Create your account"},
		{"/forgot-password", "Send reset link"},
	}
	dev := device()
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			expectPage(t, h.get(dev, tt.path), tt.want)
		})
	}
}

func TestHandleView_UnknownPublicPathIs404(t *testing.T) {
	h := newHarness(t, Options{})
	rr := h.get(device(), "/nope")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Page not found") {
		t.Error("not-found page not rendered")
	}
}

func TestHandleView_DevPanelOnlyWhenCapable(t *testing.T) {
	on := newHarness(t, Options{BypassCapable: true}).get(device(), "/")
	expectPage(t, on, `id="dev-panel"`, `data-role="owner"`, `data-role="admin"`)

	off := newHarness(t, Options{}).get(device(), "/")
	expectPage(t, off)
	if strings.Contains(off.Body.String(), "dev-panel") {
		t.Error("dev panel rendered in a build without bypass")
	}
}

func TestStartupParams_EnableBypassAndRedirectToCleanURL(t *testing.T) {
	h := newHarness(t, Options{BypassCapable: true})
	dev := device()

	expectRedirect(t, h.get(dev, "/dashboard?bypassLogin=true&role=owner"), "/dashboard")
	expectPage(t, h.get(dev, "/dashboard"), "Recent activity", "Aroha Ngata")

	if rr := h.get(dev, "/dashboard/does-not-exist"); rr.Code != http.StatusNotFound {
		t.Errorf("unknown dashboard view: status = %d, want 404", rr.Code)
	}
}

func TestStartupParams_IgnoredWithoutBypassSupport(t *testing.T) {
	h := newHarness(t, Options{})
	dev := device()

	expectRedirect(t, h.get(dev, "/dashboard?bypassLogin=true&role=owner"), "/dashboard")
	expectRedirect(t, h.get(dev, "/dashboard"), "/login")
}

func TestDevLoginAs_CustomerSeesPortal(t *testing.T) {
	h := newHarness(t, Options{BypassCapable: true})
	dev := device()

	expectRedirect(t, h.post(dev, "/dev/login-as", url.Values{"role": {"customer"}}), "/portal")
	expectPage(t, h.get(dev, "/portal"), "Aroha Ngata", `id="balance">62<`)
	expectPage(t, h.get(dev, "/portal/rewards"), "Free Coffee", "88 more points")
	expectPage(t, h.get(dev, "/portal/profile"), "customer@coffeehaven.test")
}

func TestDevLoginAs_EveryRoleLandsOnItsView(t *testing.T) {
	h := newHarness(t, Options{BypassCapable: true})
	tests := map[string]string{
		"owner":    "/dashboard",
		"staff":    "/dashboard",
		"customer": "/portal",
		"admin":    "/admin",
	}
	for role, landing := range tests {
		t.Run(role, func(t *testing.T) {
			dev := device()
			expectRedirect(t, h.post(dev, "/dev/login-as", url.Values{"role": {role}}), landing)
			expectPage(t, h.get(dev, landing))
		})
	}
}

func TestDevLoginAs_RejectedWithoutBypassSupport(t *testing.T) {
	h := newHarness(t, Options{})
	dev := device()

	expectRedirectPrefix(t, h.post(dev, "/dev/login-as", url.Values{"role": {"owner"}}), "/?error=")
	expectRedirect(t, h.get(dev, "/dashboard"), "/login")
}

func TestDevBypass_TurningOffSignsOut(t *testing.T) {
	h := newHarness(t, Options{BypassCapable: true})
	dev := device()

	expectRedirect(t, h.post(dev, "/dev/login-as", url.Values{"role": {"owner"}}), "/dashboard")
	expectPage(t, h.get(dev, "/dashboard"))

	expectRedirect(t, h.post(dev, "/dev/bypass", url.Values{"enabled": {"false"}}), "/")
	expectRedirect(t, h.get(dev, "/dashboard"), "/login")
}

func TestRegisterSetupLogoutLogin(t *testing.T) {
	h := newHarness(t, Options{})
	dev := device()
	creds := url.Values{"email": {"owner@bean.test"}, "password": {"secret-pw"}, "confirm": {"secret-pw"}}

	expectRedirect(t, h.post(dev, "/register", creds), "/setup")
	expectPage(t, h.get(dev, "/setup"), "Finish setup")

	expectRedirect(t, h.post(dev, "/setup", url.Values{"name": {"Bean There"}, "program_type": {"points"}}), "/dashboard")
	expectPage(t, h.get(dev, "/dashboard"), "Bean There")

	expectRedirect(t, h.post(dev, "/logout", url.Values{}), "/")
	expectRedirect(t, h.get(dev, "/dashboard"), "/login")

	bad := url.Values{"email": {"owner@bean.test"}, "password": {"wrong-pw"}}
	expectRedirectPrefix(t, h.post(dev, "/login", bad), "/login?error=")

	expectRedirect(t, h.post(dev, "/login", creds), "/dashboard")
	expectPage(t, h.get(dev, "/dashboard"))
}

func TestRegister_Validation(t *testing.T) {
	h := newHarness(t, Options{})
	dev := device()

	mismatch := url.Values{"email": {"a@b.test"}, "password": {"secret-pw"}, "confirm": {"other"}}
	expectRedirectPrefix(t, h.post(dev, "/register", mismatch), "/register?error=")

	short := url.Values{"email": {"a@b.test"}, "password": {"abc"}, "confirm": {"abc"}}
	expectRedirectPrefix(t, h.post(dev, "/register", short), "/register?error=")
}

func TestDashboardForms(t *testing.T) {
	h := newHarness(t, Options{BypassCapable: true})
	dev := device()
	expectRedirect(t, h.post(dev, "/dev/login-as", url.Values{"role": {"owner"}}), "/dashboard")

	expectRedirectPrefix(t, h.post(dev, "/dashboard/customers", url.Values{
		"name": {"Zoe Park"}, "email": {"zoe@example.test"}, "phone": {"021 555 0199"},
	}), "/dashboard/customers?notice=")
	expectPage(t, h.get(dev, "/dashboard/customers?q=zoe"), "Zoe Park")

	expectRedirectPrefix(t, h.post(dev, "/dashboard/customers", url.Values{
		"name": {"Zoe Again"}, "email": {"zoe@example.test"}, "phone": {"021 555 0199"},
	}), "/dashboard/customers?error=")

	expectRedirectPrefix(t, h.post(dev, "/dashboard/programs", url.Values{
		"name": {"Stamp Card"}, "type": {"punchcard"}, "punches_needed": {"8"}, "active": {"on"},
	}), "/dashboard/programs?notice=")
	expectRedirectPrefix(t, h.post(dev, "/dashboard/rewards", url.Values{
		"name": {"Muffin"}, "points_cost": {"0"},
	}), "/dashboard/programs?error=")
	expectPage(t, h.get(dev, "/dashboard/programs"), "Stamp Card", "Reward after 8 visits", "<strong>5 points</strong>")

	expectRedirectPrefix(t, h.post(dev, "/dashboard/transactions", url.Values{
		"customer_id": {"missing"}, "type": {"purchase"}, "amount": {"10"},
	}), "/dashboard/transactions?error=")

	expectRedirectPrefix(t, h.post(dev, "/dashboard/settings", url.Values{"primary_color": {"blue"}}), "/dashboard/settings?error=")
	expectRedirectPrefix(t, h.post(dev, "/dashboard/settings", url.Values{"name": {"Brew Bros"}}), "/dashboard/settings?notice=")
	expectPage(t, h.get(dev, "/dashboard/settings"), `value="Brew Bros"`)

	expectPage(t, h.get(dev, "/dashboard/transactions?type=redemption"), "Aroha Ngata")
	expectPage(t, h.get(dev, "/dashboard/reports"), "Top customers", "Aroha Ngata")
}

func TestGatedPost_AnonymousRedirected(t *testing.T) {
	h := newHarness(t, Options{})
	expectRedirect(t, h.post(device(), "/dashboard/customers", url.Values{"name": {"x"}}), "/login")
}

func TestAdminView(t *testing.T) {
	h := newHarness(t, Options{BypassCapable: true})
	dev := device()
	expectRedirect(t, h.post(dev, "/dev/login-as", url.Values{"role": {"admin"}}), "/admin")
	expectPage(t, h.get(dev, "/admin"), "Platform admin", "Live devices", "admin: 1")
}

func TestAuthAction(t *testing.T) {
	h := newHarness(t, Options{})
	dev := device()

	if rr := h.get(dev, "/auth/action?mode=verifyEmail&oobCode=x"); rr.Code != http.StatusNotFound {
		t.Errorf("unsupported mode: status = %d, want 404", rr.Code)
	}
	expectPage(t, h.get(dev, "/auth/action?mode=resetPassword&oobCode=garbage"), "Request a new link")
	expectRedirectPrefix(t, h.post(dev, "/auth/action", url.Values{
		"oobCode": {"garbage"}, "password": {"new-secret"}, "confirm": {"new-secret"},
	}), "/login?error=")
}

func TestAPI_SessionAndBusiness(t *testing.T) {
	h := newHarness(t, Options{BypassCapable: true})
	dev := device()

	if rr := h.json(dev, "GET", "/api/business", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous GET /api/business: status = %d, want 401", rr.Code)
	}

	rr := h.json(dev, "POST", "/api/session/login-as", `{"Role":"owner"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("login-as: status = %d, body %s", rr.Code, rr.Body.String())
	}
	var loginAs struct {
		Session  sessionView
		Redirect string
	}
	if err := json.NewDecoder(rr.Body).Decode(&loginAs); err != nil {
		t.Fatal(err)
	}
	if loginAs.Redirect != "/dashboard" || !loginAs.Session.BypassEnabled || loginAs.Session.Identity == nil || !loginAs.Session.Identity.Mock {
		t.Errorf("login-as result = %+v", loginAs)
	}

	rr = h.json(dev, "GET", "/api/session", "")
	var sv sessionView
	if err := json.NewDecoder(rr.Body).Decode(&sv); err != nil {
		t.Fatal(err)
	}
	if !sv.Authenticated || sv.Identity.Role != "owner" {
		t.Errorf("session = %+v", sv)
	}

	rr = h.json(dev, "PATCH", "/api/business", `{"Name":"API Cafe"}`)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"Name":"API Cafe"`) {
		t.Errorf("PATCH business: status = %d, body %s", rr.Code, rr.Body.String())
	}

	if rr := h.json(dev, "PATCH", "/api/business", `{"Unknown":1}`); rr.Code != http.StatusBadRequest {
		t.Errorf("unknown field: status = %d, want 400", rr.Code)
	}
}

func TestAPI_CustomersAndTransactions(t *testing.T) {
	h := newHarness(t, Options{BypassCapable: true})
	dev := device()
	h.json(dev, "POST", "/api/session/login-as", `{"Role":"staff"}`)

	rr := h.json(dev, "POST", "/api/business/customers", `{"Name":"Zoe Park","Email":"zoe@example.test","Phone":"0215550199"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create customer: status = %d, body %s", rr.Code, rr.Body.String())
	}
	var c struct{ ID string }
	if err := json.NewDecoder(rr.Body).Decode(&c); err != nil {
		t.Fatal(err)
	}

	if rr := h.json(dev, "POST", "/api/business/customers", `{"Name":"Dup","Email":"zoe@example.test","Phone":"0215550199"}`); rr.Code != http.StatusConflict {
		t.Errorf("duplicate email: status = %d, want 409", rr.Code)
	}
	if rr := h.json(dev, "POST", "/api/business/customers", `{"Name":"","Email":"x@example.test","Phone":"0215550199"}`); rr.Code != http.StatusBadRequest {
		t.Errorf("missing name: status = %d, want 400", rr.Code)
	}

	rr = h.json(dev, "POST", "/api/business/transactions", `{"CustomerID":"`+c.ID+`","Type":"purchase","Amount":10}`)
	if rr.Code != http.StatusCreated || !strings.Contains(rr.Body.String(), `"PointsEarned":50`) {
		t.Errorf("purchase: status = %d, body %s", rr.Code, rr.Body.String())
	}
	if rr := h.json(dev, "POST", "/api/business/transactions", `{"CustomerID":"nobody","Type":"purchase","Amount":10}`); rr.Code != http.StatusNotFound {
		t.Errorf("unknown customer: status = %d, want 404", rr.Code)
	}
	if rr := h.json(dev, "POST", "/api/business/transactions", `{"CustomerID":"`+c.ID+`","Type":"purchase","Amount":0}`); rr.Code != http.StatusBadRequest {
		t.Errorf("zero amount: status = %d, want 400", rr.Code)
	}

	rr = h.json(dev, "GET", "/api/business/customers?q=zoe", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"Balance":50`) {
		t.Errorf("customer list: status = %d, body %s", rr.Code, rr.Body.String())
	}
}

func TestAPI_ProgramsAndRewards(t *testing.T) {
	h := newHarness(t, Options{BypassCapable: true})
	dev := device()
	h.json(dev, "POST", "/api/session/login-as", `{"Role":"owner"}`)

	rr := h.json(dev, "POST", "/api/business/programs", `{"Name":"VIP","Type":"tiered","Active":true}`)
	if rr.Code != http.StatusCreated || !strings.Contains(rr.Body.String(), `"Gold"`) {
		t.Errorf("tiered program: status = %d, body %s", rr.Code, rr.Body.String())
	}
	if rr := h.json(dev, "POST", "/api/business/programs", `{"Name":"Bad","Type":"lottery"}`); rr.Code != http.StatusBadRequest {
		t.Errorf("bad type: status = %d, want 400", rr.Code)
	}
	if rr := h.json(dev, "POST", "/api/business/rewards", `{"Name":"Tea","PointsCost":40,"Active":true}`); rr.Code != http.StatusCreated {
		t.Errorf("reward: status = %d", rr.Code)
	}
	rr = h.json(dev, "GET", "/api/business/rewards", "")
	if !strings.Contains(rr.Body.String(), `"Tea"`) {
		t.Errorf("rewards list missing new reward: %s", rr.Body.String())
	}
	rr = h.json(dev, "GET", "/api/business/programs", "")
	if !strings.Contains(rr.Body.String(), `"VIP"`) {
		t.Errorf("programs list missing new program: %s", rr.Body.String())
	}
}

func TestAPI_LoginAndLogout(t *testing.T) {
	h := newHarness(t, Options{})
	if _, err := h.svc.EnsureAccount(t.Context(), "owner@api.test", "secret-pw"); err != nil {
		t.Fatal(err)
	}
	dev := device()

	if rr := h.json(dev, "POST", "/api/session/login", `{"Email":"owner@api.test","Password":"nope-nope"}`); rr.Code != http.StatusUnauthorized {
		t.Errorf("bad password: status = %d, want 401", rr.Code)
	}
	rr := h.json(dev, "POST", "/api/session/login", `{"Email":"owner@api.test","Password":"secret-pw"}`)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"Authenticated":true`) {
		t.Fatalf("login: status = %d, body %s", rr.Code, rr.Body.String())
	}
	if rr := h.json(dev, "GET", "/api/business", ""); rr.Code != http.StatusOK {
		t.Errorf("business after login: status = %d", rr.Code)
	}

	rr = h.json(dev, "POST", "/api/session/logout", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"Authenticated":false`) {
		t.Errorf("logout: status = %d, body %s", rr.Code, rr.Body.String())
	}

	if rr := h.json(dev, "POST", "/api/session/bypass", `{"Enabled":true}`); rr.Code != http.StatusForbidden {
		t.Errorf("bypass in a build without support: status = %d, want 403", rr.Code)
	}
}

func TestHealthz(t *testing.T) {
	h := newHarness(t, Options{})
	rr := h.get(device(), "/healthz")
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Errorf("healthz = %d %q", rr.Code, rr.Body.String())
	}
}

func TestDeviceCookieIssuedOnFirstVisit(t *testing.T) {
	h := newHarness(t, Options{})
	rr := httptest.NewRecorder()
	h.h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	found := false
	for _, c := range rr.Result().Cookies() {
		if c.Name == middleware.DeviceCookie {
			found = true
		}
	}
	if !found {
		t.Error("device cookie not issued")
	}
	if h.reg.Len() != 1 {
		t.Errorf("workspaces = %d, want 1", h.reg.Len())
	}
}

func TestParsePages_AllViewsHaveTemplates(t *testing.T) {
	ps, err := parsePages(templateFS)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{
		"home", "login", "register", "forgot_password", "auth_action", "loading", "not_found", "no_business",
		"dashboard", "programs", "customers", "transactions", "reports", "settings", "setup", "admin",
		"portal", "portal_rewards", "portal_profile", "portal_missing",
	} {
		if _, ok := ps.pages[name]; !ok {
			t.Errorf("missing page %q", name)
		}
	}
}
