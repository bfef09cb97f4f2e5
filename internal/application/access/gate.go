// Package access decides, per navigation, whether a view may render.
//
// The gate hides UI only. It grants every gated view whenever bypass is on,
// whoever is signed in.
package access

import (
	"strings"

	"loyaltyloop/internal/application/session"
)

// Kind is the outcome of a gate decision.
type Kind int

// Decision kinds
const (
	Render Kind = iota
	Redirect
	Loading
	NotFound
)

func (k Kind) String() string {
	switch k {
	case Render:
		return "render"
	case Redirect:
		return "redirect"
	case Loading:
		return "loading"
	case NotFound:
		return "not_found"
	}
	return "unknown"
}

// Login views
const (
	LoginPath         = "/login"
	CustomerLoginPath = "/customer/login"
)

// Decision says what to show for a path.
type Decision struct {
	Kind     Kind
	View     string // set for Render
	Location string // set for Redirect
}

// subtree is a gated URL prefix and where it sends anonymous visitors.
type subtree struct {
	prefix  string
	login   string
	entries map[string]string // relative path -> view
}

var publicViews = map[string]string{
	"/":                "home",
	"/login":           "login",
	"/register":        "register",
	"/forgot-password": "forgot_password",
	"/customer/login":  "customer_login",
}

var gated = []subtree{
	{
		prefix: "/dashboard",
		login:  LoginPath,
		entries: map[string]string{
			"":              "dashboard",
			"/programs":     "programs",
			"/customers":    "customers",
			"/transactions": "transactions",
			"/reports":      "reports",
			"/settings":     "settings",
		},
	},
	{
		prefix:  "/setup",
		login:   LoginPath,
		entries: map[string]string{"": "setup"},
	},
	{
		prefix:  "/admin",
		login:   LoginPath,
		entries: map[string]string{"": "admin"},
	},
	{
		prefix: "/portal",
		login:  CustomerLoginPath,
		entries: map[string]string{
			"":         "portal",
			"/rewards": "portal_rewards",
			"/profile": "portal_profile",
		},
	},
}

// Decide maps path and the session state to a Decision.
//
// While st.Loading is true every path yields Loading, before any gate runs.
// A gated path renders iff st.BypassEnabled or an identity is present;
// otherwise it redirects to the subtree's login view. Unknown paths inside a
// gated subtree are gated before they are reported as not found.
func Decide(path string, st session.State) Decision {
	if st.Loading {
		return Decision{Kind: Loading}
	}
	p := Clean(path)

	if view, ok := publicViews[p]; ok {
		return Decision{Kind: Render, View: view}
	}

	t, rest, ok := match(p)
	if !ok {
		return Decision{Kind: NotFound}
	}
	if !Allowed(st) {
		return Decision{Kind: Redirect, Location: t.login}
	}
	if view, ok := t.entries[rest]; ok {
		return Decision{Kind: Render, View: view}
	}
	return Decision{Kind: NotFound}
}

// Allowed is the gate predicate.
func Allowed(st session.State) bool {
	return st.BypassEnabled || st.Identity != nil
}

// IsGated reports whether path falls inside a gated subtree.
func IsGated(path string) bool {
	_, _, ok := match(Clean(path))
	return ok
}

// LoginFor returns the login view a visitor to path is sent to, or "" for ungated paths.
func LoginFor(path string) string {
	t, _, ok := match(Clean(path))
	if !ok {
		return ""
	}
	return t.login
}

// Clean strips trailing slashes so "/dashboard/" and "/dashboard" match the same view.
func Clean(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	for len(path) > 1 && strings.HasSuffix(path, "/") {
		path = path[:len(path)-1]
	}
	return path
}

func match(p string) (subtree, string, bool) {
	for _, t := range gated {
		if p == t.prefix {
			return t, "", true
		}
		if strings.HasPrefix(p, t.prefix+"/") {
			return t, p[len(t.prefix):], true
		}
	}
	return subtree{}, "", false
}
