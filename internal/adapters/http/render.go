package web

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gorilla/csrf"

	"loyaltyloop/internal/adapters/markdown"
	"loyaltyloop/internal/application/apperr"
	"loyaltyloop/internal/application/listutil"
	"loyaltyloop/internal/application/orchestrators"
	"loyaltyloop/internal/application/projections"
	"loyaltyloop/internal/application/session"
	"loyaltyloop/internal/domain/identity"
	"loyaltyloop/internal/domain/loyalty"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutFile = "templates/layout.html"

// pageSet holds one parsed template per page, each with the shared layout.
type pageSet struct {
	pages map[string]*template.Template
}

func mustParsePages() *pageSet {
	ps, err := parsePages(templateFS)
	if err != nil {
		panic(err)
	}
	return ps
}

func parsePages(fsys fs.FS) (*pageSet, error) {
	files, err := fs.Glob(fsys, "templates/*.html")
	if err != nil {
		return nil, err
	}
	ps := &pageSet{pages: make(map[string]*template.Template)}
	for _, f := range files {
		if f == layoutFile {
			continue
		}
		name := strings.TrimSuffix(path.Base(f), ".html")
		tpl, err := template.New("layout.html").Funcs(baseFuncs()).ParseFS(fsys, layoutFile, f)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", f, err)
		}
		ps.pages[name] = tpl
	}
	return ps, nil
}

// baseFuncs are the template helpers. csrfField and csrfToken are replaced per request.
func baseFuncs() template.FuncMap {
	return template.FuncMap{
		"csrfField":      func() template.HTML { return "" },
		"csrfToken":      func() string { return "" },
		"renderMarkdown": markdown.HTML,
		"money":          func(v float64) string { return fmt.Sprintf("$%.2f", v) },
		"percent":        func(v float64) string { return fmt.Sprintf("%.0f%%", v) },
		"date": func(t time.Time) string {
			if t.IsZero() {
				return "-"
			}
			return t.Format("2 Jan 2006")
		},
		"add":       func(a, b int) int { return a + b },
		"sub":       func(a, b int) int { return a - b },
		"roles":     func() []identity.Role { return identity.ValidRoles },
		"roleLabel": roleLabel,
		"programTypes": func() []string {
			return loyalty.ValidProgramTypes
		},
		"pageQuery": func(page int, p listutil.ListParams, filterKey, filterValue string) template.URL {
			q := url.Values{}
			q.Set("page", fmt.Sprint(page))
			q.Set("per_page", fmt.Sprint(p.PerPage))
			if p.Search != "" {
				q.Set("q", p.Search)
			}
			if p.Sort != "" {
				q.Set("sort", p.Sort)
				q.Set("dir", p.Dir)
			}
			if filterValue != "" {
				q.Set(filterKey, filterValue)
			}
			return template.URL(q.Encode())
		},
	}
}

// identityView is the JSON and template shape of an identity.
type identityView struct {
	ID            string `json:"ID"`
	Email         string `json:"Email"`
	Role          string `json:"Role"`
	BusinessID    string `json:"BusinessID"`
	SetupComplete bool   `json:"SetupComplete"`
	Mock          bool   `json:"Mock"`
}

// sessionView is the JSON and template shape of session state.
type sessionView struct {
	Authenticated bool          `json:"Authenticated"`
	Loading       bool          `json:"Loading"`
	BypassEnabled bool          `json:"BypassEnabled"`
	BypassCapable bool          `json:"BypassCapable"`
	Identity      *identityView `json:"Identity"`
}

func newSessionView(st session.State, bypassCapable bool) sessionView {
	v := sessionView{
		Authenticated: st.Authenticated(),
		Loading:       st.Loading,
		BypassEnabled: st.BypassEnabled,
		BypassCapable: bypassCapable,
	}
	if id := st.Identity; id != nil {
		v.Identity = &identityView{
			ID:            id.ID(),
			Email:         id.Email(),
			Role:          id.Role().String(),
			BusinessID:    id.BusinessID(),
			SetupComplete: id.IsSetupComplete(),
			Mock:          id.IsMock(),
		}
	}
	return v
}

func (s *server) render(w http.ResponseWriter, r *http.Request, st session.State, name string, data map[string]any) {
	s.renderStatus(w, r, st, http.StatusOK, name, data)
}

// renderStatus executes a page into a buffer so a template error never
// leaves a half-written response.
func (s *server) renderStatus(w http.ResponseWriter, r *http.Request, st session.State, status int, name string, data map[string]any) {
	base, ok := s.pages.pages[name]
	if !ok {
		internalError(w, fmt.Errorf("unknown page %q", name))
		return
	}
	tpl, err := base.Clone()
	if err != nil {
		internalError(w, err)
		return
	}
	tpl.Funcs(template.FuncMap{
		"csrfField": func() template.HTML { return csrf.TemplateField(r) },
		"csrfToken": func() string { return csrf.Token(r) },
	})

	if data == nil {
		data = map[string]any{}
	}
	data["Session"] = newSessionView(st, s.opts.BypassCapable)
	data["Path"] = r.URL.Path
	if _, set := data["Error"]; !set {
		data["Error"] = r.URL.Query().Get("error")
	}
	if _, set := data["Notice"]; !set {
		data["Notice"] = r.URL.Query().Get("notice")
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		internalError(w, fmt.Errorf("render %s: %w", name, err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// internalError logs err and hides it from the client.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json_encode_failed", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"Error": msg})
}

// redirectWith sends the browser to path with a flash message in the query.
func redirectWith(w http.ResponseWriter, r *http.Request, path, key, msg string) {
	q := url.Values{}
	q.Set(key, msg)
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	http.Redirect(w, r, path+sep+q.Encode(), http.StatusSeeOther)
}

// userError reports the status and message a client may see for err.
// ok is false for errors that must go through internalError.
func userError(err error) (status int, msg string, ok bool) {
	var ae *apperr.AuthError
	if errors.As(err, &ae) {
		switch ae.Code {
		case apperr.CodeInvalidCredentials, apperr.CodeUserNotFound:
			status = http.StatusUnauthorized
		case apperr.CodeEmailInUse:
			status = http.StatusConflict
		case apperr.CodeTooManyAttempts:
			status = http.StatusTooManyRequests
		case apperr.CodeNetwork:
			status = http.StatusBadGateway
		default:
			status = http.StatusBadRequest
		}
		return status, ae.Message(), true
	}
	switch {
	case apperr.IsStateError(err),
		errors.Is(err, projections.ErrNoBusiness),
		errors.Is(err, loyalty.ErrDuplicateCustomer):
		return http.StatusConflict, err.Error(), true
	case errors.Is(err, orchestrators.ErrCustomerNotFound),
		errors.Is(err, projections.ErrNoCustomerRecord):
		return http.StatusNotFound, err.Error(), true
	case errors.Is(err, session.ErrBypassUnavailable),
		errors.Is(err, orchestrators.ErrDevModeUnavailable):
		return http.StatusForbidden, err.Error(), true
	case isValidation(err):
		return http.StatusBadRequest, err.Error(), true
	}
	return http.StatusInternalServerError, "", false
}

var validationErrors = []error{
	orchestrators.ErrInvalidAmount,
	orchestrators.ErrInvalidRedemption,
	orchestrators.ErrSetupNameRequired,
	orchestrators.ErrDevModeInvalidRole,
	identity.ErrInvalidRole,
	loyalty.ErrEmptyBusinessName,
	loyalty.ErrInvalidColor,
	loyalty.ErrUnknownCustomer,
	loyalty.ErrEmptyProgramName,
	loyalty.ErrInvalidProgramType,
	loyalty.ErrInvalidEarnRate,
	loyalty.ErrInvalidPunchCount,
	loyalty.ErrTiersRequired,
	loyalty.ErrTierThresholdsOrder,
	loyalty.ErrEmptyCustomerName,
	loyalty.ErrInvalidCustomerEml,
	loyalty.ErrPhoneTooShort,
	loyalty.ErrNegativeBalance,
	loyalty.ErrMissingCustomerRef,
	loyalty.ErrInvalidTxType,
	loyalty.ErrNegativeAmount,
	loyalty.ErrNegativePoints,
	loyalty.ErrEmptyRewardName,
	loyalty.ErrInvalidPointsCost,
}

func isValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
