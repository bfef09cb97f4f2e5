package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"loyaltyloop/internal/application/listutil"
	"loyaltyloop/internal/application/orchestrators"
	"loyaltyloop/internal/application/projections"
	"loyaltyloop/internal/application/session"
	"loyaltyloop/internal/application/workspace"
	"loyaltyloop/internal/domain/loyalty"
)

// businessPage renders name with the data load returns, or the empty-state
// page when the workspace has no business record.
func (s *server) businessPage(w http.ResponseWriter, r *http.Request, st session.State, name, title string, load func() (map[string]any, error)) {
	data, err := load()
	if errors.Is(err, projections.ErrNoBusiness) {
		s.render(w, r, st, "no_business", map[string]any{"Title": title})
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}
	data["Title"] = title
	s.render(w, r, st, name, data)
}

func (s *server) viewDashboard(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	s.businessPage(w, r, st, "dashboard", "Dashboard", func() (map[string]any, error) {
		res, err := projections.QueryGetDashboard(r.Context(), projections.GetDashboardQuery{}, projections.GetDashboardDeps{Business: ws.Business})
		return map[string]any{"Dashboard": res}, err
	})
}

func (s *server) viewPrograms(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	s.businessPage(w, r, st, "programs", "Programs & rewards", func() (map[string]any, error) {
		b := ws.Business.Current()
		if b == nil {
			return nil, projections.ErrNoBusiness
		}
		return map[string]any{
			"Programs":     b.Programs,
			"Rewards":      b.Rewards,
			"DefaultTiers": loyalty.DefaultTiers(),
		}, nil
	})
}

func (s *server) viewCustomers(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	params := listutil.ParseListParams(r.URL.Query(), projections.CustomerSortColumns, nil)
	s.businessPage(w, r, st, "customers", "Customers", func() (map[string]any, error) {
		res, err := projections.QueryGetCustomerList(r.Context(), projections.GetCustomerListQuery{ListParams: params}, projections.GetCustomerListDeps{Business: ws.Business})
		return map[string]any{
			"List":           res,
			"Params":         params,
			"PerPageOptions": listutil.PerPageOptions,
		}, err
	})
}

func (s *server) viewTransactions(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	params := listutil.ParseListParams(r.URL.Query(), nil, projections.TransactionFilterKeys)
	s.businessPage(w, r, st, "transactions", "Transactions", func() (map[string]any, error) {
		return transactionsPageData(r.Context(), ws.Business.Current(), params)
	})
}

// transactionsPageData builds the transactions page from one business snapshot.
func transactionsPageData(ctx context.Context, b *loyalty.Business, params listutil.ListParams) (map[string]any, error) {
	if b == nil {
		return nil, projections.ErrNoBusiness
	}
	res, err := projections.QueryGetTransactionList(ctx, projections.GetTransactionListQuery{ListParams: params}, projections.GetTransactionListDeps{Business: snapshot{b}})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"List":           res,
		"Params":         params,
		"PerPageOptions": listutil.PerPageOptions,
		"Customers":      b.Customers,
	}, nil
}

// snapshot serves a fixed business record to projections.
type snapshot struct{ b *loyalty.Business }

func (s snapshot) Current() *loyalty.Business { return s.b }

func (s *server) viewReports(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	s.businessPage(w, r, st, "reports", "Reports", func() (map[string]any, error) {
		res, err := projections.QueryGetReport(r.Context(), projections.GetReportQuery{}, projections.GetReportDeps{Business: ws.Business})
		return map[string]any{"Report": res}, err
	})
}

func (s *server) viewSettings(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	s.businessPage(w, r, st, "settings", "Settings", func() (map[string]any, error) {
		b := ws.Business.Current()
		if b == nil {
			return nil, projections.ErrNoBusiness
		}
		return map[string]any{"Business": b}, nil
	})
}

func (s *server) viewSetup(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	data := map[string]any{"Title": "Set up your business"}
	if b := ws.Business.Current(); b != nil {
		data["Business"] = b
	}
	s.render(w, r, st, "setup", data)
}

func (s *server) handleSetupPost(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	err := orchestrators.ExecuteCompleteSetup(r.Context(), orchestrators.CompleteSetupInput{
		Name:        r.FormValue("name"),
		Industry:    r.FormValue("industry"),
		ProgramType: r.FormValue("program_type"),
	}, orchestrators.CompleteSetupDeps{Business: ws.Business, Session: ws.Session})
	if err != nil {
		s.formFailure(w, r, "/setup", err)
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *server) handleProgramPost(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	p, err := orchestrators.ExecuteCreateProgram(r.Context(), orchestrators.CreateProgramInput{
		Name:            r.FormValue("name"),
		Type:            r.FormValue("type"),
		Description:     r.FormValue("description"),
		PointsPerDollar: formInt(r, "points_per_dollar"),
		PunchesNeeded:   formInt(r, "punches_needed"),
		Active:          formBool(r, "active"),
	}, orchestrators.CreateProgramDeps{Business: ws.Business})
	if err != nil {
		s.formFailure(w, r, "/dashboard/programs", err)
		return
	}
	redirectWith(w, r, "/dashboard/programs", "notice", "Program \""+p.Name+"\" created.")
}

func (s *server) handleRewardPost(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	rw, err := orchestrators.ExecuteCreateReward(r.Context(), orchestrators.CreateRewardInput{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		PointsCost:  formInt(r, "points_cost"),
		Active:      formBool(r, "active"),
	}, orchestrators.CreateRewardDeps{Business: ws.Business})
	if err != nil {
		s.formFailure(w, r, "/dashboard/programs", err)
		return
	}
	redirectWith(w, r, "/dashboard/programs", "notice", "Reward \""+rw.Name+"\" created.")
}

func (s *server) handleCustomerPost(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	c, err := orchestrators.ExecuteRegisterCustomer(r.Context(), orchestrators.RegisterCustomerInput{
		Name:  r.FormValue("name"),
		Email: r.FormValue("email"),
		Phone: r.FormValue("phone"),
	}, orchestrators.RegisterCustomerDeps{Business: ws.Business, Now: ws.Business.Now})
	if err != nil {
		s.formFailure(w, r, "/dashboard/customers", err)
		return
	}
	redirectWith(w, r, "/dashboard/customers", "notice", c.Name+" added.")
}

func (s *server) handleTransactionPost(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	amount, _ := strconv.ParseFloat(strings.TrimSpace(r.FormValue("amount")), 64)
	t, err := orchestrators.ExecuteRecordTransaction(r.Context(), orchestrators.RecordTransactionInput{
		CustomerID:     r.FormValue("customer_id"),
		Type:           r.FormValue("type"),
		Amount:         amount,
		PointsRedeemed: formInt(r, "points"),
	}, orchestrators.RecordTransactionDeps{Business: ws.Business, Now: ws.Business.Now})
	if err != nil {
		s.formFailure(w, r, "/dashboard/transactions", err)
		return
	}
	verb := "earned"
	if t.Type == loyalty.TxRedemption {
		verb = "redeemed"
	}
	redirectWith(w, r, "/dashboard/transactions", "notice", t.CustomerName+" "+verb+" "+strconv.Itoa(t.PointsEarned)+" points.")
}

func (s *server) handleSettingsPost(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	err := orchestrators.ExecuteUpdateSettings(r.Context(), orchestrators.UpdateSettingsInput{
		Name:           r.FormValue("name"),
		Logo:           r.FormValue("logo"),
		PrimaryColor:   r.FormValue("primary_color"),
		SecondaryColor: r.FormValue("secondary_color"),
		Industry:       r.FormValue("industry"),
	}, orchestrators.UpdateSettingsDeps{Business: ws.Business})
	if err != nil {
		s.formFailure(w, r, "/dashboard/settings", err)
		return
	}
	redirectWith(w, r, "/dashboard/settings", "notice", "Settings saved.")
}

// formInt reads an integer field; blank or malformed values read as zero.
func formInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(r.FormValue(key)))
	return n
}

// formBool reads a checkbox.
func formBool(r *http.Request, key string) bool {
	switch r.FormValue(key) {
	case "on", "true", "1":
		return true
	}
	return false
}
