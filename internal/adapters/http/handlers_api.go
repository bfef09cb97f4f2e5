package web

import (
	"net/http"

	"loyaltyloop/internal/application/listutil"
	"loyaltyloop/internal/application/orchestrators"
	"loyaltyloop/internal/application/projections"
	"loyaltyloop/internal/application/session"
	"loyaltyloop/internal/application/workspace"
	"loyaltyloop/internal/domain/loyalty"
)

// apiFailure answers a JSON request with the user-facing form of err.
func apiFailure(w http.ResponseWriter, err error) {
	if status, msg, ok := userError(err); ok {
		writeJSONError(w, status, msg)
		return
	}
	internalError(w, err)
}

// decodeOrReject decodes the body and answers 400 on failure.
func decodeOrReject(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := strictDecode(r, v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

func (s *server) sessionJSON(w http.ResponseWriter, status int, ws *workspace.Workspace) {
	writeJSON(w, status, newSessionView(ws.Session.State(), s.opts.BypassCapable))
}

func (s *server) loginAs(r *http.Request, ws *workspace.Workspace, role string) (orchestrators.DevLoginAsResult, error) {
	res, err := orchestrators.ExecuteDevLoginAs(r.Context(), orchestrators.DevLoginAsInput{
		Role:          role,
		BypassCapable: s.opts.BypassCapable,
	}, orchestrators.DevLoginAsDeps{Session: ws.Session})
	s.authEvent("login_as", err)
	return res, err
}

func (s *server) toggleBypass(r *http.Request, ws *workspace.Workspace, enabled bool) error {
	err := orchestrators.ExecuteDevToggleBypass(r.Context(), orchestrators.DevToggleBypassInput{
		Enabled:       enabled,
		BypassCapable: s.opts.BypassCapable,
	}, orchestrators.DevLoginAsDeps{Session: ws.Session})
	s.authEvent("set_bypass", err)
	return err
}

// handleAPISession reports the device's session state.
func (s *server) handleAPISession(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	writeJSON(w, http.StatusOK, newSessionView(st, s.opts.BypassCapable))
}

func (s *server) handleAPILogin(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	var input struct {
		Email    string `json:"Email"`
		Password string `json:"Password"`
	}
	if !decodeOrReject(w, r, &input) {
		return
	}
	_, err := ws.Session.Login(r.Context(), input.Email, input.Password)
	s.authEvent("login", err)
	if err != nil {
		apiFailure(w, err)
		return
	}
	s.sessionJSON(w, http.StatusOK, ws)
}

func (s *server) handleAPILogout(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	err := ws.Session.Logout(r.Context())
	s.authEvent("logout", err)
	if err != nil {
		apiFailure(w, err)
		return
	}
	s.sessionJSON(w, http.StatusOK, ws)
}

func (s *server) handleAPILoginAs(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	var input struct {
		Role string `json:"Role"`
	}
	if !decodeOrReject(w, r, &input) {
		return
	}
	res, err := s.loginAs(r, ws, input.Role)
	if err != nil {
		apiFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Session  sessionView
		Redirect string
	}{newSessionView(ws.Session.State(), s.opts.BypassCapable), res.Redirect})
}

func (s *server) handleAPIBypass(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	var input struct {
		Enabled bool `json:"Enabled"`
	}
	if !decodeOrReject(w, r, &input) {
		return
	}
	if err := s.toggleBypass(r, ws, input.Enabled); err != nil {
		apiFailure(w, err)
		return
	}
	s.sessionJSON(w, http.StatusOK, ws)
}

// currentBusiness answers 409 when the workspace has no business record.
func currentBusiness(w http.ResponseWriter, ws *workspace.Workspace) (*loyalty.Business, bool) {
	b := ws.Business.Current()
	if b == nil {
		apiFailure(w, projections.ErrNoBusiness)
		return nil, false
	}
	return b, true
}

func (s *server) handleAPIBusiness(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	if b, ok := currentBusiness(w, ws); ok {
		writeJSON(w, http.StatusOK, b)
	}
}

func (s *server) handleAPIBusinessPatch(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	var input struct {
		Name           string `json:"Name"`
		Logo           string `json:"Logo"`
		PrimaryColor   string `json:"PrimaryColor"`
		SecondaryColor string `json:"SecondaryColor"`
		Industry       string `json:"Industry"`
	}
	if !decodeOrReject(w, r, &input) {
		return
	}
	err := orchestrators.ExecuteUpdateSettings(r.Context(), orchestrators.UpdateSettingsInput(input), orchestrators.UpdateSettingsDeps{Business: ws.Business})
	if err != nil {
		apiFailure(w, err)
		return
	}
	s.handleAPIBusiness(w, r, ws, st)
}

func (s *server) handleAPIPrograms(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	if b, ok := currentBusiness(w, ws); ok {
		writeJSON(w, http.StatusOK, b.Programs)
	}
}

func (s *server) handleAPIProgramCreate(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	var input struct {
		Name            string         `json:"Name"`
		Type            string         `json:"Type"`
		Description     string         `json:"Description"`
		PointsPerDollar int            `json:"PointsPerDollar"`
		PunchesNeeded   int            `json:"PunchesNeeded"`
		Tiers           []loyalty.Tier `json:"Tiers"`
		Active          bool           `json:"Active"`
	}
	if !decodeOrReject(w, r, &input) {
		return
	}
	p, err := orchestrators.ExecuteCreateProgram(r.Context(), orchestrators.CreateProgramInput(input), orchestrators.CreateProgramDeps{Business: ws.Business})
	if err != nil {
		apiFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *server) handleAPICustomers(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	params := listutil.ParseListParams(r.URL.Query(), projections.CustomerSortColumns, nil)
	res, err := projections.QueryGetCustomerList(r.Context(), projections.GetCustomerListQuery{ListParams: params}, projections.GetCustomerListDeps{Business: ws.Business})
	if err != nil {
		apiFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleAPICustomerCreate(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	var input struct {
		Name  string `json:"Name"`
		Email string `json:"Email"`
		Phone string `json:"Phone"`
	}
	if !decodeOrReject(w, r, &input) {
		return
	}
	c, err := orchestrators.ExecuteRegisterCustomer(r.Context(), orchestrators.RegisterCustomerInput(input), orchestrators.RegisterCustomerDeps{Business: ws.Business, Now: ws.Business.Now})
	if err != nil {
		apiFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *server) handleAPITransactions(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	params := listutil.ParseListParams(r.URL.Query(), nil, projections.TransactionFilterKeys)
	res, err := projections.QueryGetTransactionList(r.Context(), projections.GetTransactionListQuery{ListParams: params}, projections.GetTransactionListDeps{Business: ws.Business})
	if err != nil {
		apiFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleAPITransactionCreate(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	var input struct {
		CustomerID     string  `json:"CustomerID"`
		Type           string  `json:"Type"`
		Amount         float64 `json:"Amount"`
		PointsRedeemed int     `json:"PointsRedeemed"`
	}
	if !decodeOrReject(w, r, &input) {
		return
	}
	t, err := orchestrators.ExecuteRecordTransaction(r.Context(), orchestrators.RecordTransactionInput(input), orchestrators.RecordTransactionDeps{Business: ws.Business, Now: ws.Business.Now})
	if err != nil {
		apiFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *server) handleAPIRewards(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	if b, ok := currentBusiness(w, ws); ok {
		writeJSON(w, http.StatusOK, b.Rewards)
	}
}

func (s *server) handleAPIRewardCreate(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, st session.State) {
	var input struct {
		Name        string `json:"Name"`
		Description string `json:"Description"`
		PointsCost  int    `json:"PointsCost"`
		Active      bool   `json:"Active"`
	}
	if !decodeOrReject(w, r, &input) {
		return
	}
	rw, err := orchestrators.ExecuteCreateReward(r.Context(), orchestrators.CreateRewardInput(input), orchestrators.CreateRewardDeps{Business: ws.Business})
	if err != nil {
		apiFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rw)
}
