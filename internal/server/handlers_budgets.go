package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/simonvc/ledgerbook/internal/budget"
	"github.com/simonvc/ledgerbook/internal/ledger"
)

type createBudgetRequest struct {
	Name                string              `json:"name"`
	PlanType            string              `json:"plan_type"`
	CategoryAccountID   string              `json:"category_account_id,omitempty"`
	IncludedCategoryIDs []string            `json:"included_category_ids,omitempty"`
	Period              string              `json:"period"`
	HardLimit           decimal.Decimal     `json:"hard_limit"`
	SoftLimit           decimal.NullDecimal `json:"soft_limit"`
	LimitCurrency       string              `json:"limit_currency"`
	FilterMode          string              `json:"account_filter_mode,omitempty"`
	FilterAccountIDs    []string            `json:"account_filter_ids,omitempty"`
	StartDate           civil.Date          `json:"start_date"`
}

type budgetResponse struct {
	Plan    *ledger.BudgetPlan          `json:"plan"`
	Periods []ledger.BudgetPeriodRecord `json:"periods"`
}

func (s *Server) createBudget(w http.ResponseWriter, r *http.Request) {
	var req createBudgetRequest
	if !decode(w, r, &req) {
		return
	}
	plan := &ledger.BudgetPlan{
		Name:                req.Name,
		PlanType:            ledger.ParsePlanType(req.PlanType),
		CategoryAccountID:   req.CategoryAccountID,
		IncludedCategoryIDs: req.IncludedCategoryIDs,
		Period:              ledger.ParsePeriodType(req.Period),
		HardLimit:           req.HardLimit,
		SoftLimit:           req.SoftLimit,
		LimitCurrency:       req.LimitCurrency,
		FilterMode:          ledger.ParseFilterMode(req.FilterMode),
		FilterAccountIDs:    req.FilterAccountIDs,
		StartDate:           req.StartDate,
	}
	periods, err := s.budgets.CreatePlan(r.Context(), plan)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, budgetResponse{Plan: plan, Periods: periods})
}

func (s *Server) listBudgets(w http.ResponseWriter, r *http.Request) {
	var status ledger.PlanStatus
	if st := r.URL.Query().Get("status"); st != "" {
		status = ledger.ParsePlanStatus(st)
	}
	plans, err := s.store.ListPlans(r.Context(), status)
	if err != nil {
		fail(w, err)
		return
	}
	if plans == nil {
		plans = []ledger.BudgetPlan{}
	}
	writeJSON(w, http.StatusOK, plans)
}

func (s *Server) getBudget(w http.ResponseWriter, r *http.Request) {
	plan, err := s.store.GetPlan(r.Context(), pathID(r))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// listBudgetPeriods returns the current round by default; round=N picks
// another and all=true returns every round.
func (s *Server) listBudgetPeriods(w http.ResponseWriter, r *http.Request) {
	plan, err := s.store.GetPlan(r.Context(), pathID(r))
	if err != nil {
		fail(w, err)
		return
	}
	round := plan.RoundNumber
	if n := queryInt(r, "round"); n > 0 {
		round = n
	}
	if queryBool(r, "all", false) {
		round = 0
	}
	periods, err := s.store.ListPeriods(r.Context(), plan.ID, round)
	if err != nil {
		fail(w, err)
		return
	}
	if periods == nil {
		periods = []ledger.BudgetPeriodRecord{}
	}
	writeJSON(w, http.StatusOK, periods)
}

type spendResponse struct {
	PlanID   string          `json:"plan_id"`
	Start    civil.Date      `json:"start"`
	End      civil.Date      `json:"end"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func (s *Server) budgetSpend(w http.ResponseWriter, r *http.Request) {
	plan, err := s.store.GetPlan(r.Context(), pathID(r))
	if err != nil {
		fail(w, err)
		return
	}
	start, err := queryDate(r, "start", plan.StartDate)
	if err != nil {
		fail(w, err)
		return
	}
	end, err := queryDate(r, "end", plan.EndDate)
	if err != nil {
		fail(w, err)
		return
	}
	amount, err := s.budgets.ComputeSpend(r.Context(), plan, start, end)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, spendResponse{
		PlanID: plan.ID, Start: start, End: end, Amount: amount, Currency: plan.LimitCurrency,
	})
}

type restartRequest struct {
	StartDate *civil.Date          `json:"start_date,omitempty"`
	HardLimit *decimal.Decimal     `json:"hard_limit,omitempty"`
	SoftLimit *decimal.NullDecimal `json:"soft_limit,omitempty"`
}

func (s *Server) restartBudget(w http.ResponseWriter, r *http.Request) {
	var req restartRequest
	// An empty body restarts with the plan's current settings.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	opts := budget.RestartOptions{StartDate: req.StartDate, HardLimit: req.HardLimit, SoftLimit: req.SoftLimit}
	plan, periods, err := s.budgets.Restart(r.Context(), pathID(r), opts)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, budgetResponse{Plan: plan, Periods: periods})
}

func (s *Server) pauseBudget(w http.ResponseWriter, r *http.Request) {
	if err := s.budgets.Pause(r.Context(), pathID(r)); err != nil {
		fail(w, err)
		return
	}
	plan, err := s.store.GetPlan(r.Context(), pathID(r))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

type periodTypeRequest struct {
	Period    string     `json:"period"`
	StartDate civil.Date `json:"start_date"`
}

func (s *Server) changePeriodType(w http.ResponseWriter, r *http.Request) {
	var req periodTypeRequest
	if !decode(w, r, &req) {
		return
	}
	plan, periods, err := s.budgets.ChangePeriodType(r.Context(), pathID(r), ledger.ParsePeriodType(req.Period), req.StartDate)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, budgetResponse{Plan: plan, Periods: periods})
}

func (s *Server) refreshBudgets(w http.ResponseWriter, r *http.Request) {
	today, err := queryDate(r, "today", s.budgets.Today(s.now()))
	if err != nil {
		fail(w, err)
		return
	}
	if _, err := s.budgets.ExpirePlans(r.Context(), today); err != nil {
		fail(w, err)
		return
	}
	res, err := s.budgets.RefreshActivePeriods(r.Context(), today)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
