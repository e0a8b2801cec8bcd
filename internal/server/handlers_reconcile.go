package server

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/simonvc/ledgerbook/internal/ledger"
	"github.com/simonvc/ledgerbook/internal/reconcile"
	"github.com/simonvc/ledgerbook/internal/store"
)

type createCalibrationRequest struct {
	Balance decimal.Decimal `json:"balance"`
	Date    time.Time       `json:"date"`
	Source  string          `json:"source,omitempty"`
}

type calibrationResponse struct {
	Calibration    *ledger.Calibration `json:"calibration"`
	Reconciliation *reconcile.Result   `json:"reconciliation,omitempty"`
}

// createCalibration stores a calibration and, unless reconcile=false,
// re-checks the account so new drift surfaces immediately.
func (s *Server) createCalibration(w http.ResponseWriter, r *http.Request) {
	var req createCalibrationRequest
	if !decode(w, r, &req) {
		return
	}
	cal := &ledger.Calibration{
		AccountID: pathID(r),
		Balance:   req.Balance,
		Date:      req.Date,
		Source:    ledger.ParseCalibrationSource(req.Source),
	}
	if err := s.store.CreateCalibration(r.Context(), cal); err != nil {
		fail(w, err)
		return
	}

	resp := calibrationResponse{Calibration: cal}
	if queryBool(r, "reconcile", true) {
		// A failed check is reported in the result; the calibration stands.
		res, _ := s.reconcile.Check(r.Context(), cal.AccountID, ledger.TimeRange{})
		resp.Reconciliation = &res
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) listCalibrations(w http.ResponseWriter, r *http.Request) {
	rng, err := timeRange(r)
	if err != nil {
		fail(w, err)
		return
	}
	cals, err := s.store.ListCalibrations(r.Context(), pathID(r), rng)
	if err != nil {
		fail(w, err)
		return
	}
	if cals == nil {
		cals = []ledger.Calibration{}
	}
	writeJSON(w, http.StatusOK, cals)
}

func (s *Server) deleteCalibration(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteCalibration(r.Context(), pathID(r)); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type checkRequest struct {
	AccountID  string    `json:"account_id"`
	AccountIDs []string  `json:"account_ids"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
}

func (s *Server) checkAccount(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if !decode(w, r, &req) {
		return
	}
	if _, err := s.store.GetAccount(r.Context(), req.AccountID); err != nil {
		fail(w, err)
		return
	}
	res, err := s.reconcile.Check(r.Context(), req.AccountID, ledger.TimeRange{Start: req.Start, End: req.End})
	if err != nil {
		writeJSON(w, mapError(err), res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// checkBatch reconciles the given accounts, or every active non-group real
// account when none are named.
func (s *Server) checkBatch(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if !decode(w, r, &req) {
		return
	}
	ids := req.AccountIDs
	if len(ids) == 0 {
		accounts, err := s.store.ListAccounts(r.Context(), store.AccountFilter{Class: ledger.ClassReal, ActiveOnly: true})
		if err != nil {
			fail(w, err)
			return
		}
		for _, a := range accounts {
			a := a
			if a.IsLeafReal() {
				ids = append(ids, a.ID)
			}
		}
	}
	batch := s.reconcile.CheckBatch(r.Context(), ids, ledger.TimeRange{Start: req.Start, End: req.End})
	if batch.Results == nil {
		batch.Results = []reconcile.Result{}
	}
	writeJSON(w, http.StatusOK, batch)
}

func (s *Server) listIssues(w http.ResponseWriter, r *http.Request) {
	filter := store.IssueFilter{AccountID: r.URL.Query().Get("account_id")}
	if st := r.URL.Query().Get("status"); st != "" {
		filter.Status = ledger.ParseIssueStatus(st)
		if filter.Status == ledger.IssueUnknown {
			writeError(w, http.StatusBadRequest, ledger.ErrInvalidIssueStatus.Error())
			return
		}
	}
	issues, err := s.store.ListIssues(r.Context(), filter)
	if err != nil {
		fail(w, err)
		return
	}
	if issues == nil {
		issues = []ledger.ReconciliationIssue{}
	}
	writeJSON(w, http.StatusOK, issues)
}

func (s *Server) setIssueStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if !decode(w, r, &req) {
		return
	}
	issue, err := s.store.SetIssueStatus(r.Context(), pathID(r), ledger.ParseIssueStatus(req.Status))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) upsertRate(w http.ResponseWriter, r *http.Request) {
	var rate ledger.ExchangeRate
	if !decode(w, r, &rate) {
		return
	}
	if err := s.store.UpsertRate(r.Context(), &rate); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rate)
}

func (s *Server) listRates(w http.ResponseWriter, r *http.Request) {
	rates, err := s.store.ListRates(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	if rates == nil {
		rates = []ledger.ExchangeRate{}
	}
	writeJSON(w, http.StatusOK, rates)
}

func timeRange(r *http.Request) (ledger.TimeRange, error) {
	start, err := queryTime(r, "start")
	if err != nil {
		return ledger.TimeRange{}, err
	}
	end, err := queryTime(r, "end")
	if err != nil {
		return ledger.TimeRange{}, err
	}
	return ledger.TimeRange{Start: start, End: end}, nil
}
