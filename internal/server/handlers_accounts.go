package server

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/simonvc/ledgerbook/internal/balance"
	"github.com/simonvc/ledgerbook/internal/ledger"
	"github.com/simonvc/ledgerbook/internal/store"
)

type createAccountRequest struct {
	ID       string              `json:"id"`
	Name     string              `json:"name"`
	ParentID string              `json:"parent_id,omitempty"`
	Type     ledger.AccountType  `json:"type"`
	Class    ledger.AccountClass `json:"class,omitempty"`
	IsGroup  bool                `json:"is_group,omitempty"`
	Currency string              `json:"currency,omitempty"`
	IsActive *bool               `json:"is_active,omitempty"`
}

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if !decode(w, r, &req) {
		return
	}

	acct := &ledger.Account{
		ID:       req.ID,
		Name:     req.Name,
		ParentID: req.ParentID,
		Type:     ledger.ParseAccountType(string(req.Type)),
		IsGroup:  req.IsGroup,
		Currency: req.Currency,
		IsActive: req.IsActive == nil || *req.IsActive,
	}
	if req.Class != "" {
		acct.Class = ledger.ParseAccountClass(string(req.Class))
	}

	if err := s.store.CreateAccount(r.Context(), acct); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, acct)
}

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.AccountFilter{
		ParentID:   q.Get("parent_id"),
		ActiveOnly: queryBool(r, "active", false),
	}
	if t := q.Get("type"); t != "" {
		filter.Type = ledger.ParseAccountType(t)
	}
	if c := q.Get("class"); c != "" {
		filter.Class = ledger.ParseAccountClass(c)
	}

	accounts, err := s.store.ListAccounts(r.Context(), filter)
	if err != nil {
		fail(w, err)
		return
	}
	if accounts == nil {
		accounts = []ledger.Account{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := s.store.GetAccount(r.Context(), pathID(r))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (s *Server) updateAccount(w http.ResponseWriter, r *http.Request) {
	var patch store.AccountPatch
	if !decode(w, r, &patch) {
		return
	}
	acct, err := s.store.UpdateAccount(r.Context(), pathID(r), patch)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (s *Server) seedChart(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.SeedChart(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"added": n})
}

type balanceResponse struct {
	*balance.Result
	Currency  string `json:"currency"`
	Formatted string `json:"formatted"`
}

func (s *Server) getAccountBalance(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	acct, err := s.store.GetAccount(r.Context(), id)
	if err != nil {
		fail(w, err)
		return
	}
	at, err := queryTime(r, "at")
	if err != nil {
		fail(w, err)
		return
	}
	if at.IsZero() {
		at = s.now()
	}

	res, err := s.balances.Explain(r.Context(), id, at)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{
		Result:    res,
		Currency:  acct.Currency,
		Formatted: ledger.DisplayAmount(res.Balance, acct.Currency),
	})
}

type openingRequest struct {
	Balance decimal.Decimal `json:"balance"`
	Date    time.Time       `json:"date"`
}

type openingResponse struct {
	Transaction *ledger.Transaction `json:"transaction"`
	Calibration *ledger.Calibration `json:"calibration"`
}

func (s *Server) createOpening(w http.ResponseWriter, r *http.Request) {
	var req openingRequest
	if !decode(w, r, &req) {
		return
	}
	txn, cal, err := s.store.CreateOpening(r.Context(), pathID(r), req.Balance, req.Date)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, openingResponse{Transaction: txn, Calibration: cal})
}
