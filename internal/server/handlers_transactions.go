package server

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/simonvc/ledgerbook/internal/ledger"
	"github.com/simonvc/ledgerbook/internal/store"
)

type createTransactionRequest struct {
	FromAccountID string              `json:"from_account_id"`
	ToAccountID   string              `json:"to_account_id"`
	Amount        decimal.Decimal     `json:"amount"`
	FromAmount    decimal.NullDecimal `json:"from_amount"`
	ToAmount      decimal.NullDecimal `json:"to_amount"`
	Date          time.Time           `json:"date"`
	Nature        string              `json:"nature,omitempty"`
	Description   string              `json:"description,omitempty"`
}

func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if !decode(w, r, &req) {
		return
	}

	txn := &ledger.Transaction{
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        req.Amount,
		FromAmount:    req.FromAmount,
		ToAmount:      req.ToAmount,
		Date:          req.Date,
		Nature:        ledger.ParseNature(req.Nature),
		Description:   req.Description,
	}
	if err := s.store.CreateTransaction(r.Context(), txn); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, txn)
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	filter := store.TxnFilter{
		AccountID: r.URL.Query().Get("account_id"),
		Limit:     queryInt(r, "limit"),
		Offset:    queryInt(r, "offset"),
	}
	var err error
	if filter.Range.Start, err = queryTime(r, "start"); err != nil {
		fail(w, err)
		return
	}
	if filter.Range.End, err = queryTime(r, "end"); err != nil {
		fail(w, err)
		return
	}

	txns, err := s.store.ListTransactions(r.Context(), filter)
	if err != nil {
		fail(w, err)
		return
	}
	if txns == nil {
		txns = []ledger.Transaction{}
	}
	writeJSON(w, http.StatusOK, txns)
}

func (s *Server) getTransaction(w http.ResponseWriter, r *http.Request) {
	txn, err := s.store.GetTransaction(r.Context(), pathID(r))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

func (s *Server) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteTransaction(r.Context(), pathID(r)); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
