// Package balance reconstructs account balances from the nearest
// calibration plus the transfers recorded after it.
package balance

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/simonvc/ledgerbook/internal/ledger"
)

// Ledger is the read side of the store the calculator needs. Inflows and
// Outflows select transfers with after < date <= upTo; a zero after means
// no lower bound.
type Ledger interface {
	// LatestCalibration returns the most recent calibration dated at or
	// before at, or nil when there is none.
	LatestCalibration(ctx context.Context, accountID string, at time.Time) (*ledger.Calibration, error)
	Inflows(ctx context.Context, accountID string, after, upTo time.Time) ([]ledger.Transaction, error)
	Outflows(ctx context.Context, accountID string, after, upTo time.Time) ([]ledger.Transaction, error)
}

type Calculator struct {
	ledger Ledger
}

func NewCalculator(l Ledger) *Calculator {
	return &Calculator{ledger: l}
}

// Anchor is the starting point of a reconstruction. A zero Date means
// "since the beginning of time" with a zero balance.
type Anchor struct {
	CalibrationID string          `json:"calibration_id,omitempty"`
	Balance       decimal.Decimal `json:"balance"`
	Date          time.Time       `json:"date"`
}

// Result explains how a balance was derived.
type Result struct {
	AccountID string          `json:"account_id"`
	At        time.Time       `json:"at"`
	Anchor    Anchor          `json:"anchor"`
	Inflows   decimal.Decimal `json:"inflows"`
	Outflows  decimal.Decimal `json:"outflows"`
	Balance   decimal.Decimal `json:"balance"`
}

// BalanceAt projects the balance of accountID at target. It only fails
// when the store does.
func (c *Calculator) BalanceAt(ctx context.Context, accountID string, target time.Time) (decimal.Decimal, error) {
	res, err := c.Explain(ctx, accountID, target)
	if err != nil {
		return decimal.Zero, err
	}
	return res.Balance, nil
}

// Explain is BalanceAt with the anchor and flow totals exposed.
func (c *Calculator) Explain(ctx context.Context, accountID string, target time.Time) (*Result, error) {
	cal, err := c.ledger.LatestCalibration(ctx, accountID, target)
	if err != nil {
		return nil, ledger.WrapStore("latest calibration", err)
	}

	anchor := Anchor{Balance: decimal.Zero}
	if cal != nil {
		anchor = Anchor{CalibrationID: cal.ID, Balance: cal.Balance, Date: cal.Date}
	}

	// The anchor already reflects anything dated exactly at its instant.
	in, err := c.ledger.Inflows(ctx, accountID, anchor.Date, target)
	if err != nil {
		return nil, ledger.WrapStore("inflows", err)
	}
	out, err := c.ledger.Outflows(ctx, accountID, anchor.Date, target)
	if err != nil {
		return nil, ledger.WrapStore("outflows", err)
	}

	res := &Result{
		AccountID: accountID,
		At:        target,
		Anchor:    anchor,
		Inflows:   ledger.SumInflows(in),
		Outflows:  ledger.SumOutflows(out),
	}
	res.Balance = anchor.Balance.Add(res.Inflows).Sub(res.Outflows)
	return res, nil
}
