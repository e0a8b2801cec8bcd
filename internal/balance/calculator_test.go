package balance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/simonvc/ledgerbook/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memLedger struct {
	cals []ledger.Calibration
	txns []ledger.Transaction
	err  error
}

func (m *memLedger) LatestCalibration(_ context.Context, accountID string, at time.Time) (*ledger.Calibration, error) {
	if m.err != nil {
		return nil, m.err
	}
	var best *ledger.Calibration
	for i := range m.cals {
		c := &m.cals[i]
		if c.AccountID != accountID || c.Date.After(at) {
			continue
		}
		if best == nil || c.Date.After(best.Date) {
			best = c
		}
	}
	return best, nil
}

func (m *memLedger) flows(accountID string, after, upTo time.Time, inbound bool) []ledger.Transaction {
	var out []ledger.Transaction
	for _, t := range m.txns {
		id := t.FromAccountID
		if inbound {
			id = t.ToAccountID
		}
		if id != accountID || t.Date.After(upTo) {
			continue
		}
		if !after.IsZero() && !t.Date.After(after) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (m *memLedger) Inflows(_ context.Context, accountID string, after, upTo time.Time) ([]ledger.Transaction, error) {
	return m.flows(accountID, after, upTo, true), nil
}

func (m *memLedger) Outflows(_ context.Context, accountID string, after, upTo time.Time) ([]ledger.Transaction, error) {
	return m.flows(accountID, after, upTo, false), nil
}

func day(d int) time.Time {
	return time.Date(2025, 1, d, 12, 0, 0, 0, time.UTC)
}

func txn(from, to string, amount string, d int) ledger.Transaction {
	return ledger.Transaction{FromAccountID: from, ToAccountID: to, Amount: decimal.RequireFromString(amount), Date: day(d)}
}

func TestBalanceAt_NoCalibration(t *testing.T) {
	l := &memLedger{txns: []ledger.Transaction{
		txn("salary", "bank", "1000", 1),
		txn("bank", "food", "120.50", 3),
		txn("bank", "rent", "500", 10),
	}}
	calc := NewCalculator(l)

	got, err := calc.BalanceAt(context.Background(), "bank", day(5))
	require.NoError(t, err)
	assert.Equal(t, "879.5", got.String())

	got, err = calc.BalanceAt(context.Background(), "bank", day(31))
	require.NoError(t, err)
	assert.Equal(t, "379.5", got.String())
}

func TestExplain_AnchorsOnLatestCalibration(t *testing.T) {
	l := &memLedger{
		cals: []ledger.Calibration{
			{ID: "c1", AccountID: "bank", Balance: decimal.NewFromInt(100), Date: day(1)},
			{ID: "c2", AccountID: "bank", Balance: decimal.NewFromInt(300), Date: day(5)},
			{ID: "c3", AccountID: "bank", Balance: decimal.NewFromInt(999), Date: day(20)},
		},
		txns: []ledger.Transaction{
			txn("salary", "bank", "50", 5), // at the anchor instant, already counted
			txn("salary", "bank", "40", 6),
			txn("bank", "food", "15", 7),
		},
	}
	calc := NewCalculator(l)

	res, err := calc.Explain(context.Background(), "bank", day(10))
	require.NoError(t, err)
	assert.Equal(t, "c2", res.Anchor.CalibrationID)
	assert.Equal(t, "40", res.Inflows.String())
	assert.Equal(t, "15", res.Outflows.String())
	assert.Equal(t, "325", res.Balance.String())

	exact, err := calc.BalanceAt(context.Background(), "bank", day(5))
	require.NoError(t, err)
	assert.Equal(t, "300", exact.String())
}

func TestExplain_CrossCurrencyUsesSideAmounts(t *testing.T) {
	l := &memLedger{txns: []ledger.Transaction{{
		FromAccountID: "eur-bank",
		ToAccountID:   "usd-bank",
		Amount:        decimal.NewFromInt(100),
		ToAmount:      decimal.NewNullDecimal(decimal.RequireFromString("108.20")),
		Date:          day(2),
	}}}
	calc := NewCalculator(l)

	usd, err := calc.BalanceAt(context.Background(), "usd-bank", day(3))
	require.NoError(t, err)
	assert.Equal(t, "108.2", usd.String())

	eur, err := calc.BalanceAt(context.Background(), "eur-bank", day(3))
	require.NoError(t, err)
	assert.Equal(t, "-100", eur.String())
}

func TestExplain_StoreFailure(t *testing.T) {
	calc := NewCalculator(&memLedger{err: errors.New("boom")})

	_, err := calc.Explain(context.Background(), "bank", day(1))
	require.Error(t, err)
	assert.True(t, ledger.IsStoreError(err))
}
