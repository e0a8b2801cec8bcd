package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/simonvc/ledgerbook/internal/ledger"
	"github.com/simonvc/ledgerbook/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu      sync.Mutex
	cals    map[string][]ledger.Calibration
	txns    []ledger.Transaction
	issues  map[[2]string]ledger.ReconciliationIssue
	failing map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		cals:    make(map[string][]ledger.Calibration),
		issues:  make(map[[2]string]ledger.ReconciliationIssue),
		failing: make(map[string]bool),
	}
}

func (m *memStore) ListCalibrations(_ context.Context, accountID string, rng ledger.TimeRange) ([]ledger.Calibration, error) {
	if m.failing[accountID] {
		return nil, errors.New("disk I/O error")
	}
	var out []ledger.Calibration
	for _, c := range m.cals[accountID] {
		if rng.Contains(c.Date) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) flows(accountID string, after, upTo time.Time, inbound bool) []ledger.Transaction {
	var out []ledger.Transaction
	for _, t := range m.txns {
		id := t.FromAccountID
		if inbound {
			id = t.ToAccountID
		}
		if id == accountID && t.Date.After(after) && !t.Date.After(upTo) {
			out = append(out, t)
		}
	}
	return out
}

func (m *memStore) Inflows(_ context.Context, accountID string, after, upTo time.Time) ([]ledger.Transaction, error) {
	return m.flows(accountID, after, upTo, true), nil
}

func (m *memStore) Outflows(_ context.Context, accountID string, after, upTo time.Time) ([]ledger.Transaction, error) {
	return m.flows(accountID, after, upTo, false), nil
}

func (m *memStore) UpsertIssue(_ context.Context, issue *ledger.ReconciliationIssue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]string{issue.FromCalibrationID, issue.ToCalibrationID}
	if existing, ok := m.issues[key]; ok && existing.Status != ledger.IssueOpen {
		issue.ID = existing.ID
		issue.Status = existing.Status
		return nil
	}
	issue.ID = key[0] + ":" + key[1]
	m.issues[key] = *issue
	return nil
}

func at(d int) time.Time {
	return time.Date(2025, 6, d, 9, 0, 0, 0, time.UTC)
}

func (m *memStore) calibrate(id, account, bal string, d int) {
	m.cals[account] = append(m.cals[account], ledger.Calibration{ID: id, AccountID: account, Balance: decimal.RequireFromString(bal), Date: at(d)})
}

func (m *memStore) transfer(from, to, amount string, d int) {
	m.txns = append(m.txns, ledger.Transaction{FromAccountID: from, ToAccountID: to, Amount: decimal.RequireFromString(amount), Date: at(d)})
}

func TestCheck_ReportsDrift(t *testing.T) {
	st := newMemStore()
	st.calibrate("c1", "bank", "100", 1)
	st.calibrate("c2", "bank", "150", 10)
	st.transfer("salary", "bank", "60", 3)
	st.transfer("bank", "food", "20", 5)

	log := logging.NewMockLogger()
	res, err := NewEngine(st, log).Check(context.Background(), "bank", ledger.TimeRange{})
	require.NoError(t, err)

	assert.Equal(t, StatusChecked, res.Status)
	assert.Equal(t, 1, res.PairsChecked)
	require.Len(t, res.Issues, 1)
	is := res.Issues[0]
	assert.Equal(t, "50", is.ExpectedDelta.String())
	assert.Equal(t, "40", is.ActualDelta.String())
	assert.Equal(t, "-10", is.Diff.String())
	assert.Equal(t, "c1", is.FromCalibrationID)
	assert.Equal(t, "c2", is.ToCalibrationID)
	assert.True(t, log.HasEntry("WARN", "Reconciliation drift detected"))
}

func TestCheck_WithinTolerance(t *testing.T) {
	st := newMemStore()
	st.calibrate("c1", "bank", "100", 1)
	st.calibrate("c2", "bank", "140.01", 10)
	st.transfer("salary", "bank", "40", 3)

	res, err := NewEngine(st, logging.NewNop()).Check(context.Background(), "bank", ledger.TimeRange{})
	require.NoError(t, err)
	assert.Equal(t, StatusChecked, res.Status)
	assert.Zero(t, res.IssuesFound)
	assert.Empty(t, st.issues)

	strict, err := NewEngine(st, logging.NewNop(), WithTolerance(decimal.Zero)).Check(context.Background(), "bank", ledger.TimeRange{})
	require.NoError(t, err)
	assert.Equal(t, 1, strict.IssuesFound)
}

func TestCheck_PairsAreIndependent(t *testing.T) {
	st := newMemStore()
	st.calibrate("c1", "bank", "100", 1)
	st.calibrate("c2", "bank", "90", 5)
	st.calibrate("c3", "bank", "120", 10)
	// 10 went missing before c2; the second pair matches exactly.
	st.transfer("salary", "bank", "30", 7)

	res, err := NewEngine(st, logging.NewNop()).Check(context.Background(), "bank", ledger.TimeRange{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.PairsChecked)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, "c2", res.Issues[0].ToCalibrationID)
	assert.Equal(t, "10", res.Issues[0].Diff.String())
}

func TestCheck_TransferAtCalibrationInstant(t *testing.T) {
	st := newMemStore()
	st.calibrate("c1", "bank", "100", 1)
	st.calibrate("c2", "bank", "130", 10)
	st.transfer("salary", "bank", "500", 1) // already in c1
	st.transfer("salary", "bank", "30", 10) // counted toward c2

	res, err := NewEngine(st, logging.NewNop()).Check(context.Background(), "bank", ledger.TimeRange{})
	require.NoError(t, err)
	assert.Zero(t, res.IssuesFound)
}

func TestCheck_InsufficientCalibrations(t *testing.T) {
	st := newMemStore()
	st.calibrate("c1", "bank", "100", 1)

	res, err := NewEngine(st, logging.NewNop()).Check(context.Background(), "bank", ledger.TimeRange{})
	require.NoError(t, err)
	assert.Equal(t, StatusInsufficient, res.Status)
	assert.Equal(t, 1, res.Calibrations)
}

func TestCheck_RangeLimitsCalibrations(t *testing.T) {
	st := newMemStore()
	st.calibrate("c1", "bank", "0", 1)
	st.calibrate("c2", "bank", "100", 10)
	st.calibrate("c3", "bank", "100", 20)

	res, err := NewEngine(st, logging.NewNop()).Check(context.Background(), "bank", ledger.TimeRange{Start: at(5)})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Calibrations)
	assert.Zero(t, res.IssuesFound)
}

func TestCheck_IgnoredIssueStaysIgnored(t *testing.T) {
	st := newMemStore()
	st.calibrate("c1", "bank", "100", 1)
	st.calibrate("c2", "bank", "50", 10)
	st.issues[[2]string{"c1", "c2"}] = ledger.ReconciliationIssue{ID: "i1", Status: ledger.IssueIgnored}

	res, err := NewEngine(st, logging.NewNop()).Check(context.Background(), "bank", ledger.TimeRange{})
	require.NoError(t, err)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, "i1", res.Issues[0].ID)
	assert.Equal(t, ledger.IssueIgnored, res.Issues[0].Status)
	assert.Zero(t, res.IssuesFound, "closed issues are not counted as found")
}

func TestCheckBatch_FailureIsIsolated(t *testing.T) {
	st := newMemStore()
	st.calibrate("a1", "bank", "100", 1)
	st.calibrate("a2", "bank", "100", 10)
	st.calibrate("b1", "card", "0", 1)
	st.calibrate("b2", "card", "-25", 10)
	st.calibrate("w1", "wallet", "5", 1)
	st.failing["broken"] = true

	log := logging.NewMockLogger()
	batch := NewEngine(st, log, WithWorkers(2)).CheckBatch(context.Background(),
		[]string{"bank", "broken", "card", "wallet"}, ledger.TimeRange{})

	require.Len(t, batch.Results, 4)
	assert.Equal(t, 2, batch.Checked)
	assert.Equal(t, 1, batch.Insufficient)
	assert.Equal(t, 1, batch.Failed)
	assert.Equal(t, 1, batch.IssuesFound)

	broken := batch.Results[1]
	assert.Equal(t, "broken", broken.AccountID)
	assert.Equal(t, StatusError, broken.Status)
	assert.Equal(t, StageCalibrations, broken.Stage)
	assert.Contains(t, broken.Message, "disk I/O error")

	assert.Equal(t, StatusChecked, batch.Results[0].Status)
	assert.Equal(t, "25", batch.Results[2].Issues[0].Diff.String())
	assert.True(t, log.HasEntry("ERROR", "Reconciliation check failed"))
}
