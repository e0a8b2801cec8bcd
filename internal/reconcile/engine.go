// Package reconcile detects drift between adjacent calibrations by
// re-deriving the expected change from the ledger.
package reconcile

import (
	"context"
	"runtime"
	"time"

	"github.com/shopspring/decimal"
	"github.com/simonvc/ledgerbook/internal/ledger"
	"github.com/simonvc/ledgerbook/internal/logging"
	"golang.org/x/sync/errgroup"
)

// DefaultTolerance is the absolute drift ignored between two calibrations.
var DefaultTolerance = decimal.New(1, -2)

// Store is the slice of the ledger store the engine reads and writes.
type Store interface {
	// ListCalibrations returns the account's calibrations inside rng,
	// ascending by date.
	ListCalibrations(ctx context.Context, accountID string, rng ledger.TimeRange) ([]ledger.Calibration, error)
	Inflows(ctx context.Context, accountID string, after, upTo time.Time) ([]ledger.Transaction, error)
	Outflows(ctx context.Context, accountID string, after, upTo time.Time) ([]ledger.Transaction, error)
	// UpsertIssue records an open issue keyed by its calibration pair. An
	// existing open issue for the pair is refreshed; resolved or ignored
	// ones are left untouched.
	UpsertIssue(ctx context.Context, issue *ledger.ReconciliationIssue) error
}

type Status string

const (
	StatusChecked      Status = "checked"
	StatusInsufficient Status = "insufficient_calibrations"
	StatusError        Status = "error"
)

// Stages name the step an account check failed at.
const (
	StageCalibrations = "calibrations"
	StageInflows      = "inflows"
	StageOutflows     = "outflows"
	StageIssue        = "issue"
)

// Result is the outcome of checking one account. Issues lists every
// drifting pair, including ones the user resolved or ignored; IssuesFound
// counts only those still open.
type Result struct {
	AccountID    string                       `json:"account_id"`
	Status       Status                       `json:"status"`
	Calibrations int                          `json:"calibrations"`
	PairsChecked int                          `json:"pairs_checked"`
	IssuesFound  int                          `json:"issues_found"`
	Issues       []ledger.ReconciliationIssue `json:"issues,omitempty"`
	Stage        string                       `json:"stage,omitempty"`
	Message      string                       `json:"message,omitempty"`
}

// BatchResult aggregates per-account outcomes.
type BatchResult struct {
	Results      []Result `json:"results"`
	Checked      int      `json:"checked"`
	Insufficient int      `json:"insufficient"`
	Failed       int      `json:"failed"`
	IssuesFound  int      `json:"issues_found"`
}

type Engine struct {
	store     Store
	log       logging.Logger
	tolerance decimal.Decimal
	workers   int
}

type Option func(*Engine)

func WithTolerance(tol decimal.Decimal) Option {
	return func(e *Engine) { e.tolerance = tol }
}

// WithWorkers bounds how many accounts a batch checks at once.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

func NewEngine(store Store, log logging.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		log:       log,
		tolerance: DefaultTolerance,
		workers:   runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Check compares every adjacent pair of calibrations for accountID inside
// rng. Each pair is judged on its own; drift never carries over. A store
// failure returns a Result with StatusError alongside the error.
func (e *Engine) Check(ctx context.Context, accountID string, rng ledger.TimeRange) (Result, error) {
	res := Result{AccountID: accountID}
	log := e.log.WithField(logging.FieldAccountID, accountID)

	cals, err := e.store.ListCalibrations(ctx, accountID, rng)
	if err != nil {
		return e.fail(log, res, StageCalibrations, err)
	}
	res.Calibrations = len(cals)
	if len(cals) < 2 {
		res.Status = StatusInsufficient
		log.Debug("Not enough calibrations to reconcile", logging.F(logging.FieldCount, len(cals)))
		return res, nil
	}

	for i := 1; i < len(cals); i++ {
		c1, c2 := cals[i-1], cals[i]
		expected := c2.Balance.Sub(c1.Balance)

		in, err := e.store.Inflows(ctx, accountID, c1.Date, c2.Date)
		if err != nil {
			return e.fail(log, res, StageInflows, err)
		}
		out, err := e.store.Outflows(ctx, accountID, c1.Date, c2.Date)
		if err != nil {
			return e.fail(log, res, StageOutflows, err)
		}
		actual := ledger.SumInflows(in).Sub(ledger.SumOutflows(out))
		diff := actual.Sub(expected)
		res.PairsChecked++

		if diff.Abs().LessThanOrEqual(e.tolerance) {
			continue
		}

		issue := ledger.ReconciliationIssue{
			AccountID:         accountID,
			FromCalibrationID: c1.ID,
			ToCalibrationID:   c2.ID,
			PeriodStart:       c1.Date,
			PeriodEnd:         c2.Date,
			ExpectedDelta:     expected,
			ActualDelta:       actual,
			Diff:              diff,
			Status:            ledger.IssueOpen,
		}
		if err := e.store.UpsertIssue(ctx, &issue); err != nil {
			return e.fail(log, res, StageIssue, err)
		}
		res.Issues = append(res.Issues, issue)
		if issue.Status != ledger.IssueOpen {
			log.Debug("Drift already closed by the user",
				logging.F("issue_id", issue.ID),
				logging.F(logging.FieldStatus, issue.Status))
			continue
		}
		res.IssuesFound++
		log.Warn("Reconciliation drift detected",
			logging.F("from_calibration_id", c1.ID),
			logging.F("to_calibration_id", c2.ID),
			logging.F("diff", diff.String()))
	}

	res.Status = StatusChecked
	log.Info("Reconciliation checked",
		logging.F(logging.FieldCount, res.PairsChecked),
		logging.F("issues_found", res.IssuesFound))
	return res, nil
}

func (e *Engine) fail(log logging.Logger, res Result, stage string, err error) (Result, error) {
	err = ledger.WrapStore(stage, err)
	res.Status = StatusError
	res.Stage = stage
	res.Message = err.Error()
	log.WithError(err).Error("Reconciliation check failed", logging.F(logging.FieldStage, stage))
	return res, err
}

// CheckBatch checks every account in parallel. A failure is recorded on
// that account's Result and never stops the others.
func (e *Engine) CheckBatch(ctx context.Context, accountIDs []string, rng ledger.TimeRange) *BatchResult {
	start := time.Now()
	results := make([]Result, len(accountIDs))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, id := range accountIDs {
		i, id := i, id
		g.Go(func() error {
			results[i], _ = e.Check(ctx, id, rng)
			return nil
		})
	}
	_ = g.Wait()

	batch := &BatchResult{Results: results}
	for _, r := range results {
		switch r.Status {
		case StatusChecked:
			batch.Checked++
		case StatusInsufficient:
			batch.Insufficient++
		case StatusError:
			batch.Failed++
		}
		batch.IssuesFound += r.IssuesFound
	}

	e.log.Info("Reconciliation batch finished",
		logging.F(logging.FieldCount, len(accountIDs)),
		logging.F(logging.FieldFailed, batch.Failed),
		logging.F("issues_found", batch.IssuesFound),
		logging.F(logging.FieldDuration, time.Since(start).Milliseconds()))
	return batch
}
