// Package budget schedules budget periods, aggregates period spending in
// the plan's currency and classifies each period against its limits.
package budget

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/simonvc/ledgerbook/internal/fx"
	"github.com/simonvc/ledgerbook/internal/ledger"
	"github.com/simonvc/ledgerbook/internal/logging"
	"golang.org/x/sync/errgroup"
)

// Store is the part of the ledger store the budget engine uses.
type Store interface {
	fx.RateSource

	AccountTree(ctx context.Context) ([]ledger.Account, error)
	// TransfersInto returns transfers whose to-account is in accountIDs and
	// whose date satisfies from <= date < until, with currencies resolved.
	TransfersInto(ctx context.Context, accountIDs []string, from, until time.Time) ([]ledger.Transaction, error)

	GetPlan(ctx context.Context, id string) (*ledger.BudgetPlan, error)
	ListPlans(ctx context.Context, status ledger.PlanStatus) ([]ledger.BudgetPlan, error)
	CreatePlan(ctx context.Context, plan *ledger.BudgetPlan, periods []ledger.BudgetPeriodRecord) error
	// SaveRound updates the plan, deletes the periods of dropRound when it
	// is positive, and inserts periods, atomically.
	SaveRound(ctx context.Context, plan *ledger.BudgetPlan, dropRound int, periods []ledger.BudgetPeriodRecord) error
	UpdatePlanStatus(ctx context.Context, id string, status ledger.PlanStatus) error

	// ActivePeriods returns the current-round periods covering today.
	ActivePeriods(ctx context.Context, today civil.Date) ([]ledger.BudgetPeriodRecord, error)
	UpdatePeriodResult(ctx context.Context, id string, actual decimal.Decimal, indicator ledger.Indicator) error
}

type Engine struct {
	store   Store
	log     logging.Logger
	loc     *time.Location
	count   int
	workers int
	now     func() time.Time
}

type Option func(*Engine)

// WithLocation sets the timezone that turns period dates into instants.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithPeriodCount overrides the number of periods per round.
func WithPeriodCount(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.count = n
		}
	}
}

func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithClock replaces time.Now, for restarts that need today's date.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func NewEngine(store Store, log logging.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		log:     log,
		loc:     time.UTC,
		count:   DefaultPeriodCount,
		workers: runtime.NumCPU(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ComputeSpend totals what was spent against plan between start and end,
// both inclusive, in the plan's limit currency.
func (e *Engine) ComputeSpend(ctx context.Context, plan *ledger.BudgetPlan, start, end civil.Date) (decimal.Decimal, error) {
	accounts, err := e.store.AccountTree(ctx)
	if err != nil {
		return decimal.Zero, ledger.WrapStore("account tree", err)
	}
	return e.spend(ctx, fx.NewConverter(e.store), ledger.NewTree(accounts), plan, start, end)
}

func (e *Engine) spend(ctx context.Context, conv *fx.Converter, tree *ledger.Tree, plan *ledger.BudgetPlan, start, end civil.Date) (decimal.Decimal, error) {
	targets, err := targetAccounts(tree, plan)
	if err != nil {
		return decimal.Zero, err
	}
	if len(targets) == 0 {
		return decimal.Zero, nil
	}

	from := start.In(e.loc)
	until := end.AddDays(1).In(e.loc)
	txns, err := e.store.TransfersInto(ctx, targets, from, until)
	if err != nil {
		return decimal.Zero, ledger.WrapStore("transfers into", err)
	}

	keep := sourceFilter(plan)
	total := decimal.Zero
	for i := range txns {
		t := &txns[i]
		if !keep(t.FromAccountID) {
			continue
		}
		// Moves between expense categories are adjustments, not new spend.
		if src, ok := tree.Get(t.FromAccountID); ok && src.Type == ledger.TypeExpense {
			continue
		}

		cur := spendCurrency(tree, t)
		if cur == "" {
			return decimal.Zero, ledger.Misconfigured(ledger.ErrInvalidCurrency, "no currency for transaction %s", t.ID)
		}
		amt, err := conv.Convert(ctx, t.InflowAmount(), cur, plan.LimitCurrency)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(amt)
	}
	return ledger.RoundToCurrency(total, plan.LimitCurrency), nil
}

// targetAccounts resolves the expense accounts a plan watches.
func targetAccounts(tree *ledger.Tree, plan *ledger.BudgetPlan) ([]string, error) {
	switch plan.PlanType {
	case ledger.PlanCategory:
		if _, ok := tree.Get(plan.CategoryAccountID); !ok {
			return nil, ledger.Misconfigured(ledger.ErrAccountNotFound, "plan %s targets %s", plan.ID, plan.CategoryAccountID)
		}
		return tree.Descendants(plan.CategoryAccountID)
	case ledger.PlanTotal:
		if len(plan.IncludedCategoryIDs) == 0 {
			return tree.OfType(ledger.TypeExpense), nil
		}
		for _, id := range plan.IncludedCategoryIDs {
			if _, ok := tree.Get(id); !ok {
				return nil, ledger.Misconfigured(ledger.ErrAccountNotFound, "plan %s includes %s", plan.ID, id)
			}
		}
		return tree.ExpandAll(plan.IncludedCategoryIDs)
	default:
		return nil, ledger.Misconfigured(ledger.ErrInvalidPlanType, "plan %s has type %q", plan.ID, plan.PlanType)
	}
}

func sourceFilter(plan *ledger.BudgetPlan) func(string) bool {
	set := make(map[string]bool, len(plan.FilterAccountIDs))
	for _, id := range plan.FilterAccountIDs {
		set[id] = true
	}
	switch plan.FilterMode {
	case ledger.FilterInclude:
		return func(id string) bool { return set[id] }
	case ledger.FilterExclude:
		return func(id string) bool { return !set[id] }
	default:
		return func(string) bool { return true }
	}
}

// spendCurrency is the currency the inflow amount is held in: the
// to-account's, or the from-account's when the category carries none.
func spendCurrency(tree *ledger.Tree, t *ledger.Transaction) string {
	if t.ToCurrency != "" {
		return t.ToCurrency
	}
	if a, ok := tree.Get(t.ToAccountID); ok && a.Currency != "" {
		return a.Currency
	}
	if t.FromCurrency != "" {
		return t.FromCurrency
	}
	if a, ok := tree.Get(t.FromAccountID); ok {
		return a.Currency
	}
	return ""
}

// PeriodOutcome reports the refresh of one period record.
type PeriodOutcome struct {
	PeriodID  string              `json:"period_id"`
	PlanID    string              `json:"plan_id"`
	Actual    decimal.NullDecimal `json:"actual_amount"`
	Indicator ledger.Indicator    `json:"indicator_status"`
	Stage     string              `json:"stage,omitempty"`
	Message   string              `json:"message,omitempty"`
}

// RefreshResult aggregates a refresh pass.
type RefreshResult struct {
	Today    civil.Date      `json:"today"`
	Outcomes []PeriodOutcome `json:"outcomes"`
	Updated  int             `json:"updated"`
	Failed   int             `json:"failed"`
}

// RefreshActivePeriods recomputes every current-round period covering
// today using each plan's live settings, and writes back the actual amount
// and indicator. Periods are processed in parallel; one failure does not
// affect the others. Re-running with an unchanged ledger is a no-op.
func (e *Engine) RefreshActivePeriods(ctx context.Context, today civil.Date) (*RefreshResult, error) {
	start := time.Now()
	records, err := e.store.ActivePeriods(ctx, today)
	if err != nil {
		return nil, ledger.WrapStore("active periods", err)
	}
	accounts, err := e.store.AccountTree(ctx)
	if err != nil {
		return nil, ledger.WrapStore("account tree", err)
	}
	tree := ledger.NewTree(accounts)
	conv := fx.NewConverter(e.store)

	plans := make(map[string]*ledger.BudgetPlan)
	planErrs := make(map[string]error)
	for _, r := range records {
		if _, seen := plans[r.PlanID]; seen {
			continue
		}
		if _, seen := planErrs[r.PlanID]; seen {
			continue
		}
		p, err := e.store.GetPlan(ctx, r.PlanID)
		if err != nil {
			planErrs[r.PlanID] = err
			continue
		}
		plans[r.PlanID] = p
	}

	res := &RefreshResult{Today: today, Outcomes: make([]PeriodOutcome, len(records))}
	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, r := range records {
		i, r := i, r
		g.Go(func() error {
			out := PeriodOutcome{PeriodID: r.ID, PlanID: r.PlanID}
			if err := planErrs[r.PlanID]; err != nil {
				out.Stage, out.Message = "plan", err.Error()
				res.Outcomes[i] = out
				return nil
			}
			actual, err := e.spend(ctx, conv, tree, plans[r.PlanID], r.PeriodStart, r.PeriodEnd)
			if err != nil {
				out.Stage, out.Message = "spend", err.Error()
				res.Outcomes[i] = out
				return nil
			}
			ind := Classify(actual, r.HardLimit, r.SoftLimit)
			if err := e.store.UpdatePeriodResult(ctx, r.ID, actual, ind); err != nil {
				out.Stage, out.Message = "write", ledger.WrapStore("update period", err).Error()
				res.Outcomes[i] = out
				return nil
			}
			out.Actual = decimal.NewNullDecimal(actual)
			out.Indicator = ind
			res.Outcomes[i] = out
			return nil
		})
	}
	_ = g.Wait()

	for _, out := range res.Outcomes {
		if out.Stage != "" {
			res.Failed++
			e.log.Warn("Budget period refresh failed",
				logging.F(logging.FieldPeriodID, out.PeriodID),
				logging.F(logging.FieldPlanID, out.PlanID),
				logging.F(logging.FieldStage, out.Stage),
				logging.F("message", out.Message))
			continue
		}
		res.Updated++
	}
	e.log.Info("Budget periods refreshed",
		logging.F("today", today.String()),
		logging.F(logging.FieldCount, res.Updated),
		logging.F(logging.FieldFailed, res.Failed),
		logging.F(logging.FieldDuration, time.Since(start).Milliseconds()))
	return res, nil
}

// buildRound generates the period records for the plan's current round,
// snapshotting its limits, and sets the plan's end date.
func (e *Engine) buildRound(plan *ledger.BudgetPlan) ([]ledger.BudgetPeriodRecord, error) {
	periods, err := GeneratePeriods(plan.StartDate, plan.Period, e.count)
	if err != nil {
		return nil, err
	}
	plan.EndDate = periods[len(periods)-1].End

	records := make([]ledger.BudgetPeriodRecord, len(periods))
	for i, p := range periods {
		records[i] = ledger.BudgetPeriodRecord{
			PlanID:      plan.ID,
			RoundNumber: plan.RoundNumber,
			PeriodIndex: p.Index,
			PeriodStart: p.Start,
			PeriodEnd:   p.End,
			HardLimit:   plan.HardLimit,
			SoftLimit:   plan.SoftLimit,
			Indicator:   ledger.IndicatorPending,
		}
	}
	return records, nil
}

// CreatePlan validates plan, starts its first round and stores it with
// its periods.
func (e *Engine) CreatePlan(ctx context.Context, plan *ledger.BudgetPlan) ([]ledger.BudgetPeriodRecord, error) {
	if plan.FilterMode == "" {
		plan.FilterMode = ledger.FilterAll
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	accounts, err := e.store.AccountTree(ctx)
	if err != nil {
		return nil, ledger.WrapStore("account tree", err)
	}
	if _, err := targetAccounts(ledger.NewTree(accounts), plan); err != nil {
		return nil, err
	}

	plan.RoundNumber = 1
	plan.Status = ledger.PlanActive
	records, err := e.buildRound(plan)
	if err != nil {
		return nil, err
	}
	if err := e.store.CreatePlan(ctx, plan, records); err != nil {
		return nil, ledger.WrapStore("create plan", err)
	}
	e.log.Info("Budget plan created",
		logging.F(logging.FieldPlanID, plan.ID),
		logging.F(logging.FieldRound, plan.RoundNumber))
	return records, nil
}

// RestartOptions changes a plan as it restarts. Nil fields keep the
// current value.
type RestartOptions struct {
	StartDate *civil.Date
	HardLimit *decimal.Decimal
	SoftLimit *decimal.NullDecimal
}

// Restart begins a new round for the plan and reactivates it. Records of
// earlier rounds are kept. Without a new start date the round starts where
// the plan started, unless that round would already be over, in which case
// it starts today.
func (e *Engine) Restart(ctx context.Context, planID string, opts RestartOptions) (*ledger.BudgetPlan, []ledger.BudgetPeriodRecord, error) {
	plan, err := e.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, nil, err
	}
	if opts.StartDate != nil {
		plan.StartDate = *opts.StartDate
	}
	if opts.HardLimit != nil {
		plan.HardLimit = *opts.HardLimit
	}
	if opts.SoftLimit != nil {
		plan.SoftLimit = *opts.SoftLimit
	}
	if err := plan.Validate(); err != nil {
		return nil, nil, err
	}
	if opts.StartDate == nil {
		end, err := PlanEndDate(plan.StartDate, plan.Period, e.count)
		if err != nil {
			return nil, nil, err
		}
		if today := e.Today(e.now()); end.Before(today) {
			plan.StartDate = today
		}
	}
	return e.newRound(ctx, plan, 0)
}

// ChangePeriodType switches the plan between weekly and monthly. The
// current round's periods are deleted before the new round is generated;
// this cannot be undone.
func (e *Engine) ChangePeriodType(ctx context.Context, planID string, pt ledger.PeriodType, start civil.Date) (*ledger.BudgetPlan, []ledger.BudgetPeriodRecord, error) {
	plan, err := e.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, nil, err
	}
	plan.Period = pt
	plan.StartDate = start
	if err := plan.Validate(); err != nil {
		return nil, nil, err
	}
	return e.newRound(ctx, plan, plan.RoundNumber)
}

func (e *Engine) newRound(ctx context.Context, plan *ledger.BudgetPlan, dropRound int) (*ledger.BudgetPlan, []ledger.BudgetPeriodRecord, error) {
	plan.RoundNumber++
	plan.Status = ledger.PlanActive
	records, err := e.buildRound(plan)
	if err != nil {
		return nil, nil, err
	}
	if err := e.store.SaveRound(ctx, plan, dropRound, records); err != nil {
		return nil, nil, ledger.WrapStore("save round", err)
	}
	e.log.Info("Budget plan round started",
		logging.F(logging.FieldPlanID, plan.ID),
		logging.F(logging.FieldRound, plan.RoundNumber),
		logging.F("dropped_round", dropRound))
	return plan, records, nil
}

// Pause stops an active plan; Restart reactivates it.
func (e *Engine) Pause(ctx context.Context, planID string) error {
	plan, err := e.store.GetPlan(ctx, planID)
	if err != nil {
		return err
	}
	if plan.Status != ledger.PlanActive {
		return fmt.Errorf("%w: %s is %s", ledger.ErrPlanNotActive, planID, plan.Status)
	}
	return e.store.UpdatePlanStatus(ctx, planID, ledger.PlanPaused)
}

// ExpirePlans marks active plans whose round ended before today as
// expired and returns how many changed.
func (e *Engine) ExpirePlans(ctx context.Context, today civil.Date) (int, error) {
	plans, err := e.store.ListPlans(ctx, ledger.PlanActive)
	if err != nil {
		return 0, ledger.WrapStore("list plans", err)
	}
	n := 0
	for _, p := range plans {
		if !p.EndDate.Before(today) {
			continue
		}
		if err := e.store.UpdatePlanStatus(ctx, p.ID, ledger.PlanExpired); err != nil {
			return n, ledger.WrapStore("expire plan", err)
		}
		n++
		e.log.Info("Budget plan expired", logging.F(logging.FieldPlanID, p.ID))
	}
	return n, nil
}

// Today is the calendar date of now in the engine's timezone.
func (e *Engine) Today(now time.Time) civil.Date {
	return civil.DateOf(now.In(e.loc))
}
