package budget

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/simonvc/ledgerbook/internal/fx"
	"github.com/simonvc/ledgerbook/internal/ledger"
	"github.com/simonvc/ledgerbook/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	fx.Static

	mu        sync.Mutex
	accounts  []ledger.Account
	txns      []ledger.Transaction
	plans     map[string]*ledger.BudgetPlan
	periods   []ledger.BudgetPeriodRecord
	nextID    int
	writes    int
	failWrite map[string]bool
}

func newMemStore() *memStore {
	s := &memStore{
		Static:    fx.Static{fx.Key("USD", "EUR"): decimal.RequireFromString("0.9")},
		plans:     make(map[string]*ledger.BudgetPlan),
		failWrite: make(map[string]bool),
	}
	add := func(id, parent string, typ ledger.AccountType, group bool, cur string) {
		s.accounts = append(s.accounts, ledger.Account{
			ID: id, Name: id, ParentID: parent, Type: typ, Class: ledger.ClassForType(typ),
			IsGroup: group, Currency: cur, IsActive: true,
		})
	}
	add("bank", "", ledger.TypeAsset, false, "EUR")
	add("savings", "", ledger.TypeAsset, false, "EUR")
	add("card", "", ledger.TypeLiability, false, "USD")
	add("expenses", "", ledger.TypeExpense, true, "")
	add("food", "expenses", ledger.TypeExpense, true, "")
	add("groceries", "food", ledger.TypeExpense, false, "")
	add("dining", "food", ledger.TypeExpense, false, "")
	add("transport", "expenses", ledger.TypeExpense, false, "")
	add("salary", "", ledger.TypeIncome, false, "")
	return s
}

func (s *memStore) currency(id string) string {
	for _, a := range s.accounts {
		if a.ID == id {
			return a.Currency
		}
	}
	return ""
}

func (s *memStore) spend(from, to, amount string, at time.Time) {
	s.txns = append(s.txns, ledger.Transaction{
		ID:            fmt.Sprintf("t%d", len(s.txns)+1),
		FromAccountID: from,
		ToAccountID:   to,
		Amount:        decimal.RequireFromString(amount),
		Date:          at,
		FromCurrency:  s.currency(from),
		ToCurrency:    s.currency(to),
	})
}

func (s *memStore) AccountTree(context.Context) ([]ledger.Account, error) {
	return s.accounts, nil
}

func (s *memStore) TransfersInto(_ context.Context, ids []string, from, until time.Time) ([]ledger.Transaction, error) {
	set := make(map[string]bool)
	for _, id := range ids {
		set[id] = true
	}
	var out []ledger.Transaction
	for _, t := range s.txns {
		if set[t.ToAccountID] && !t.Date.Before(from) && t.Date.Before(until) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memStore) GetPlan(_ context.Context, id string) (*ledger.BudgetPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ledger.ErrPlanNotFound, id)
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) ListPlans(_ context.Context, status ledger.PlanStatus) ([]ledger.BudgetPlan, error) {
	var out []ledger.BudgetPlan
	for _, p := range s.plans {
		if status == "" || p.Status == status {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) insertPeriods(records []ledger.BudgetPeriodRecord) {
	for _, r := range records {
		s.nextID++
		r.ID = fmt.Sprintf("bp%d", s.nextID)
		s.periods = append(s.periods, r)
	}
}

func (s *memStore) CreatePlan(_ context.Context, plan *ledger.BudgetPlan, records []ledger.BudgetPeriodRecord) error {
	s.nextID++
	plan.ID = fmt.Sprintf("plan%d", s.nextID)
	for i := range records {
		records[i].PlanID = plan.ID
	}
	cp := *plan
	s.plans[plan.ID] = &cp
	s.insertPeriods(records)
	return nil
}

func (s *memStore) SaveRound(_ context.Context, plan *ledger.BudgetPlan, dropRound int, records []ledger.BudgetPeriodRecord) error {
	cp := *plan
	s.plans[plan.ID] = &cp
	if dropRound > 0 {
		kept := s.periods[:0]
		for _, r := range s.periods {
			if r.PlanID == plan.ID && r.RoundNumber == dropRound {
				continue
			}
			kept = append(kept, r)
		}
		s.periods = kept
	}
	s.insertPeriods(records)
	return nil
}

func (s *memStore) UpdatePlanStatus(_ context.Context, id string, status ledger.PlanStatus) error {
	p, ok := s.plans[id]
	if !ok {
		return ledger.ErrPlanNotFound
	}
	p.Status = status
	return nil
}

func (s *memStore) ActivePeriods(_ context.Context, today civil.Date) ([]ledger.BudgetPeriodRecord, error) {
	var out []ledger.BudgetPeriodRecord
	for _, r := range s.periods {
		r := r
		p := s.plans[r.PlanID]
		if p.Status == ledger.PlanActive && r.RoundNumber == p.RoundNumber && r.Covers(today) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) UpdatePeriodResult(_ context.Context, id string, actual decimal.Decimal, ind ledger.Indicator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite[id] {
		return errors.New("database is locked")
	}
	s.writes++
	for i := range s.periods {
		if s.periods[i].ID == id {
			s.periods[i].ActualAmount = decimal.NewNullDecimal(actual)
			s.periods[i].Indicator = ind
			return nil
		}
	}
	return ledger.ErrPeriodNotFound
}

func (s *memStore) roundPeriods(planID string, round int) []ledger.BudgetPeriodRecord {
	var out []ledger.BudgetPeriodRecord
	for _, r := range s.periods {
		if r.PlanID == planID && r.RoundNumber == round {
			out = append(out, r)
		}
	}
	return out
}

func jan(d, h int) time.Time {
	return time.Date(2025, 1, d, h, 0, 0, 0, time.UTC)
}

// seedJanuary records:
//
//	bank -> groceries   40 EUR
//	card -> dining      20 USD (18 EUR)
//	bank -> transport   30 EUR
//	groceries -> dining  5 (recategorisation, never spend)
//	salary -> bank    2000 (not into an expense)
//	bank -> groceries   10 EUR, last hour of Jan 31
//	savings -> groceries 100 EUR on Feb 1
func seedJanuary(s *memStore) {
	s.spend("bank", "groceries", "40", jan(5, 10))
	s.spend("card", "dining", "20", jan(10, 19))
	s.spend("bank", "transport", "30", jan(12, 8))
	s.spend("groceries", "dining", "5", jan(12, 9))
	s.spend("salary", "bank", "2000", jan(25, 9))
	s.spend("bank", "groceries", "10", jan(31, 23))
	s.spend("savings", "groceries", "100", time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
}

func foodPlan() *ledger.BudgetPlan {
	return &ledger.BudgetPlan{
		Name:              "Food",
		PlanType:          ledger.PlanCategory,
		CategoryAccountID: "food",
		Period:            ledger.PeriodMonthly,
		HardLimit:         decimal.NewFromInt(60),
		SoftLimit:         decimal.NewNullDecimal(decimal.NewFromInt(50)),
		LimitCurrency:     "EUR",
		StartDate:         date("2025-01-01"),
	}
}

func TestComputeSpend(t *testing.T) {
	st := newMemStore()
	seedJanuary(st)
	e := NewEngine(st, logging.NewNop())
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*ledger.BudgetPlan)
		want   string
	}{
		{"category subtree", func(p *ledger.BudgetPlan) {}, "68"},
		{"leaf category", func(p *ledger.BudgetPlan) { p.CategoryAccountID = "groceries" }, "50"},
		{"total of all expenses", func(p *ledger.BudgetPlan) { p.PlanType = ledger.PlanTotal }, "98"},
		{"total of chosen categories", func(p *ledger.BudgetPlan) {
			p.PlanType = ledger.PlanTotal
			p.IncludedCategoryIDs = []string{"transport", "dining"}
		}, "48"},
		{"include filter", func(p *ledger.BudgetPlan) {
			p.FilterMode = ledger.FilterInclude
			p.FilterAccountIDs = []string{"card"}
		}, "18"},
		{"exclude filter", func(p *ledger.BudgetPlan) {
			p.FilterMode = ledger.FilterExclude
			p.FilterAccountIDs = []string{"card"}
		}, "50"},
		{"usd limit", func(p *ledger.BudgetPlan) { p.LimitCurrency = "USD" }, "75.56"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			plan := foodPlan()
			tt.mutate(plan)
			got, err := e.ComputeSpend(ctx, plan, date("2025-01-01"), date("2025-01-31"))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestComputeSpend_Timezone(t *testing.T) {
	st := newMemStore()
	seedJanuary(st)
	e := NewEngine(st, logging.NewNop(), WithLocation(time.FixedZone("CET", 3600)))

	// 23:00 UTC on Jan 31 is already Feb 1 at UTC+1, and midnight UTC on
	// Feb 1 is 01:00 there.
	got, err := e.ComputeSpend(context.Background(), foodPlan(), date("2025-02-01"), date("2025-02-28"))
	require.NoError(t, err)
	assert.Equal(t, "110", got.String())
}

func TestComputeSpend_Misconfigured(t *testing.T) {
	st := newMemStore()
	seedJanuary(st)
	e := NewEngine(st, logging.NewNop())
	ctx := context.Background()

	missing := foodPlan()
	missing.CategoryAccountID = "pets"
	_, err := e.ComputeSpend(ctx, missing, date("2025-01-01"), date("2025-01-31"))
	assert.ErrorIs(t, err, ledger.ErrConfiguration)
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)

	gbp := foodPlan()
	gbp.LimitCurrency = "GBP"
	_, err = e.ComputeSpend(ctx, gbp, date("2025-01-01"), date("2025-01-31"))
	assert.ErrorIs(t, err, ledger.ErrConfiguration)
	assert.ErrorIs(t, err, ledger.ErrMissingRate)
}

func TestCreatePlan(t *testing.T) {
	st := newMemStore()
	e := NewEngine(st, logging.NewNop())

	plan := foodPlan()
	records, err := e.CreatePlan(context.Background(), plan)
	require.NoError(t, err)

	assert.NotEmpty(t, plan.ID)
	assert.Equal(t, 1, plan.RoundNumber)
	assert.Equal(t, ledger.PlanActive, plan.Status)
	assert.Equal(t, ledger.FilterAll, plan.FilterMode)
	assert.Equal(t, date("2025-12-31"), plan.EndDate)
	require.Len(t, records, DefaultPeriodCount)
	for _, r := range records {
		assert.Equal(t, ledger.IndicatorPending, r.Indicator)
		assert.Equal(t, "60", r.HardLimit.String())
		assert.Equal(t, "50", r.SoftLimit.Decimal.String())
	}

	bad := foodPlan()
	bad.CategoryAccountID = "pets"
	_, err = e.CreatePlan(context.Background(), bad)
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)

	invalid := foodPlan()
	invalid.SoftLimit = decimal.NewNullDecimal(decimal.NewFromInt(70))
	_, err = e.CreatePlan(context.Background(), invalid)
	assert.ErrorIs(t, err, ledger.ErrSoftAboveHard)
}

func TestRefreshActivePeriods(t *testing.T) {
	st := newMemStore()
	seedJanuary(st)
	log := logging.NewMockLogger()
	e := NewEngine(st, log, WithWorkers(2))
	ctx := context.Background()

	food := foodPlan()
	_, err := e.CreatePlan(ctx, food)
	require.NoError(t, err)

	transport := foodPlan()
	transport.Name = "Transport"
	transport.CategoryAccountID = "transport"
	_, err = e.CreatePlan(ctx, transport)
	require.NoError(t, err)

	res, err := e.RefreshActivePeriods(ctx, date("2025-01-20"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Updated)
	assert.Zero(t, res.Failed)

	byPlan := make(map[string]PeriodOutcome)
	for _, o := range res.Outcomes {
		byPlan[o.PlanID] = o
	}
	assert.Equal(t, "68", byPlan[food.ID].Actual.Decimal.String())
	assert.Equal(t, ledger.IndicatorRed, byPlan[food.ID].Indicator)
	assert.Equal(t, "30", byPlan[transport.ID].Actual.Decimal.String())
	assert.Equal(t, ledger.IndicatorStar, byPlan[transport.ID].Indicator)

	stored := st.roundPeriods(food.ID, 1)
	assert.Equal(t, ledger.IndicatorRed, stored[0].Indicator)
	assert.Equal(t, ledger.IndicatorPending, stored[1].Indicator)

	again, err := e.RefreshActivePeriods(ctx, date("2025-01-20"))
	require.NoError(t, err)
	assert.ElementsMatch(t, res.Outcomes, again.Outcomes)
	assert.Equal(t, stored, st.roundPeriods(food.ID, 1))
	assert.True(t, log.HasEntry("INFO", "Budget periods refreshed"))
}

func TestRefreshActivePeriods_FailuresAreIsolated(t *testing.T) {
	st := newMemStore()
	seedJanuary(st)
	log := logging.NewMockLogger()
	e := NewEngine(st, log)
	ctx := context.Background()

	food := foodPlan()
	_, err := e.CreatePlan(ctx, food)
	require.NoError(t, err)

	gbp := foodPlan()
	gbp.Name = "Food in pounds"
	gbp.LimitCurrency = "GBP"
	_, err = e.CreatePlan(ctx, gbp)
	require.NoError(t, err)

	transport := foodPlan()
	transport.CategoryAccountID = "transport"
	_, err = e.CreatePlan(ctx, transport)
	require.NoError(t, err)
	st.failWrite[st.roundPeriods(transport.ID, 1)[0].ID] = true

	res, err := e.RefreshActivePeriods(ctx, date("2025-01-20"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 2, res.Failed)

	stages := make(map[string]string)
	for _, o := range res.Outcomes {
		stages[o.PlanID] = o.Stage
	}
	assert.Equal(t, "", stages[food.ID])
	assert.Equal(t, "spend", stages[gbp.ID])
	assert.Equal(t, "write", stages[transport.ID])
	assert.Equal(t, ledger.IndicatorPending, st.roundPeriods(gbp.ID, 1)[0].Indicator)
	assert.True(t, log.HasEntry("WARN", "Budget period refresh failed"))
}

func TestRefreshActivePeriods_UsesLivePlanSettings(t *testing.T) {
	st := newMemStore()
	seedJanuary(st)
	e := NewEngine(st, logging.NewNop())
	ctx := context.Background()

	plan := foodPlan()
	_, err := e.CreatePlan(ctx, plan)
	require.NoError(t, err)

	st.plans[plan.ID].FilterMode = ledger.FilterInclude
	st.plans[plan.ID].FilterAccountIDs = []string{"card"}

	res, err := e.RefreshActivePeriods(ctx, date("2025-01-02"))
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, "18", res.Outcomes[0].Actual.Decimal.String())
	// The stored limits are a snapshot of round one.
	assert.Equal(t, ledger.IndicatorStar, res.Outcomes[0].Indicator)
}

func TestRestart(t *testing.T) {
	st := newMemStore()
	e := NewEngine(st, logging.NewNop(), WithPeriodCount(3))
	ctx := context.Background()

	plan := foodPlan()
	_, err := e.CreatePlan(ctx, plan)
	require.NoError(t, err)
	require.NoError(t, e.Pause(ctx, plan.ID))

	start := date("2025-06-01")
	hard := decimal.NewFromInt(80)
	restarted, records, err := e.Restart(ctx, plan.ID, RestartOptions{StartDate: &start, HardLimit: &hard})
	require.NoError(t, err)

	assert.Equal(t, 2, restarted.RoundNumber)
	assert.Equal(t, ledger.PlanActive, restarted.Status)
	assert.Equal(t, date("2025-08-31"), restarted.EndDate)
	require.Len(t, records, 3)
	assert.Equal(t, "80", records[0].HardLimit.String())
	assert.Len(t, st.roundPeriods(plan.ID, 1), 3, "earlier rounds are kept")
	assert.Len(t, st.roundPeriods(plan.ID, 2), 3)

	soft := decimal.NewNullDecimal(decimal.NewFromInt(90))
	_, _, err = e.Restart(ctx, plan.ID, RestartOptions{SoftLimit: &soft})
	assert.ErrorIs(t, err, ledger.ErrSoftAboveHard)

	_, _, err = e.Restart(ctx, "nope", RestartOptions{})
	assert.ErrorIs(t, err, ledger.ErrPlanNotFound)
}

func TestRestart_ExpiredPlanStartsToday(t *testing.T) {
	st := newMemStore()
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	e := NewEngine(st, logging.NewNop(), WithPeriodCount(3), WithClock(func() time.Time { return now }))
	ctx := context.Background()
	today := e.Today(now)

	plan := foodPlan()
	_, err := e.CreatePlan(ctx, plan)
	require.NoError(t, err)

	n, err := e.ExpirePlans(ctx, today)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	restarted, records, err := e.Restart(ctx, plan.ID, RestartOptions{})
	require.NoError(t, err)
	assert.Equal(t, ledger.PlanActive, restarted.Status)
	assert.Equal(t, today, restarted.StartDate)
	assert.Equal(t, date("2027-01-18"), restarted.EndDate)
	require.Len(t, records, 3)
	assert.Equal(t, today, records[0].PeriodStart)

	n, err = e.ExpirePlans(ctx, today)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, ledger.PlanActive, st.plans[plan.ID].Status)

	active, err := st.ActivePeriods(ctx, today)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, 2, active[0].RoundNumber)
}

func TestRestart_PausedPlanKeepsStart(t *testing.T) {
	st := newMemStore()
	now := time.Date(2025, 2, 10, 8, 0, 0, 0, time.UTC)
	e := NewEngine(st, logging.NewNop(), WithPeriodCount(3), WithClock(func() time.Time { return now }))
	ctx := context.Background()

	plan := foodPlan()
	_, err := e.CreatePlan(ctx, plan)
	require.NoError(t, err)
	require.NoError(t, e.Pause(ctx, plan.ID))

	restarted, _, err := e.Restart(ctx, plan.ID, RestartOptions{})
	require.NoError(t, err)
	assert.Equal(t, date("2025-01-01"), restarted.StartDate, "the round still covers today")
	assert.Equal(t, date("2025-03-31"), restarted.EndDate)
	assert.Equal(t, ledger.PlanActive, restarted.Status)
}

func TestChangePeriodType(t *testing.T) {
	st := newMemStore()
	e := NewEngine(st, logging.NewNop(), WithPeriodCount(4))
	ctx := context.Background()

	plan := foodPlan()
	_, err := e.CreatePlan(ctx, plan)
	require.NoError(t, err)

	changed, records, err := e.ChangePeriodType(ctx, plan.ID, ledger.PeriodWeekly, date("2025-03-03"))
	require.NoError(t, err)
	assert.Equal(t, ledger.PeriodWeekly, changed.Period)
	assert.Equal(t, 2, changed.RoundNumber)
	assert.Equal(t, date("2025-03-30"), changed.EndDate)
	require.Len(t, records, 4)
	assert.Equal(t, date("2025-03-09"), records[0].PeriodEnd)
	assert.Empty(t, st.roundPeriods(plan.ID, 1), "the replaced round is deleted")

	_, _, err = e.ChangePeriodType(ctx, plan.ID, ledger.PeriodUnknown, date("2025-03-03"))
	assert.ErrorIs(t, err, ledger.ErrInvalidPeriodType)
}

func TestPause(t *testing.T) {
	st := newMemStore()
	e := NewEngine(st, logging.NewNop())
	ctx := context.Background()

	plan := foodPlan()
	_, err := e.CreatePlan(ctx, plan)
	require.NoError(t, err)

	require.NoError(t, e.Pause(ctx, plan.ID))
	assert.Equal(t, ledger.PlanPaused, st.plans[plan.ID].Status)

	err = e.Pause(ctx, plan.ID)
	assert.ErrorIs(t, err, ledger.ErrPlanNotActive)

	res, err := e.RefreshActivePeriods(ctx, date("2025-01-10"))
	require.NoError(t, err)
	assert.Empty(t, res.Outcomes)
}

func TestExpirePlans(t *testing.T) {
	st := newMemStore()
	e := NewEngine(st, logging.NewNop(), WithPeriodCount(1))
	ctx := context.Background()

	plan := foodPlan()
	_, err := e.CreatePlan(ctx, plan)
	require.NoError(t, err)

	n, err := e.ExpirePlans(ctx, date("2025-01-31"))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = e.ExpirePlans(ctx, date("2025-02-01"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, ledger.PlanExpired, st.plans[plan.ID].Status)

	n, err = e.ExpirePlans(ctx, date("2025-03-01"))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestToday(t *testing.T) {
	e := NewEngine(newMemStore(), logging.NewNop(), WithLocation(time.FixedZone("JST", 9*3600)))

	assert.Equal(t, date("2025-02-01"), e.Today(time.Date(2025, 1, 31, 20, 0, 0, 0, time.UTC)))
}
