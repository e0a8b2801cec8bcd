package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simonvc/ledgerbook/internal/ledger"
)

const planColumns = `id, name, plan_type, category_account_id, included_category_ids, period_type,
	hard_limit, soft_limit, limit_currency, filter_mode, filter_account_ids,
	start_date, end_date, round_number, status, created_at, updated_at`

const periodColumns = `bp.id, bp.plan_id, bp.round_number, bp.period_index, bp.period_start, bp.period_end,
	bp.hard_limit, bp.soft_limit, bp.actual_amount, bp.indicator, bp.updated_at`

// CreatePlan stores a new plan together with the periods of its first round.
func (s *Store) CreatePlan(ctx context.Context, plan *ledger.BudgetPlan, periods []ledger.BudgetPeriodRecord) error {
	if plan.ID == "" {
		plan.ID = uuid.Must(uuid.NewV7()).String()
	}
	now := s.stamp()
	plan.CreatedAt = parseTime(now)
	plan.UpdatedAt = plan.CreatedAt

	included, err := encodeIDs(plan.IncludedCategoryIDs)
	if err != nil {
		return err
	}
	filter, err := encodeIDs(plan.FilterAccountIDs)
	if err != nil {
		return err
	}

	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO budget_plans (`+planColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		plan.ID, plan.Name, string(plan.PlanType), plan.CategoryAccountID, included, string(plan.Period),
		plan.HardLimit.String(), nullDecimal(plan.SoftLimit), plan.LimitCurrency, string(plan.FilterMode), filter,
		formatDate(plan.StartDate), formatDate(plan.EndDate), plan.RoundNumber, string(plan.Status), now, now,
	)
	if err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}
	if err := insertPeriods(ctx, tx, plan.ID, periods, now); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveRound persists a restarted plan. When dropRound is positive the
// periods of that round are deleted first.
func (s *Store) SaveRound(ctx context.Context, plan *ledger.BudgetPlan, dropRound int, periods []ledger.BudgetPeriodRecord) error {
	now := s.stamp()
	plan.UpdatedAt = parseTime(now)

	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE budget_plans
		SET period_type = ?, hard_limit = ?, soft_limit = ?, start_date = ?, end_date = ?,
			round_number = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		string(plan.Period), plan.HardLimit.String(), nullDecimal(plan.SoftLimit),
		formatDate(plan.StartDate), formatDate(plan.EndDate), plan.RoundNumber, string(plan.Status), now, plan.ID,
	)
	if err != nil {
		return fmt.Errorf("update plan: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ledger.ErrPlanNotFound, plan.ID)
	}

	if dropRound > 0 {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM budget_periods WHERE plan_id = ? AND round_number = ?`, plan.ID, dropRound,
		); err != nil {
			return fmt.Errorf("delete round %d: %w", dropRound, err)
		}
	}
	if err := insertPeriods(ctx, tx, plan.ID, periods, now); err != nil {
		return err
	}
	return tx.Commit()
}

func insertPeriods(ctx context.Context, tx *sql.Tx, planID string, periods []ledger.BudgetPeriodRecord, now string) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO budget_periods (id, plan_id, round_number, period_index, period_start, period_end,
			hard_limit, soft_limit, actual_amount, indicator, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare periods: %w", err)
	}
	defer stmt.Close()

	for i := range periods {
		p := &periods[i]
		if p.ID == "" {
			p.ID = uuid.Must(uuid.NewV7()).String()
		}
		p.PlanID = planID
		if p.Indicator == "" {
			p.Indicator = ledger.IndicatorPending
		}
		p.UpdatedAt = parseTime(now)
		if _, err := stmt.ExecContext(ctx,
			p.ID, p.PlanID, p.RoundNumber, p.PeriodIndex, formatDate(p.PeriodStart), formatDate(p.PeriodEnd),
			p.HardLimit.String(), nullDecimal(p.SoftLimit), nullDecimal(p.ActualAmount), string(p.Indicator), now,
		); err != nil {
			return fmt.Errorf("insert period %d: %w", p.PeriodIndex, err)
		}
	}
	return nil
}

func (s *Store) GetPlan(ctx context.Context, id string) (*ledger.BudgetPlan, error) {
	row := s.reader.QueryRowContext(ctx, `SELECT `+planColumns+` FROM budget_plans WHERE id = ?`, id)
	plan, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ledger.ErrPlanNotFound, id)
	}
	return plan, err
}

// ListPlans lists plans in the given status, or all plans when status is
// empty.
func (s *Store) ListPlans(ctx context.Context, status ledger.PlanStatus) ([]ledger.BudgetPlan, error) {
	query := `SELECT ` + planColumns + ` FROM budget_plans`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var plans []ledger.BudgetPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *p)
	}
	return plans, rows.Err()
}

func (s *Store) UpdatePlanStatus(ctx context.Context, id string, status ledger.PlanStatus) error {
	res, err := s.writer.ExecContext(ctx,
		`UPDATE budget_plans SET status = ?, updated_at = ? WHERE id = ?`, string(status), s.stamp(), id)
	if err != nil {
		return fmt.Errorf("update plan status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ledger.ErrPlanNotFound, id)
	}
	return nil
}

// ListPeriods returns a plan's period records ordered by round and index.
// round 0 lists every round.
func (s *Store) ListPeriods(ctx context.Context, planID string, round int) ([]ledger.BudgetPeriodRecord, error) {
	query := `SELECT ` + periodColumns + ` FROM budget_periods bp WHERE bp.plan_id = ?`
	args := []any{planID}
	if round > 0 {
		query += ` AND bp.round_number = ?`
		args = append(args, round)
	}
	query += ` ORDER BY bp.round_number, bp.period_index`
	return s.queryPeriods(ctx, query, args...)
}

// ActivePeriods returns the periods covering today that belong to the
// current round of an active plan.
func (s *Store) ActivePeriods(ctx context.Context, today civil.Date) ([]ledger.BudgetPeriodRecord, error) {
	day := formatDate(today)
	return s.queryPeriods(ctx,
		`SELECT `+periodColumns+` FROM budget_periods bp
		JOIN budget_plans p ON p.id = bp.plan_id AND p.round_number = bp.round_number
		WHERE p.status = 'active' AND bp.period_start <= ? AND bp.period_end >= ?
		ORDER BY bp.plan_id, bp.period_index`,
		day, day,
	)
}

func (s *Store) UpdatePeriodResult(ctx context.Context, id string, actual decimal.Decimal, indicator ledger.Indicator) error {
	res, err := s.writer.ExecContext(ctx,
		`UPDATE budget_periods SET actual_amount = ?, indicator = ?, updated_at = ? WHERE id = ?`,
		actual.String(), string(indicator), s.stamp(), id,
	)
	if err != nil {
		return fmt.Errorf("update period: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ledger.ErrPeriodNotFound, id)
	}
	return nil
}

func (s *Store) queryPeriods(ctx context.Context, query string, args ...any) ([]ledger.BudgetPeriodRecord, error) {
	rows, err := s.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query periods: %w", err)
	}
	defer rows.Close()

	var periods []ledger.BudgetPeriodRecord
	for rows.Next() {
		var p ledger.BudgetPeriodRecord
		var start, end, hard, indicator, updatedAt string
		var soft, actual sql.NullString
		if err := rows.Scan(&p.ID, &p.PlanID, &p.RoundNumber, &p.PeriodIndex, &start, &end,
			&hard, &soft, &actual, &indicator, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan period: %w", err)
		}
		if p.HardLimit, err = decimal.NewFromString(hard); err != nil {
			return nil, fmt.Errorf("period %s hard_limit: %w", p.ID, err)
		}
		if p.SoftLimit, err = parseNullDecimal(soft); err != nil {
			return nil, fmt.Errorf("period %s soft_limit: %w", p.ID, err)
		}
		if p.ActualAmount, err = parseNullDecimal(actual); err != nil {
			return nil, fmt.Errorf("period %s actual_amount: %w", p.ID, err)
		}
		p.PeriodStart = parseDate(start)
		p.PeriodEnd = parseDate(end)
		p.Indicator = ledger.ParseIndicator(indicator)
		p.UpdatedAt = parseTime(updatedAt)
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

func scanPlan(row scanner) (*ledger.BudgetPlan, error) {
	var p ledger.BudgetPlan
	var planType, included, period, hard, currency, mode, filter, start, end, status, createdAt, updatedAt string
	var soft sql.NullString
	err := row.Scan(&p.ID, &p.Name, &planType, &p.CategoryAccountID, &included, &period,
		&hard, &soft, &currency, &mode, &filter, &start, &end, &p.RoundNumber, &status, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan plan: %w", err)
	}
	if p.HardLimit, err = decimal.NewFromString(hard); err != nil {
		return nil, fmt.Errorf("plan %s hard_limit: %w", p.ID, err)
	}
	if p.SoftLimit, err = parseNullDecimal(soft); err != nil {
		return nil, fmt.Errorf("plan %s soft_limit: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(included), &p.IncludedCategoryIDs); err != nil {
		return nil, fmt.Errorf("plan %s included_category_ids: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(filter), &p.FilterAccountIDs); err != nil {
		return nil, fmt.Errorf("plan %s filter_account_ids: %w", p.ID, err)
	}
	p.PlanType = ledger.ParsePlanType(planType)
	p.Period = ledger.ParsePeriodType(period)
	p.LimitCurrency = currency
	p.FilterMode = ledger.ParseFilterMode(mode)
	p.StartDate = parseDate(start)
	p.EndDate = parseDate(end)
	p.Status = ledger.ParsePlanStatus(status)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

func encodeIDs(ids []string) (string, error) {
	if len(ids) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("encode ids: %w", err)
	}
	return string(b), nil
}
