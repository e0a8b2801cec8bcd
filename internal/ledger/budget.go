package ledger

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

type PlanType string

const (
	PlanCategory PlanType = "category"
	PlanTotal    PlanType = "total"
	PlanUnknown  PlanType = "unknown"
)

func ParsePlanType(s string) PlanType {
	switch PlanType(strings.ToLower(strings.TrimSpace(s))) {
	case PlanCategory:
		return PlanCategory
	case PlanTotal:
		return PlanTotal
	default:
		return PlanUnknown
	}
}

type PeriodType string

const (
	PeriodWeekly  PeriodType = "weekly"
	PeriodMonthly PeriodType = "monthly"
	PeriodUnknown PeriodType = "unknown"
)

func ParsePeriodType(s string) PeriodType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "weekly", "week":
		return PeriodWeekly
	case "monthly", "month":
		return PeriodMonthly
	default:
		return PeriodUnknown
	}
}

// FilterMode restricts which source accounts count toward a plan.
type FilterMode string

const (
	FilterAll     FilterMode = "all"
	FilterInclude FilterMode = "include"
	FilterExclude FilterMode = "exclude"
	FilterUnknown FilterMode = "unknown"
)

func ParseFilterMode(s string) FilterMode {
	switch FilterMode(strings.ToLower(strings.TrimSpace(s))) {
	case FilterAll, "":
		return FilterAll
	case FilterInclude:
		return FilterInclude
	case FilterExclude:
		return FilterExclude
	default:
		return FilterUnknown
	}
}

// Indicator is the health classification of a budget period.
type Indicator string

const (
	IndicatorPending Indicator = "pending"
	IndicatorStar    Indicator = "star"
	IndicatorGreen   Indicator = "green"
	IndicatorRed     Indicator = "red"
	IndicatorUnknown Indicator = "unknown"
)

func ParseIndicator(s string) Indicator {
	switch Indicator(strings.ToLower(strings.TrimSpace(s))) {
	case IndicatorPending, "":
		return IndicatorPending
	case IndicatorStar:
		return IndicatorStar
	case IndicatorGreen:
		return IndicatorGreen
	case IndicatorRed:
		return IndicatorRed
	default:
		return IndicatorUnknown
	}
}

type PlanStatus string

const (
	PlanActive        PlanStatus = "active"
	PlanPaused        PlanStatus = "paused"
	PlanExpired       PlanStatus = "expired"
	PlanStatusUnknown PlanStatus = "unknown"
)

func ParsePlanStatus(s string) PlanStatus {
	switch PlanStatus(strings.ToLower(strings.TrimSpace(s))) {
	case PlanActive, "":
		return PlanActive
	case PlanPaused:
		return PlanPaused
	case PlanExpired:
		return PlanExpired
	default:
		return PlanStatusUnknown
	}
}

// BudgetPlan is a declared spending constraint. A valid SoftLimit means
// the soft limit is enabled.
type BudgetPlan struct {
	ID                  string              `json:"id"`
	Name                string              `json:"name"`
	PlanType            PlanType            `json:"plan_type"`
	CategoryAccountID   string              `json:"category_account_id,omitempty"`
	IncludedCategoryIDs []string            `json:"included_category_ids,omitempty"`
	Period              PeriodType          `json:"period"`
	HardLimit           decimal.Decimal     `json:"hard_limit"`
	SoftLimit           decimal.NullDecimal `json:"soft_limit"`
	LimitCurrency       string              `json:"limit_currency"`
	FilterMode          FilterMode          `json:"account_filter_mode"`
	FilterAccountIDs    []string            `json:"account_filter_ids,omitempty"`
	StartDate           civil.Date          `json:"start_date"`
	EndDate             civil.Date          `json:"end_date"`
	RoundNumber         int                 `json:"round_number"`
	Status              PlanStatus          `json:"status"`
	CreatedAt           time.Time           `json:"created_at,omitempty"`
	UpdatedAt           time.Time           `json:"updated_at,omitempty"`
}

func (p *BudgetPlan) Validate() error {
	switch p.PlanType {
	case PlanCategory:
		if p.CategoryAccountID == "" {
			return ErrMissingCategory
		}
	case PlanTotal:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPlanType, p.PlanType)
	}
	if p.Period != PeriodWeekly && p.Period != PeriodMonthly {
		return fmt.Errorf("%w: %q", ErrInvalidPeriodType, p.Period)
	}
	if p.FilterMode == FilterUnknown {
		return ErrInvalidFilterMode
	}
	if p.HardLimit.IsNegative() {
		return ErrNegativeLimit
	}
	if p.SoftLimit.Valid {
		if p.SoftLimit.Decimal.IsNegative() {
			return ErrNegativeLimit
		}
		if p.SoftLimit.Decimal.GreaterThan(p.HardLimit) {
			return ErrSoftAboveHard
		}
	}
	p.LimitCurrency = strings.ToUpper(strings.TrimSpace(p.LimitCurrency))
	if !ValidCurrency(p.LimitCurrency) {
		return fmt.Errorf("%w: %s", ErrInvalidCurrency, p.LimitCurrency)
	}
	if !p.StartDate.IsValid() {
		return fmt.Errorf("%w: start_date", ErrMissingDate)
	}
	return nil
}

// BudgetPeriodRecord is one period of a plan round. Limits are a snapshot
// taken when the round was generated.
type BudgetPeriodRecord struct {
	ID           string              `json:"id"`
	PlanID       string              `json:"plan_id"`
	RoundNumber  int                 `json:"round_number"`
	PeriodIndex  int                 `json:"period_index"`
	PeriodStart  civil.Date          `json:"period_start"`
	PeriodEnd    civil.Date          `json:"period_end"`
	HardLimit    decimal.Decimal     `json:"hard_limit"`
	SoftLimit    decimal.NullDecimal `json:"soft_limit"`
	ActualAmount decimal.NullDecimal `json:"actual_amount"`
	Indicator    Indicator           `json:"indicator_status"`
	UpdatedAt    time.Time           `json:"updated_at,omitempty"`
}

// Covers reports whether day falls inside the period, bounds inclusive.
func (r *BudgetPeriodRecord) Covers(day civil.Date) bool {
	return !day.Before(r.PeriodStart) && !day.After(r.PeriodEnd)
}
