package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Nature string

const (
	NatureRegular    Nature = "regular"
	NatureUnexpected Nature = "unexpected"
	NaturePeriodic   Nature = "periodic"
	NatureUnknown    Nature = "unknown"
)

func ParseNature(s string) Nature {
	switch Nature(strings.ToLower(strings.TrimSpace(s))) {
	case NatureRegular, "":
		return NatureRegular
	case NatureUnexpected:
		return NatureUnexpected
	case NaturePeriodic:
		return NaturePeriodic
	default:
		return NatureUnknown
	}
}

// Transaction is an immutable transfer between two accounts. Amount is in
// the from-account's currency; FromAmount/ToAmount, when set, take
// precedence for their own side.
type Transaction struct {
	ID            string              `json:"id"`
	FromAccountID string              `json:"from_account_id"`
	ToAccountID   string              `json:"to_account_id"`
	Amount        decimal.Decimal     `json:"amount"`
	FromAmount    decimal.NullDecimal `json:"from_amount"`
	ToAmount      decimal.NullDecimal `json:"to_amount"`
	Date          time.Time           `json:"date"`
	Nature        Nature              `json:"nature"`
	IsOpening     bool                `json:"is_opening"`
	Description   string              `json:"description,omitempty"`
	CreatedAt     time.Time           `json:"created_at,omitempty"`

	// Resolved from the account rows by the store, not persisted.
	FromCurrency string `json:"from_currency,omitempty"`
	ToCurrency   string `json:"to_currency,omitempty"`
}

// InflowAmount is the effect on the receiving account.
func (t *Transaction) InflowAmount() decimal.Decimal {
	if t.ToAmount.Valid {
		return t.ToAmount.Decimal
	}
	return t.Amount
}

// OutflowAmount is the effect on the sending account.
func (t *Transaction) OutflowAmount() decimal.Decimal {
	if t.FromAmount.Valid {
		return t.FromAmount.Decimal
	}
	return t.Amount
}

// Validate checks the invariants a transfer carries on its own.
func (t *Transaction) Validate() error {
	if t.FromAccountID == "" || t.ToAccountID == "" {
		return ErrInvalidAccountID
	}
	if t.FromAccountID == t.ToAccountID {
		return ErrSameAccount
	}
	if t.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	if t.FromAmount.Valid && t.FromAmount.Decimal.IsNegative() {
		return ErrNegativeAmount
	}
	if t.ToAmount.Valid && t.ToAmount.Decimal.IsNegative() {
		return ErrNegativeAmount
	}
	if t.Date.IsZero() {
		return ErrMissingDate
	}
	if t.Nature == NatureUnknown {
		return ErrInvalidNature
	}
	return nil
}

// SumInflows totals the receiving-side effect of txns.
func SumInflows(txns []Transaction) decimal.Decimal {
	total := decimal.Zero
	for i := range txns {
		total = total.Add(txns[i].InflowAmount())
	}
	return total
}

// SumOutflows totals the sending-side effect of txns.
func SumOutflows(txns []Transaction) decimal.Decimal {
	total := decimal.Zero
	for i := range txns {
		total = total.Add(txns[i].OutflowAmount())
	}
	return total
}

// TimeRange bounds a query on instants. A zero Start or End is unbounded.
type TimeRange struct {
	Start time.Time `json:"start,omitempty"`
	End   time.Time `json:"end,omitempty"`
}

// Contains reports whether t lies within the inclusive range.
func (r TimeRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}
