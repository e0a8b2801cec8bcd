package ledger

import (
	"fmt"
	"strings"
	"time"
)

// AccountClass separates settleable accounts from classification ones.
type AccountClass string

const (
	ClassReal    AccountClass = "real"
	ClassNominal AccountClass = "nominal"
	ClassUnknown AccountClass = "unknown"
)

// ParseAccountClass maps stored text onto a known class, falling back to
// ClassUnknown so drift between data and code is visible.
func ParseAccountClass(s string) AccountClass {
	switch AccountClass(strings.ToLower(strings.TrimSpace(s))) {
	case ClassReal:
		return ClassReal
	case ClassNominal:
		return ClassNominal
	default:
		return ClassUnknown
	}
}

type AccountType string

const (
	TypeAsset     AccountType = "asset"
	TypeLiability AccountType = "liability"
	TypeIncome    AccountType = "income"
	TypeExpense   AccountType = "expense"
	TypeEquity    AccountType = "equity"
	TypeUnknown   AccountType = "unknown"
)

var AllAccountTypes = []AccountType{
	TypeAsset,
	TypeLiability,
	TypeIncome,
	TypeExpense,
	TypeEquity,
}

func ParseAccountType(s string) AccountType {
	t := AccountType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllAccountTypes {
		if t == known {
			return known
		}
	}
	return TypeUnknown
}

// ClassForType derives the class an account type belongs to.
func ClassForType(t AccountType) AccountClass {
	switch t {
	case TypeAsset, TypeLiability:
		return ClassReal
	case TypeIncome, TypeExpense, TypeEquity:
		return ClassNominal
	default:
		return ClassUnknown
	}
}

// TypeLabel returns a human-readable label for an account type.
func TypeLabel(t AccountType) string {
	switch t {
	case TypeAsset:
		return "Assets"
	case TypeLiability:
		return "Liabilities"
	case TypeIncome:
		return "Income"
	case TypeExpense:
		return "Expenses"
	case TypeEquity:
		return "Equity"
	default:
		return string(t)
	}
}

type Account struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	ParentID  string       `json:"parent_id,omitempty"`
	Class     AccountClass `json:"class"`
	Type      AccountType  `json:"type"`
	IsGroup   bool         `json:"is_group"`
	Currency  string       `json:"currency,omitempty"`
	IsActive  bool         `json:"is_active"`
	CreatedAt time.Time    `json:"created_at"`
}

// IsLeafReal reports whether the account holds a balance in one currency.
func (a *Account) IsLeafReal() bool {
	return a.Class == ClassReal && !a.IsGroup
}

// Validate checks all account invariants that do not need the rest of the tree.
func (a *Account) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return ErrInvalidAccountID
	}
	if a.ParentID == a.ID {
		return fmt.Errorf("%w: %s", ErrParentCycle, a.ID)
	}
	if a.Class == ClassUnknown || a.Class == "" {
		return fmt.Errorf("%w: %q", ErrInvalidAccountClass, a.Class)
	}
	if a.Type == TypeUnknown || a.Type == "" {
		return fmt.Errorf("%w: %q", ErrInvalidAccountType, a.Type)
	}
	if ClassForType(a.Type) != a.Class {
		return fmt.Errorf("%w: %s accounts are %s, got %s", ErrClassTypeMismatch, a.Type, ClassForType(a.Type), a.Class)
	}

	a.Currency = strings.ToUpper(strings.TrimSpace(a.Currency))
	if a.IsLeafReal() && a.Currency == "" {
		return ErrCurrencyRequired
	}
	if a.Currency != "" && !ValidCurrency(a.Currency) {
		return fmt.Errorf("%w: %s", ErrInvalidCurrency, a.Currency)
	}

	if a.Name == "" {
		return fmt.Errorf("account name is required")
	}
	return nil
}
