package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAccountID    = errors.New("invalid account id")
	ErrInvalidAccountClass = errors.New("invalid account class")
	ErrInvalidAccountType  = errors.New("invalid account type")
	ErrClassTypeMismatch   = errors.New("account type does not match account class")
	ErrInvalidCurrency     = errors.New("invalid or unsupported currency code")
	ErrCurrencyRequired    = errors.New("currency is required for non-group real accounts")
	ErrCurrencyLocked      = errors.New("account currency cannot change after its first transaction")
	ErrAccountNotFound     = errors.New("account not found")
	ErrDuplicateAccount    = errors.New("account already exists")
	ErrParentCycle         = errors.New("account cannot be its own ancestor")
	ErrTreeCycle           = errors.New("account tree contains a cycle")
	ErrGroupAccount        = errors.New("group accounts cannot receive transfers")
	ErrInactiveAccount     = errors.New("account is inactive")
	ErrSameAccount         = errors.New("from and to accounts must differ")
	ErrNegativeAmount      = errors.New("amounts must be non-negative")
	ErrCrossCurrencyAmount = errors.New("cross-currency transfers need an explicit to_amount")
	ErrMissingDate         = errors.New("date is required")
	ErrInvalidNature       = errors.New("invalid transaction nature")
	ErrInvalidSource       = errors.New("invalid calibration source")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrCalibrationNotFound = errors.New("calibration not found")
	ErrIssueNotFound       = errors.New("reconciliation issue not found")
	ErrInvalidIssueStatus  = errors.New("invalid reconciliation issue status")
	ErrInvalidRate         = errors.New("exchange rate must be positive")
	ErrRateNotFound        = errors.New("exchange rate not found")
	ErrPlanNotFound        = errors.New("budget plan not found")
	ErrPlanNotActive       = errors.New("budget plan is not active")
	ErrInvalidPlanType     = errors.New("invalid budget plan type")
	ErrInvalidPeriodType   = errors.New("invalid budget period type")
	ErrInvalidFilterMode   = errors.New("invalid account filter mode")
	ErrMissingCategory     = errors.New("category plans need a target account")
	ErrNegativeLimit       = errors.New("budget limits must be non-negative")
	ErrSoftAboveHard       = errors.New("soft limit cannot exceed hard limit")
	ErrPeriodNotFound      = errors.New("budget period not found")
	ErrConfiguration       = errors.New("configuration error")
	ErrMissingRate         = errors.New("no exchange rate configured")
)

// StoreError reports a failed read or write against the backing store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// WrapStore tags err as a store failure. Nil stays nil.
func WrapStore(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// IsStoreError reports whether err came from the backing store.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

// ConfigError is fatal to a single operation: a missing rate, a plan that
// points at a deleted account and the like.
type ConfigError struct {
	Err    error
	Detail string
}

func (e *ConfigError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *ConfigError) Unwrap() []error { return []error{ErrConfiguration, e.Err} }

// Misconfigured builds a ConfigError matching both ErrConfiguration and err.
func Misconfigured(err error, format string, args ...any) error {
	return &ConfigError{Err: err, Detail: fmt.Sprintf(format, args...)}
}
