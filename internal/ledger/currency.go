package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Exponent returns the number of minor-unit digits for a currency
// (2 for USD, 0 for JPY). Unknown codes default to 2.
func Exponent(code string) int {
	cur := money.GetCurrency(strings.ToUpper(code))
	if cur == nil {
		return 2
	}
	return cur.Fraction
}

func ValidCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	return money.GetCurrency(code) != nil
}

// RoundToCurrency rounds an amount to the currency's minor unit.
func RoundToCurrency(amount decimal.Decimal, code string) decimal.Decimal {
	return amount.Round(int32(Exponent(code)))
}

// ToMinorUnits converts a decimal like 10.50 to 1050 for USD. Digits beyond
// the minor unit are rounded.
func ToMinorUnits(amount decimal.Decimal, code string) int64 {
	return RoundToCurrency(amount, code).Shift(int32(Exponent(code))).IntPart()
}

// FormatAmount renders an amount with the currency's fixed number of digits.
// E.g. 10.5 USD -> "10.50".
func FormatAmount(amount decimal.Decimal, code string) string {
	return amount.StringFixed(int32(Exponent(code)))
}

// DisplayAmount renders an amount with the currency symbol, e.g. "$1,234.50".
func DisplayAmount(amount decimal.Decimal, code string) string {
	code = strings.ToUpper(code)
	if !ValidCurrency(code) {
		return fmt.Sprintf("%s %s", FormatAmount(amount, code), code)
	}
	return money.New(ToMinorUnits(amount, code), code).Display()
}

// ParseAmount parses a decimal amount such as "1234.56".
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "+"))
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

// ExchangeRate converts one unit of From into Rate units of To.
type ExchangeRate struct {
	From      string          `json:"from"`
	To        string          `json:"to"`
	Rate      decimal.Decimal `json:"rate"`
	UpdatedAt time.Time       `json:"updated_at,omitempty"`
}

func (r *ExchangeRate) Validate() error {
	r.From = strings.ToUpper(strings.TrimSpace(r.From))
	r.To = strings.ToUpper(strings.TrimSpace(r.To))
	if !ValidCurrency(r.From) {
		return fmt.Errorf("%w: %s", ErrInvalidCurrency, r.From)
	}
	if !ValidCurrency(r.To) {
		return fmt.Errorf("%w: %s", ErrInvalidCurrency, r.To)
	}
	if !r.Rate.IsPositive() {
		return ErrInvalidRate
	}
	return nil
}
