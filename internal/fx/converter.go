// Package fx converts amounts between currencies using configured rates.
package fx

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/simonvc/ledgerbook/internal/ledger"
)

// inversePrecision is the number of decimal places kept when a rate is
// derived from its inverse.
const inversePrecision = 16

// RateSource looks up a configured rate. It returns an error wrapping
// ledger.ErrRateNotFound when no rate is configured for the pair.
type RateSource interface {
	GetRate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

type pair struct{ from, to string }

// Converter memoizes rate lookups for the lifetime of one instance. Create
// one per aggregation pass; it is safe for concurrent use.
type Converter struct {
	src  RateSource
	mu   sync.Mutex
	memo map[pair]decimal.Decimal
}

func NewConverter(src RateSource) *Converter {
	return &Converter{src: src, memo: make(map[pair]decimal.Decimal)}
}

// Rate returns m such that amount(to) = amount(from) * m. A missing rate
// with no derivable inverse is a configuration error.
func (c *Converter) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	key := pair{from, to}
	c.mu.Lock()
	r, ok := c.memo[key]
	c.mu.Unlock()
	if ok {
		return r, nil
	}

	r, err := c.lookup(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}

	c.mu.Lock()
	c.memo[key] = r
	c.mu.Unlock()
	return r, nil
}

func (c *Converter) lookup(ctx context.Context, from, to string) (decimal.Decimal, error) {
	r, err := c.src.GetRate(ctx, from, to)
	if err == nil {
		return checkRate(r, from, to)
	}
	if !errors.Is(err, ledger.ErrRateNotFound) {
		return decimal.Zero, ledger.WrapStore("get rate", err)
	}

	inv, err := c.src.GetRate(ctx, to, from)
	if errors.Is(err, ledger.ErrRateNotFound) {
		return decimal.Zero, ledger.Misconfigured(ledger.ErrMissingRate, "%s->%s", from, to)
	}
	if err != nil {
		return decimal.Zero, ledger.WrapStore("get rate", err)
	}
	if _, err := checkRate(inv, to, from); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromInt(1).DivRound(inv, inversePrecision), nil
}

func checkRate(r decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if !r.IsPositive() {
		return decimal.Zero, ledger.Misconfigured(ledger.ErrInvalidRate, "%s->%s is %s", from, to, r)
	}
	return r, nil
}

// Convert expresses amount, held in from, in currency to.
func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	r, err := c.Rate(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(r), nil
}

// Static is a fixed in-memory RateSource, handy for tests and for callers
// that already hold a rate table.
type Static map[string]decimal.Decimal

// Key builds the map key for a from->to rate.
func Key(from, to string) string {
	return strings.ToUpper(from) + "/" + strings.ToUpper(to)
}

func (s Static) GetRate(_ context.Context, from, to string) (decimal.Decimal, error) {
	r, ok := s[Key(from, to)]
	if !ok {
		return decimal.Zero, ledger.ErrRateNotFound
	}
	return r, nil
}
