package fx

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/simonvc/ledgerbook/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	Static
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingSource) GetRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.err != nil {
		return decimal.Zero, c.err
	}
	return c.Static.GetRate(ctx, from, to)
}

func TestConverter_SameCurrency(t *testing.T) {
	src := &countingSource{Static: Static{}}
	c := NewConverter(src)

	got, err := c.Convert(context.Background(), decimal.RequireFromString("12.34"), "eur", "EUR")
	require.NoError(t, err)
	assert.Equal(t, "12.34", got.String())
	assert.Zero(t, src.calls)
}

func TestConverter_DirectRateIsMemoized(t *testing.T) {
	src := &countingSource{Static: Static{Key("EUR", "USD"): decimal.RequireFromString("1.1")}}
	c := NewConverter(src)

	for i := 0; i < 3; i++ {
		got, err := c.Convert(context.Background(), decimal.NewFromInt(10), "EUR", "usd")
		require.NoError(t, err)
		assert.Equal(t, "11", got.String())
	}
	assert.Equal(t, 1, src.calls)
}

func TestConverter_InverseRate(t *testing.T) {
	src := &countingSource{Static: Static{Key("USD", "EUR"): decimal.RequireFromString("0.8")}}
	c := NewConverter(src)

	r, err := c.Rate(context.Background(), "EUR", "USD")
	require.NoError(t, err)
	assert.Equal(t, "1.25", r.String())
	assert.Equal(t, 2, src.calls)
}

func TestConverter_MissingRate(t *testing.T) {
	c := NewConverter(Static{})

	_, err := c.Convert(context.Background(), decimal.NewFromInt(1), "EUR", "GBP")
	assert.ErrorIs(t, err, ledger.ErrConfiguration)
	assert.ErrorIs(t, err, ledger.ErrMissingRate)
}

func TestConverter_NonPositiveRate(t *testing.T) {
	c := NewConverter(Static{Key("EUR", "GBP"): decimal.Zero})

	_, err := c.Rate(context.Background(), "EUR", "GBP")
	assert.ErrorIs(t, err, ledger.ErrConfiguration)
	assert.ErrorIs(t, err, ledger.ErrInvalidRate)
}

func TestConverter_StoreFailure(t *testing.T) {
	src := &countingSource{Static: Static{}, err: errors.New("database is locked")}
	c := NewConverter(src)

	_, err := c.Rate(context.Background(), "EUR", "GBP")
	require.Error(t, err)
	assert.True(t, ledger.IsStoreError(err))
	assert.NotErrorIs(t, err, ledger.ErrConfiguration)
}
