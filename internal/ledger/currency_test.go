package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponentAndRounding(t *testing.T) {
	assert.Equal(t, 2, Exponent("usd"))
	assert.Equal(t, 0, Exponent("JPY"))
	assert.Equal(t, 2, Exponent("???"))

	assert.Equal(t, "10.57", RoundToCurrency(decimal.RequireFromString("10.5678"), "EUR").String())
	assert.Equal(t, "1235", RoundToCurrency(decimal.RequireFromString("1234.5"), "JPY").String())
	assert.Equal(t, int64(1050), ToMinorUnits(decimal.RequireFromString("10.5"), "USD"))
	assert.Equal(t, "10.50", FormatAmount(decimal.RequireFromString("10.5"), "USD"))
}

func TestValidCurrency(t *testing.T) {
	assert.True(t, ValidCurrency("EUR"))
	assert.False(t, ValidCurrency("EU"))
	assert.False(t, ValidCurrency("ZZZ"))
}

func TestParseAmount(t *testing.T) {
	d, err := ParseAmount(" +12.30 ")
	require.NoError(t, err)
	assert.Equal(t, "12.3", d.String())

	_, err = ParseAmount("twelve")
	assert.Error(t, err)
}

func TestExchangeRate_Validate(t *testing.T) {
	r := ExchangeRate{From: "eur", To: "usd", Rate: decimal.RequireFromString("1.08")}
	require.NoError(t, r.Validate())
	assert.Equal(t, "EUR", r.From)
	assert.Equal(t, "USD", r.To)

	zero := ExchangeRate{From: "EUR", To: "USD"}
	assert.ErrorIs(t, zero.Validate(), ErrInvalidRate)

	bad := ExchangeRate{From: "EUR", To: "QQQ", Rate: decimal.NewFromInt(1)}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidCurrency)
}

func TestErrorWrapping(t *testing.T) {
	assert.Nil(t, WrapStore("insert", nil))

	err := WrapStore("insert", errors.New("disk full"))
	assert.True(t, IsStoreError(err))
	assert.Same(t, err, WrapStore("outer", err))

	cfgErr := Misconfigured(ErrMissingRate, "EUR->USD")
	assert.ErrorIs(t, cfgErr, ErrConfiguration)
	assert.ErrorIs(t, cfgErr, ErrMissingRate)
	assert.Contains(t, cfgErr.Error(), "EUR->USD")
	assert.False(t, IsStoreError(cfgErr))
}
