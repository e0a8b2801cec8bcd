package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTransaction_Amounts(t *testing.T) {
	plain := Transaction{Amount: decimal.RequireFromString("50")}
	assert.True(t, plain.InflowAmount().Equal(decimal.RequireFromString("50")))
	assert.True(t, plain.OutflowAmount().Equal(decimal.RequireFromString("50")))

	fx := Transaction{
		Amount:     decimal.RequireFromString("100"),
		FromAmount: decimal.NewNullDecimal(decimal.RequireFromString("101.5")),
		ToAmount:   decimal.NewNullDecimal(decimal.RequireFromString("92.30")),
	}
	assert.True(t, fx.InflowAmount().Equal(decimal.RequireFromString("92.3")))
	assert.True(t, fx.OutflowAmount().Equal(decimal.RequireFromString("101.5")))

	txns := []Transaction{plain, fx}
	assert.Equal(t, "142.3", SumInflows(txns).String())
	assert.Equal(t, "151.5", SumOutflows(txns).String())
}

func TestTransaction_Validate(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	base := func() Transaction {
		return Transaction{FromAccountID: "bank", ToAccountID: "food", Amount: decimal.NewFromInt(10), Date: now, Nature: NatureRegular}
	}

	valid := base()
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name    string
		mutate  func(*Transaction)
		wantErr error
	}{
		{"missing from", func(tx *Transaction) { tx.FromAccountID = "" }, ErrInvalidAccountID},
		{"same account", func(tx *Transaction) { tx.ToAccountID = "bank" }, ErrSameAccount},
		{"negative amount", func(tx *Transaction) { tx.Amount = decimal.NewFromInt(-1) }, ErrNegativeAmount},
		{"negative to amount", func(tx *Transaction) { tx.ToAmount = decimal.NewNullDecimal(decimal.NewFromInt(-1)) }, ErrNegativeAmount},
		{"missing date", func(tx *Transaction) { tx.Date = time.Time{} }, ErrMissingDate},
		{"bad nature", func(tx *Transaction) { tx.Nature = ParseNature("weird") }, ErrInvalidNature},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			tx := base()
			tt.mutate(&tx)
			assert.ErrorIs(t, tx.Validate(), tt.wantErr)
		})
	}
}

func TestTimeRange_Contains(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, TimeRange{}.Contains(start))
	assert.True(t, TimeRange{Start: start, End: end}.Contains(start))
	assert.True(t, TimeRange{Start: start, End: end}.Contains(end))
	assert.False(t, TimeRange{Start: start}.Contains(start.Add(-time.Nanosecond)))
	assert.False(t, TimeRange{End: end}.Contains(end.Add(time.Second)))
}
