package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAccountType(t *testing.T) {
	assert.Equal(t, TypeAsset, ParseAccountType(" Asset "))
	assert.Equal(t, TypeExpense, ParseAccountType("expense"))
	assert.Equal(t, TypeUnknown, ParseAccountType("revenue"))
	assert.Equal(t, ClassReal, ClassForType(TypeLiability))
	assert.Equal(t, ClassNominal, ClassForType(TypeEquity))
	assert.Equal(t, ClassUnknown, ClassForType(TypeUnknown))
}

func TestAccount_Validate(t *testing.T) {
	tests := []struct {
		name    string
		acct    Account
		wantErr error
	}{
		{"bank account", Account{ID: "bank", Name: "Bank", Class: ClassReal, Type: TypeAsset, Currency: "eur"}, nil},
		{"group without currency", Account{ID: "cash", Name: "Cash", Class: ClassReal, Type: TypeAsset, IsGroup: true}, nil},
		{"category", Account{ID: "food", Name: "Food", Class: ClassNominal, Type: TypeExpense}, nil},
		{"empty id", Account{Name: "x", Class: ClassReal, Type: TypeAsset, Currency: "EUR"}, ErrInvalidAccountID},
		{"own parent", Account{ID: "a", ParentID: "a", Name: "a", Class: ClassNominal, Type: TypeExpense}, ErrParentCycle},
		{"class mismatch", Account{ID: "a", Name: "a", Class: ClassNominal, Type: TypeAsset}, ErrClassTypeMismatch},
		{"unknown type", Account{ID: "a", Name: "a", Class: ClassReal, Type: TypeUnknown}, ErrInvalidAccountType},
		{"leaf real needs currency", Account{ID: "a", Name: "a", Class: ClassReal, Type: TypeLiability}, ErrCurrencyRequired},
		{"bad currency", Account{ID: "a", Name: "a", Class: ClassReal, Type: TypeAsset, Currency: "XYZ"}, ErrInvalidCurrency},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := tt.acct.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAccount_ValidateNormalizesCurrency(t *testing.T) {
	a := Account{ID: "bank", Name: "Bank", Class: ClassReal, Type: TypeAsset, Currency: " usd "}
	require.NoError(t, a.Validate())
	assert.Equal(t, "USD", a.Currency)
	assert.True(t, a.IsLeafReal())
}

func TestChartEntryAccount(t *testing.T) {
	for _, e := range append(SystemAccounts, DefaultChart...) {
		a := e.Account()
		assert.NoError(t, a.Validate(), e.ID)
		assert.Equal(t, ClassNominal, a.Class, e.ID)
	}
}
