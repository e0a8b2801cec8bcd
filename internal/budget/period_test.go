package budget

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/simonvc/ledgerbook/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) civil.Date {
	d, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestGeneratePeriods_Weekly(t *testing.T) {
	periods, err := GeneratePeriods(date("2025-01-01"), ledger.PeriodWeekly, 3)
	require.NoError(t, err)
	require.Len(t, periods, 3)

	assert.Equal(t, Period{Index: 1, Start: date("2025-01-01"), End: date("2025-01-07")}, periods[0])
	assert.Equal(t, Period{Index: 2, Start: date("2025-01-08"), End: date("2025-01-14")}, periods[1])
	assert.Equal(t, Period{Index: 3, Start: date("2025-01-15"), End: date("2025-01-21")}, periods[2])
}

func TestGeneratePeriods_Monthly(t *testing.T) {
	periods, err := GeneratePeriods(date("2025-01-15"), ledger.PeriodMonthly, 12)
	require.NoError(t, err)
	require.Len(t, periods, 12)

	assert.Equal(t, date("2025-01-15"), periods[0].Start)
	assert.Equal(t, date("2025-02-14"), periods[0].End)
	assert.Equal(t, date("2025-02-15"), periods[1].Start)
	assert.Equal(t, date("2025-12-15"), periods[11].Start)
	assert.Equal(t, date("2026-01-14"), periods[11].End)

	for i := 1; i < len(periods); i++ {
		assert.Equal(t, periods[i-1].End.AddDays(1), periods[i].Start, "period %d must follow %d", i+1, i)
	}
}

func TestGeneratePeriods_MonthEndClamp(t *testing.T) {
	periods, err := GeneratePeriods(date("2025-01-31"), ledger.PeriodMonthly, 3)
	require.NoError(t, err)

	assert.Equal(t, date("2025-01-31"), periods[0].Start)
	assert.Equal(t, date("2025-02-27"), periods[0].End)
	assert.Equal(t, date("2025-02-28"), periods[1].Start)
	assert.Equal(t, date("2025-03-30"), periods[1].End)
	assert.Equal(t, date("2025-03-31"), periods[2].Start)
	assert.Equal(t, date("2025-04-29"), periods[2].End)

	leap, err := GeneratePeriods(date("2024-01-31"), ledger.PeriodMonthly, 1)
	require.NoError(t, err)
	assert.Equal(t, date("2024-02-28"), leap[0].End)
}

func TestGeneratePeriods_Errors(t *testing.T) {
	_, err := GeneratePeriods(civil.Date{}, ledger.PeriodWeekly, 12)
	assert.ErrorIs(t, err, ledger.ErrMissingDate)

	_, err = GeneratePeriods(date("2025-01-01"), ledger.PeriodUnknown, 12)
	assert.ErrorIs(t, err, ledger.ErrInvalidPeriodType)

	_, err = GeneratePeriods(date("2025-01-01"), ledger.PeriodWeekly, 0)
	assert.Error(t, err)
}

func TestPlanEndDate(t *testing.T) {
	end, err := PlanEndDate(date("2025-01-01"), ledger.PeriodWeekly, DefaultPeriodCount)
	require.NoError(t, err)
	assert.Equal(t, date("2025-03-25"), end)

	end, err = PlanEndDate(date("2025-01-01"), ledger.PeriodMonthly, DefaultPeriodCount)
	require.NoError(t, err)
	assert.Equal(t, date("2025-12-31"), end)
}

func TestClassify(t *testing.T) {
	d := decimal.RequireFromString
	soft := decimal.NewNullDecimal(d("80"))

	tests := []struct {
		name   string
		actual string
		soft   decimal.NullDecimal
		want   ledger.Indicator
	}{
		{"at hard limit", "100", decimal.NullDecimal{}, ledger.IndicatorGreen},
		{"a cent over", "100.01", decimal.NullDecimal{}, ledger.IndicatorRed},
		{"at soft limit", "80", soft, ledger.IndicatorStar},
		{"between limits", "80.01", soft, ledger.IndicatorGreen},
		{"nothing spent", "0", soft, ledger.IndicatorStar},
		{"nothing spent without soft", "0", decimal.NullDecimal{}, ledger.IndicatorGreen},
		{"over with soft", "150", soft, ledger.IndicatorRed},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(d(tt.actual), d("100"), tt.soft))
		})
	}
}

func TestClassify_SoftAboveHardNeverStarsOverspend(t *testing.T) {
	soft := decimal.NewNullDecimal(decimal.NewFromInt(200))
	assert.Equal(t, ledger.IndicatorRed, Classify(decimal.NewFromInt(150), decimal.NewFromInt(100), soft))
}

func TestUsagePercent(t *testing.T) {
	assert.Equal(t, "45.5", UsagePercent(decimal.RequireFromString("45.5"), decimal.NewFromInt(100)).String())
	assert.Equal(t, "33.33", UsagePercent(decimal.NewFromInt(1), decimal.NewFromInt(3)).String())
	assert.True(t, UsagePercent(decimal.NewFromInt(5), decimal.Zero).IsZero())
}
