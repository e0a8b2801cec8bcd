package budget

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/simonvc/ledgerbook/internal/ledger"
)

// DefaultPeriodCount is the number of periods generated per plan round.
const DefaultPeriodCount = 12

// Period is one generated slot of a schedule; bounds are inclusive.
type Period struct {
	Index int        `json:"index"`
	Start civil.Date `json:"start"`
	End   civil.Date `json:"end"`
}

// GeneratePeriods lays out count consecutive periods from start. Weekly
// periods are seven days long. Monthly period i runs from start shifted
// by i-1 months to the day before start shifted by i months, clamping the
// day of month when the target month is shorter.
func GeneratePeriods(start civil.Date, pt ledger.PeriodType, count int) ([]Period, error) {
	if !start.IsValid() {
		return nil, fmt.Errorf("%w: invalid start date %v", ledger.ErrMissingDate, start)
	}
	if count < 1 {
		return nil, fmt.Errorf("period count must be positive, got %d", count)
	}

	periods := make([]Period, 0, count)
	switch pt {
	case ledger.PeriodWeekly:
		for i := 0; i < count; i++ {
			s := start.AddDays(7 * i)
			periods = append(periods, Period{Index: i + 1, Start: s, End: s.AddDays(6)})
		}
	case ledger.PeriodMonthly:
		for i := 0; i < count; i++ {
			periods = append(periods, Period{
				Index: i + 1,
				Start: addMonths(start, i),
				End:   addMonths(start, i+1).AddDays(-1),
			})
		}
	default:
		return nil, fmt.Errorf("%w: %q", ledger.ErrInvalidPeriodType, pt)
	}
	return periods, nil
}

// PlanEndDate is the last day of the final period of a round.
func PlanEndDate(start civil.Date, pt ledger.PeriodType, count int) (civil.Date, error) {
	periods, err := GeneratePeriods(start, pt, count)
	if err != nil {
		return civil.Date{}, err
	}
	return periods[len(periods)-1].End, nil
}

// addMonths moves d forward n months keeping the day of month where the
// target month allows it, e.g. Jan 31 + 1 month = Feb 28.
func addMonths(d civil.Date, n int) civil.Date {
	m := int(d.Month) - 1 + n
	y := d.Year + m/12
	m %= 12
	if m < 0 {
		m += 12
		y--
	}
	month := time.Month(m + 1)
	day := d.Day
	if last := daysIn(y, month); day > last {
		day = last
	}
	return civil.Date{Year: y, Month: month, Day: day}
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
