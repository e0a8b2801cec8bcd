package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
)

// writeCSV prints rows (a slice of structs with csv tags) to stdout.
func writeCSV(rows any) error {
	return gocsv.Marshal(rows, os.Stdout)
}

// parseInstant accepts RFC3339 or a bare date, which is taken as the start
// of that day in the configured timezone. Empty means now.
func parseInstant(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Now(), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	d, err := civil.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD or RFC3339", s)
	}
	loc, err := cfg.Location()
	if err != nil {
		return time.Time{}, err
	}
	return d.In(loc), nil
}

// parseOptionalInstant is parseInstant without the "now" default.
func parseOptionalInstant(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	return parseInstant(s)
}

func parseCivil(s string) (civil.Date, error) {
	if strings.TrimSpace(s) == "" {
		return civil.Date{}, nil
	}
	d, err := civil.ParseDate(strings.TrimSpace(s))
	if err != nil {
		return civil.Date{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD", s)
	}
	return d, nil
}

// today is the current calendar date in the configured timezone.
func today() (civil.Date, error) {
	loc, err := cfg.Location()
	if err != nil {
		return civil.Date{}, err
	}
	return civil.DateOf(time.Now().In(loc)), nil
}

func parseOptionalDecimal(s string) (decimal.NullDecimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return decimal.NewNullDecimal(d), nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-2] + ".."
	}
	return s
}

func formatNull(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return d.Decimal.String()
}
