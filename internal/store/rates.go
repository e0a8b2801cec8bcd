package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/simonvc/ledgerbook/internal/ledger"
)

// UpsertRate stores the rate for a currency pair, replacing any earlier one.
func (s *Store) UpsertRate(ctx context.Context, r *ledger.ExchangeRate) error {
	if err := r.Validate(); err != nil {
		return err
	}
	r.UpdatedAt = parseTime(s.stamp())
	_, err := s.writer.ExecContext(ctx,
		`INSERT INTO rates (from_currency, to_currency, rate, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (from_currency, to_currency) DO UPDATE SET rate = excluded.rate, updated_at = excluded.updated_at`,
		r.From, r.To, r.Rate.String(), formatTime(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert rate: %w", err)
	}
	return nil
}

// GetRate returns the configured rate from->to or an error wrapping
// ledger.ErrRateNotFound. Inverse rates are not derived here.
func (s *Store) GetRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	var rate string
	err := s.reader.QueryRowContext(ctx,
		`SELECT rate FROM rates WHERE from_currency = ? AND to_currency = ?`,
		strings.ToUpper(from), strings.ToUpper(to),
	).Scan(&rate)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("%w: %s->%s", ledger.ErrRateNotFound, from, to)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("get rate: %w", err)
	}
	return decimal.NewFromString(rate)
}

func (s *Store) ListRates(ctx context.Context) ([]ledger.ExchangeRate, error) {
	rows, err := s.reader.QueryContext(ctx,
		`SELECT from_currency, to_currency, rate, updated_at FROM rates ORDER BY from_currency, to_currency`)
	if err != nil {
		return nil, fmt.Errorf("list rates: %w", err)
	}
	defer rows.Close()

	var rates []ledger.ExchangeRate
	for rows.Next() {
		var r ledger.ExchangeRate
		var rate, updatedAt string
		if err := rows.Scan(&r.From, &r.To, &rate, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan rate: %w", err)
		}
		if r.Rate, err = decimal.NewFromString(rate); err != nil {
			return nil, fmt.Errorf("rate %s/%s: %w", r.From, r.To, err)
		}
		r.UpdatedAt = parseTime(updatedAt)
		rates = append(rates, r)
	}
	return rates, rows.Err()
}
