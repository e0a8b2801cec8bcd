package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simonvc/ledgerbook/internal/ledger"
)

const calibrationColumns = `id, account_id, balance, date, source, is_opening, created_at`

func (s *Store) CreateCalibration(ctx context.Context, cal *ledger.Calibration) error {
	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.insertCalibration(ctx, tx, cal); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) insertCalibration(ctx context.Context, tx *sql.Tx, cal *ledger.Calibration) error {
	if cal.ID == "" {
		cal.ID = uuid.Must(uuid.NewV7()).String()
	}
	if cal.Source == "" {
		cal.Source = ledger.SourceManual
	}
	if err := cal.Validate(); err != nil {
		return err
	}
	acct, err := getAccount(ctx, tx, cal.AccountID)
	if err != nil {
		return err
	}
	if !acct.IsLeafReal() {
		return fmt.Errorf("%w: %s is not a non-group real account", ledger.ErrInvalidAccountClass, acct.ID)
	}

	cal.CreatedAt = parseTime(s.stamp())
	_, err = tx.ExecContext(ctx,
		`INSERT INTO calibrations (id, account_id, balance, date, source, is_opening, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cal.ID, cal.AccountID, cal.Balance.String(), formatTime(cal.Date), string(cal.Source),
		boolToInt(cal.IsOpening), formatTime(cal.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert calibration: %w", err)
	}
	return nil
}

// CreateOpening records an account's starting balance at an instant: a
// transfer against the opening-balances equity account plus an opening
// calibration, in one transaction.
func (s *Store) CreateOpening(ctx context.Context, accountID string, balance decimal.Decimal, at time.Time) (*ledger.Transaction, *ledger.Calibration, error) {
	if at.IsZero() {
		return nil, nil, ledger.ErrMissingDate
	}

	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	txn := &ledger.Transaction{
		FromAccountID: ledger.OpeningAccountID,
		ToAccountID:   accountID,
		Amount:        balance,
		Date:          at,
		Nature:        ledger.NatureRegular,
		IsOpening:     true,
		Description:   "Opening balance",
	}
	// A negative opening balance (an overdrawn account, a loan) flows the
	// other way.
	if balance.IsNegative() {
		txn.FromAccountID, txn.ToAccountID = accountID, ledger.OpeningAccountID
		txn.Amount = balance.Neg()
	}
	if err := s.insertTransaction(ctx, tx, txn); err != nil {
		return nil, nil, err
	}

	cal := &ledger.Calibration{
		AccountID: accountID,
		Balance:   balance,
		Date:      at,
		Source:    ledger.SourceManual,
		IsOpening: true,
	}
	if err := s.insertCalibration(ctx, tx, cal); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}
	return txn, cal, nil
}

func (s *Store) GetCalibration(ctx context.Context, id string) (*ledger.Calibration, error) {
	row := s.reader.QueryRowContext(ctx, `SELECT `+calibrationColumns+` FROM calibrations WHERE id = ?`, id)
	cal, err := scanCalibration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ledger.ErrCalibrationNotFound, id)
	}
	return cal, err
}

// ListCalibrations returns the account's calibrations inside rng, ascending
// by date. Calibrations sharing an instant keep insertion order.
func (s *Store) ListCalibrations(ctx context.Context, accountID string, rng ledger.TimeRange) ([]ledger.Calibration, error) {
	query := `SELECT ` + calibrationColumns + ` FROM calibrations WHERE account_id = ?`
	args := []any{accountID}
	if !rng.Start.IsZero() {
		query += ` AND date >= ?`
		args = append(args, formatTime(rng.Start))
	}
	if !rng.End.IsZero() {
		query += ` AND date <= ?`
		args = append(args, formatTime(rng.End))
	}
	query += ` ORDER BY date, created_at, id`

	rows, err := s.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list calibrations: %w", err)
	}
	defer rows.Close()

	var cals []ledger.Calibration
	for rows.Next() {
		cal, err := scanCalibration(rows)
		if err != nil {
			return nil, err
		}
		cals = append(cals, *cal)
	}
	return cals, rows.Err()
}

// LatestCalibration returns the most recent calibration dated at or before
// at, or nil when there is none.
func (s *Store) LatestCalibration(ctx context.Context, accountID string, at time.Time) (*ledger.Calibration, error) {
	row := s.reader.QueryRowContext(ctx,
		`SELECT `+calibrationColumns+` FROM calibrations
		WHERE account_id = ? AND date <= ?
		ORDER BY date DESC, created_at DESC, id DESC
		LIMIT 1`,
		accountID, formatTime(at),
	)
	cal, err := scanCalibration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return cal, err
}

// DeleteCalibration removes a calibration and the issues that cite it.
func (s *Store) DeleteCalibration(ctx context.Context, id string) error {
	res, err := s.writer.ExecContext(ctx, `DELETE FROM calibrations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete calibration: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ledger.ErrCalibrationNotFound, id)
	}
	return nil
}

func scanCalibration(row scanner) (*ledger.Calibration, error) {
	var cal ledger.Calibration
	var balance, date, source, createdAt string
	var isOpening int
	err := row.Scan(&cal.ID, &cal.AccountID, &balance, &date, &source, &isOpening, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan calibration: %w", err)
	}
	if cal.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("calibration %s balance: %w", cal.ID, err)
	}
	cal.Date = parseTime(date)
	cal.Source = ledger.ParseCalibrationSource(source)
	cal.IsOpening = isOpening == 1
	cal.CreatedAt = parseTime(createdAt)
	return &cal, nil
}
