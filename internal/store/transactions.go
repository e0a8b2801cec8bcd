package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simonvc/ledgerbook/internal/ledger"
)

const txnSelect = `SELECT t.id, t.from_account_id, t.to_account_id, t.amount, t.from_amount, t.to_amount,
		t.date, t.nature, t.is_opening, t.description, t.created_at, fa.currency, ta.currency
	FROM transactions t
	JOIN accounts fa ON fa.id = t.from_account_id
	JOIN accounts ta ON ta.id = t.to_account_id`

func (s *Store) CreateTransaction(ctx context.Context, txn *ledger.Transaction) error {
	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.insertTransaction(ctx, tx, txn); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) insertTransaction(ctx context.Context, tx *sql.Tx, txn *ledger.Transaction) error {
	if txn.ID == "" {
		txn.ID = uuid.Must(uuid.NewV7()).String()
	}
	if txn.Nature == "" {
		txn.Nature = ledger.NatureRegular
	}
	if err := txn.Validate(); err != nil {
		return err
	}

	from, err := getAccount(ctx, tx, txn.FromAccountID)
	if err != nil {
		return err
	}
	to, err := getAccount(ctx, tx, txn.ToAccountID)
	if err != nil {
		return err
	}
	for _, a := range []*ledger.Account{from, to} {
		if a.IsGroup {
			return fmt.Errorf("%w: %s", ledger.ErrGroupAccount, a.ID)
		}
		if !a.IsActive {
			return fmt.Errorf("%w: %s", ledger.ErrInactiveAccount, a.ID)
		}
	}
	if from.Currency != "" && to.Currency != "" && from.Currency != to.Currency && !txn.ToAmount.Valid {
		return fmt.Errorf("%w: %s -> %s", ledger.ErrCrossCurrencyAmount, from.Currency, to.Currency)
	}
	txn.FromCurrency = from.Currency
	txn.ToCurrency = to.Currency

	txn.CreatedAt = parseTime(s.stamp())
	_, err = tx.ExecContext(ctx,
		`INSERT INTO transactions (id, from_account_id, to_account_id, amount, from_amount, to_amount, date, nature, is_opening, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.FromAccountID, txn.ToAccountID, txn.Amount.String(), nullDecimal(txn.FromAmount), nullDecimal(txn.ToAmount),
		formatTime(txn.Date), string(txn.Nature), boolToInt(txn.IsOpening), txn.Description, formatTime(txn.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*ledger.Transaction, error) {
	row := s.reader.QueryRowContext(ctx, txnSelect+` WHERE t.id = ?`, id)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ledger.ErrTransactionNotFound, id)
	}
	return txn, err
}

func (s *Store) ListTransactions(ctx context.Context, filter TxnFilter) ([]ledger.Transaction, error) {
	query := txnSelect + ` WHERE 1=1`
	args := []any{}

	if filter.AccountID != "" {
		query += ` AND (t.from_account_id = ? OR t.to_account_id = ?)`
		args = append(args, filter.AccountID, filter.AccountID)
	}
	if !filter.Range.Start.IsZero() {
		query += ` AND t.date >= ?`
		args = append(args, formatTime(filter.Range.Start))
	}
	if !filter.Range.End.IsZero() {
		query += ` AND t.date <= ?`
		args = append(args, formatTime(filter.Range.End))
	}
	query += ` ORDER BY t.date DESC, t.id DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(` OFFSET %d`, filter.Offset)
		}
	}

	return queryTransactions(ctx, s.reader, query, args...)
}

// DeleteTransaction removes a transfer, e.g. when rolling back an import.
func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	res, err := s.writer.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ledger.ErrTransactionNotFound, id)
	}
	return nil
}

// Inflows returns transfers into accountID with after < date <= upTo. A
// zero after means no lower bound.
func (s *Store) Inflows(ctx context.Context, accountID string, after, upTo time.Time) ([]ledger.Transaction, error) {
	return s.flows(ctx, "t.to_account_id", accountID, after, upTo)
}

// Outflows returns transfers out of accountID with after < date <= upTo.
func (s *Store) Outflows(ctx context.Context, accountID string, after, upTo time.Time) ([]ledger.Transaction, error) {
	return s.flows(ctx, "t.from_account_id", accountID, after, upTo)
}

func (s *Store) flows(ctx context.Context, column, accountID string, after, upTo time.Time) ([]ledger.Transaction, error) {
	query := txnSelect + ` WHERE ` + column + ` = ? AND t.date <= ?`
	args := []any{accountID, formatTime(upTo)}
	if !after.IsZero() {
		query += ` AND t.date > ?`
		args = append(args, formatTime(after))
	}
	query += ` ORDER BY t.date, t.id`
	return queryTransactions(ctx, s.reader, query, args...)
}

// TransfersInto returns transfers whose to-account is one of accountIDs
// with from <= date < until.
func (s *Store) TransfersInto(ctx context.Context, accountIDs []string, from, until time.Time) ([]ledger.Transaction, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}
	ids, err := json.Marshal(accountIDs)
	if err != nil {
		return nil, fmt.Errorf("encode account ids: %w", err)
	}
	query := txnSelect + `
	WHERE t.to_account_id IN (SELECT value FROM json_each(?))
		AND t.date >= ? AND t.date < ?
	ORDER BY t.date, t.id`
	return queryTransactions(ctx, s.reader, query, string(ids), formatTime(from), formatTime(until))
}

func queryTransactions(ctx context.Context, q querier, query string, args ...any) ([]ledger.Transaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txns []ledger.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *txn)
	}
	return txns, rows.Err()
}

func scanTransaction(row scanner) (*ledger.Transaction, error) {
	var txn ledger.Transaction
	var amount, date, nature, createdAt string
	var fromAmount, toAmount sql.NullString
	var isOpening int
	err := row.Scan(&txn.ID, &txn.FromAccountID, &txn.ToAccountID, &amount, &fromAmount, &toAmount,
		&date, &nature, &isOpening, &txn.Description, &createdAt, &txn.FromCurrency, &txn.ToCurrency)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan transaction: %w", err)
	}

	if txn.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("transaction %s amount: %w", txn.ID, err)
	}
	if txn.FromAmount, err = parseNullDecimal(fromAmount); err != nil {
		return nil, fmt.Errorf("transaction %s from_amount: %w", txn.ID, err)
	}
	if txn.ToAmount, err = parseNullDecimal(toAmount); err != nil {
		return nil, fmt.Errorf("transaction %s to_amount: %w", txn.ID, err)
	}
	txn.Date = parseTime(date)
	txn.Nature = ledger.ParseNature(nature)
	txn.IsOpening = isOpening == 1
	txn.CreatedAt = parseTime(createdAt)
	return &txn, nil
}

func nullDecimal(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}

func parseNullDecimal(s sql.NullString) (decimal.NullDecimal, error) {
	if !s.Valid {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}
