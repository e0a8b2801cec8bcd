package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/simonvc/ledgerbook/internal/ledger"
)

const accountColumns = `id, name, COALESCE(parent_id, ''), class, type, is_group, currency, is_active, created_at`

// AccountPatch lists the mutable fields of an account. Nil fields are kept.
type AccountPatch struct {
	Name     *string `json:"name,omitempty"`
	ParentID *string `json:"parent_id,omitempty"`
	Currency *string `json:"currency,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

func (s *Store) CreateAccount(ctx context.Context, acct *ledger.Account) error {
	if acct.Class == "" {
		acct.Class = ledger.ClassForType(acct.Type)
	}
	if err := acct.Validate(); err != nil {
		return err
	}

	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := getAccount(ctx, tx, acct.ID); err == nil {
		return fmt.Errorf("%w: %s", ledger.ErrDuplicateAccount, acct.ID)
	} else if !errors.Is(err, ledger.ErrAccountNotFound) {
		return err
	}
	if acct.ParentID != "" {
		accounts, err := listAccounts(ctx, tx, AccountFilter{})
		if err != nil {
			return err
		}
		if err := ledger.NewTree(accounts).CheckParent(acct.ID, acct.ParentID); err != nil {
			return err
		}
	}

	acct.CreatedAt = parseTime(s.stamp())
	_, err = tx.ExecContext(ctx,
		`INSERT INTO accounts (id, name, parent_id, class, type, is_group, currency, is_active, created_at)
		VALUES (?, ?, NULLIF(?, ''), ?, ?, ?, ?, ?, ?)`,
		acct.ID, acct.Name, acct.ParentID, string(acct.Class), string(acct.Type),
		boolToInt(acct.IsGroup), acct.Currency, boolToInt(acct.IsActive), formatTime(acct.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return tx.Commit()
}

func (s *Store) GetAccount(ctx context.Context, id string) (*ledger.Account, error) {
	return getAccount(ctx, s.reader, id)
}

func getAccount(ctx context.Context, q querier, id string) (*ledger.Account, error) {
	row := q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	acct, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, id)
	}
	return acct, err
}

func (s *Store) ListAccounts(ctx context.Context, filter AccountFilter) ([]ledger.Account, error) {
	return listAccounts(ctx, s.reader, filter)
}

// AccountTree returns every account; callers index it with ledger.NewTree.
func (s *Store) AccountTree(ctx context.Context) ([]ledger.Account, error) {
	return listAccounts(ctx, s.reader, AccountFilter{})
}

func listAccounts(ctx context.Context, q querier, filter AccountFilter) ([]ledger.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE 1=1`
	args := []any{}

	if filter.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(filter.Type))
	}
	if filter.Class != "" {
		query += ` AND class = ?`
		args = append(args, string(filter.Class))
	}
	if filter.ParentID != "" {
		query += ` AND parent_id = ?`
		args = append(args, filter.ParentID)
	}
	if filter.ActiveOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *acct)
	}
	return accounts, rows.Err()
}

// UpdateAccount applies patch. Reparenting is refused when it would make
// the account its own ancestor, and the currency is locked once the
// account has a transfer.
func (s *Store) UpdateAccount(ctx context.Context, id string, patch AccountPatch) (*ledger.Account, error) {
	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	acct, err := getAccount(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		acct.Name = *patch.Name
	}
	if patch.IsActive != nil {
		acct.IsActive = *patch.IsActive
	}
	if patch.ParentID != nil && *patch.ParentID != acct.ParentID {
		accounts, err := listAccounts(ctx, tx, AccountFilter{})
		if err != nil {
			return nil, err
		}
		if err := ledger.NewTree(accounts).CheckParent(id, *patch.ParentID); err != nil {
			return nil, err
		}
		acct.ParentID = *patch.ParentID
	}
	if patch.Currency != nil {
		cur := strings.ToUpper(strings.TrimSpace(*patch.Currency))
		if cur != acct.Currency {
			n, err := countTransfers(ctx, tx, id)
			if err != nil {
				return nil, err
			}
			if n > 0 {
				return nil, fmt.Errorf("%w: %s has %d transfers", ledger.ErrCurrencyLocked, id, n)
			}
			acct.Currency = cur
		}
	}
	if err := acct.Validate(); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE accounts SET name = ?, parent_id = NULLIF(?, ''), currency = ?, is_active = ? WHERE id = ?`,
		acct.Name, acct.ParentID, acct.Currency, boolToInt(acct.IsActive), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update account: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return acct, nil
}

// SeedChart inserts the default category tree, skipping accounts that
// already exist, and reports how many were added.
func (s *Store) SeedChart(ctx context.Context) (int, error) {
	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	added := 0
	now := s.stamp()
	for _, entry := range ledger.DefaultChart {
		a := entry.Account()
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO accounts (id, name, parent_id, class, type, is_group, currency, is_active, created_at)
			VALUES (?, ?, NULLIF(?, ''), ?, ?, ?, '', 1, ?)`,
			a.ID, a.Name, a.ParentID, string(a.Class), string(a.Type), boolToInt(a.IsGroup), now,
		)
		if err != nil {
			return 0, fmt.Errorf("seed %s: %w", a.ID, err)
		}
		n, _ := res.RowsAffected()
		added += int(n)
	}
	return added, tx.Commit()
}

func countTransfers(ctx context.Context, q querier, accountID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE from_account_id = ? OR to_account_id = ?`,
		accountID, accountID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count transfers: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*ledger.Account, error) {
	var acct ledger.Account
	var class, typ, createdAt string
	var isGroup, isActive int
	err := row.Scan(&acct.ID, &acct.Name, &acct.ParentID, &class, &typ, &isGroup, &acct.Currency, &isActive, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	acct.Class = ledger.ParseAccountClass(class)
	acct.Type = ledger.ParseAccountType(typ)
	acct.IsGroup = isGroup == 1
	acct.IsActive = isActive == 1
	acct.CreatedAt = parseTime(createdAt)
	return &acct, nil
}
