package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/simonvc/ledgerbook/internal/ledger"
)

func (s *Store) migrate(ctx context.Context) error {
	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	var version int
	err = tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if version < 1 {
		if err := migrateV1(ctx, tx); err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
	}
	if version < 2 {
		if err := migrateV2(ctx, tx); err != nil {
			return fmt.Errorf("migration v2: %w", err)
		}
	}

	return tx.Commit()
}

// migrateV1 creates the ledger: accounts, transfers, calibrations and rates.
func migrateV1(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			parent_id  TEXT REFERENCES accounts(id),
			class      TEXT NOT NULL CHECK (class IN ('real','nominal')),
			type       TEXT NOT NULL CHECK (type IN ('asset','liability','income','expense','equity')),
			is_group   INTEGER NOT NULL DEFAULT 0,
			currency   TEXT NOT NULL DEFAULT '',
			is_active  INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_parent ON accounts(parent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_type ON accounts(type)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			id              TEXT PRIMARY KEY,
			from_account_id TEXT NOT NULL REFERENCES accounts(id),
			to_account_id   TEXT NOT NULL REFERENCES accounts(id),
			amount          TEXT NOT NULL,
			from_amount     TEXT,
			to_amount       TEXT,
			date            TEXT NOT NULL,
			nature          TEXT NOT NULL CHECK (nature IN ('regular','unexpected','periodic')),
			is_opening      INTEGER NOT NULL DEFAULT 0,
			description     TEXT NOT NULL DEFAULT '',
			created_at      TEXT NOT NULL,
			CHECK (from_account_id <> to_account_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_to_date ON transactions(to_account_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_from_date ON transactions(from_account_id, date)`,

		// Transfers are append-only; corrections are new transfers or a delete.
		`CREATE TRIGGER IF NOT EXISTS trg_transactions_immutable
		BEFORE UPDATE ON transactions
		BEGIN
			SELECT RAISE(ABORT, 'transactions are immutable');
		END`,

		`CREATE TRIGGER IF NOT EXISTS trg_no_group_transfers
		BEFORE INSERT ON transactions
		WHEN (SELECT is_group FROM accounts WHERE id = NEW.from_account_id) = 1
			OR (SELECT is_group FROM accounts WHERE id = NEW.to_account_id) = 1
		BEGIN
			SELECT RAISE(ABORT, 'group accounts cannot take part in transfers');
		END`,

		`CREATE TRIGGER IF NOT EXISTS trg_currency_locked
		BEFORE UPDATE OF currency ON accounts
		WHEN OLD.currency <> NEW.currency AND EXISTS (
			SELECT 1 FROM transactions
			WHERE from_account_id = OLD.id OR to_account_id = OLD.id
		)
		BEGIN
			SELECT RAISE(ABORT, 'account currency cannot change after its first transaction');
		END`,

		`CREATE TABLE IF NOT EXISTS calibrations (
			id         TEXT PRIMARY KEY,
			account_id TEXT NOT NULL REFERENCES accounts(id),
			balance    TEXT NOT NULL,
			date       TEXT NOT NULL,
			source     TEXT NOT NULL CHECK (source IN ('manual','import')),
			is_opening INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_calibrations_account_date ON calibrations(account_id, date)`,

		`CREATE TABLE IF NOT EXISTS rates (
			from_currency TEXT NOT NULL,
			to_currency   TEXT NOT NULL,
			rate          TEXT NOT NULL,
			updated_at    TEXT NOT NULL,
			PRIMARY KEY (from_currency, to_currency)
		)`,

		`INSERT INTO schema_version (version) VALUES (1)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}

	for _, sa := range ledger.SystemAccounts {
		a := sa.Account()
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO accounts (id, name, parent_id, class, type, is_group, currency, is_active, created_at)
			VALUES (?, ?, NULL, ?, ?, 0, '', 1, strftime('%Y-%m-%dT%H:%M:%S.000000000Z','now'))`,
			a.ID, a.Name, string(a.Class), string(a.Type),
		)
		if err != nil {
			return fmt.Errorf("seed system account %s: %w", sa.ID, err)
		}
	}

	return nil
}

// migrateV2 adds reconciliation issues and budgets.
func migrateV2(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS reconciliation_issues (
			id                  TEXT PRIMARY KEY,
			account_id          TEXT NOT NULL REFERENCES accounts(id),
			from_calibration_id TEXT NOT NULL REFERENCES calibrations(id) ON DELETE CASCADE,
			to_calibration_id   TEXT NOT NULL REFERENCES calibrations(id) ON DELETE CASCADE,
			period_start        TEXT NOT NULL,
			period_end          TEXT NOT NULL,
			expected_delta      TEXT NOT NULL,
			actual_delta        TEXT NOT NULL,
			diff                TEXT NOT NULL,
			status              TEXT NOT NULL CHECK (status IN ('open','resolved','ignored')),
			created_at          TEXT NOT NULL,
			updated_at          TEXT NOT NULL,
			UNIQUE (from_calibration_id, to_calibration_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_issues_account ON reconciliation_issues(account_id, status)`,

		`CREATE TABLE IF NOT EXISTS budget_plans (
			id                    TEXT PRIMARY KEY,
			name                  TEXT NOT NULL,
			plan_type             TEXT NOT NULL CHECK (plan_type IN ('category','total')),
			category_account_id   TEXT NOT NULL DEFAULT '',
			included_category_ids TEXT NOT NULL DEFAULT '[]',
			period_type           TEXT NOT NULL CHECK (period_type IN ('weekly','monthly')),
			hard_limit            TEXT NOT NULL,
			soft_limit            TEXT,
			limit_currency        TEXT NOT NULL,
			filter_mode           TEXT NOT NULL CHECK (filter_mode IN ('all','include','exclude')),
			filter_account_ids    TEXT NOT NULL DEFAULT '[]',
			start_date            TEXT NOT NULL,
			end_date              TEXT NOT NULL,
			round_number          INTEGER NOT NULL,
			status                TEXT NOT NULL CHECK (status IN ('active','paused','expired')),
			created_at            TEXT NOT NULL,
			updated_at            TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_budget_plans_status ON budget_plans(status)`,

		`CREATE TABLE IF NOT EXISTS budget_periods (
			id            TEXT PRIMARY KEY,
			plan_id       TEXT NOT NULL REFERENCES budget_plans(id) ON DELETE CASCADE,
			round_number  INTEGER NOT NULL,
			period_index  INTEGER NOT NULL,
			period_start  TEXT NOT NULL,
			period_end    TEXT NOT NULL,
			hard_limit    TEXT NOT NULL,
			soft_limit    TEXT,
			actual_amount TEXT,
			indicator     TEXT NOT NULL CHECK (indicator IN ('pending','star','green','red')),
			updated_at    TEXT NOT NULL,
			UNIQUE (plan_id, round_number, period_index)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_budget_periods_dates ON budget_periods(period_start, period_end)`,

		`INSERT INTO schema_version (version) VALUES (2)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}
