package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simonvc/ledgerbook/internal/ledger"
)

const issueColumns = `id, account_id, from_calibration_id, to_calibration_id, period_start, period_end,
	expected_delta, actual_delta, diff, status, created_at, updated_at`

// UpsertIssue records drift for a calibration pair. An open issue for the
// pair is refreshed with the new figures; a resolved or ignored one is
// left as the user set it. issue is updated with the stored id and status.
func (s *Store) UpsertIssue(ctx context.Context, issue *ledger.ReconciliationIssue) error {
	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := s.stamp()
	var id, status, createdAt string
	err = tx.QueryRowContext(ctx,
		`SELECT id, status, created_at FROM reconciliation_issues WHERE from_calibration_id = ? AND to_calibration_id = ?`,
		issue.FromCalibrationID, issue.ToCalibrationID,
	).Scan(&id, &status, &createdAt)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		issue.ID = uuid.Must(uuid.NewV7()).String()
		issue.Status = ledger.IssueOpen
		_, err = tx.ExecContext(ctx,
			`INSERT INTO reconciliation_issues (`+issueColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			issue.ID, issue.AccountID, issue.FromCalibrationID, issue.ToCalibrationID,
			formatTime(issue.PeriodStart), formatTime(issue.PeriodEnd),
			issue.ExpectedDelta.String(), issue.ActualDelta.String(), issue.Diff.String(),
			string(issue.Status), now, now,
		)
		if err != nil {
			return fmt.Errorf("insert issue: %w", err)
		}
		issue.CreatedAt = parseTime(now)
	case err != nil:
		return fmt.Errorf("find issue: %w", err)
	case ledger.ParseIssueStatus(status) == ledger.IssueOpen:
		issue.ID = id
		issue.Status = ledger.IssueOpen
		_, err = tx.ExecContext(ctx,
			`UPDATE reconciliation_issues
			SET period_start = ?, period_end = ?, expected_delta = ?, actual_delta = ?, diff = ?, updated_at = ?
			WHERE id = ?`,
			formatTime(issue.PeriodStart), formatTime(issue.PeriodEnd),
			issue.ExpectedDelta.String(), issue.ActualDelta.String(), issue.Diff.String(), now, id,
		)
		if err != nil {
			return fmt.Errorf("update issue: %w", err)
		}
		issue.CreatedAt = parseTime(createdAt)
	default:
		issue.ID = id
		issue.Status = ledger.ParseIssueStatus(status)
		issue.CreatedAt = parseTime(createdAt)
		return nil
	}

	issue.UpdatedAt = parseTime(now)
	return tx.Commit()
}

func (s *Store) GetIssue(ctx context.Context, id string) (*ledger.ReconciliationIssue, error) {
	row := s.reader.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM reconciliation_issues WHERE id = ?`, id)
	issue, err := scanIssue(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ledger.ErrIssueNotFound, id)
	}
	return issue, err
}

func (s *Store) ListIssues(ctx context.Context, filter IssueFilter) ([]ledger.ReconciliationIssue, error) {
	query := `SELECT ` + issueColumns + ` FROM reconciliation_issues WHERE 1=1`
	args := []any{}
	if filter.AccountID != "" {
		query += ` AND account_id = ?`
		args = append(args, filter.AccountID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY account_id, period_start`

	rows, err := s.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer rows.Close()

	var issues []ledger.ReconciliationIssue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		issues = append(issues, *issue)
	}
	return issues, rows.Err()
}

// SetIssueStatus moves an issue between open, resolved and ignored.
func (s *Store) SetIssueStatus(ctx context.Context, id string, status ledger.IssueStatus) (*ledger.ReconciliationIssue, error) {
	if status == ledger.IssueUnknown || status == "" {
		return nil, fmt.Errorf("%w: %q", ledger.ErrInvalidIssueStatus, status)
	}
	res, err := s.writer.ExecContext(ctx,
		`UPDATE reconciliation_issues SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), s.stamp(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("set issue status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: %s", ledger.ErrIssueNotFound, id)
	}
	return s.GetIssue(ctx, id)
}

func scanIssue(row scanner) (*ledger.ReconciliationIssue, error) {
	var issue ledger.ReconciliationIssue
	var periodStart, periodEnd, expected, actual, diff, status, createdAt, updatedAt string
	err := row.Scan(&issue.ID, &issue.AccountID, &issue.FromCalibrationID, &issue.ToCalibrationID,
		&periodStart, &periodEnd, &expected, &actual, &diff, &status, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan issue: %w", err)
	}
	if issue.ExpectedDelta, err = decimal.NewFromString(expected); err != nil {
		return nil, fmt.Errorf("issue %s expected_delta: %w", issue.ID, err)
	}
	if issue.ActualDelta, err = decimal.NewFromString(actual); err != nil {
		return nil, fmt.Errorf("issue %s actual_delta: %w", issue.ID, err)
	}
	if issue.Diff, err = decimal.NewFromString(diff); err != nil {
		return nil, fmt.Errorf("issue %s diff: %w", issue.ID, err)
	}
	issue.PeriodStart = parseTime(periodStart)
	issue.PeriodEnd = parseTime(periodEnd)
	issue.Status = ledger.ParseIssueStatus(status)
	issue.CreatedAt = parseTime(createdAt)
	issue.UpdatedAt = parseTime(updatedAt)
	return &issue, nil
}
