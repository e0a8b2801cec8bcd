// Package store persists the ledger, calibrations, reconciliation issues
// and budget plans in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"time"

	"cloud.google.com/go/civil"
	"github.com/simonvc/ledgerbook/internal/ledger"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width UTC so instants compare correctly as TEXT.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type AccountFilter struct {
	Type       ledger.AccountType
	Class      ledger.AccountClass
	ParentID   string
	ActiveOnly bool
}

type TxnFilter struct {
	AccountID string
	Range     ledger.TimeRange
	Limit     int
	Offset    int
}

type IssueFilter struct {
	AccountID string
	Status    ledger.IssueStatus
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	writer *sql.DB
	reader *sql.DB
	now    func() time.Time
}

func Open(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", dbPath)

	writer, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}
	writer.SetMaxOpenConns(1)

	reader, err := sql.Open("sqlite", dsn)
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("open reader: %w", err)
	}
	reader.SetMaxOpenConns(runtime.NumCPU())

	s := &Store{writer: writer, reader: reader, now: time.Now}

	if err := s.migrate(context.Background()); err != nil {
		s.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Store) Close() error {
	err1 := s.writer.Close()
	err2 := s.reader.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// Ping checks both connection pools.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.writer.PingContext(ctx); err != nil {
		return err
	}
	return s.reader.PingContext(ctx)
}

func (s *Store) stamp() string {
	return formatTime(s.now())
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func formatDate(d civil.Date) string {
	if !d.IsValid() {
		return ""
	}
	return d.String()
}

func parseDate(s string) civil.Date {
	d, _ := civil.ParseDate(s)
	return d
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
