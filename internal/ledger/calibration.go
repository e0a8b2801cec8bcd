package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type CalibrationSource string

const (
	SourceManual  CalibrationSource = "manual"
	SourceImport  CalibrationSource = "import"
	SourceUnknown CalibrationSource = "unknown"
)

func ParseCalibrationSource(s string) CalibrationSource {
	switch CalibrationSource(strings.ToLower(strings.TrimSpace(s))) {
	case SourceManual, "":
		return SourceManual
	case SourceImport:
		return SourceImport
	default:
		return SourceUnknown
	}
}

// Calibration is a user-asserted balance of one account at one instant.
type Calibration struct {
	ID        string            `json:"id"`
	AccountID string            `json:"account_id"`
	Balance   decimal.Decimal   `json:"balance"`
	Date      time.Time         `json:"date"`
	Source    CalibrationSource `json:"source"`
	IsOpening bool              `json:"is_opening"`
	CreatedAt time.Time         `json:"created_at,omitempty"`
}

func (c *Calibration) Validate() error {
	if c.AccountID == "" {
		return ErrInvalidAccountID
	}
	if c.Date.IsZero() {
		return ErrMissingDate
	}
	if c.Source == SourceUnknown {
		return ErrInvalidSource
	}
	return nil
}

type IssueStatus string

const (
	IssueOpen     IssueStatus = "open"
	IssueResolved IssueStatus = "resolved"
	IssueIgnored  IssueStatus = "ignored"
	IssueUnknown  IssueStatus = "unknown"
)

func ParseIssueStatus(s string) IssueStatus {
	switch IssueStatus(strings.ToLower(strings.TrimSpace(s))) {
	case IssueOpen:
		return IssueOpen
	case IssueResolved:
		return IssueResolved
	case IssueIgnored:
		return IssueIgnored
	default:
		return IssueUnknown
	}
}

// ReconciliationIssue records drift between two adjacent calibrations:
// Diff = ActualDelta - ExpectedDelta.
type ReconciliationIssue struct {
	ID                string          `json:"id"`
	AccountID         string          `json:"account_id"`
	FromCalibrationID string          `json:"from_calibration_id"`
	ToCalibrationID   string          `json:"to_calibration_id"`
	PeriodStart       time.Time       `json:"period_start"`
	PeriodEnd         time.Time       `json:"period_end"`
	ExpectedDelta     decimal.Decimal `json:"expected_delta"`
	ActualDelta       decimal.Decimal `json:"actual_delta"`
	Diff              decimal.Decimal `json:"diff"`
	Status            IssueStatus     `json:"status"`
	CreatedAt         time.Time       `json:"created_at,omitempty"`
	UpdatedAt         time.Time       `json:"updated_at,omitempty"`
}
