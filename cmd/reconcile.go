package cmd

import (
	"context"
	"fmt"

	"github.com/simonvc/ledgerbook/internal/ledger"
	"github.com/simonvc/ledgerbook/internal/reconcile"
	"github.com/spf13/cobra"
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Assert account balances at points in time",
}

var (
	calBalance     string
	calDate        string
	calSource      string
	calNoReconcile bool
)

var calibrateAddCmd = &cobra.Command{
	Use:   "add [account]",
	Short: "Record a calibration and re-check the account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bal, err := ledger.ParseAmount(calBalance)
		if err != nil {
			return err
		}
		at, err := parseInstant(calDate)
		if err != nil {
			return err
		}
		cal := &ledger.Calibration{
			AccountID: args[0],
			Balance:   bal,
			Date:      at,
			Source:    ledger.ParseCalibrationSource(calSource),
		}
		res, err := apiClient().CreateCalibration(context.Background(), cal, !calNoReconcile)
		if err != nil {
			return err
		}
		fmt.Printf("Calibration %s: %s = %s at %s\n", res.Calibration.ID, args[0], res.Calibration.Balance, res.Calibration.Date.Format("2006-01-02 15:04"))
		if res.Reconciliation != nil {
			printCheck(res.Reconciliation)
		}
		return nil
	},
}

type calibrationRow struct {
	ID        string `csv:"id"`
	AccountID string `csv:"account_id"`
	Date      string `csv:"date"`
	Balance   string `csv:"balance"`
	Source    string `csv:"source"`
	IsOpening bool   `csv:"is_opening"`
}

var calibrateListCmd = &cobra.Command{
	Use:   "list [account]",
	Short: "List an account's calibrations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cals, err := apiClient().ListCalibrations(context.Background(), args[0])
		if err != nil {
			return err
		}
		if flagCSV {
			rows := make([]calibrationRow, len(cals))
			for i, c := range cals {
				rows[i] = calibrationRow{c.ID, c.AccountID, c.Date.Format("2006-01-02T15:04:05Z07:00"), c.Balance.String(), string(c.Source), c.IsOpening}
			}
			return writeCSV(&rows)
		}
		if len(cals) == 0 {
			fmt.Println("No calibrations found.")
			return nil
		}
		fmt.Println(headerStyle.Render(fmt.Sprintf("%-17s %14s  %-7s %s", "DATE", "BALANCE", "SOURCE", "ID")))
		for _, c := range cals {
			fmt.Printf("%-17s %14s  %-7s %s\n", c.Date.Format("2006-01-02 15:04"), c.Balance, c.Source, dimStyle.Render(c.ID))
		}
		return nil
	},
}

var calibrateDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a calibration and the issues that cite it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := apiClient().DeleteCalibration(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Calibration %s deleted.\n", args[0])
		return nil
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Check calibrations against recorded transfers",
}

var (
	recStart        string
	recEnd          string
	recIssueAccount string
	recIssueStatus  string
)

func reconcileRange() (ledger.TimeRange, error) {
	start, err := parseOptionalInstant(recStart)
	if err != nil {
		return ledger.TimeRange{}, err
	}
	end, err := parseOptionalInstant(recEnd)
	if err != nil {
		return ledger.TimeRange{}, err
	}
	return ledger.TimeRange{Start: start, End: end}, nil
}

var reconcileCheckCmd = &cobra.Command{
	Use:   "check [account]",
	Short: "Reconcile one account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rng, err := reconcileRange()
		if err != nil {
			return err
		}
		res, err := apiClient().CheckAccount(context.Background(), args[0], rng)
		if err != nil {
			return err
		}
		printCheck(res)
		return nil
	},
}

var reconcileBatchCmd = &cobra.Command{
	Use:   "batch [account...]",
	Short: "Reconcile several accounts, or every active real account",
	RunE: func(cmd *cobra.Command, args []string) error {
		rng, err := reconcileRange()
		if err != nil {
			return err
		}
		batch, err := apiClient().CheckBatch(context.Background(), args, rng)
		if err != nil {
			return err
		}
		for i := range batch.Results {
			printCheck(&batch.Results[i])
		}
		fmt.Println(titleStyle.Render(fmt.Sprintf("%d checked, %d insufficient, %d failed, %d issues",
			batch.Checked, batch.Insufficient, batch.Failed, batch.IssuesFound)))
		return nil
	},
}

type issueRow struct {
	ID                string `csv:"id"`
	AccountID         string `csv:"account_id"`
	FromCalibrationID string `csv:"from_calibration_id"`
	ToCalibrationID   string `csv:"to_calibration_id"`
	PeriodStart       string `csv:"period_start"`
	PeriodEnd         string `csv:"period_end"`
	ExpectedDelta     string `csv:"expected_delta"`
	ActualDelta       string `csv:"actual_delta"`
	Diff              string `csv:"diff"`
	Status            string `csv:"status"`
}

var reconcileIssuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "List reconciliation issues",
	RunE: func(cmd *cobra.Command, args []string) error {
		issues, err := apiClient().ListIssues(context.Background(), recIssueAccount, recIssueStatus)
		if err != nil {
			return err
		}
		if flagCSV {
			rows := make([]issueRow, len(issues))
			for i, is := range issues {
				rows[i] = issueRow{
					ID: is.ID, AccountID: is.AccountID,
					FromCalibrationID: is.FromCalibrationID, ToCalibrationID: is.ToCalibrationID,
					PeriodStart: is.PeriodStart.Format("2006-01-02T15:04:05Z07:00"), PeriodEnd: is.PeriodEnd.Format("2006-01-02T15:04:05Z07:00"),
					ExpectedDelta: is.ExpectedDelta.String(), ActualDelta: is.ActualDelta.String(), Diff: is.Diff.String(),
					Status: string(is.Status),
				}
			}
			return writeCSV(&rows)
		}
		if len(issues) == 0 {
			fmt.Println("No reconciliation issues.")
			return nil
		}
		fmt.Println(headerStyle.Render(fmt.Sprintf("%-20s %-10s %-10s %12s %12s %12s  %-8s %s",
			"ACCOUNT", "FROM", "TO", "EXPECTED", "ACTUAL", "DIFF", "STATUS", "ID")))
		for _, is := range issues {
			fmt.Printf("%-20s %-10s %-10s %12s %12s %12s  %-8s %s\n",
				truncate(is.AccountID, 20), is.PeriodStart.Format("2006-01-02"), is.PeriodEnd.Format("2006-01-02"),
				is.ExpectedDelta, is.ActualDelta, is.Diff, issueStatusLabel(is.Status), dimStyle.Render(is.ID))
		}
		return nil
	},
}

func issueStatusCmd(use, short string, status ledger.IssueStatus) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [issue-id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			issue, err := apiClient().SetIssueStatus(context.Background(), args[0], status)
			if err != nil {
				return err
			}
			fmt.Printf("Issue %s is now %s.\n", issue.ID, issueStatusLabel(issue.Status))
			return nil
		},
	}
}

func printCheck(r *reconcile.Result) {
	switch r.Status {
	case reconcile.StatusInsufficient:
		fmt.Printf("%s: %s\n", r.AccountID, dimStyle.Render(fmt.Sprintf("%d calibration(s), nothing to compare", r.Calibrations)))
	case reconcile.StatusError:
		fmt.Printf("%s: %s\n", r.AccountID, errorStyle.Render(fmt.Sprintf("failed at %s: %s", r.Stage, r.Message)))
	default:
		if r.IssuesFound == 0 {
			fmt.Printf("%s: %s\n", r.AccountID, successStyle.Render(fmt.Sprintf("%d pair(s) reconcile", r.PairsChecked)))
			return
		}
		fmt.Printf("%s: %s\n", r.AccountID, warnStyle.Render(fmt.Sprintf("%d of %d pair(s) drift", r.IssuesFound, r.PairsChecked)))
		for _, is := range r.Issues {
			if is.Status != ledger.IssueOpen {
				continue
			}
			fmt.Printf("  %s -> %s  expected %s, recorded %s, diff %s\n",
				is.PeriodStart.Format("2006-01-02"), is.PeriodEnd.Format("2006-01-02"),
				is.ExpectedDelta, is.ActualDelta, errorStyle.Render(is.Diff.String()))
		}
	}
}

func init() {
	calibrateAddCmd.Flags().StringVar(&calBalance, "balance", "", "Observed balance")
	calibrateAddCmd.Flags().StringVar(&calDate, "date", "", "Instant of the observation (YYYY-MM-DD or RFC3339, default now)")
	calibrateAddCmd.Flags().StringVar(&calSource, "source", "manual", "manual or import")
	calibrateAddCmd.Flags().BoolVar(&calNoReconcile, "no-reconcile", false, "Skip the reconciliation check")
	calibrateAddCmd.MarkFlagRequired("balance")
	calibrateListCmd.Flags().BoolVar(&flagCSV, "csv", false, "Write CSV")

	calibrateCmd.AddCommand(calibrateAddCmd)
	calibrateCmd.AddCommand(calibrateListCmd)
	calibrateCmd.AddCommand(calibrateDeleteCmd)
	rootCmd.AddCommand(calibrateCmd)

	for _, c := range []*cobra.Command{reconcileCheckCmd, reconcileBatchCmd} {
		c.Flags().StringVar(&recStart, "start", "", "Only calibrations at or after this instant")
		c.Flags().StringVar(&recEnd, "end", "", "Only calibrations at or before this instant")
	}
	reconcileIssuesCmd.Flags().StringVar(&recIssueAccount, "account", "", "Filter by account")
	reconcileIssuesCmd.Flags().StringVar(&recIssueStatus, "status", "", "open, resolved or ignored")
	reconcileIssuesCmd.Flags().BoolVar(&flagCSV, "csv", false, "Write CSV")

	reconcileCmd.AddCommand(reconcileCheckCmd)
	reconcileCmd.AddCommand(reconcileBatchCmd)
	reconcileCmd.AddCommand(reconcileIssuesCmd)
	reconcileCmd.AddCommand(issueStatusCmd("resolve", "Mark an issue resolved", ledger.IssueResolved))
	reconcileCmd.AddCommand(issueStatusCmd("ignore", "Ignore an issue", ledger.IssueIgnored))
	reconcileCmd.AddCommand(issueStatusCmd("reopen", "Reopen an issue", ledger.IssueOpen))
	rootCmd.AddCommand(reconcileCmd)
}
