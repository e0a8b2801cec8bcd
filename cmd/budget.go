package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/simonvc/ledgerbook/internal/budget"
	"github.com/simonvc/ledgerbook/internal/ledger"
	"github.com/spf13/cobra"
)

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Manage budget plans",
}

// budget create
var (
	bgName       string
	bgType       string
	bgCategory   string
	bgIncluded   []string
	bgPeriod     string
	bgHard       string
	bgSoft       string
	bgCurrency   string
	bgFilterMode string
	bgFilterIDs  []string
	bgStart      string
)

var budgetCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a budget plan",
	RunE: func(cmd *cobra.Command, args []string) error {
		hard, err := ledger.ParseAmount(bgHard)
		if err != nil {
			return err
		}
		soft, err := parseOptionalDecimal(bgSoft)
		if err != nil {
			return err
		}
		start, err := parseCivil(bgStart)
		if err != nil {
			return err
		}
		if !start.IsValid() {
			if start, err = today(); err != nil {
				return err
			}
		}

		plan := &ledger.BudgetPlan{
			Name:                bgName,
			PlanType:            ledger.ParsePlanType(bgType),
			CategoryAccountID:   bgCategory,
			IncludedCategoryIDs: bgIncluded,
			Period:              ledger.ParsePeriodType(bgPeriod),
			HardLimit:           hard,
			SoftLimit:           soft,
			LimitCurrency:       strings.ToUpper(bgCurrency),
			FilterMode:          ledger.ParseFilterMode(bgFilterMode),
			FilterAccountIDs:    bgFilterIDs,
			StartDate:           start,
		}
		res, err := apiClient().CreateBudget(context.Background(), plan)
		if err != nil {
			return err
		}
		fmt.Printf("Budget plan created: %s (%s)\n", res.Plan.ID, res.Plan.Name)
		printPeriods(res.Plan, res.Periods)
		return nil
	},
}

// budget list
var bgListStatus string

type planRow struct {
	ID            string `csv:"id"`
	Name          string `csv:"name"`
	PlanType      string `csv:"plan_type"`
	Target        string `csv:"target"`
	Period        string `csv:"period"`
	HardLimit     string `csv:"hard_limit"`
	SoftLimit     string `csv:"soft_limit"`
	LimitCurrency string `csv:"limit_currency"`
	StartDate     string `csv:"start_date"`
	EndDate       string `csv:"end_date"`
	Round         int    `csv:"round_number"`
	Status        string `csv:"status"`
}

var budgetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List budget plans",
	RunE: func(cmd *cobra.Command, args []string) error {
		plans, err := apiClient().ListBudgets(context.Background(), bgListStatus)
		if err != nil {
			return err
		}
		if flagCSV {
			rows := make([]planRow, len(plans))
			for i, p := range plans {
				i, p := i, p
				rows[i] = planRow{
					ID: p.ID, Name: p.Name, PlanType: string(p.PlanType), Target: planTarget(&p),
					Period: string(p.Period), HardLimit: p.HardLimit.String(), SoftLimit: formatNull(p.SoftLimit),
					LimitCurrency: p.LimitCurrency, StartDate: p.StartDate.String(), EndDate: p.EndDate.String(),
					Round: p.RoundNumber, Status: string(p.Status),
				}
			}
			return writeCSV(&rows)
		}
		if len(plans) == 0 {
			fmt.Println("No budget plans.")
			return nil
		}
		fmt.Println(headerStyle.Render(fmt.Sprintf("%-20s %-22s %-8s %12s %12s  %-23s %-5s %s",
			"NAME", "TARGET", "PERIOD", "HARD", "SOFT", "ROUND DATES", "ROUND", "STATUS")))
		for _, p := range plans {
			p := p
			line := fmt.Sprintf("%-20s %-22s %-8s %12s %12s  %-23s %-5d %s",
				truncate(p.Name, 20), truncate(planTarget(&p), 22), p.Period,
				p.HardLimit.StringFixed(2)+" "+p.LimitCurrency, formatNull(p.SoftLimit),
				p.StartDate.String()+".."+p.EndDate.String(), p.RoundNumber, p.Status)
			if p.Status != ledger.PlanActive {
				line = dimStyle.Render(line)
			}
			fmt.Println(line)
			fmt.Println(dimStyle.Render("  " + p.ID))
		}
		return nil
	},
}

// budget periods
var bgPeriodsAll bool

type periodRow struct {
	PlanID      string `csv:"plan_id"`
	Round       int    `csv:"round_number"`
	Index       int    `csv:"period_index"`
	PeriodStart string `csv:"period_start"`
	PeriodEnd   string `csv:"period_end"`
	HardLimit   string `csv:"hard_limit"`
	SoftLimit   string `csv:"soft_limit"`
	Actual      string `csv:"actual_amount"`
	Indicator   string `csv:"indicator_status"`
}

var budgetPeriodsCmd = &cobra.Command{
	Use:   "periods [plan-id]",
	Short: "Show a plan's periods and their indicators",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := apiClient()
		plan, err := c.GetBudget(context.Background(), args[0])
		if err != nil {
			return err
		}
		periods, err := c.ListBudgetPeriods(context.Background(), args[0], bgPeriodsAll)
		if err != nil {
			return err
		}
		if flagCSV {
			rows := make([]periodRow, len(periods))
			for i, p := range periods {
				rows[i] = periodRow{
					PlanID: p.PlanID, Round: p.RoundNumber, Index: p.PeriodIndex,
					PeriodStart: p.PeriodStart.String(), PeriodEnd: p.PeriodEnd.String(),
					HardLimit: p.HardLimit.String(), SoftLimit: formatNull(p.SoftLimit),
					Actual: formatNull(p.ActualAmount), Indicator: string(p.Indicator),
				}
			}
			return writeCSV(&rows)
		}
		printPeriods(plan, periods)
		return nil
	},
}

// budget restart
var (
	bgRestartStart string
	bgRestartHard  string
	bgRestartSoft  string
)

var budgetRestartCmd = &cobra.Command{
	Use:   "restart [plan-id]",
	Short: "Start a new round of a plan, optionally with a new start date or limits",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts budget.RestartOptions
		if bgRestartStart != "" {
			d, err := parseCivil(bgRestartStart)
			if err != nil {
				return err
			}
			opts.StartDate = &d
		}
		if bgRestartHard != "" {
			h, err := ledger.ParseAmount(bgRestartHard)
			if err != nil {
				return err
			}
			opts.HardLimit = &h
		}
		if cmd.Flags().Changed("soft") {
			s, err := parseOptionalDecimal(bgRestartSoft)
			if err != nil {
				return err
			}
			opts.SoftLimit = &s
		}
		res, err := apiClient().RestartBudget(context.Background(), args[0], opts)
		if err != nil {
			return err
		}
		fmt.Printf("Plan %s restarted, round %d.\n", res.Plan.ID, res.Plan.RoundNumber)
		printPeriods(res.Plan, res.Periods)
		return nil
	},
}

var budgetPauseCmd = &cobra.Command{
	Use:   "pause [plan-id]",
	Short: "Pause a plan until it is restarted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plan, err := apiClient().PauseBudget(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Plan %s is %s.\n", plan.ID, plan.Status)
		return nil
	},
}

// budget period-type
var (
	bgChangePeriod string
	bgChangeStart  string
)

var budgetPeriodTypeCmd = &cobra.Command{
	Use:   "period-type [plan-id]",
	Short: "Switch a plan between weekly and monthly periods",
	Long:  "Switch a plan between weekly and monthly periods. The periods of the current round are deleted and cannot be recovered.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := parseCivil(bgChangeStart)
		if err != nil {
			return err
		}
		if !start.IsValid() {
			if start, err = today(); err != nil {
				return err
			}
		}
		res, err := apiClient().ChangePeriodType(context.Background(), args[0], ledger.ParsePeriodType(bgChangePeriod), start)
		if err != nil {
			return err
		}
		fmt.Printf("Plan %s is now %s, round %d.\n", res.Plan.ID, res.Plan.Period, res.Plan.RoundNumber)
		printPeriods(res.Plan, res.Periods)
		return nil
	},
}

var bgRefreshToday string

var budgetRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Recompute the active period of every active plan",
	RunE: func(cmd *cobra.Command, args []string) error {
		today, err := parseCivil(bgRefreshToday)
		if err != nil {
			return err
		}
		res, err := apiClient().RefreshBudgets(context.Background(), today)
		if err != nil {
			return err
		}
		for _, o := range res.Outcomes {
			if o.Stage != "" {
				fmt.Printf("%s %s\n", o.PeriodID, errorStyle.Render(fmt.Sprintf("failed at %s: %s", o.Stage, o.Message)))
				continue
			}
			fmt.Printf("%s %12s  %s\n", o.PeriodID, formatNull(o.Actual), indicatorLabel(o.Indicator))
		}
		fmt.Println(titleStyle.Render(fmt.Sprintf("%s: %d updated, %d failed", res.Today, res.Updated, res.Failed)))
		return nil
	},
}

var (
	bgSpendStart string
	bgSpendEnd   string
)

var budgetSpendCmd = &cobra.Command{
	Use:   "spend [plan-id]",
	Short: "Compute a plan's spending over a date range",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := parseCivil(bgSpendStart)
		if err != nil {
			return err
		}
		end, err := parseCivil(bgSpendEnd)
		if err != nil {
			return err
		}
		res, err := apiClient().BudgetSpend(context.Background(), args[0], start, end)
		if err != nil {
			return err
		}
		fmt.Printf("%s .. %s: %s\n", res.Start, res.End, titleStyle.Render(ledger.DisplayAmount(res.Amount, res.Currency)))
		return nil
	},
}

func planTarget(p *ledger.BudgetPlan) string {
	if p.PlanType == ledger.PlanCategory {
		return p.CategoryAccountID
	}
	if len(p.IncludedCategoryIDs) == 0 {
		return "all expenses"
	}
	return strings.Join(p.IncludedCategoryIDs, ",")
}

func printPeriods(plan *ledger.BudgetPlan, periods []ledger.BudgetPeriodRecord) {
	fmt.Println(headerStyle.Render(fmt.Sprintf("%-5s %-3s %-10s %-10s %12s %12s %12s  %s",
		"ROUND", "#", "START", "END", "HARD", "SOFT", "ACTUAL", "STATUS")))
	for _, p := range periods {
		fmt.Printf("%-5d %-3d %-10s %-10s %12s %12s %12s  %s\n",
			p.RoundNumber, p.PeriodIndex, p.PeriodStart, p.PeriodEnd,
			ledger.FormatAmount(p.HardLimit, plan.LimitCurrency), formatNull(p.SoftLimit), formatNull(p.ActualAmount),
			indicatorLabel(p.Indicator))
	}
}

func init() {
	budgetCreateCmd.Flags().StringVar(&bgName, "name", "", "Plan name")
	budgetCreateCmd.Flags().StringVar(&bgType, "type", "category", "category or total")
	budgetCreateCmd.Flags().StringVar(&bgCategory, "category", "", "Target category account (category plans)")
	budgetCreateCmd.Flags().StringSliceVar(&bgIncluded, "include", nil, "Categories counted by a total plan (default all expense accounts)")
	budgetCreateCmd.Flags().StringVar(&bgPeriod, "period", "monthly", "weekly or monthly")
	budgetCreateCmd.Flags().StringVar(&bgHard, "hard", "", "Hard limit per period")
	budgetCreateCmd.Flags().StringVar(&bgSoft, "soft", "", "Soft limit per period (optional)")
	budgetCreateCmd.Flags().StringVar(&bgCurrency, "currency", "", "Limit currency")
	budgetCreateCmd.Flags().StringVar(&bgFilterMode, "filter", "all", "Source account filter: all, include or exclude")
	budgetCreateCmd.Flags().StringSliceVar(&bgFilterIDs, "filter-account", nil, "Source accounts for --filter include/exclude")
	budgetCreateCmd.Flags().StringVar(&bgStart, "start", "", "First day of the first period (default today)")
	budgetCreateCmd.MarkFlagRequired("name")
	budgetCreateCmd.MarkFlagRequired("hard")
	budgetCreateCmd.MarkFlagRequired("currency")

	budgetListCmd.Flags().StringVar(&bgListStatus, "status", "", "active, paused or expired")
	budgetListCmd.Flags().BoolVar(&flagCSV, "csv", false, "Write CSV")

	budgetPeriodsCmd.Flags().BoolVar(&bgPeriodsAll, "all", false, "Include earlier rounds")
	budgetPeriodsCmd.Flags().BoolVar(&flagCSV, "csv", false, "Write CSV")

	budgetRestartCmd.Flags().StringVar(&bgRestartStart, "start", "", "New start date")
	budgetRestartCmd.Flags().StringVar(&bgRestartHard, "hard", "", "New hard limit")
	budgetRestartCmd.Flags().StringVar(&bgRestartSoft, "soft", "", "New soft limit (empty disables it)")

	budgetPeriodTypeCmd.Flags().StringVar(&bgChangePeriod, "period", "", "weekly or monthly")
	budgetPeriodTypeCmd.Flags().StringVar(&bgChangeStart, "start", "", "Start of the new round (default today)")
	budgetPeriodTypeCmd.MarkFlagRequired("period")

	budgetRefreshCmd.Flags().StringVar(&bgRefreshToday, "today", "", "Evaluate as of this date (default today on the server)")

	budgetSpendCmd.Flags().StringVar(&bgSpendStart, "start", "", "First day (default plan start)")
	budgetSpendCmd.Flags().StringVar(&bgSpendEnd, "end", "", "Last day, inclusive (default plan end)")

	budgetCmd.AddCommand(budgetCreateCmd)
	budgetCmd.AddCommand(budgetListCmd)
	budgetCmd.AddCommand(budgetPeriodsCmd)
	budgetCmd.AddCommand(budgetRestartCmd)
	budgetCmd.AddCommand(budgetPauseCmd)
	budgetCmd.AddCommand(budgetPeriodTypeCmd)
	budgetCmd.AddCommand(budgetRefreshCmd)
	budgetCmd.AddCommand(budgetSpendCmd)
	rootCmd.AddCommand(budgetCmd)
}
