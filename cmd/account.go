package cmd

import (
	"context"
	"fmt"

	"github.com/simonvc/ledgerbook/internal/client"
	"github.com/simonvc/ledgerbook/internal/ledger"
	"github.com/spf13/cobra"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage accounts",
}

// account create
var (
	acctCreateID       string
	acctCreateName     string
	acctCreateParent   string
	acctCreateType     string
	acctCreateCurrency string
	acctCreateGroup    bool
)

var accountCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new account",
	RunE: func(cmd *cobra.Command, args []string) error {
		acct := &ledger.Account{
			ID:       acctCreateID,
			Name:     acctCreateName,
			ParentID: acctCreateParent,
			Type:     ledger.ParseAccountType(acctCreateType),
			IsGroup:  acctCreateGroup,
			Currency: acctCreateCurrency,
			IsActive: true,
		}

		created, err := apiClient().CreateAccount(context.Background(), acct)
		if err != nil {
			return err
		}

		fmt.Printf("Account created: %s (%s) %s/%s %s\n",
			created.ID, created.Name, created.Class, created.Type, created.Currency)
		return nil
	},
}

// account list
var (
	acctListType   string
	acctListParent string
	acctListActive bool
)

type accountRow struct {
	ID       string `csv:"id"`
	Name     string `csv:"name"`
	ParentID string `csv:"parent_id"`
	Class    string `csv:"class"`
	Type     string `csv:"type"`
	IsGroup  bool   `csv:"is_group"`
	Currency string `csv:"currency"`
	IsActive bool   `csv:"is_active"`
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		accounts, err := apiClient().ListAccounts(context.Background(), client.AccountQuery{
			Type:       acctListType,
			ParentID:   acctListParent,
			ActiveOnly: acctListActive,
		})
		if err != nil {
			return err
		}

		if flagCSV {
			rows := make([]accountRow, len(accounts))
			for i, a := range accounts {
				rows[i] = accountRow{a.ID, a.Name, a.ParentID, string(a.Class), string(a.Type), a.IsGroup, a.Currency, a.IsActive}
			}
			return writeCSV(&rows)
		}

		if len(accounts) == 0 {
			fmt.Println("No accounts found.")
			return nil
		}

		fmt.Println(headerStyle.Render(fmt.Sprintf("%-28s %-24s %-10s %-6s %s", "ID", "NAME", "TYPE", "GROUP", "CURRENCY")))
		for _, a := range accounts {
			line := fmt.Sprintf("%-28s %-24s %-10s %-6v %s", truncate(a.ID, 28), truncate(a.Name, 24), a.Type, a.IsGroup, a.Currency)
			if !a.IsActive {
				line = dimStyle.Render(line + " (inactive)")
			}
			fmt.Println(line)
		}
		return nil
	},
}

// account get
var accountGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Get account details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		acct, err := apiClient().GetAccount(context.Background(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("ID:       %s\n", acct.ID)
		fmt.Printf("Name:     %s\n", acct.Name)
		fmt.Printf("Parent:   %s\n", acct.ParentID)
		fmt.Printf("Class:    %s\n", acct.Class)
		fmt.Printf("Type:     %s\n", ledger.TypeLabel(acct.Type))
		fmt.Printf("Group:    %v\n", acct.IsGroup)
		fmt.Printf("Currency: %s\n", acct.Currency)
		fmt.Printf("Active:   %v\n", acct.IsActive)
		fmt.Printf("Created:  %s\n", acct.CreatedAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}

// account update
var (
	acctUpdateName     string
	acctUpdateParent   string
	acctUpdateCurrency string
	acctUpdateActive   bool
)

var accountUpdateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Rename, reparent, activate or deactivate an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var patch client.AccountPatch
		if cmd.Flags().Changed("name") {
			patch.Name = &acctUpdateName
		}
		if cmd.Flags().Changed("parent") {
			patch.ParentID = &acctUpdateParent
		}
		if cmd.Flags().Changed("currency") {
			patch.Currency = &acctUpdateCurrency
		}
		if cmd.Flags().Changed("active") {
			patch.IsActive = &acctUpdateActive
		}

		acct, err := apiClient().UpdateAccount(context.Background(), args[0], patch)
		if err != nil {
			return err
		}
		fmt.Printf("Account updated: %s (%s) parent=%q active=%v\n", acct.ID, acct.Name, acct.ParentID, acct.IsActive)
		return nil
	},
}

// account balance
var acctBalanceAt string

var accountBalanceCmd = &cobra.Command{
	Use:   "balance [id]",
	Short: "Show the projected balance of an account at an instant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		at, err := parseOptionalInstant(acctBalanceAt)
		if err != nil {
			return err
		}
		bal, err := apiClient().GetAccountBalance(context.Background(), args[0], at)
		if err != nil {
			return err
		}

		fmt.Printf("Account:  %s\n", bal.AccountID)
		fmt.Printf("At:       %s\n", bal.At.Format("2006-01-02 15:04:05 MST"))
		if bal.Anchor.CalibrationID != "" {
			fmt.Printf("Anchor:   %s on %s (%s)\n", bal.Anchor.Balance, bal.Anchor.Date.Format("2006-01-02"), dimStyle.Render(bal.Anchor.CalibrationID))
		} else {
			fmt.Printf("Anchor:   %s\n", dimStyle.Render("none, summed from the first transfer"))
		}
		fmt.Printf("Inflows:  %s\n", successStyle.Render("+"+bal.Inflows.String()))
		fmt.Printf("Outflows: %s\n", errorStyle.Render("-"+bal.Outflows.String()))
		fmt.Printf("Balance:  %s\n", titleStyle.Render(bal.Formatted))
		return nil
	},
}

// account opening
var (
	acctOpeningBalance string
	acctOpeningDate    string
)

var accountOpeningCmd = &cobra.Command{
	Use:   "opening [id]",
	Short: "Record an account's opening balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := ledger.ParseAmount(acctOpeningBalance)
		if err != nil {
			return err
		}
		at, err := parseInstant(acctOpeningDate)
		if err != nil {
			return err
		}
		res, err := apiClient().CreateOpening(context.Background(), args[0], amount, at)
		if err != nil {
			return err
		}
		fmt.Printf("Opening balance %s recorded for %s (transaction %s, calibration %s)\n",
			res.Calibration.Balance, args[0], res.Transaction.ID, res.Calibration.ID)
		return nil
	},
}

var accountSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the default income and expense category tree",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := apiClient().SeedChart(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("Seeded %d accounts.\n", n)
		return nil
	},
}

func init() {
	accountCreateCmd.Flags().StringVar(&acctCreateID, "id", "", "Account ID (e.g. bank:checking, expenses:food)")
	accountCreateCmd.Flags().StringVar(&acctCreateName, "name", "", "Account name")
	accountCreateCmd.Flags().StringVar(&acctCreateParent, "parent", "", "Parent account ID")
	accountCreateCmd.Flags().StringVar(&acctCreateType, "type", "", "asset, liability, income, expense or equity")
	accountCreateCmd.Flags().StringVar(&acctCreateCurrency, "currency", "", "Currency (ISO 4217), required for non-group asset and liability accounts")
	accountCreateCmd.Flags().BoolVar(&acctCreateGroup, "group", false, "Group account (cannot take transfers)")
	accountCreateCmd.MarkFlagRequired("id")
	accountCreateCmd.MarkFlagRequired("name")
	accountCreateCmd.MarkFlagRequired("type")

	accountListCmd.Flags().StringVar(&acctListType, "type", "", "Filter by type")
	accountListCmd.Flags().StringVar(&acctListParent, "parent", "", "Filter by parent")
	accountListCmd.Flags().BoolVar(&acctListActive, "active", false, "Only active accounts")
	accountListCmd.Flags().BoolVar(&flagCSV, "csv", false, "Write CSV")

	accountUpdateCmd.Flags().StringVar(&acctUpdateName, "name", "", "New name")
	accountUpdateCmd.Flags().StringVar(&acctUpdateParent, "parent", "", "New parent ID (empty for top level)")
	accountUpdateCmd.Flags().StringVar(&acctUpdateCurrency, "currency", "", "New currency (only before the first transfer)")
	accountUpdateCmd.Flags().BoolVar(&acctUpdateActive, "active", true, "Active flag")

	accountBalanceCmd.Flags().StringVar(&acctBalanceAt, "at", "", "Instant (YYYY-MM-DD or RFC3339, default now)")

	accountOpeningCmd.Flags().StringVar(&acctOpeningBalance, "balance", "", "Opening balance (negative for overdrawn or debt)")
	accountOpeningCmd.Flags().StringVar(&acctOpeningDate, "date", "", "Instant of the opening balance (YYYY-MM-DD or RFC3339)")
	accountOpeningCmd.MarkFlagRequired("balance")
	accountOpeningCmd.MarkFlagRequired("date")

	accountCmd.AddCommand(accountCreateCmd)
	accountCmd.AddCommand(accountListCmd)
	accountCmd.AddCommand(accountGetCmd)
	accountCmd.AddCommand(accountUpdateCmd)
	accountCmd.AddCommand(accountBalanceCmd)
	accountCmd.AddCommand(accountOpeningCmd)
	accountCmd.AddCommand(accountSeedCmd)

	rootCmd.AddCommand(accountCmd)
}
