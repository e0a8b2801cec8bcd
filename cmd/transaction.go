package cmd

import (
	"context"
	"fmt"

	"github.com/simonvc/ledgerbook/internal/ledger"
	"github.com/spf13/cobra"
)

var transactionCmd = &cobra.Command{
	Use:     "transaction",
	Aliases: []string{"txn"},
	Short:   "Manage transfers between accounts",
}

// transaction create
var (
	txnFrom        string
	txnTo          string
	txnAmount      string
	txnFromAmount  string
	txnToAmount    string
	txnDate        string
	txnNature      string
	txnDescription string
)

var transactionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Record a transfer",
	Long: "Record a transfer of --amount from one account to another. --amount is in the sending " +
		"account's currency; give --to-amount when the receiving account holds another currency.",
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := ledger.ParseAmount(txnAmount)
		if err != nil {
			return err
		}
		fromAmount, err := parseOptionalDecimal(txnFromAmount)
		if err != nil {
			return err
		}
		toAmount, err := parseOptionalDecimal(txnToAmount)
		if err != nil {
			return err
		}
		date, err := parseInstant(txnDate)
		if err != nil {
			return err
		}

		txn := &ledger.Transaction{
			FromAccountID: txnFrom,
			ToAccountID:   txnTo,
			Amount:        amount,
			FromAmount:    fromAmount,
			ToAmount:      toAmount,
			Date:          date,
			Nature:        ledger.ParseNature(txnNature),
			Description:   txnDescription,
		}
		created, err := apiClient().CreateTransaction(context.Background(), txn)
		if err != nil {
			return err
		}

		fmt.Printf("Transaction created: %s\n", created.ID)
		printTransaction(created)
		return nil
	},
}

// transaction list
var (
	txnListAccount string
	txnListLimit   int
)

type transactionRow struct {
	ID          string `csv:"id"`
	Date        string `csv:"date"`
	From        string `csv:"from_account_id"`
	To          string `csv:"to_account_id"`
	Amount      string `csv:"amount"`
	FromAmount  string `csv:"from_amount"`
	ToAmount    string `csv:"to_amount"`
	Nature      string `csv:"nature"`
	IsOpening   bool   `csv:"is_opening"`
	Description string `csv:"description"`
}

var transactionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List transfers, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		txns, err := apiClient().ListTransactions(context.Background(), txnListAccount, txnListLimit)
		if err != nil {
			return err
		}

		if flagCSV {
			rows := make([]transactionRow, len(txns))
			for i, t := range txns {
				rows[i] = transactionRow{
					ID: t.ID, Date: t.Date.Format("2006-01-02T15:04:05Z07:00"), From: t.FromAccountID, To: t.ToAccountID,
					Amount: t.Amount.String(), FromAmount: formatNull(t.FromAmount), ToAmount: formatNull(t.ToAmount),
					Nature: string(t.Nature), IsOpening: t.IsOpening, Description: t.Description,
				}
			}
			return writeCSV(&rows)
		}

		if len(txns) == 0 {
			fmt.Println("No transactions found.")
			return nil
		}
		fmt.Println(headerStyle.Render(fmt.Sprintf("%-10s %-22s %-22s %14s  %s", "DATE", "FROM", "TO", "AMOUNT", "DESCRIPTION")))
		for _, t := range txns {
			fmt.Printf("%-10s %-22s %-22s %14s  %s\n",
				t.Date.Format("2006-01-02"), truncate(t.FromAccountID, 22), truncate(t.ToAccountID, 22),
				t.Amount.String(), truncate(t.Description, 40))
		}
		return nil
	},
}

var transactionGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show a transfer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		txn, err := apiClient().GetTransaction(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("ID:          %s\n", txn.ID)
		printTransaction(txn)
		return nil
	},
}

var transactionDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a transfer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := apiClient().DeleteTransaction(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Transaction %s deleted.\n", args[0])
		return nil
	},
}

func printTransaction(t *ledger.Transaction) {
	fmt.Printf("Date:        %s\n", t.Date.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("From:        %s %s\n", t.FromAccountID, errorStyle.Render("-"+ledger.DisplayAmount(t.OutflowAmount(), t.FromCurrency)))
	fmt.Printf("To:          %s %s\n", t.ToAccountID, successStyle.Render("+"+ledger.DisplayAmount(t.InflowAmount(), t.ToCurrency)))
	fmt.Printf("Nature:      %s\n", t.Nature)
	if t.IsOpening {
		fmt.Printf("Opening:     %s\n", dimStyle.Render("yes"))
	}
	if t.Description != "" {
		fmt.Printf("Description: %s\n", t.Description)
	}
}

func init() {
	transactionCreateCmd.Flags().StringVar(&txnFrom, "from", "", "Sending account ID")
	transactionCreateCmd.Flags().StringVar(&txnTo, "to", "", "Receiving account ID")
	transactionCreateCmd.Flags().StringVar(&txnAmount, "amount", "", "Amount in the sending account's currency")
	transactionCreateCmd.Flags().StringVar(&txnFromAmount, "from-amount", "", "Amount debited from the sender, if it differs")
	transactionCreateCmd.Flags().StringVar(&txnToAmount, "to-amount", "", "Amount credited to the receiver, required across currencies")
	transactionCreateCmd.Flags().StringVar(&txnDate, "date", "", "Date (YYYY-MM-DD or RFC3339, default now)")
	transactionCreateCmd.Flags().StringVar(&txnNature, "nature", "regular", "regular, unexpected or periodic")
	transactionCreateCmd.Flags().StringVar(&txnDescription, "description", "", "Description")
	transactionCreateCmd.MarkFlagRequired("from")
	transactionCreateCmd.MarkFlagRequired("to")
	transactionCreateCmd.MarkFlagRequired("amount")

	transactionListCmd.Flags().StringVar(&txnListAccount, "account", "", "Only transfers touching this account")
	transactionListCmd.Flags().IntVar(&txnListLimit, "limit", 100, "Maximum rows (0 for all)")
	transactionListCmd.Flags().BoolVar(&flagCSV, "csv", false, "Write CSV")

	transactionCmd.AddCommand(transactionCreateCmd)
	transactionCmd.AddCommand(transactionListCmd)
	transactionCmd.AddCommand(transactionGetCmd)
	transactionCmd.AddCommand(transactionDeleteCmd)

	rootCmd.AddCommand(transactionCmd)
}
