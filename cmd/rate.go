package cmd

import (
	"context"
	"fmt"

	"github.com/simonvc/ledgerbook/internal/ledger"
	"github.com/spf13/cobra"
)

var rateCmd = &cobra.Command{
	Use:   "rate",
	Short: "Manage exchange rates",
}

var rateSetCmd = &cobra.Command{
	Use:   "set [from] [to] [rate]",
	Short: "Set the rate converting one unit of from into to",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		rate, err := ledger.ParseAmount(args[2])
		if err != nil {
			return err
		}
		r, err := apiClient().SetRate(context.Background(), args[0], args[1], rate)
		if err != nil {
			return err
		}
		fmt.Printf("1 %s = %s %s\n", r.From, r.Rate, r.To)
		return nil
	},
}

type rateRow struct {
	From      string `csv:"from"`
	To        string `csv:"to"`
	Rate      string `csv:"rate"`
	UpdatedAt string `csv:"updated_at"`
}

var rateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List exchange rates",
	RunE: func(cmd *cobra.Command, args []string) error {
		rates, err := apiClient().ListRates(context.Background())
		if err != nil {
			return err
		}
		if flagCSV {
			rows := make([]rateRow, len(rates))
			for i, r := range rates {
				rows[i] = rateRow{r.From, r.To, r.Rate.String(), r.UpdatedAt.Format("2006-01-02T15:04:05Z07:00")}
			}
			return writeCSV(&rows)
		}
		if len(rates) == 0 {
			fmt.Println("No exchange rates configured.")
			return nil
		}
		fmt.Println(headerStyle.Render(fmt.Sprintf("%-4s %-4s %16s  %s", "FROM", "TO", "RATE", "UPDATED")))
		for _, r := range rates {
			fmt.Printf("%-4s %-4s %16s  %s\n", r.From, r.To, r.Rate, dimStyle.Render(r.UpdatedAt.Format("2006-01-02 15:04")))
		}
		return nil
	},
}

func init() {
	rateListCmd.Flags().BoolVar(&flagCSV, "csv", false, "Write CSV")
	rateCmd.AddCommand(rateSetCmd)
	rateCmd.AddCommand(rateListCmd)
	rootCmd.AddCommand(rateCmd)
}
