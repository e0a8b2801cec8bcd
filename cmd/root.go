package cmd

import (
	"github.com/simonvc/ledgerbook/internal/client"
	"github.com/simonvc/ledgerbook/internal/config"
	"github.com/simonvc/ledgerbook/internal/logging"
	"github.com/spf13/cobra"
)

var (
	flagServer string
	flagDB     string
	flagConfig string
	flagCSV    bool

	cfg    *config.Config
	logger logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ledgerbook",
	Short: "Personal ledger with balance calibration, reconciliation and budgets",
	Long: "A personal bookkeeping ledger backed by SQLite. Balances are derived from user-asserted " +
		"calibrations plus recorded transfers, drift between calibrations is reported as reconciliation " +
		"issues, and budget plans track spending per week or month.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("server") {
			loaded.Server.URL = flagServer
		}
		if cmd.Flags().Changed("db") {
			loaded.DB.Path = flagDB
		}
		cfg = loaded
		logger = logging.NewLogrusAdapter(cfg.Log.Level, cfg.Log.Format)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "http://localhost:8888", "Server address")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "ledgerbook.db", "SQLite database path")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default: config.yaml in $HOME/.ledgerbook, .ledgerbook or .)")
}

func Execute() error {
	return rootCmd.Execute()
}

func apiClient() *client.Client {
	return client.New(cfg.Server.URL)
}
