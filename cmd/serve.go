package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/simonvc/ledgerbook/internal/budget"
	"github.com/simonvc/ledgerbook/internal/server"
	"github.com/simonvc/ledgerbook/internal/store"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server and the budget refresh scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr = serveAddr
		}
		tol, err := cfg.ToleranceDecimal()
		if err != nil {
			return err
		}
		loc, err := cfg.Location()
		if err != nil {
			return err
		}

		st, err := store.Open(cfg.DB.Path)
		if err != nil {
			return err
		}
		defer st.Close()

		srv := server.New(st, logger, server.Options{
			Addr:      cfg.Server.Addr,
			Tolerance: tol,
			Workers:   cfg.Reconcile.Workers,
			Location:  loc,
			Periods:   cfg.Budget.Periods,
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cfg.Budget.RefreshInterval > 0 {
			sched := budget.NewScheduler(srv.Budgets(), logger, cfg.Budget.RefreshInterval)
			go sched.Run(ctx)
		}
		return srv.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8888", "Listen address")
	rootCmd.AddCommand(serveCmd)
}
