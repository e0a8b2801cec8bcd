package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"github.com/simonvc/ledgerbook/internal/balance"
	"github.com/simonvc/ledgerbook/internal/budget"
	"github.com/simonvc/ledgerbook/internal/logging"
	"github.com/simonvc/ledgerbook/internal/reconcile"
	"github.com/simonvc/ledgerbook/internal/store"
)

// Options tune the engines the server drives.
type Options struct {
	Addr      string
	Tolerance decimal.Decimal
	Workers   int
	Location  *time.Location
	Periods   int
}

type Server struct {
	store     *store.Store
	balances  *balance.Calculator
	reconcile *reconcile.Engine
	budgets   *budget.Engine
	log       logging.Logger
	router    chi.Router
	addr      string
	loc       *time.Location
	now       func() time.Time
}

func New(st *store.Store, log logging.Logger, opts Options) *Server {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	tol := opts.Tolerance
	if tol.IsZero() {
		tol = reconcile.DefaultTolerance
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	s := &Server{
		store:     st,
		balances:  balance.NewCalculator(st),
		reconcile: reconcile.NewEngine(st, log, reconcile.WithTolerance(tol), reconcile.WithWorkers(opts.Workers)),
		budgets: budget.NewEngine(st, log,
			budget.WithLocation(loc), budget.WithPeriodCount(opts.Periods), budget.WithWorkers(opts.Workers)),
		log:    log,
		router: r,
		addr:   opts.Addr,
		loc:    loc,
		now:    time.Now,
	}

	r.Get("/healthz", s.healthz)

	r.Route("/api/v1", func(r chi.Router) {
		// Accounts
		r.Post("/accounts", s.createAccount)
		r.Get("/accounts", s.listAccounts)
		r.Post("/accounts/seed", s.seedChart)
		r.Get("/accounts/{id}", s.getAccount)
		r.Patch("/accounts/{id}", s.updateAccount)
		r.Get("/accounts/{id}/balance", s.getAccountBalance)
		r.Post("/accounts/{id}/opening", s.createOpening)

		// Calibrations
		r.Post("/accounts/{id}/calibrations", s.createCalibration)
		r.Get("/accounts/{id}/calibrations", s.listCalibrations)
		r.Delete("/calibrations/{id}", s.deleteCalibration)

		// Transactions
		r.Post("/transactions", s.createTransaction)
		r.Get("/transactions", s.listTransactions)
		r.Get("/transactions/{id}", s.getTransaction)
		r.Delete("/transactions/{id}", s.deleteTransaction)

		// Reconciliation
		r.Post("/reconciliation/check", s.checkAccount)
		r.Post("/reconciliation/batch", s.checkBatch)
		r.Get("/reconciliation/issues", s.listIssues)
		r.Patch("/reconciliation/issues/{id}", s.setIssueStatus)

		// Exchange rates
		r.Put("/rates", s.upsertRate)
		r.Get("/rates", s.listRates)

		// Budgets
		r.Post("/budgets", s.createBudget)
		r.Get("/budgets", s.listBudgets)
		r.Post("/budgets/refresh", s.refreshBudgets)
		r.Get("/budgets/{id}", s.getBudget)
		r.Get("/budgets/{id}/periods", s.listBudgetPeriods)
		r.Get("/budgets/{id}/spend", s.budgetSpend)
		r.Post("/budgets/{id}/restart", s.restartBudget)
		r.Post("/budgets/{id}/pause", s.pauseBudget)
		r.Post("/budgets/{id}/period-type", s.changePeriodType)
	})

	return s
}

// Budgets exposes the budget engine so the scheduler shares it.
func (s *Server) Budgets() *budget.Engine {
	return s.budgets
}

func (s *Server) ListenAndServe() error {
	s.log.Info("ledgerbook server listening", logging.F("addr", s.addr))
	return http.ListenAndServe(s.addr, s.router)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("ledgerbook server listening", logging.F("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Serve(ln net.Listener) error {
	s.log.Info("ledgerbook server listening", logging.F("addr", ln.Addr().String()))
	return http.Serve(ln, s.router)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requestLogger writes one line per request.
func requestLogger(log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			fields := []logging.Field{
				logging.F(logging.FieldMethod, r.Method),
				logging.F(logging.FieldPath, r.URL.Path),
				logging.F(logging.FieldStatus, ww.Status()),
				logging.F(logging.FieldDuration, time.Since(start).Milliseconds()),
				logging.F(logging.FieldRequestID, middleware.GetReqID(r.Context())),
			}
			if ww.Status() >= http.StatusInternalServerError {
				log.Error("HTTP request", fields...)
				return
			}
			log.Debug("HTTP request", fields...)
		})
	}
}
