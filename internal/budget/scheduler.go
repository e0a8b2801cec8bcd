package budget

import (
	"context"
	"time"

	"github.com/simonvc/ledgerbook/internal/logging"
)

// Scheduler runs the periodic budget pass: expire finished plans, then
// refresh every active period.
type Scheduler struct {
	engine   *Engine
	log      logging.Logger
	interval time.Duration
	now      func() time.Time
}

func NewScheduler(engine *Engine, log logging.Logger, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{engine: engine, log: log, interval: interval, now: time.Now}
}

// RunOnce performs a single pass. Failures are logged and returned.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	today := s.engine.Today(s.now())
	if _, err := s.engine.ExpirePlans(ctx, today); err != nil {
		s.log.WithError(err).Error("Expiring budget plans failed")
		return err
	}
	if _, err := s.engine.RefreshActivePeriods(ctx, today); err != nil {
		s.log.WithError(err).Error("Refreshing budget periods failed")
		return err
	}
	return nil
}

// Run performs a pass immediately and then on every tick until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("Budget scheduler started", logging.F("interval", s.interval.String()))
	_ = s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Budget scheduler stopped")
			return
		case <-ticker.C:
			_ = s.RunOnce(ctx)
		}
	}
}
