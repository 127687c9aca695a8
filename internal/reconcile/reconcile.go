// Package reconcile checks that the payment ledger holds enough currency to
// back every outstanding credit.
package reconcile

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/domaguardian/domaguardian/internal/ledger"
	"github.com/domaguardian/domaguardian/internal/node"
	"github.com/domaguardian/domaguardian/internal/observability/metrics"
)

// Reader gives read access to node state.
type Reader interface {
	Read(fn func(s *node.State))
}

// Run reconciles the ledger once and records the result.
func Run(r Reader, logger *slog.Logger) ledger.Reconciliation {
	var rec ledger.Reconciliation
	r.Read(func(s *node.State) {
		rec = s.Ledger.Reconcile()
	})

	metrics.LedgerReconciliation(rec.Outstanding, rec.Held, rec.Shortfall)
	if !rec.Balanced() {
		logger.Warn("ledger shortfall",
			"outstanding", rec.Outstanding.String(),
			"held", rec.Held.String(),
			"shortfall", rec.Shortfall.String(),
		)
	} else {
		logger.Debug("ledger balanced", "outstanding", rec.Outstanding.String(), "held", rec.Held.String())
	}
	return rec
}

// Job runs Run on a fixed interval.
type Job struct {
	scheduler *gocron.Scheduler
}

// Start schedules reconciliation every interval and starts the scheduler.
func Start(r Reader, interval time.Duration, logger *slog.Logger) (*Job, error) {
	seconds := int(interval / time.Second)
	if seconds <= 0 {
		return nil, fmt.Errorf("reconcile interval must be at least one second, got %s", interval)
	}

	s := gocron.NewScheduler(time.UTC)
	if _, err := s.Every(seconds).Seconds().SingletonMode().Do(func() { Run(r, logger) }); err != nil {
		return nil, fmt.Errorf("scheduling reconciliation: %w", err)
	}
	s.StartAsync()
	logger.Info("ledger reconciliation scheduled", "interval", interval)
	return &Job{scheduler: s}, nil
}

// Stop stops the scheduler and waits for a running reconciliation.
func (j *Job) Stop() {
	j.scheduler.Stop()
}
