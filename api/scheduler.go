/*
scheduler.go - Automated overdue sweep

PURPOSE:
  Periodically recomputes the dashboard figures and logs every customer
  with an overdue credit, so the store owner sees who to follow up with
  in the morning log and on the Prometheus gauges.

DESIGN:
  - Runs on a cron schedule (robfig/cron, standard 5-field spec)
  - Read only: the sweep never writes to the ledger
  - A failed run is logged and counted; the next run starts fresh
  - Runs never overlap; a slow run makes the next one wait

CONFIGURATION:
  - Schedule: cron spec (default "0 7 * * *", every day at 07:00)
  - Location: time zone the spec is read in (the store's)
  - Empty schedule disables the sweeper

USAGE:
  sweeper := NewOverdueSweeper(svc, metrics, log)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - ledger/kpi.go: Summary
  - observability/metrics.go: gauges updated by each run
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sarisari/tindahan/ledger"
	"github.com/sarisari/tindahan/observability"
	"github.com/sirupsen/logrus"
)

// SweepResult is the outcome of one overdue sweep.
type SweepResult struct {
	RanAt            time.Time
	Overdue          []ledger.CustomerSummary
	TotalOutstanding string
}

// OverdueSweeper handles the scheduled overdue sweep.
type OverdueSweeper struct {
	Service  *ledger.Service
	Metrics  *observability.Metrics
	Log      logrus.FieldLogger
	Schedule string
	Location *time.Location
	Timeout  time.Duration

	cron    *cron.Cron
	mu      sync.Mutex
	lastRun *SweepResult
}

// NewOverdueSweeper creates a new sweeper with the default schedule.
func NewOverdueSweeper(svc *ledger.Service, metrics *observability.Metrics, log logrus.FieldLogger) *OverdueSweeper {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &OverdueSweeper{
		Service:  svc,
		Metrics:  metrics,
		Log:      log.WithField("component", "sweeper"),
		Schedule: "0 7 * * *",
		Location: svc.Location(),
		Timeout:  time.Minute,
	}
}

// Start begins the sweeper. An empty schedule leaves it disabled.
func (s *OverdueSweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Schedule == "" {
		s.Log.Info("disabled, not starting")
		return nil
	}
	if s.cron != nil {
		return nil
	}

	c := cron.New(
		cron.WithLocation(s.Location),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(s.Schedule, func() { s.RunNow(context.Background()) }); err != nil {
		return fmt.Errorf("sweep schedule %q: %w", s.Schedule, err)
	}
	c.Start()
	s.cron = c

	s.Log.WithField("schedule", s.Schedule).Info("started")
	return nil
}

// Stop stops the sweeper and waits for a running sweep to finish.
func (s *OverdueSweeper) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
		s.Log.Info("stopped")
	}
}

// RunNow triggers an immediate sweep (for testing/admin).
func (s *OverdueSweeper) RunNow(ctx context.Context) (*SweepResult, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	res, err := s.sweep(ctx)
	s.Metrics.RecordSweep(err)
	if err != nil {
		s.Log.WithError(err).Error("overdue sweep failed")
		return nil, err
	}

	s.mu.Lock()
	s.lastRun = res
	s.mu.Unlock()
	return res, nil
}

// LastRun returns the most recent successful sweep, or nil.
func (s *OverdueSweeper) LastRun() *SweepResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

func (s *OverdueSweeper) sweep(ctx context.Context) (*SweepResult, error) {
	k, err := s.Service.Summary(ctx)
	if err != nil {
		return nil, err
	}
	s.Metrics.ObserveSummary(k)

	overdue, err := s.Service.ListCustomers(ctx, ledger.FilterOverdue, ledger.SortBalanceDesc)
	if err != nil {
		return nil, err
	}

	for _, cs := range overdue {
		entry := s.Log.WithFields(logrus.Fields{
			"customer_id": cs.ID,
			"customer":    cs.Name,
			"outstanding": cs.OutstandingBalance.StringFixed(2),
		})
		if cs.DaysOverdue != nil {
			entry = entry.WithField("days_overdue", *cs.DaysOverdue)
		}
		entry.Warn("customer overdue")
	}
	s.Log.WithFields(logrus.Fields{
		"overdue_customers": len(overdue),
		"total_outstanding": k.TotalOutstanding.StringFixed(2),
	}).Info("overdue sweep complete")

	return &SweepResult{
		RanAt:            s.Service.Today(),
		Overdue:          overdue,
		TotalOutstanding: k.TotalOutstanding.StringFixed(2),
	}, nil
}
