package billing

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/adlens/adlens/internal/docstore"
	"github.com/adlens/adlens/internal/metrics"
)

// =============================================================================
// Reconciliation Sweep
// =============================================================================

// Reconciler sweeps all plan records and applies the monthly rollover where
// it is due, then repairs the profile mirror for the records it touched.
type Reconciler struct {
	plans  *PlanStore
	mirror *Mirror
	clock  Clock
	logger *slog.Logger
}

// NewReconciler creates a reconciler.
func NewReconciler(plans *PlanStore, mirror *Mirror, clock Clock, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		plans:  plans,
		mirror: mirror,
		clock:  clock,
		logger: logger,
	}
}

// Sweep applies the billing-period policy to every plan record and persists
// a reset where one is due. It returns the number of records reset.
//
// Idempotent: a record reset in this sweep carries lastUsageDate in the
// current month, so a second sweep in the same month skips it.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	now := r.clock.Now()

	records, err := r.plans.All(ctx)
	if err != nil {
		return 0, err
	}

	resets := 0
	for userID, record := range records {
		decision := EvaluateReset(record.LastUsageDate, now)
		if !decision.Reset {
			continue
		}
		if decision.Malformed {
			r.logger.Warn("unparseable last usage date during sweep, resetting usage",
				"user_id", userID,
				"last_usage_date", record.LastUsageDate,
			)
		}

		fields := docstore.Fields{
			"adsUsed":       0,
			"lastUsageDate": now.Format(time.RFC3339),
			"updatedAt":     now.Format(time.RFC3339),
		}
		if err := r.plans.Update(ctx, userID, fields); err != nil {
			r.logger.Error("failed to persist monthly reset",
				"user_id", userID,
				"error", err,
			)
			continue
		}

		metrics.MonthlyResetsTotal.Inc()
		resets++

		r.mirror.SyncQuota(ctx, userID, 0, record.TotalAds, record.MaxAdsPerMonth)
	}

	r.logger.Info("reconciliation sweep finished",
		"records", len(records),
		"resets", resets,
	)

	return resets, nil
}

// =============================================================================
// Scheduled Runner
// =============================================================================

// Runner executes the reconciliation sweep on a cron schedule.
type Runner struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// NewRunner schedules the sweep with the given cron expression (standard
// five field syntax, e.g. "0 2 * * *" for 02:00 daily).
func NewRunner(reconciler *Reconciler, schedule string, logger *slog.Logger) (*Runner, error) {
	c := cron.New()

	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		if _, err := reconciler.Sweep(ctx); err != nil {
			logger.Error("scheduled reconciliation sweep failed", "error", err)
		}
	})
	if err != nil {
		return nil, err
	}

	return &Runner{cron: c, logger: logger}, nil
}

// Start begins executing the schedule in its own goroutine.
func (r *Runner) Start() {
	r.cron.Start()
	r.logger.Info("reconciliation runner started")
}

// Stop halts the schedule and waits for a running sweep to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info("reconciliation runner stopped")
}
