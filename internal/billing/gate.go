package billing

import (
	"context"
	"log/slog"
	"time"

	"github.com/adlens/adlens/internal/docstore"
	"github.com/adlens/adlens/internal/domain"
	"github.com/adlens/adlens/internal/metrics"
)

// =============================================================================
// Consumption Gate
// =============================================================================

// Authorization is the token returned by TryConsume. It carries the quota
// values the validation saw so Commit can derive the new counts and guard
// them with a compare-and-set precondition. Nothing is persisted until
// Commit runs.
type Authorization struct {
	UserID string

	// EffectiveAdsUsed is the monthly count after applying the rollover
	// rule in memory. StoredAdsUsed is the raw persisted count; the two
	// differ when a reset is pending.
	EffectiveAdsUsed int
	StoredAdsUsed    int

	TotalAds       int
	MaxAdsPerMonth int
	ResetApplied   bool
}

// Gate is the two-phase consumption decision point. TryConsume validates
// entitlement before the analysis call; Commit charges exactly one unit
// after the call produced a usable result. The minutes-long analysis call
// runs between the two phases with no lock held, so Commit re-checks its
// quota precondition at write time.
type Gate struct {
	plans  *PlanStore
	mirror *Mirror
	clock  Clock
	logger *slog.Logger
}

// NewGate creates a consumption gate.
func NewGate(plans *PlanStore, mirror *Mirror, clock Clock, logger *slog.Logger) *Gate {
	return &Gate{
		plans:  plans,
		mirror: mirror,
		clock:  clock,
		logger: logger,
	}
}

// TryConsume validates that the user may run one analysis right now.
// It mutates nothing: a request rejected here leaves the record untouched,
// and an authorization that is never committed costs nothing.
func (g *Gate) TryConsume(ctx context.Context, userID string) (*Authorization, error) {
	const op = "billing.Gate.TryConsume"
	now := g.clock.Now()

	record, err := g.plans.Get(ctx, userID)
	if err != nil {
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			metrics.QuotaRejectionsTotal.WithLabelValues("not_found").Inc()
		}
		return nil, err
	}

	effective, decision := EffectiveAdsUsed(record.AdsUsed, record.LastUsageDate, now)
	if decision.Malformed {
		g.logger.Warn("unparseable last usage date, assuming zero monthly usage",
			"user_id", userID,
			"last_usage_date", record.LastUsageDate,
		)
	}

	if effective >= record.MaxAdsPerMonth {
		metrics.QuotaRejectionsTotal.WithLabelValues("monthly_limit").Inc()
		return nil, domain.MonthlyLimitExceeded(op, effective, record.MaxAdsPerMonth)
	}
	if record.TotalAds <= 0 {
		metrics.QuotaRejectionsTotal.WithLabelValues("balance_exhausted").Inc()
		return nil, domain.BalanceExhausted(op)
	}

	return &Authorization{
		UserID:           userID,
		EffectiveAdsUsed: effective,
		StoredAdsUsed:    record.AdsUsed,
		TotalAds:         record.TotalAds,
		MaxAdsPerMonth:   record.MaxAdsPerMonth,
		ResetApplied:     decision.Reset,
	}, nil
}

// Commit charges one unit of consumption against a prior authorization.
// Call it only after the analysis produced at least one usable result.
//
// The write is a per-field conditional update: adsUsed and totalAds must
// still hold the values TryConsume saw, otherwise ECONCURRENT is returned
// and the analysis stays unbilled. The caller surfaces that as a
// retry-safe error rather than silently over-charging.
func (g *Gate) Commit(ctx context.Context, auth *Authorization) error {
	now := g.clock.Now()

	newAdsUsed := auth.EffectiveAdsUsed + 1
	newTotalAds := auth.TotalAds - 1

	preconditions := docstore.Fields{
		"adsUsed":  auth.StoredAdsUsed,
		"totalAds": auth.TotalAds,
	}
	fields := docstore.Fields{
		"adsUsed":       newAdsUsed,
		"totalAds":      newTotalAds,
		"lastUsageDate": now.Format(time.RFC3339),
		"updatedAt":     now.Format(time.RFC3339),
	}

	if err := g.plans.UpdateIf(ctx, auth.UserID, preconditions, fields); err != nil {
		return err
	}

	if auth.ResetApplied {
		metrics.MonthlyResetsTotal.Inc()
	}

	g.logger.Info("consumption committed",
		"user_id", auth.UserID,
		"ads_used", newAdsUsed,
		"total_ads", newTotalAds,
	)

	// Best-effort projection; failure is logged inside the mirror and the
	// commit stands either way.
	g.mirror.SyncQuota(ctx, auth.UserID, newAdsUsed, newTotalAds, auth.MaxAdsPerMonth)

	return nil
}
