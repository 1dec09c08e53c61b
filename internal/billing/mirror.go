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
// Profile Mirror
// =============================================================================

// Mirror maintains the denormalized subscription block inside user profile
// documents. Every write is best-effort: a failure is logged and counted
// but never propagated, because the mirror is not authoritative and the
// reconciliation path repairs drift.
type Mirror struct {
	store  docstore.Store
	clock  Clock
	logger *slog.Logger
}

// NewMirror creates a Mirror over the given document store.
func NewMirror(store docstore.Store, clock Clock, logger *slog.Logger) *Mirror {
	return &Mirror{store: store, clock: clock, logger: logger}
}

// SyncQuota pushes the three quota fields to the profile's subscription
// block after a consumption commit or a monthly reset.
func (m *Mirror) SyncQuota(ctx context.Context, userID string, adsUsed, totalAds, maxAdsPerMonth int) {
	fields := docstore.Fields{
		"subscription.adsUsed":           adsUsed,
		"subscription.adQuota":           totalAds,
		"subscription.max_ads_per_month": maxAdsPerMonth,
		"subscription.updatedAt":         m.clock.Now().UTC().Format(time.RFC3339),
	}
	m.apply(ctx, userID, fields, "quota")
}

// SyncRecord pushes the full subscription projection of a plan record to
// the profile document after a plan mutation.
func (m *Mirror) SyncRecord(ctx context.Context, record *domain.PlanRecord) {
	status := "inactive"
	if record.IsActive {
		status = "active"
	}

	fields := docstore.Fields{
		"subscription.planType":              string(record.PlanName),
		"subscription.planName":              string(record.PlanName),
		"subscription.selectedFeatures":      record.SelectedFeatures,
		"subscription.features":              record.SelectedFeatures,
		"subscription.adQuota":               record.TotalAds,
		"subscription.adsUsed":               record.AdsUsed,
		"subscription.max_ads_per_month":     record.MaxAdsPerMonth,
		"subscription.totalPrice":            record.TotalPrice,
		"subscription.basePrice":             record.BasePrice,
		"subscription.validityDays":          record.ValidityDays,
		"subscription.subscriptionStartDate": record.SubscriptionStartDate.Format(time.RFC3339),
		"subscription.subscriptionEndDate":   record.SubscriptionEndDate.Format(time.RFC3339),
		"subscription.status":                status,
		"subscription.paymentStatus":         record.PaymentStatus,
		"subscription.paymentId":             record.PaymentID,
		"subscription.subscriptionType":      record.SubscriptionType,
		"subscription.updatedAt":             m.clock.Now().UTC().Format(time.RFC3339),
	}
	m.apply(ctx, record.UserID, fields, "record")
}

// Clear removes the subscription block from the profile, used by the
// administrative plan reset.
func (m *Mirror) Clear(ctx context.Context, userID string) {
	m.apply(ctx, userID, docstore.Fields{"subscription": docstore.Delete}, "clear")
}

// apply merges the fields into the profile document. Merge rather than
// Update so a missing profile is created instead of failing the sync.
func (m *Mirror) apply(ctx context.Context, userID string, fields docstore.Fields, kind string) {
	if err := m.store.Merge(ctx, CollectionProfiles, userID, fields); err != nil {
		metrics.MirrorSyncFailuresTotal.Inc()
		m.logger.Warn("profile mirror sync failed",
			"user_id", userID,
			"kind", kind,
			"error", err,
		)
	}
}
