package billing

import (
	"context"
	"log/slog"

	"github.com/adlens/adlens/internal/domain"
	"github.com/adlens/adlens/internal/metrics"
)

// =============================================================================
// Plan Mutation Engine
// =============================================================================

// Engine implements the entitlement-mutating plan operations: initial
// selection, same-tier topup and cross-tier upgrade. Every mutation writes
// the full record to the plan store and pushes the projection to the
// profile mirror.
type Engine struct {
	plans  *PlanStore
	mirror *Mirror
	clock  Clock
	logger *slog.Logger
}

// NewEngine creates a plan mutation engine.
func NewEngine(plans *PlanStore, mirror *Mirror, clock Clock, logger *slog.Logger) *Engine {
	return &Engine{
		plans:  plans,
		mirror: mirror,
		clock:  clock,
		logger: logger,
	}
}

// SelectParams are the inputs for an initial plan selection.
type SelectParams struct {
	PlanName         domain.PlanName
	Features         []string // Capability tags chosen at purchase
	PaymentID        string
	PaymentStatus    string
	SubscriptionType string
}

// TopupParams are the inputs for a same-tier topup.
type TopupParams struct {
	PlanName domain.PlanName

	// Features replaces the selected feature set when non-nil; a nil slice
	// retains the current selection.
	Features []string

	// TotalAdsOverride replaces the catalog ad grant when non-nil.
	TotalAdsOverride *int

	PaymentID string
}

// UpgradeParams are the inputs for an upgrade to a higher tier.
type UpgradeParams struct {
	PlanName domain.PlanName

	// TotalAdsOverride replaces the catalog ad grant when non-nil.
	TotalAdsOverride *int

	PaymentID string
}

// Select creates the plan record for a user who has no plan yet.
func (e *Engine) Select(ctx context.Context, userID string, params SelectParams) (*domain.PlanRecord, error) {
	const op = "billing.Engine.Select"
	now := e.clock.Now()

	entry, ok := domain.PlanCatalog[params.PlanName]
	if !ok {
		return nil, domain.Invalid(op, "unknown plan name")
	}

	if _, err := e.plans.Get(ctx, userID); err == nil {
		return nil, domain.Conflict(op, "a plan already exists for this user; use topup or upgrade")
	} else if domain.ErrorCode(err) != domain.ENOTFOUND {
		return nil, err
	}

	features := params.Features
	if len(features) == 0 {
		features = domain.AllFeatures
	}

	record := &domain.PlanRecord{
		UserID:                userID,
		PlanName:              params.PlanName,
		PaymentID:             params.PaymentID,
		PaymentStatus:         params.PaymentStatus,
		SubscriptionType:      params.SubscriptionType,
		SubscriptionStartDate: now,
		SubscriptionEndDate:   now.AddDate(0, 0, entry.DurationDays),
		TotalPrice:            entry.Price,
		BasePrice:             entry.Price,
		TotalAds:              entry.TotalAds,
		ValidityDays:          entry.DurationDays,
		IsActive:              true,
		SelectedFeatures:      features,
		MaxAdsPerMonth:        entry.MaxAdsPerMonth,
		AdsUsed:               0,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := e.plans.Put(ctx, record); err != nil {
		return nil, err
	}

	metrics.PlanMutationsTotal.WithLabelValues("select").Inc()
	e.logger.Info("plan selected",
		"user_id", userID,
		"plan", params.PlanName,
		"total_ads", record.TotalAds,
	)

	e.mirror.SyncRecord(ctx, record)
	return record, nil
}

// Topup extends the user's current plan with another purchase of the same
// tier.
//
// While the subscription is still active, the new window starts the day
// after the current end date (back-to-back, no gap) and the ad grant is
// added to the remaining balance. Once expired, the new window starts now
// and the grant replaces whatever was left; the forfeit of stale balance is
// deliberate. The monthly cap is always overwritten with the tier's catalog
// value, and the last usage date is never touched here.
func (e *Engine) Topup(ctx context.Context, userID string, params TopupParams) (*domain.PlanRecord, error) {
	const op = "billing.Engine.Topup"
	now := e.clock.Now()

	record, err := e.plans.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if params.PlanName != record.PlanName {
		return nil, domain.PlanMismatch(op, record.PlanName, params.PlanName)
	}

	entry := domain.PlanCatalog[params.PlanName]

	grant := entry.TotalAds
	if params.TotalAdsOverride != nil {
		grant = *params.TotalAdsOverride
	}

	// Month rollover is settled before any math reads adsUsed, so a topup
	// early in a new month doesn't carry last month's count forward.
	effectiveUsed, decision := EffectiveAdsUsed(record.AdsUsed, record.LastUsageDate, now)
	if decision.Malformed {
		e.logger.Warn("unparseable last usage date, assuming zero monthly usage",
			"user_id", userID,
			"last_usage_date", record.LastUsageDate,
		)
	}

	if record.Expired(now) {
		record.SubscriptionStartDate = now
		record.SubscriptionEndDate = now.AddDate(0, 0, entry.DurationDays)
		record.TotalAds = grant
		record.AdsUsed = 0
	} else {
		start := record.SubscriptionEndDate.AddDate(0, 0, 1)
		record.SubscriptionStartDate = start
		record.SubscriptionEndDate = start.AddDate(0, 0, entry.DurationDays)
		record.TotalAds += grant
		record.AdsUsed = effectiveUsed
	}

	record.MaxAdsPerMonth = entry.MaxAdsPerMonth
	record.TotalPrice += entry.Price
	record.ValidityDays = entry.DurationDays
	record.IsActive = true
	record.UpdatedAt = now
	if params.PaymentID != "" {
		record.PaymentID = params.PaymentID
	}
	if params.Features != nil {
		record.SelectedFeatures = params.Features
	}

	if err := e.plans.Put(ctx, record); err != nil {
		return nil, err
	}

	metrics.PlanMutationsTotal.WithLabelValues("topup").Inc()
	e.logger.Info("plan topped up",
		"user_id", userID,
		"plan", params.PlanName,
		"total_ads", record.TotalAds,
		"window_start", record.SubscriptionStartDate,
		"window_end", record.SubscriptionEndDate,
	)

	e.mirror.SyncRecord(ctx, record)
	return record, nil
}

// Upgrade moves the user to a strictly higher tier.
//
// The new window always starts now. The remaining balance carries forward
// on top of the new tier's grant, and the monthly caps of both tiers are
// summed. The full feature set is granted. Monthly usage and the last
// usage date are preserved.
func (e *Engine) Upgrade(ctx context.Context, userID string, params UpgradeParams) (*domain.PlanRecord, error) {
	const op = "billing.Engine.Upgrade"
	now := e.clock.Now()

	record, err := e.plans.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if params.PlanName.Rank() <= record.PlanName.Rank() {
		return nil, domain.InvalidUpgrade(op, record.PlanName, params.PlanName)
	}

	entry := domain.PlanCatalog[params.PlanName]

	grant := entry.TotalAds
	if params.TotalAdsOverride != nil {
		grant = *params.TotalAdsOverride
	}

	effectiveUsed, decision := EffectiveAdsUsed(record.AdsUsed, record.LastUsageDate, now)
	if decision.Malformed {
		e.logger.Warn("unparseable last usage date, assuming zero monthly usage",
			"user_id", userID,
			"last_usage_date", record.LastUsageDate,
		)
	}

	record.PlanName = params.PlanName
	record.SubscriptionStartDate = now
	record.SubscriptionEndDate = now.AddDate(0, 0, entry.DurationDays)
	record.TotalAds += grant
	record.MaxAdsPerMonth += entry.MaxAdsPerMonth
	record.SelectedFeatures = domain.AllFeatures
	record.AdsUsed = effectiveUsed
	record.TotalPrice += entry.Price
	record.ValidityDays = entry.DurationDays
	record.IsActive = true
	record.UpdatedAt = now
	if params.PaymentID != "" {
		record.PaymentID = params.PaymentID
	}

	if err := e.plans.Put(ctx, record); err != nil {
		return nil, err
	}

	metrics.PlanMutationsTotal.WithLabelValues("upgrade").Inc()
	e.logger.Info("plan upgraded",
		"user_id", userID,
		"plan", params.PlanName,
		"total_ads", record.TotalAds,
		"max_ads_per_month", record.MaxAdsPerMonth,
	)

	e.mirror.SyncRecord(ctx, record)
	return record, nil
}

// Status reports the current plan state plus a preview of what a topup
// purchased right now would grant. Read-only.
func (e *Engine) Status(ctx context.Context, userID string) (*domain.PlanStatus, error) {
	now := e.clock.Now()

	record, err := e.plans.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	entry := domain.PlanCatalog[record.PlanName]

	daysRemaining := int(record.SubscriptionEndDate.Sub(now).Hours() / 24)
	if daysRemaining < 0 {
		daysRemaining = 0
	}
	daysElapsed := int(now.Sub(record.SubscriptionStartDate).Hours() / 24)
	if daysElapsed < 0 {
		daysElapsed = 0
	}

	effectiveUsed, _ := EffectiveAdsUsed(record.AdsUsed, record.LastUsageDate, now)

	preview := domain.TopupPreview{
		CanTopup:     true,
		TopupAds:     entry.TotalAds,
		MonthlyLimit: entry.MaxAdsPerMonth,
	}
	if record.Expired(now) {
		preview.NextPeriodStart = now
		preview.NextPeriodEnd = now.AddDate(0, 0, entry.DurationDays)
	} else {
		start := record.SubscriptionEndDate.AddDate(0, 0, 1)
		preview.NextPeriodStart = start
		preview.NextPeriodEnd = start.AddDate(0, 0, entry.DurationDays)
	}

	return &domain.PlanStatus{
		PlanName:       record.PlanName,
		IsActive:       record.IsActive && !record.Expired(now),
		StartDate:      record.SubscriptionStartDate,
		EndDate:        record.SubscriptionEndDate,
		DaysRemaining:  daysRemaining,
		DaysElapsed:    daysElapsed,
		TotalAds:       record.TotalAds,
		AdsUsed:        effectiveUsed,
		MaxAdsPerMonth: record.MaxAdsPerMonth,
		LastUsageDate:  record.LastUsageDate,
		Topup:          preview,
	}, nil
}
