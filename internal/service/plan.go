// Package service contains business logic for the Adlens application.
//
// This file implements the plan service: the handler-facing surface over
// the billing engine for plan selection, topup, upgrade, status and the
// repair operations.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adlens/adlens/internal/billing"
	"github.com/adlens/adlens/internal/docstore"
	"github.com/adlens/adlens/internal/domain"
)

// =============================================================================
// Interface Definition
// =============================================================================

// PlanService defines the interface for plan lifecycle operations.
type PlanService interface {
	// Select creates the plan record for a user with no plan.
	// Returns domain.ECONFLICT if a plan already exists.
	Select(ctx context.Context, userID string, params billing.SelectParams) (*domain.PlanRecord, error)

	// Topup extends the current plan with a same-tier purchase.
	// Returns domain.EPLANMISMATCH for a different tier.
	Topup(ctx context.Context, userID string, params billing.TopupParams) (*domain.PlanRecord, error)

	// Upgrade moves the user to a strictly higher tier.
	// Returns domain.EINVALIDUPGRADE for a lower or equal tier.
	Upgrade(ctx context.Context, userID string, params billing.UpgradeParams) (*domain.PlanRecord, error)

	// Status reports the current plan state with a topup preview.
	Status(ctx context.Context, userID string) (*domain.PlanStatus, error)

	// SyncProjection repairs the profile mirror from the plan record.
	SyncProjection(ctx context.Context, userID string) error

	// FixQuota repairs the record's quota fields from the plan catalog.
	// Used when a record carries quota values that drifted from the
	// tier configuration.
	FixQuota(ctx context.Context, userID string) (*domain.PlanRecord, error)

	// ResetMonthlyUsage zeroes the monthly counter for one user. This is
	// the administrative escape hatch; the scheduled sweep handles the
	// regular rollover.
	ResetMonthlyUsage(ctx context.Context, userID string) error

	// Reset deletes the plan record and clears the profile's subscription
	// block. Administrative use only.
	Reset(ctx context.Context, userID string) error
}

// =============================================================================
// Implementation
// =============================================================================

type planService struct {
	engine *billing.Engine
	plans  *billing.PlanStore
	mirror *billing.Mirror
	clock  billing.Clock
	logger *slog.Logger
}

// NewPlanService creates a new PlanService.
func NewPlanService(
	engine *billing.Engine,
	plans *billing.PlanStore,
	mirror *billing.Mirror,
	clock billing.Clock,
	logger *slog.Logger,
) PlanService {
	return &planService{
		engine: engine,
		plans:  plans,
		mirror: mirror,
		clock:  clock,
		logger: logger,
	}
}

func (s *planService) Select(ctx context.Context, userID string, params billing.SelectParams) (*domain.PlanRecord, error) {
	return s.engine.Select(ctx, userID, params)
}

func (s *planService) Topup(ctx context.Context, userID string, params billing.TopupParams) (*domain.PlanRecord, error) {
	return s.engine.Topup(ctx, userID, params)
}

func (s *planService) Upgrade(ctx context.Context, userID string, params billing.UpgradeParams) (*domain.PlanRecord, error) {
	return s.engine.Upgrade(ctx, userID, params)
}

func (s *planService) Status(ctx context.Context, userID string) (*domain.PlanStatus, error) {
	return s.engine.Status(ctx, userID)
}

// SyncProjection pushes the full plan projection into the profile mirror.
// Unlike the inline mirror writes this one is explicit repair: a failure is
// surfaced to the caller.
func (s *planService) SyncProjection(ctx context.Context, userID string) error {
	record, err := s.plans.Get(ctx, userID)
	if err != nil {
		return err
	}
	s.mirror.SyncRecord(ctx, record)
	return nil
}

func (s *planService) FixQuota(ctx context.Context, userID string) (*domain.PlanRecord, error) {
	const op = "service.PlanService.FixQuota"

	record, err := s.plans.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	entry, ok := domain.PlanCatalog[record.PlanName]
	if !ok {
		return nil, domain.Invalid(op, fmt.Sprintf("unknown plan %q", record.PlanName))
	}

	now := s.clock.Now()
	err = s.plans.Update(ctx, userID, docstore.Fields{
		"totalAds":          entry.TotalAds,
		"max_ads_per_month": entry.MaxAdsPerMonth,
		"updatedAt":         now.Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}

	s.mirror.SyncQuota(ctx, userID, record.AdsUsed, entry.TotalAds, entry.MaxAdsPerMonth)

	record.TotalAds = entry.TotalAds
	record.MaxAdsPerMonth = entry.MaxAdsPerMonth
	record.UpdatedAt = now

	s.logger.Info("plan quota repaired",
		"user_id", userID,
		"plan", record.PlanName,
		"total_ads", entry.TotalAds,
		"max_ads_per_month", entry.MaxAdsPerMonth,
	)
	return record, nil
}

func (s *planService) ResetMonthlyUsage(ctx context.Context, userID string) error {
	now := s.clock.Now()

	err := s.plans.Update(ctx, userID, docstore.Fields{
		"adsUsed":       0,
		"lastUsageDate": now.Format(time.RFC3339),
		"updatedAt":     now.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	s.logger.Info("monthly usage reset", "user_id", userID)
	return s.SyncProjection(ctx, userID)
}

func (s *planService) Reset(ctx context.Context, userID string) error {
	if err := s.plans.Remove(ctx, userID); err != nil {
		return err
	}
	s.mirror.Clear(ctx, userID)

	s.logger.Info("plan record reset", "user_id", userID)
	return nil
}
