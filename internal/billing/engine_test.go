package billing

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adlens/adlens/internal/docstore"
	"github.com/adlens/adlens/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	store  *docstore.MemoryStore
	plans  *PlanStore
	mirror *Mirror
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := docstore.NewMemoryStore()
	logger := testLogger()
	return &fixture{
		store:  store,
		plans:  NewPlanStore(store),
		mirror: NewMirror(store, SystemClock{}, logger),
	}
}

func (f *fixture) engineAt(now time.Time) *Engine {
	return NewEngine(f.plans, f.mirror, FixedClock{Instant: now}, testLogger())
}

func (f *fixture) seed(t *testing.T, record *domain.PlanRecord) {
	t.Helper()
	require.NoError(t, f.plans.Put(context.Background(), record))
}

func liteRecord(userID string) *domain.PlanRecord {
	return &domain.PlanRecord{
		UserID:                userID,
		PlanName:              domain.PlanLite,
		SubscriptionStartDate: date(2024, time.January, 1),
		SubscriptionEndDate:   date(2024, time.March, 31),
		TotalPrice:            50,
		BasePrice:             50,
		TotalAds:              3,
		ValidityDays:          90,
		IsActive:              true,
		SelectedFeatures:      []string{"brand_compliance"},
		MaxAdsPerMonth:        4,
		AdsUsed:               2,
		LastUsageDate:         "2024-03-10T09:00:00Z",
		CreatedAt:             date(2024, time.January, 1),
		UpdatedAt:             date(2024, time.March, 10),
	}
}

func TestEngine_Select(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	now := date(2024, time.March, 15)
	engine := f.engineAt(now)

	record, err := engine.Select(ctx, "user-1", SelectParams{PlanName: domain.PlanPlus})
	require.NoError(t, err)

	assert.Equal(t, domain.PlanPlus, record.PlanName)
	assert.Equal(t, 30, record.TotalAds)
	assert.Equal(t, 5, record.MaxAdsPerMonth)
	assert.Equal(t, 0, record.AdsUsed)
	assert.Equal(t, now, record.SubscriptionStartDate)
	assert.Equal(t, now.AddDate(0, 0, 180), record.SubscriptionEndDate)
	assert.Equal(t, float64(100), record.TotalPrice)
	assert.Empty(t, record.LastUsageDate)

	// Mirror carries the projection.
	profile, err := f.store.Get(ctx, CollectionProfiles, "user-1")
	require.NoError(t, err)
	sub, ok := profile["subscription"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(30), sub["adQuota"])
}

func TestEngine_SelectTwiceConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	engine := f.engineAt(date(2024, time.March, 15))

	_, err := engine.Select(ctx, "user-1", SelectParams{PlanName: domain.PlanLite})
	require.NoError(t, err)

	_, err = engine.Select(ctx, "user-1", SelectParams{PlanName: domain.PlanLite})
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
}

func TestEngine_SelectUnknownPlan(t *testing.T) {
	f := newFixture(t)
	engine := f.engineAt(date(2024, time.March, 15))

	_, err := engine.Select(context.Background(), "user-1", SelectParams{PlanName: "platinum"})
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestEngine_TopupWhileActive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, liteRecord("user-1"))

	engine := f.engineAt(date(2024, time.March, 15))
	record, err := engine.Topup(ctx, "user-1", TopupParams{PlanName: domain.PlanLite})
	require.NoError(t, err)

	// Back-to-back window: starts the day after the current end date.
	assert.Equal(t, date(2024, time.April, 1), record.SubscriptionStartDate)
	assert.Equal(t, date(2024, time.April, 1).AddDate(0, 0, 90), record.SubscriptionEndDate)

	// Additive balance, preserved usage, same billing cycle continues.
	assert.Equal(t, 15, record.TotalAds)
	assert.Equal(t, 2, record.AdsUsed)
	assert.Equal(t, 4, record.MaxAdsPerMonth)
	assert.Equal(t, float64(100), record.TotalPrice)
	assert.Equal(t, "2024-03-10T09:00:00Z", record.LastUsageDate)
}

func TestEngine_TopupAfterExpiry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, liteRecord("user-1"))

	now := date(2024, time.April, 10)
	engine := f.engineAt(now)
	record, err := engine.Topup(ctx, "user-1", TopupParams{PlanName: domain.PlanLite})
	require.NoError(t, err)

	// Fresh window: leftover balance is forfeited, usage starts over.
	assert.Equal(t, now, record.SubscriptionStartDate)
	assert.Equal(t, now.AddDate(0, 0, 90), record.SubscriptionEndDate)
	assert.Equal(t, 12, record.TotalAds)
	assert.Equal(t, 0, record.AdsUsed)

	// Consumption history stays untouched by plan mutations.
	assert.Equal(t, "2024-03-10T09:00:00Z", record.LastUsageDate)
}

func TestEngine_TopupRetainsFeaturesUnlessSupplied(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, liteRecord("user-1"))

	engine := f.engineAt(date(2024, time.March, 15))
	record, err := engine.Topup(ctx, "user-1", TopupParams{PlanName: domain.PlanLite})
	require.NoError(t, err)
	assert.Equal(t, []string{"brand_compliance"}, record.SelectedFeatures)

	record, err = engine.Topup(ctx, "user-1", TopupParams{
		PlanName: domain.PlanLite,
		Features: []string{"brand_compliance", "content_analysis"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"brand_compliance", "content_analysis"}, record.SelectedFeatures)
}

func TestEngine_TopupAppliesPendingRollover(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	record := liteRecord("user-1")
	record.SubscriptionEndDate = date(2024, time.April, 30)
	record.LastUsageDate = "2024-03-10T09:00:00Z"
	record.AdsUsed = 3
	f.seed(t, record)

	// Topup in April while the window is active: March usage must not
	// carry into the preserved count.
	engine := f.engineAt(date(2024, time.April, 5))
	updated, err := engine.Topup(ctx, "user-1", TopupParams{PlanName: domain.PlanLite})
	require.NoError(t, err)
	assert.Equal(t, 0, updated.AdsUsed)
}

func TestEngine_TopupPlanMismatch(t *testing.T) {
	f := newFixture(t)
	f.seed(t, liteRecord("user-1"))

	engine := f.engineAt(date(2024, time.March, 15))
	_, err := engine.Topup(context.Background(), "user-1", TopupParams{PlanName: domain.PlanPlus})
	assert.Equal(t, domain.EPLANMISMATCH, domain.ErrorCode(err))
}

func TestEngine_TopupTotalAdsOverride(t *testing.T) {
	f := newFixture(t)
	f.seed(t, liteRecord("user-1"))

	override := 20
	engine := f.engineAt(date(2024, time.March, 15))
	record, err := engine.Topup(context.Background(), "user-1", TopupParams{
		PlanName:         domain.PlanLite,
		TotalAdsOverride: &override,
	})
	require.NoError(t, err)
	assert.Equal(t, 23, record.TotalAds)
}

func TestEngine_Upgrade(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, liteRecord("user-1"))

	now := date(2024, time.March, 15)
	engine := f.engineAt(now)
	record, err := engine.Upgrade(ctx, "user-1", UpgradeParams{PlanName: domain.PlanPlus})
	require.NoError(t, err)

	assert.Equal(t, domain.PlanPlus, record.PlanName)
	// Remaining balance carries forward on top of the new grant.
	assert.Equal(t, 33, record.TotalAds)
	// Monthly caps are combined.
	assert.Equal(t, 9, record.MaxAdsPerMonth)
	// Window restarts now at the new tier's length.
	assert.Equal(t, now, record.SubscriptionStartDate)
	assert.Equal(t, now.AddDate(0, 0, 180), record.SubscriptionEndDate)
	// Full feature set, preserved usage.
	assert.Equal(t, domain.AllFeatures, record.SelectedFeatures)
	assert.Equal(t, 2, record.AdsUsed)
	assert.Equal(t, "2024-03-10T09:00:00Z", record.LastUsageDate)
	assert.Equal(t, float64(150), record.TotalPrice)
}

func TestEngine_UpgradeRejectsLowerOrEqualTier(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	record := liteRecord("user-1")
	record.PlanName = domain.PlanPlus
	record.MaxAdsPerMonth = 5
	f.seed(t, record)

	engine := f.engineAt(date(2024, time.March, 15))

	_, err := engine.Upgrade(ctx, "user-1", UpgradeParams{PlanName: domain.PlanPlus})
	assert.Equal(t, domain.EINVALIDUPGRADE, domain.ErrorCode(err))

	_, err = engine.Upgrade(ctx, "user-1", UpgradeParams{PlanName: domain.PlanLite})
	assert.Equal(t, domain.EINVALIDUPGRADE, domain.ErrorCode(err))
}

func TestEngine_UpgradeMissingRecord(t *testing.T) {
	f := newFixture(t)
	engine := f.engineAt(date(2024, time.March, 15))

	_, err := engine.Upgrade(context.Background(), "nobody", UpgradeParams{PlanName: domain.PlanPro})
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestEngine_Status(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, liteRecord("user-1"))

	engine := f.engineAt(date(2024, time.March, 15))
	status, err := engine.Status(ctx, "user-1")
	require.NoError(t, err)

	assert.Equal(t, domain.PlanLite, status.PlanName)
	assert.True(t, status.IsActive)
	assert.Equal(t, 16, status.DaysRemaining)
	assert.Equal(t, 2, status.AdsUsed)
	assert.True(t, status.Topup.CanTopup)
	assert.Equal(t, date(2024, time.April, 1), status.Topup.NextPeriodStart)
	assert.Equal(t, 12, status.Topup.TopupAds)
}

func TestEngine_StatusAfterExpiry(t *testing.T) {
	f := newFixture(t)
	f.seed(t, liteRecord("user-1"))

	now := date(2024, time.April, 10)
	engine := f.engineAt(now)
	status, err := engine.Status(context.Background(), "user-1")
	require.NoError(t, err)

	assert.False(t, status.IsActive)
	assert.Equal(t, 0, status.DaysRemaining)
	assert.Equal(t, now, status.Topup.NextPeriodStart)
	// April has no recorded usage yet, so the effective count is zero.
	assert.Equal(t, 0, status.AdsUsed)
}
