package billing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adlens/adlens/internal/domain"
)

func (f *fixture) reconcilerAt(now time.Time) *Reconciler {
	return NewReconciler(f.plans, f.mirror, FixedClock{Instant: now}, testLogger())
}

func TestReconciler_SweepResetsStaleRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// user-1 last used in March, user-2 in April, user-3 never.
	stale := liteRecord("user-1")
	f.seed(t, stale)

	fresh := liteRecord("user-2")
	fresh.LastUsageDate = "2024-04-03T12:00:00Z"
	f.seed(t, fresh)

	unused := liteRecord("user-3")
	unused.LastUsageDate = ""
	unused.AdsUsed = 0
	f.seed(t, unused)

	now := date(2024, time.April, 5)
	resets, err := f.reconcilerAt(now).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resets)

	after, err := f.plans.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, after.AdsUsed)
	assert.Equal(t, now.Format(time.RFC3339), after.LastUsageDate)

	untouched, err := f.plans.Get(ctx, "user-2")
	require.NoError(t, err)
	assert.Equal(t, 2, untouched.AdsUsed)
	assert.Equal(t, "2024-04-03T12:00:00Z", untouched.LastUsageDate)
}

func TestReconciler_SweepIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, liteRecord("user-1"))

	now := date(2024, time.April, 5)
	reconciler := f.reconcilerAt(now)

	resets, err := reconciler.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resets)

	// Second run in the same month: the reset stamped lastUsageDate into
	// April, so the record no longer qualifies.
	resets, err = reconciler.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, resets)
}

func TestReconciler_SweepResetsMalformedDates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	record := liteRecord("user-1")
	record.LastUsageDate = "corrupt"
	f.seed(t, record)

	now := date(2024, time.April, 5)
	resets, err := f.reconcilerAt(now).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resets)

	after, err := f.plans.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, after.AdsUsed)
	assert.Equal(t, now.Format(time.RFC3339), after.LastUsageDate)
}

func TestReconciler_SweepPreservesBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, liteRecord("user-1"))

	_, err := f.reconcilerAt(date(2024, time.April, 5)).Sweep(ctx)
	require.NoError(t, err)

	after, err := f.plans.Get(ctx, "user-1")
	require.NoError(t, err)
	// Only the monthly counter resets; the lifetime balance is untouched.
	assert.Equal(t, 3, after.TotalAds)
	assert.Equal(t, domain.PlanLite, after.PlanName)
}
