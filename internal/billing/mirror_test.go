package billing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adlens/adlens/internal/docstore"
)

func TestMirror_StampsUpdatedAtFromClock(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	mirror := NewMirror(store, FixedClock{Instant: now}, testLogger())

	mirror.SyncQuota(ctx, "user-1", 2, 10, 4)

	doc, err := store.Get(ctx, CollectionProfiles, "user-1")
	require.NoError(t, err)
	sub, ok := doc["subscription"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "2024-03-01T09:30:00Z", sub["updatedAt"])
	assert.Equal(t, float64(2), sub["adsUsed"])
	assert.Equal(t, float64(10), sub["adQuota"])
	assert.Equal(t, float64(4), sub["max_ads_per_month"])
}
