package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Shared Store behavior is covered by the contract in store_test.go; these
// pin the in-memory specifics.

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Set(ctx, "plans", "user-1", Document{"adsUsed": 1}))

	doc, err := store.Get(ctx, "plans", "user-1")
	require.NoError(t, err)
	doc["adsUsed"] = 99

	again, err := store.Get(ctx, "plans", "user-1")
	require.NoError(t, err)
	assert.Equal(t, float64(1), again["adsUsed"])
}

func TestMemoryStore_NormalizesToJSONForm(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Set(ctx, "plans", "user-1", Document{
		"totalAds": 12,
		"features": []string{"content_analysis"},
	}))

	doc, err := store.Get(ctx, "plans", "user-1")
	require.NoError(t, err)
	// Numbers and slices come back in their JSON form, matching what a
	// round-trip through the postgres backend would produce.
	assert.Equal(t, float64(12), doc["totalAds"])
	assert.Equal(t, []any{"content_analysis"}, doc["features"])
}
