package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adlens/adlens/internal/docstore"
	"github.com/adlens/adlens/internal/domain"
	"github.com/adlens/adlens/internal/storage"
)

func newBrandFixture(t *testing.T) (BrandService, *docstore.MemoryStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := docstore.NewMemoryStore()
	blobs, err := storage.NewLocalStorage(storage.LocalConfig{
		BasePath: t.TempDir(),
		BaseURL:  "http://localhost:8080/files",
	}, logger)
	require.NoError(t, err)

	return NewBrandService(store, blobs, NewImagingProcessor(), logger), store
}

// =============================================================================
// Create
// =============================================================================

func TestBrandService_CreateRequiresName(t *testing.T) {
	svc, _ := newBrandFixture(t)

	_, err := svc.Create(context.Background(), "user-1", CreateBrandParams{})
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestBrandService_CreateComputesCompletion(t *testing.T) {
	svc, _ := newBrandFixture(t)

	brand, err := svc.Create(context.Background(), "user-1", CreateBrandParams{
		BrandName:        "Acme",
		BrandDescription: "Widgets for everyone",
		IndustryCategory: "manufacturing",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, brand.BrandID)
	assert.Equal(t, 50, brand.CompletionPercentage)
	assert.False(t, brand.IsComplete)

	full, err := svc.Create(context.Background(), "user-1", CreateBrandParams{
		BrandName:        "Globex",
		BrandDescription: "d",
		IndustryCategory: "i",
		TargetAudience:   "a",
		PrimaryColor:     "#fff",
		ToneOfVoice:      "bold",
	})
	require.NoError(t, err)
	assert.Equal(t, 100, full.CompletionPercentage)
	assert.True(t, full.IsComplete)
}

func TestBrandService_CreateRejectsNonImageLogo(t *testing.T) {
	svc, _ := newBrandFixture(t)

	_, err := svc.Create(context.Background(), "user-1", CreateBrandParams{
		BrandName: "Acme",
		Logos: []UploadFile{{
			Filename:    "logo.mp4",
			ContentType: "video/mp4",
			Data:        []byte{0, 0, 0, 0x18, 'f', 't', 'y', 'p'},
		}},
	})
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

// =============================================================================
// Ownership and Reads
// =============================================================================

func TestBrandService_GetEnforcesOwnership(t *testing.T) {
	svc, _ := newBrandFixture(t)
	ctx := context.Background()

	brand, err := svc.Create(ctx, "user-1", CreateBrandParams{BrandName: "Acme"})
	require.NoError(t, err)

	_, err = svc.GetByID(ctx, brand.BrandID, "user-2")
	require.Error(t, err)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestBrandService_ListReturnsOnlyOwnBrands(t *testing.T) {
	svc, _ := newBrandFixture(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "user-1", CreateBrandParams{BrandName: "Acme"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "user-1", CreateBrandParams{BrandName: "Globex"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "user-2", CreateBrandParams{BrandName: "Initech"})
	require.NoError(t, err)

	brands, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, brands, 2)
	for _, b := range brands {
		assert.Equal(t, "user-1", b.UserID)
	}
}

// =============================================================================
// Media
// =============================================================================

func TestBrandService_UploadAndDeleteMedia(t *testing.T) {
	svc, _ := newBrandFixture(t)
	ctx := context.Background()

	brand, err := svc.Create(ctx, "user-1", CreateBrandParams{BrandName: "Acme"})
	require.NoError(t, err)

	brand, err = svc.UploadMedia(ctx, brand.BrandID, "user-1", []UploadFile{{
		Filename:    "ad.png",
		ContentType: "image/png",
		Data:        pngBytes,
	}})
	require.NoError(t, err)
	require.Len(t, brand.MediaFiles, 1)
	assert.Equal(t, 1, brand.MediaCount)
	assert.NotEmpty(t, brand.MediaFiles[0].URL)
	assert.Equal(t, domain.MediaTypeImage, brand.MediaFiles[0].MediaType)

	fileID := brand.MediaFiles[0].FileID
	require.NoError(t, svc.DeleteMediaFile(ctx, brand.BrandID, "user-1", fileID))

	brand, err = svc.GetByID(ctx, brand.BrandID, "user-1")
	require.NoError(t, err)
	assert.Empty(t, brand.MediaFiles)
	assert.Equal(t, 0, brand.MediaCount)
}

func TestBrandService_DeleteMissingMediaFile(t *testing.T) {
	svc, _ := newBrandFixture(t)
	ctx := context.Background()

	brand, err := svc.Create(ctx, "user-1", CreateBrandParams{BrandName: "Acme"})
	require.NoError(t, err)

	err = svc.DeleteMediaFile(ctx, brand.BrandID, "user-1", "no-such-file")
	require.Error(t, err)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestBrandService_DeleteRemovesDocument(t *testing.T) {
	svc, store := newBrandFixture(t)
	ctx := context.Background()

	brand, err := svc.Create(ctx, "user-1", CreateBrandParams{BrandName: "Acme"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, brand.BrandID, "user-1"))

	_, err = store.Get(ctx, CollectionBrands, brand.BrandID)
	assert.True(t, docstore.IsNotFound(err))
}
