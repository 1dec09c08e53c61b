package service

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adlens/adlens/internal/analyzer"
	"github.com/adlens/adlens/internal/analyzer/mock"
	"github.com/adlens/adlens/internal/billing"
	"github.com/adlens/adlens/internal/docstore"
	"github.com/adlens/adlens/internal/domain"
	"github.com/adlens/adlens/internal/storage"
)

// Minimal valid PNG header so content detection lands on image/png.
var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}

type analysisFixture struct {
	store    *docstore.MemoryStore
	provider *mock.Provider
	plans    *billing.PlanStore
	brands   BrandService
	svc      AnalysisService
	brandID  string
	blobDir  string
}

func newAnalysisFixture(t *testing.T, now time.Time) *analysisFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	blobDir := t.TempDir()
	store := docstore.NewMemoryStore()
	blobs, err := storage.NewLocalStorage(storage.LocalConfig{
		BasePath: blobDir,
		BaseURL:  "http://localhost:8080/files",
	}, logger)
	require.NoError(t, err)

	plans := billing.NewPlanStore(store)
	clock := &billing.FixedClock{Instant: now}
	mirror := billing.NewMirror(store, clock, logger)
	gate := billing.NewGate(plans, mirror, clock, logger)
	engine := billing.NewEngine(plans, mirror, clock, logger)

	provider := mock.New(logger)
	brands := NewBrandService(store, blobs, NewImagingProcessor(), logger)
	svc := NewAnalysisService(store, blobs, provider, gate, plans, brands, logger)

	_, err = engine.Select(context.Background(), "user-1", billing.SelectParams{
		PlanName: domain.PlanLite,
	})
	require.NoError(t, err)

	brand, err := brands.Create(context.Background(), "user-1", CreateBrandParams{
		BrandName:    "Acme",
		PrimaryColor: "#102030",
		ToneOfVoice:  "playful",
	})
	require.NoError(t, err)

	return &analysisFixture{
		store:    store,
		provider: provider,
		plans:    plans,
		brands:   brands,
		svc:      svc,
		brandID:  brand.BrandID,
		blobDir:  blobDir,
	}
}

// storedFiles lists every regular file under the fixture's blob directory.
func storedFiles(t *testing.T, dir string) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	require.NoError(t, err)
	return files
}

func analyzeRequest(f *analysisFixture) AnalyzeRequest {
	return AnalyzeRequest{
		File: UploadFile{
			Filename:    "ad.png",
			ContentType: "image/png",
			Data:        pngBytes,
		},
		BrandID:       f.brandID,
		AdTitle:       "Summer sale",
		MessageIntent: "conversion",
		FunnelStage:   "bofu",
		Channels:      []string{"Instagram", "TikTok"},
	}
}

// =============================================================================
// Analyze
// =============================================================================

func TestAnalysisService_AnalyzeChargesOneUnit(t *testing.T) {
	ctx := context.Background()
	f := newAnalysisFixture(t, time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC))

	record, err := f.svc.Analyze(ctx, "user-1", analyzeRequest(f))
	require.NoError(t, err)

	assert.NotEmpty(t, record.ArtifactID)
	assert.Equal(t, "Acme", record.BrandName)
	assert.Equal(t, 1, record.PlanUsage.AdsUsed)
	assert.Equal(t, 4, record.PlanUsage.MaxAdsPerMonth)
	assert.Equal(t, 11, record.PlanUsage.TotalAdsRemaining)
	assert.Equal(t, domain.PlanLite, record.PlanUsage.PlanName)

	plan, err := f.plans.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, plan.AdsUsed)
	assert.Equal(t, 11, plan.TotalAds)
}

func TestAnalysisService_AnalyzeForwardsBrandContext(t *testing.T) {
	ctx := context.Background()
	f := newAnalysisFixture(t, time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC))

	_, err := f.svc.Analyze(ctx, "user-1", analyzeRequest(f))
	require.NoError(t, err)

	require.Equal(t, 1, f.provider.AnalyzeCalls)
	params := f.provider.LastParams
	assert.Equal(t, "Acme", params.BrandName)
	assert.Equal(t, []string{"#102030"}, params.BrandColors)
	assert.Equal(t, "playful", params.ToneOfVoice)
	assert.Equal(t, []string{"Instagram", "TikTok"}, params.Platforms)
	assert.Equal(t, "image/png", params.ContentType)
}

func TestAnalysisService_ProviderErrorLeavesQuotaUntouched(t *testing.T) {
	ctx := context.Background()
	f := newAnalysisFixture(t, time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC))
	f.provider.AnalyzeError = errors.New("analyzer unreachable")

	_, err := f.svc.Analyze(ctx, "user-1", analyzeRequest(f))
	require.Error(t, err)
	assert.Equal(t, domain.EANALYSISFAILED, domain.ErrorCode(err))

	plan, err := f.plans.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, plan.AdsUsed)
	assert.Equal(t, 12, plan.TotalAds)
}

func TestAnalysisService_AllSectionsFailedIsUnbilled(t *testing.T) {
	ctx := context.Background()
	f := newAnalysisFixture(t, time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC))
	f.provider.AnalyzeResponse = &analyzer.Result{
		Sections: map[string]any{
			"brand_compliance": map[string]any{"error": "model timeout"},
			"content_analysis": map[string]any{"error": "model timeout"},
		},
		Model: "mock-analyzer-v1",
	}

	_, err := f.svc.Analyze(ctx, "user-1", analyzeRequest(f))
	require.Error(t, err)
	assert.Equal(t, domain.EANALYSISFAILED, domain.ErrorCode(err))

	plan, err := f.plans.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, plan.AdsUsed)
}

func TestAnalysisService_LostCommitRaceIsUnbilledAndCleansUpMedia(t *testing.T) {
	ctx := context.Background()
	f := newAnalysisFixture(t, time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC))

	// A competing consumer lands while the analysis is in flight, so the
	// commit's conditional write must lose.
	f.provider.AnalyzeFunc = func(ctx context.Context, params analyzer.AnalyzeParams) (*analyzer.Result, error) {
		err := f.store.Update(ctx, billing.CollectionPlans, "user-1", docstore.Fields{
			"adsUsed": 1,
		})
		require.NoError(t, err)
		return &analyzer.Result{
			Sections: map[string]any{
				"brand_compliance": map[string]any{"score": 0.8},
			},
			Model: "mock-analyzer-v1",
		}, nil
	}

	_, err := f.svc.Analyze(ctx, "user-1", analyzeRequest(f))
	require.Error(t, err)
	assert.Equal(t, domain.ECONCURRENT, domain.ErrorCode(err))

	// Only the competing write is reflected; this attempt charged nothing.
	plan, err := f.plans.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, plan.AdsUsed)
	assert.Equal(t, 12, plan.TotalAds)

	// The uploaded creative must not outlive the failed attempt.
	assert.Empty(t, storedFiles(t, f.blobDir))
}

func TestAnalysisService_MonthlyLimitRejectsBeforeProviderCall(t *testing.T) {
	ctx := context.Background()
	f := newAnalysisFixture(t, time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC))

	// Lite allows 4 per month.
	for i := 0; i < 4; i++ {
		_, err := f.svc.Analyze(ctx, "user-1", analyzeRequest(f))
		require.NoError(t, err)
	}

	_, err := f.svc.Analyze(ctx, "user-1", analyzeRequest(f))
	require.Error(t, err)
	assert.Equal(t, domain.EMONTHLYLIMIT, domain.ErrorCode(err))
	assert.Equal(t, 4, f.provider.AnalyzeCalls)
}

func TestAnalysisService_UnknownBrandRejectedWithoutQuotaUse(t *testing.T) {
	ctx := context.Background()
	f := newAnalysisFixture(t, time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC))

	req := analyzeRequest(f)
	req.BrandID = "missing"
	_, err := f.svc.Analyze(ctx, "user-1", req)
	require.Error(t, err)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
	assert.Equal(t, 0, f.provider.AnalyzeCalls)
}

func TestAnalysisService_RejectsUnsupportedMedia(t *testing.T) {
	ctx := context.Background()
	f := newAnalysisFixture(t, time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC))

	req := analyzeRequest(f)
	req.File = UploadFile{Filename: "ad.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")}
	_, err := f.svc.Analyze(ctx, "user-1", req)
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	assert.Equal(t, 0, f.provider.AnalyzeCalls)
}

// =============================================================================
// History and Reads
// =============================================================================

func TestAnalysisService_HistoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newAnalysisFixture(t, time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC))

	first, err := f.svc.Analyze(ctx, "user-1", analyzeRequest(f))
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := f.svc.Analyze(ctx, "user-1", analyzeRequest(f))
	require.NoError(t, err)

	history, err := f.svc.History(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.ArtifactID, history[0].ArtifactID)
	assert.Equal(t, first.ArtifactID, history[1].ArtifactID)
}

func TestAnalysisService_ResultsFilteredToSelectedFeatures(t *testing.T) {
	ctx := context.Background()
	f := newAnalysisFixture(t, time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC))

	// Narrow the plan's selection after purchase; reads must honor it.
	err := f.store.Update(ctx, billing.CollectionPlans, "user-1", docstore.Fields{
		"selectedFeatures": []string{"brand_compliance"},
	})
	require.NoError(t, err)

	record, err := f.svc.Analyze(ctx, "user-1", analyzeRequest(f))
	require.NoError(t, err)
	assert.Contains(t, record.Results, "brand_compliance")
	assert.NotContains(t, record.Results, "content_analysis")

	loaded, err := f.svc.GetByID(ctx, record.ArtifactID, "user-1")
	require.NoError(t, err)
	assert.Contains(t, loaded.Results, "brand_compliance")
	assert.NotContains(t, loaded.Results, "metaphor_analysis")

	// The stored document keeps the full payload.
	doc, err := f.store.Get(ctx, CollectionAnalyses, record.ArtifactID)
	require.NoError(t, err)
	results := doc["ai_analysis_results"].(map[string]any)
	assert.Contains(t, results, "content_analysis")
}

func TestAnalysisService_GetEnforcesOwnership(t *testing.T) {
	ctx := context.Background()
	f := newAnalysisFixture(t, time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC))

	record, err := f.svc.Analyze(ctx, "user-1", analyzeRequest(f))
	require.NoError(t, err)

	_, err = f.svc.GetByID(ctx, record.ArtifactID, "user-2")
	require.Error(t, err)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestAnalysisService_DeleteRemovesRecord(t *testing.T) {
	ctx := context.Background()
	f := newAnalysisFixture(t, time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC))

	record, err := f.svc.Analyze(ctx, "user-1", analyzeRequest(f))
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, record.ArtifactID, "user-1"))

	_, err = f.svc.GetByID(ctx, record.ArtifactID, "user-1")
	require.Error(t, err)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}
