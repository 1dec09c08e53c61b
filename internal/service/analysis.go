// Package service contains business logic for the Adlens application.
//
// This file implements the analysis service: the orchestration of one ad
// analysis around the two-phase consumption gate, plus history reads with
// plan-feature filtering.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/adlens/adlens/internal/analyzer"
	"github.com/adlens/adlens/internal/billing"
	"github.com/adlens/adlens/internal/docstore"
	"github.com/adlens/adlens/internal/domain"
	"github.com/adlens/adlens/internal/metrics"
	"github.com/adlens/adlens/internal/storage"
)

// CollectionAnalyses is the document-store collection for analysis records.
const CollectionAnalyses = "user_analysis"

// =============================================================================
// Interface Definition
// =============================================================================

// AnalysisService defines the interface for ad analysis operations.
type AnalysisService interface {
	// Analyze runs one ad analysis end to end: quota authorization, media
	// upload, the remote analysis call, consumption commit and record
	// persistence. Exactly one unit of plan usage is charged, and only
	// when the analysis produced at least one usable result.
	//
	// Returns domain.EMONTHLYLIMIT or domain.EBALANCE when the quota gate
	// rejects, domain.EANALYSISFAILED when the remote call produced no
	// usable result (nothing is charged), and domain.ECONCURRENT when the
	// commit lost a quota race (the analysis ran but stays unbilled).
	Analyze(ctx context.Context, userID string, req AnalyzeRequest) (*domain.AnalysisRecord, error)

	// GetByID retrieves one analysis record with results filtered to the
	// plan's selected features.
	GetByID(ctx context.Context, artifactID, userID string) (*domain.AnalysisRecord, error)

	// History retrieves all analysis records for a user, newest first,
	// with results filtered to the plan's selected features.
	History(ctx context.Context, userID string) ([]domain.AnalysisRecord, error)

	// Delete removes an analysis record and its stored creative.
	Delete(ctx context.Context, artifactID, userID string) error
}

// AnalyzeRequest are the inputs for one analysis run.
type AnalyzeRequest struct {
	File          UploadFile
	BrandID       string
	AdTitle       string
	MessageIntent string
	FunnelStage   string
	Channels      []string
	Source        string
	ClientID      string
}

// =============================================================================
// Implementation
// =============================================================================

type analysisService struct {
	store    docstore.Store
	blobs    storage.Storage
	provider analyzer.Provider
	gate     *billing.Gate
	plans    *billing.PlanStore
	brands   BrandService
	logger   *slog.Logger
}

// NewAnalysisService creates a new AnalysisService.
func NewAnalysisService(
	store docstore.Store,
	blobs storage.Storage,
	provider analyzer.Provider,
	gate *billing.Gate,
	plans *billing.PlanStore,
	brands BrandService,
	logger *slog.Logger,
) AnalysisService {
	return &analysisService{
		store:    store,
		blobs:    blobs,
		provider: provider,
		gate:     gate,
		plans:    plans,
		brands:   brands,
		logger:   logger,
	}
}

// =============================================================================
// Analyze
// =============================================================================

func (s *analysisService) Analyze(ctx context.Context, userID string, req AnalyzeRequest) (*domain.AnalysisRecord, error) {
	const op = "analysis.analyze"

	if len(req.File.Data) == 0 {
		return nil, domain.Invalid(op, "no media file supplied")
	}
	if int64(len(req.File.Data)) > domain.MaxMediaFileSize {
		return nil, domain.Errorf(domain.ETOOLARGE, op, "file exceeds the %dMB limit", domain.MaxMediaFileSize>>20)
	}

	contentType := storage.DetectContentType(req.File.ContentType, req.File.Filename, bytes.NewReader(req.File.Data))
	if !domain.IsAllowedMediaType(contentType) {
		return nil, domain.Invalid(op, fmt.Sprintf("unsupported media type %q", contentType))
	}

	// Brand ownership is checked before any quota math so a bad brand ID
	// can't burn an authorization.
	brand, err := s.brands.GetByID(ctx, req.BrandID, userID)
	if err != nil {
		return nil, err
	}

	record, err := s.plans.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	auth, err := s.gate.TryConsume(ctx, userID)
	if err != nil {
		return nil, err
	}

	artifactID := uuid.New().String()
	fileID := uuid.New().String()
	key := storage.AnalysisMediaKey(userID, artifactID, fileID, req.File.Filename)

	if err := s.blobs.Put(ctx, key, bytes.NewReader(req.File.Data), storage.PutOptions{
		ContentType: contentType,
		MaxSize:     domain.MaxMediaFileSize,
	}); err != nil {
		return nil, domain.Internal(err, op, "failed to store analysis media")
	}

	params := analyzer.AnalyzeParams{
		MediaData:     req.File.Data,
		ContentType:   contentType,
		Filename:      req.File.Filename,
		AdTitle:       req.AdTitle,
		MessageIntent: req.MessageIntent,
		FunnelStage:   req.FunnelStage,
		Platforms:     domain.MapChannelsToPlatforms(req.Channels),
		BrandName:     brand.BrandName,
		BrandColors:   brandColors(brand),
		ToneOfVoice:   brand.ToneOfVoice,
		AnalysisID:    artifactID,
		UserID:        userID,
	}
	var logoInfo map[string]any
	if logo := brand.Logo(); logo != nil {
		params.LogoURL = logo.URL
		logoInfo = map[string]any{
			"fileId":   logo.FileID,
			"filename": logo.Filename,
			"url":      logo.URL,
		}
	}

	start := time.Now()
	result, err := s.provider.Analyze(ctx, params)
	if err != nil || !result.Succeeded() {
		// No usable result: the uploaded creative is removed and, above
		// all, no usage is charged.
		metrics.AnalysesTotal.WithLabelValues("failed").Inc()
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.logger.Error("failed to clean up analysis media", "key", key, "error", delErr)
		}
		if err == nil {
			err = fmt.Errorf("all analysis sections failed")
		}
		return nil, domain.AnalysisFailed(err, op)
	}
	metrics.AnalysisDuration.Observe(time.Since(start).Seconds())

	if err := s.gate.Commit(ctx, auth); err != nil {
		// Lost the consumption race: nothing was billed, so the uploaded
		// creative is removed like any other unbilled attempt.
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.logger.Error("failed to clean up analysis media", "key", key, "error", delErr)
		}
		return nil, err
	}

	outcome := "partial"
	if result.SuccessRate() == 1 {
		outcome = "success"
	}
	metrics.AnalysesTotal.WithLabelValues(outcome).Inc()

	mediaURL, urlErr := s.blobs.URL(ctx, key, signedURLTTL)
	if urlErr != nil {
		s.logger.Warn("failed to sign analysis media URL", "key", key, "error", urlErr)
	}

	analysis := &domain.AnalysisRecord{
		UserID:        userID,
		ArtifactID:    artifactID,
		BrandID:       brand.BrandID,
		AdTitle:       req.AdTitle,
		MessageIntent: req.MessageIntent,
		FunnelStage:   req.FunnelStage,
		Channels:      req.Channels,
		Source:        req.Source,
		ClientID:      req.ClientID,
		MediaURL:      mediaURL,
		MediaType:     contentType,
		MediaCategory: domain.ClassifyMedia(contentType, req.File.Filename),
		StoragePath:   key,
		BrandName:     brand.BrandName,
		Results:       result.Sections,
		PlanUsage: domain.PlanUsageSnapshot{
			AdsUsed:           auth.EffectiveAdsUsed + 1,
			MaxAdsPerMonth:    auth.MaxAdsPerMonth,
			TotalAdsRemaining: auth.TotalAds - 1,
			PlanName:          record.PlanName,
		},
		Logo:      logoInfo,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.putRecord(ctx, analysis); err != nil {
		// The analysis is already billed; losing the record would orphan
		// the charge, so this is surfaced as an error.
		return nil, domain.Internal(err, op, "failed to store analysis record")
	}

	s.logger.Info("analysis completed",
		"artifact_id", artifactID,
		"user_id", userID,
		"brand_id", brand.BrandID,
		"outcome", outcome,
	)

	filterRecord(analysis, record.SelectedFeatures)
	return analysis, nil
}

// =============================================================================
// Read
// =============================================================================

func (s *analysisService) GetByID(ctx context.Context, artifactID, userID string) (*domain.AnalysisRecord, error) {
	const op = "analysis.get"

	doc, err := s.store.Get(ctx, CollectionAnalyses, artifactID)
	if err != nil {
		if docstore.IsNotFound(err) {
			return nil, domain.NotFound(op, "analysis", artifactID)
		}
		return nil, domain.Internal(err, op, "failed to load analysis")
	}

	record, err := analysisFromDocument(doc)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to decode analysis")
	}
	if record.UserID != userID {
		return nil, domain.NotFound(op, "analysis", artifactID)
	}

	s.refreshMediaURL(ctx, record)
	filterRecord(record, s.selectedFeatures(ctx, userID))
	return record, nil
}

func (s *analysisService) History(ctx context.Context, userID string) ([]domain.AnalysisRecord, error) {
	const op = "analysis.history"

	docs, err := s.store.QueryEqual(ctx, CollectionAnalyses, "userId", userID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to query analyses")
	}

	features := s.selectedFeatures(ctx, userID)

	records := make([]domain.AnalysisRecord, 0, len(docs))
	for _, doc := range docs {
		record, err := analysisFromDocument(doc)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to decode analysis")
		}
		s.refreshMediaURL(ctx, record)
		filterRecord(record, features)
		records = append(records, *record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

func (s *analysisService) Delete(ctx context.Context, artifactID, userID string) error {
	const op = "analysis.delete"

	record, err := s.GetByID(ctx, artifactID, userID)
	if err != nil {
		return err
	}

	if record.StoragePath != "" {
		if err := s.blobs.Delete(ctx, record.StoragePath); err != nil {
			s.logger.Error("failed to delete analysis media", "key", record.StoragePath, "error", err)
		}
	}

	if err := s.store.Remove(ctx, CollectionAnalyses, artifactID); err != nil {
		return domain.Internal(err, op, "failed to delete analysis record")
	}
	return nil
}

// =============================================================================
// Internal Helpers
// =============================================================================

// selectedFeatures returns the plan's current feature selection, or nil
// when the user has no plan (no filtering applied in that case).
func (s *analysisService) selectedFeatures(ctx context.Context, userID string) []string {
	record, err := s.plans.Get(ctx, userID)
	if err != nil {
		return nil
	}
	return record.SelectedFeatures
}

// filterRecord narrows the stored results down to what the selection
// entitles the user to see. The full payload stays in the document store;
// only the returned copy is filtered.
func filterRecord(record *domain.AnalysisRecord, selectedFeatures []string) {
	if len(selectedFeatures) == 0 || record.Results == nil {
		return
	}
	filtered, _ := domain.FilterFeatures(record.Results, selectedFeatures)
	record.Results = filtered
}

func (s *analysisService) refreshMediaURL(ctx context.Context, record *domain.AnalysisRecord) {
	if record.StoragePath == "" {
		return
	}
	if url, err := s.blobs.URL(ctx, record.StoragePath, signedURLTTL); err == nil {
		record.MediaURL = url
	}
}

func brandColors(brand *domain.Brand) []string {
	var colors []string
	for _, c := range []string{brand.PrimaryColor, brand.SecondaryColor, brand.AccentColor} {
		if c != "" {
			colors = append(colors, c)
		}
	}
	return colors
}

func (s *analysisService) putRecord(ctx context.Context, record *domain.AnalysisRecord) error {
	doc, err := analysisToDocument(record)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, CollectionAnalyses, record.ArtifactID, doc)
}

func analysisFromDocument(doc docstore.Document) (*domain.AnalysisRecord, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var record domain.AnalysisRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func analysisToDocument(record *domain.AnalysisRecord) (docstore.Document, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	var doc docstore.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
