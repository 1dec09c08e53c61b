// Package service contains business logic for the Adlens application.
//
// This file implements the brand service for managing brand profiles and
// their media files.
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

	"github.com/adlens/adlens/internal/docstore"
	"github.com/adlens/adlens/internal/domain"
	"github.com/adlens/adlens/internal/storage"
)

// CollectionBrands is the document-store collection for brand profiles.
const CollectionBrands = "brand_data"

// signedURLTTL is how long media links handed to clients stay valid.
const signedURLTTL = time.Hour

// UploadFile is one file received from a multipart upload, fully read into
// memory by the handler.
type UploadFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// =============================================================================
// Interface Definition
// =============================================================================

// BrandService defines the interface for brand-related operations.
type BrandService interface {
	// Create stores a new brand profile with optional logo uploads.
	// Returns domain.EINVALID for validation errors.
	Create(ctx context.Context, userID string, params CreateBrandParams) (*domain.Brand, error)

	// GetByID retrieves a brand with fresh media URLs.
	// Returns domain.ENOTFOUND if the brand doesn't exist or doesn't belong to the user.
	GetByID(ctx context.Context, brandID, userID string) (*domain.Brand, error)

	// List retrieves all brands for a user with fresh media URLs.
	List(ctx context.Context, userID string) ([]domain.Brand, error)

	// UploadMedia attaches additional media files to an existing brand.
	UploadMedia(ctx context.Context, brandID, userID string, files []UploadFile) (*domain.Brand, error)

	// DeleteMediaFile removes one media file from a brand, including its
	// stored object and thumbnail.
	DeleteMediaFile(ctx context.Context, brandID, userID, fileID string) error

	// Delete removes a brand and all its stored media.
	Delete(ctx context.Context, brandID, userID string) error
}

// CreateBrandParams are the inputs for creating a brand profile.
type CreateBrandParams struct {
	BrandName          string
	Tagline            string
	BrandDescription   string
	IndustryCategory   string
	TargetAudience     string
	PrimaryColor       string
	SecondaryColor     string
	AccentColor        string
	ColorPalette       string
	ToneOfVoice        string
	CustomTone         string
	CommunicationStyle string
	BrandVoice         string
	KeyMessages        string
	Logos              []UploadFile
}

// =============================================================================
// Implementation
// =============================================================================

type brandService struct {
	store      docstore.Store
	blobs      storage.Storage
	thumbnails ThumbnailProcessor
	logger     *slog.Logger
}

// NewBrandService creates a new BrandService.
func NewBrandService(
	store docstore.Store,
	blobs storage.Storage,
	thumbnails ThumbnailProcessor,
	logger *slog.Logger,
) BrandService {
	return &brandService{
		store:      store,
		blobs:      blobs,
		thumbnails: thumbnails,
		logger:     logger,
	}
}

// =============================================================================
// Create
// =============================================================================

func (s *brandService) Create(ctx context.Context, userID string, params CreateBrandParams) (*domain.Brand, error) {
	const op = "brand.create"
	now := time.Now().UTC()

	if params.BrandName == "" {
		return nil, domain.Invalid(op, "brand name is required")
	}

	brand := &domain.Brand{
		BrandID:            uuid.New().String(),
		UserID:             userID,
		BrandName:          params.BrandName,
		Tagline:            params.Tagline,
		BrandDescription:   params.BrandDescription,
		IndustryCategory:   params.IndustryCategory,
		TargetAudience:     params.TargetAudience,
		PrimaryColor:       params.PrimaryColor,
		SecondaryColor:     params.SecondaryColor,
		AccentColor:        params.AccentColor,
		ColorPalette:       params.ColorPalette,
		ToneOfVoice:        params.ToneOfVoice,
		CustomTone:         params.CustomTone,
		CommunicationStyle: params.CommunicationStyle,
		BrandVoice:         params.BrandVoice,
		KeyMessages:        params.KeyMessages,
		MediaFiles:         []domain.MediaFile{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	brand.CompletionPercentage = completionPercentage(brand)
	brand.IsComplete = brand.CompletionPercentage == 100

	for _, file := range params.Logos {
		media, err := s.storeMedia(ctx, brand, file, domain.MediaTypeLogo)
		if err != nil {
			return nil, err
		}
		brand.MediaFiles = append(brand.MediaFiles, *media)
	}
	brand.MediaCount = len(brand.MediaFiles)

	if err := s.put(ctx, brand); err != nil {
		return nil, domain.Internal(err, op, "failed to store brand")
	}

	s.logger.Info("brand created",
		"brand_id", brand.BrandID,
		"user_id", userID,
		"media_files", brand.MediaCount,
	)

	return brand, nil
}

// =============================================================================
// Read
// =============================================================================

func (s *brandService) GetByID(ctx context.Context, brandID, userID string) (*domain.Brand, error) {
	const op = "brand.get"

	brand, err := s.load(ctx, brandID)
	if err != nil {
		return nil, err
	}
	if brand.UserID != userID {
		// Ownership failures read as not-found so brand IDs can't be probed.
		return nil, domain.NotFound(op, "brand", brandID)
	}

	s.refreshURLs(ctx, brand)
	return brand, nil
}

func (s *brandService) List(ctx context.Context, userID string) ([]domain.Brand, error) {
	const op = "brand.list"

	docs, err := s.store.QueryEqual(ctx, CollectionBrands, "userId", userID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to query brands")
	}

	brands := make([]domain.Brand, 0, len(docs))
	for _, doc := range docs {
		brand, err := brandFromDocument(doc)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to decode brand")
		}
		s.refreshURLs(ctx, brand)
		brands = append(brands, *brand)
	}

	sort.Slice(brands, func(i, j int) bool {
		return brands[i].CreatedAt.After(brands[j].CreatedAt)
	})
	return brands, nil
}

// =============================================================================
// Media
// =============================================================================

func (s *brandService) UploadMedia(ctx context.Context, brandID, userID string, files []UploadFile) (*domain.Brand, error) {
	const op = "brand.upload_media"

	brand, err := s.GetByID(ctx, brandID, userID)
	if err != nil {
		return nil, err
	}

	for _, file := range files {
		mediaType := domain.ClassifyMedia(file.ContentType, file.Filename)
		media, err := s.storeMedia(ctx, brand, file, mediaType)
		if err != nil {
			return nil, err
		}
		brand.MediaFiles = append(brand.MediaFiles, *media)
	}
	brand.MediaCount = len(brand.MediaFiles)
	brand.UpdatedAt = time.Now().UTC()

	if err := s.put(ctx, brand); err != nil {
		return nil, domain.Internal(err, op, "failed to store brand")
	}
	return brand, nil
}

func (s *brandService) DeleteMediaFile(ctx context.Context, brandID, userID, fileID string) error {
	const op = "brand.delete_media"

	brand, err := s.GetByID(ctx, brandID, userID)
	if err != nil {
		return err
	}

	idx := -1
	for i := range brand.MediaFiles {
		if brand.MediaFiles[i].FileID == fileID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.NotFound(op, "media file", fileID)
	}

	media := brand.MediaFiles[idx]
	// Keep going if blob deletion fails: the document is the source of
	// truth for which files a brand has.
	if err := s.blobs.Delete(ctx, media.StoragePath); err != nil {
		s.logger.Error("failed to delete media object", "key", media.StoragePath, "error", err)
	}
	if media.ThumbnailPath != "" {
		if err := s.blobs.Delete(ctx, media.ThumbnailPath); err != nil {
			s.logger.Error("failed to delete thumbnail object", "key", media.ThumbnailPath, "error", err)
		}
	}

	brand.MediaFiles = append(brand.MediaFiles[:idx], brand.MediaFiles[idx+1:]...)
	brand.MediaCount = len(brand.MediaFiles)
	brand.UpdatedAt = time.Now().UTC()

	if err := s.put(ctx, brand); err != nil {
		return domain.Internal(err, op, "failed to store brand")
	}
	return nil
}

func (s *brandService) Delete(ctx context.Context, brandID, userID string) error {
	const op = "brand.delete"

	brand, err := s.GetByID(ctx, brandID, userID)
	if err != nil {
		return err
	}

	for _, media := range brand.MediaFiles {
		if err := s.blobs.Delete(ctx, media.StoragePath); err != nil {
			s.logger.Error("failed to delete media object", "key", media.StoragePath, "error", err)
		}
		if media.ThumbnailPath != "" {
			if err := s.blobs.Delete(ctx, media.ThumbnailPath); err != nil {
				s.logger.Error("failed to delete thumbnail object", "key", media.ThumbnailPath, "error", err)
			}
		}
	}

	if err := s.store.Remove(ctx, CollectionBrands, brandID); err != nil {
		return domain.Internal(err, op, "failed to delete brand")
	}

	s.logger.Info("brand deleted", "brand_id", brandID, "user_id", userID)
	return nil
}

// =============================================================================
// Internal Helpers
// =============================================================================

// storeMedia validates, uploads and describes one media file. Raster images
// additionally get a thumbnail; a thumbnail failure is logged and skipped
// rather than failing the upload.
func (s *brandService) storeMedia(ctx context.Context, brand *domain.Brand, file UploadFile, mediaType domain.MediaType) (*domain.MediaFile, error) {
	const op = "brand.store_media"

	if len(file.Data) == 0 {
		return nil, domain.Invalid(op, "empty file")
	}
	if int64(len(file.Data)) > domain.MaxMediaFileSize {
		return nil, domain.Errorf(domain.ETOOLARGE, op, "file %q exceeds the %dMB limit", file.Filename, domain.MaxMediaFileSize>>20)
	}

	contentType := storage.DetectContentType(file.ContentType, file.Filename, bytes.NewReader(file.Data))
	if mediaType == domain.MediaTypeLogo && !domain.IsAllowedImageType(contentType) {
		return nil, domain.Invalid(op, fmt.Sprintf("unsupported logo type %q", contentType))
	}
	if !domain.IsAllowedMediaType(contentType) {
		return nil, domain.Invalid(op, fmt.Sprintf("unsupported media type %q", contentType))
	}

	fileID := uuid.New().String()
	slug := domain.SanitizeBrandName(brand.BrandName)
	key := storage.MediaKey(brand.UserID, slug, brand.BrandID, string(mediaType), fileID, file.Filename)

	if err := s.blobs.Put(ctx, key, bytes.NewReader(file.Data), storage.PutOptions{
		ContentType: contentType,
		MaxSize:     domain.MaxMediaFileSize,
	}); err != nil {
		return nil, domain.Internal(err, op, "failed to upload media")
	}

	media := &domain.MediaFile{
		FileID:          fileID,
		Filename:        file.Filename,
		ContentType:     contentType,
		FileSize:        int64(len(file.Data)),
		StoragePath:     key,
		MediaType:       mediaType,
		UploadTimestamp: time.Now().UTC(),
	}

	if thumbnailable(contentType) {
		thumbKey := storage.ThumbnailKey(brand.UserID, slug, brand.BrandID, fileID)
		thumbData, _, _, err := s.thumbnails.GenerateThumbnail(bytes.NewReader(file.Data), domain.ThumbnailMaxWidth, domain.ThumbnailMaxHeight)
		if err != nil {
			s.logger.Warn("thumbnail generation failed", "file", file.Filename, "error", err)
		} else if err := s.blobs.Put(ctx, thumbKey, bytes.NewReader(thumbData), storage.PutOptions{
			ContentType: "image/jpeg",
		}); err != nil {
			s.logger.Warn("thumbnail upload failed", "key", thumbKey, "error", err)
		} else {
			media.ThumbnailPath = thumbKey
		}
	}

	if url, err := s.blobs.URL(ctx, key, signedURLTTL); err == nil {
		media.URL = url
	}

	return media, nil
}

// thumbnailable reports whether the content type is a raster format the
// imaging pipeline can decode.
func thumbnailable(contentType string) bool {
	switch contentType {
	case "image/jpeg", "image/jpg", "image/png", "image/gif":
		return true
	default:
		return false
	}
}

// refreshURLs re-signs every media URL in place. Stored URLs expire, so
// reads always hand out fresh ones.
func (s *brandService) refreshURLs(ctx context.Context, brand *domain.Brand) {
	for i := range brand.MediaFiles {
		media := &brand.MediaFiles[i]
		if url, err := s.blobs.URL(ctx, media.StoragePath, signedURLTTL); err == nil {
			media.URL = url
		} else {
			s.logger.Warn("failed to sign media URL", "key", media.StoragePath, "error", err)
		}
	}
}

// completionPercentage scores how much of the brand profile is filled in.
func completionPercentage(brand *domain.Brand) int {
	fields := []string{
		brand.BrandName,
		brand.BrandDescription,
		brand.IndustryCategory,
		brand.TargetAudience,
		brand.PrimaryColor,
		brand.ToneOfVoice,
	}
	filled := 0
	for _, f := range fields {
		if f != "" {
			filled++
		}
	}
	return filled * 100 / len(fields)
}

func (s *brandService) load(ctx context.Context, brandID string) (*domain.Brand, error) {
	const op = "brand.load"

	doc, err := s.store.Get(ctx, CollectionBrands, brandID)
	if err != nil {
		if docstore.IsNotFound(err) {
			return nil, domain.NotFound(op, "brand", brandID)
		}
		return nil, domain.Internal(err, op, "failed to load brand")
	}
	brand, err := brandFromDocument(doc)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to decode brand")
	}
	return brand, nil
}

func (s *brandService) put(ctx context.Context, brand *domain.Brand) error {
	doc, err := documentFromBrand(brand)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, CollectionBrands, brand.BrandID, doc)
}

func brandFromDocument(doc docstore.Document) (*domain.Brand, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var brand domain.Brand
	if err := json.Unmarshal(data, &brand); err != nil {
		return nil, err
	}
	return &brand, nil
}

func documentFromBrand(brand *domain.Brand) (docstore.Document, error) {
	data, err := json.Marshal(brand)
	if err != nil {
		return nil, err
	}
	var doc docstore.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
