package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/adlens/adlens/internal/billing"
	"github.com/adlens/adlens/internal/docstore"
	"github.com/adlens/adlens/internal/domain"
)

// =============================================================================
// Interface Definition
// =============================================================================

// ProfileService defines read and write access to user profile documents.
// The subscription block inside a profile is owned by the billing mirror;
// profile saves never touch it.
type ProfileService interface {
	// Get retrieves a user's profile document.
	Get(ctx context.Context, userID string) (*domain.UserProfile, error)

	// Save merges the caller-supplied profile and metadata fields into the
	// stored document, creating it if absent. The subscription block is
	// left alone.
	Save(ctx context.Context, userID string, profile, metadata map[string]any) (*domain.UserProfile, error)
}

// =============================================================================
// Implementation
// =============================================================================

type profileService struct {
	store  docstore.Store
	logger *slog.Logger
}

// NewProfileService creates a new ProfileService.
func NewProfileService(store docstore.Store, logger *slog.Logger) ProfileService {
	return &profileService{store: store, logger: logger}
}

func (s *profileService) Get(ctx context.Context, userID string) (*domain.UserProfile, error) {
	const op = "profile.get"

	doc, err := s.store.Get(ctx, billing.CollectionProfiles, userID)
	if err != nil {
		if docstore.IsNotFound(err) {
			return nil, domain.NotFound(op, "profile", userID)
		}
		return nil, domain.Internal(err, op, "failed to load profile")
	}
	return profileFromDocument(doc)
}

func (s *profileService) Save(ctx context.Context, userID string, profile, metadata map[string]any) (*domain.UserProfile, error) {
	const op = "profile.save"

	now := time.Now().UTC().Format(time.RFC3339)
	fields := docstore.Fields{
		"userId":    userID,
		"timestamp": now,
		"updatedAt": now,
	}
	for k, v := range profile {
		fields["userProfile."+k] = v
	}
	for k, v := range metadata {
		fields["metadata."+k] = v
	}

	if err := s.store.Merge(ctx, billing.CollectionProfiles, userID, fields); err != nil {
		return nil, domain.Internal(err, op, "failed to save profile")
	}

	s.logger.Info("profile saved", "user_id", userID)
	return s.Get(ctx, userID)
}

func profileFromDocument(doc docstore.Document) (*domain.UserProfile, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, domain.Internal(err, "profile.decode", "failed to encode profile document")
	}
	var profile domain.UserProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, domain.Internal(err, "profile.decode", "failed to decode profile")
	}
	return &profile, nil
}
