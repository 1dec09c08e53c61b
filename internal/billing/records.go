package billing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/adlens/adlens/internal/docstore"
	"github.com/adlens/adlens/internal/domain"
)

// Collection names in the document store.
const (
	CollectionPlans    = "plan_selections"
	CollectionProfiles = "user_profiles"
)

// =============================================================================
// PlanStore
// =============================================================================

// PlanStore is the typed repository for plan records. One record per user,
// keyed by user ID in the plan_selections collection.
type PlanStore struct {
	store docstore.Store
}

// NewPlanStore creates a PlanStore over the given document store.
func NewPlanStore(store docstore.Store) *PlanStore {
	return &PlanStore{store: store}
}

// Get loads the plan record for a user.
func (s *PlanStore) Get(ctx context.Context, userID string) (*domain.PlanRecord, error) {
	const op = "billing.PlanStore.Get"

	doc, err := s.store.Get(ctx, CollectionPlans, userID)
	if err != nil {
		if docstore.IsNotFound(err) {
			return nil, domain.NotFound(op, "plan record", userID)
		}
		return nil, domain.Internal(err, op, "failed to load plan record")
	}

	record, err := recordFromDocument(doc)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to decode plan record")
	}
	return record, nil
}

// Put writes the full plan record, replacing any existing one.
func (s *PlanStore) Put(ctx context.Context, record *domain.PlanRecord) error {
	const op = "billing.PlanStore.Put"

	doc, err := documentFromRecord(record)
	if err != nil {
		return domain.Internal(err, op, "failed to encode plan record")
	}
	if err := s.store.Set(ctx, CollectionPlans, record.UserID, doc); err != nil {
		return domain.Internal(err, op, "failed to store plan record")
	}
	return nil
}

// Update applies a per-field mutation to the plan record. Unlisted fields
// are left untouched, so concurrent unrelated writes are not clobbered.
func (s *PlanStore) Update(ctx context.Context, userID string, fields docstore.Fields) error {
	const op = "billing.PlanStore.Update"

	if err := s.store.Update(ctx, CollectionPlans, userID, fields); err != nil {
		if docstore.IsNotFound(err) {
			return domain.NotFound(op, "plan record", userID)
		}
		return domain.Internal(err, op, "failed to update plan record")
	}
	return nil
}

// UpdateIf applies a per-field mutation only while the preconditions hold.
// A failed precondition surfaces as ECONCURRENT.
func (s *PlanStore) UpdateIf(ctx context.Context, userID string, preconditions, fields docstore.Fields) error {
	const op = "billing.PlanStore.UpdateIf"

	err := s.store.UpdateIf(ctx, CollectionPlans, userID, preconditions, fields)
	if err != nil {
		if docstore.IsNotFound(err) {
			return domain.NotFound(op, "plan record", userID)
		}
		if docstore.IsPreconditionFailed(err) {
			return domain.ConcurrentModification(op)
		}
		return domain.Internal(err, op, "failed to update plan record")
	}
	return nil
}

// Remove deletes the plan record. Used only by the administrative reset.
func (s *PlanStore) Remove(ctx context.Context, userID string) error {
	const op = "billing.PlanStore.Remove"

	if err := s.store.Remove(ctx, CollectionPlans, userID); err != nil {
		return domain.Internal(err, op, "failed to remove plan record")
	}
	return nil
}

// All returns every plan record keyed by user ID. Used by the
// reconciliation sweep.
func (s *PlanStore) All(ctx context.Context) (map[string]*domain.PlanRecord, error) {
	const op = "billing.PlanStore.All"

	docs, err := s.store.List(ctx, CollectionPlans)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list plan records")
	}

	out := make(map[string]*domain.PlanRecord, len(docs))
	for userID, doc := range docs {
		record, err := recordFromDocument(doc)
		if err != nil {
			return nil, domain.Internal(err, op, fmt.Sprintf("failed to decode plan record for user %q", userID))
		}
		out[userID] = record
	}
	return out, nil
}

// =============================================================================
// Codec Helpers
// =============================================================================

func recordFromDocument(doc docstore.Document) (*domain.PlanRecord, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var record domain.PlanRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func documentFromRecord(record *domain.PlanRecord) (docstore.Document, error) {
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
