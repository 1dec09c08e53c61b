package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// =============================================================================
// MemoryStore Implementation
// =============================================================================

// MemoryStore implements Store with an in-process map. It is used in
// development and tests. Documents round-trip through encoding/json on
// write so stored values carry the same types a JSON-backed store would
// produce (float64 numbers, []any slices).
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
}

// NewMemoryStore creates an empty in-memory document store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]Document),
	}
}

// Get retrieves a document by ID.
func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyDocument(doc)
}

// Set stores a document, replacing any existing content.
func (s *MemoryStore) Set(ctx context.Context, collection, id string, doc Document) error {
	normalized, err := copyDocument(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.collection(collection)[id] = normalized
	return nil
}

// Merge applies field mutations, creating the document if absent.
func (s *MemoryStore) Merge(ctx context.Context, collection, id string, fields Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collection(collection)
	doc, ok := coll[id]
	if !ok {
		doc = Document{}
	}
	updated, err := applyFields(doc, fields)
	if err != nil {
		return err
	}
	coll[id] = updated
	return nil
}

// Update applies field mutations to an existing document.
func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collection(collection)
	doc, ok := coll[id]
	if !ok {
		return ErrNotFound
	}
	updated, err := applyFields(doc, fields)
	if err != nil {
		return err
	}
	coll[id] = updated
	return nil
}

// UpdateIf applies field mutations while the preconditions hold.
func (s *MemoryStore) UpdateIf(ctx context.Context, collection, id string, preconditions Fields, fields Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collection(collection)
	doc, ok := coll[id]
	if !ok {
		return ErrNotFound
	}
	for field, expected := range preconditions {
		if !jsonEqual(doc[field], expected) {
			return ErrPreconditionFailed
		}
	}
	updated, err := applyFields(doc, fields)
	if err != nil {
		return err
	}
	coll[id] = updated
	return nil
}

// QueryEqual returns all documents whose top-level field equals value.
func (s *MemoryStore) QueryEqual(ctx context.Context, collection, field string, value any) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Document
	for _, doc := range s.collections[collection] {
		if jsonEqual(doc[field], value) {
			copied, err := copyDocument(doc)
			if err != nil {
				return nil, err
			}
			out = append(out, copied)
		}
	}
	return out, nil
}

// List returns all documents in a collection keyed by ID.
func (s *MemoryStore) List(ctx context.Context, collection string) (map[string]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Document, len(s.collections[collection]))
	for id, doc := range s.collections[collection] {
		copied, err := copyDocument(doc)
		if err != nil {
			return nil, err
		}
		out[id] = copied
	}
	return out, nil
}

// Remove deletes a document. Idempotent.
func (s *MemoryStore) Remove(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections[collection], id)
	return nil
}

// collection returns the named collection map, creating it if needed.
// Callers must hold the write lock.
func (s *MemoryStore) collection(name string) map[string]Document {
	coll, ok := s.collections[name]
	if !ok {
		coll = make(map[string]Document)
		s.collections[name] = coll
	}
	return coll
}

// =============================================================================
// Internal Helpers
// =============================================================================

// copyDocument deep-copies a document through a JSON round trip, which also
// normalizes value types to their JSON forms.
func copyDocument(doc Document) (Document, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var out Document
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if out == nil {
		out = Document{}
	}
	return out, nil
}

// applyFields returns a copy of doc with the field mutations applied.
// Dotted keys address nested objects, creating intermediate maps as needed.
func applyFields(doc Document, fields Fields) (Document, error) {
	out, err := copyDocument(doc)
	if err != nil {
		return nil, err
	}
	for key, value := range fields {
		parts := strings.Split(key, ".")
		target := map[string]any(out)
		for _, part := range parts[:len(parts)-1] {
			next, ok := target[part].(map[string]any)
			if !ok {
				next = make(map[string]any)
				target[part] = next
			}
			target = next
		}
		leaf := parts[len(parts)-1]
		if _, isDelete := value.(deleteSentinel); isDelete {
			delete(target, leaf)
			continue
		}
		normalized, err := normalizeValue(value)
		if err != nil {
			return nil, err
		}
		target[leaf] = normalized
	}
	return out, nil
}

// normalizeValue converts a value to its JSON form.
func normalizeValue(value any) (any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode field value: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode field value: %w", err)
	}
	return out, nil
}

// jsonEqual compares two values after normalizing both to their JSON
// encodings, so 5 (int) equals 5.0 (float64 from a decode).
func jsonEqual(a, b any) bool {
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(aj) == string(bj)
}
