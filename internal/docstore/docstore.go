// Package docstore provides keyed document storage for the Adlens
// application.
//
// This package defines a Store interface with implementations for:
// - MemoryStore: In-memory storage for development and tests
// - PostgresStore: JSONB-backed storage on Postgres for production
//
// Documents are schemaless JSON objects grouped into named collections and
// addressed by string IDs. Partial updates mutate individual top-level
// fields (including dotted paths into nested objects) without rewriting the
// rest of the document, so concurrent writers touching different fields do
// not clobber each other.
package docstore

import (
	"context"
	"errors"
)

// =============================================================================
// Sentinel Values and Errors
// =============================================================================

// deleteSentinel is the unexported type behind Delete.
type deleteSentinel struct{}

// Delete is the field-value sentinel that removes a field during Update or
// Merge instead of setting it.
//
//	store.Update(ctx, "user_profiles", id, docstore.Fields{
//		"subscription": docstore.Delete,
//	})
var Delete = deleteSentinel{}

var (
	// ErrNotFound is returned when a requested document doesn't exist.
	ErrNotFound = errors.New("document not found")

	// ErrPreconditionFailed is returned by UpdateIf when a precondition
	// field no longer holds its expected value.
	ErrPreconditionFailed = errors.New("document precondition failed")
)

// IsNotFound returns true if the error indicates a missing document.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsPreconditionFailed returns true if the error indicates a failed
// conditional update.
func IsPreconditionFailed(err error) bool {
	return errors.Is(err, ErrPreconditionFailed)
}

// =============================================================================
// Data Types
// =============================================================================

// Document is a decoded JSON document.
type Document map[string]any

// Fields is a set of field mutations for Update/Merge/UpdateIf. Keys may be
// plain top-level field names or dotted paths ("subscription.adsUsed") that
// address a field inside a nested object. A value of Delete removes the
// field.
type Fields map[string]any

// =============================================================================
// Interface Definition
// =============================================================================

// Store is the document storage interface.
//
// All methods are context-aware for timeout and cancellation support.
type Store interface {
	// Get retrieves the document with the given ID from a collection.
	// Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, collection, id string) (Document, error)

	// Set stores a document under the given ID, replacing any existing
	// document entirely.
	Set(ctx context.Context, collection, id string, doc Document) error

	// Merge applies field mutations to a document, creating it if absent.
	Merge(ctx context.Context, collection, id string, fields Fields) error

	// Update applies field mutations to an existing document. Returns
	// ErrNotFound if the document doesn't exist. Unlisted fields are left
	// untouched.
	Update(ctx context.Context, collection, id string, fields Fields) error

	// UpdateIf applies field mutations only while every precondition
	// field still equals its expected value, as a single atomic
	// compare-and-set. Returns ErrPreconditionFailed if any precondition
	// no longer holds, ErrNotFound if the document doesn't exist.
	// Precondition keys must be top-level fields.
	UpdateIf(ctx context.Context, collection, id string, preconditions Fields, fields Fields) error

	// QueryEqual returns all documents in a collection whose named
	// top-level field equals value.
	QueryEqual(ctx context.Context, collection, field string, value any) ([]Document, error)

	// List returns every document in a collection along with its ID.
	List(ctx context.Context, collection string) (map[string]Document, error)

	// Remove deletes a document. Removing a missing document is not an
	// error.
	Remove(ctx context.Context, collection, id string) error
}
