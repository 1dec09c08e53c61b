package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// =============================================================================
// PostgresStore Implementation
// =============================================================================

// PostgresStore implements Store on a single JSONB-backed documents table.
// Each row is (collection, id, data); field mutations are expressed as
// jsonb operations so partial updates never rewrite the whole document
// client-side.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a document store backed by the given database.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get retrieves a document by ID.
func (s *PostgresStore) Get(ctx context.Context, collection, id string) (Document, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

// Set stores a document, replacing any existing content.
func (s *PostgresStore) Set(ctx context.Context, collection, id string, doc Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (collection, id)
		 DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		collection, id, data, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set document: %w", err)
	}
	return nil
}

// Merge applies field mutations, creating the document if absent.
func (s *PostgresStore) Merge(ctx context.Context, collection, id string, fields Fields) error {
	expr, args, err := buildFieldExpr(fields, 3)
	if err != nil {
		return err
	}

	insert := `INSERT INTO documents (collection, id, data, updated_at)
		 VALUES ($1, $2, '{}'::jsonb, now())
		 ON CONFLICT (collection, id) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, insert, collection, id); err != nil {
		return fmt.Errorf("merge document: %w", err)
	}

	update := fmt.Sprintf(
		`UPDATE documents SET data = %s, updated_at = now()
		 WHERE collection = $1 AND id = $2`, expr)
	allArgs := append([]any{collection, id}, args...)
	if _, err := s.db.ExecContext(ctx, update, allArgs...); err != nil {
		return fmt.Errorf("merge document: %w", err)
	}
	return nil
}

// Update applies field mutations to an existing document.
func (s *PostgresStore) Update(ctx context.Context, collection, id string, fields Fields) error {
	expr, args, err := buildFieldExpr(fields, 3)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(
		`UPDATE documents SET data = %s, updated_at = now()
		 WHERE collection = $1 AND id = $2`, expr)
	allArgs := append([]any{collection, id}, args...)

	result, err := s.db.ExecContext(ctx, query, allArgs...)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateIf applies field mutations only while the top-level preconditions
// hold, in a single statement so concurrent writers cannot interleave
// between the check and the write.
func (s *PostgresStore) UpdateIf(ctx context.Context, collection, id string, preconditions Fields, fields Fields) error {
	expr, args, err := buildFieldExpr(fields, 3)
	if err != nil {
		return err
	}
	allArgs := append([]any{collection, id}, args...)

	var conds []string
	for field, expected := range preconditions {
		encoded, err := json.Marshal(expected)
		if err != nil {
			return fmt.Errorf("encode precondition %q: %w", field, err)
		}
		conds = append(conds, fmt.Sprintf("data->($%d::text) = $%d::jsonb",
			len(allArgs)+1, len(allArgs)+2))
		allArgs = append(allArgs, field, string(encoded))
	}

	query := fmt.Sprintf(
		`UPDATE documents SET data = %s, updated_at = now()
		 WHERE collection = $1 AND id = $2 AND %s`,
		expr, strings.Join(conds, " AND "))

	result, err := s.db.ExecContext(ctx, query, allArgs...)
	if err != nil {
		return fmt.Errorf("conditional update: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("conditional update: %w", err)
	}
	if rows > 0 {
		return nil
	}

	// Distinguish a missing document from a failed precondition.
	var exists bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE collection = $1 AND id = $2)`,
		collection, id,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("conditional update: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrPreconditionFailed
}

// QueryEqual returns all documents whose top-level field equals value.
func (s *PostgresStore) QueryEqual(ctx context.Context, collection, field string, value any) ([]Document, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode query value: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND data->($2::text) = $3::jsonb`,
		collection, field, string(encoded),
	)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		var doc Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	return out, nil
}

// List returns all documents in a collection keyed by ID.
func (s *PostgresStore) List(ctx context.Context, collection string) (map[string]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data FROM documents WHERE collection = $1`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Document)
	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		var doc Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		out[id] = doc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return out, nil
}

// Remove deletes a document. Idempotent.
func (s *PostgresStore) Remove(ctx context.Context, collection, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	if err != nil {
		return fmt.Errorf("remove document: %w", err)
	}
	return nil
}

// =============================================================================
// Internal Helpers
// =============================================================================

// buildFieldExpr composes a jsonb expression that applies the field
// mutations to the data column. Dotted keys become nested jsonb_set paths,
// delete sentinels become #- removals. nextArg is the first free
// placeholder index.
//
// jsonb_set's create_missing flag only creates the final path element: when
// an earlier step is absent the whole call returns the target unchanged, so
// a nested write against a fresh document would be silently lost. Every
// missing ancestor object is therefore seeded with '{}' before the field
// mutations apply.
func buildFieldExpr(fields Fields, nextArg int) (string, []any, error) {
	expr := "data"
	var args []any

	for _, ancestor := range ancestorPaths(fields) {
		expr = fmt.Sprintf("jsonb_set(%s, $%d, COALESCE(data#>$%d, '{}'::jsonb), true)",
			expr, nextArg, nextArg)
		args = append(args, "{"+strings.Join(ancestor, ",")+"}")
		nextArg++
	}

	for key, value := range fields {
		path := "{" + strings.Join(strings.Split(key, "."), ",") + "}"
		if _, isDelete := value.(deleteSentinel); isDelete {
			expr = fmt.Sprintf("(%s #- $%d)", expr, nextArg)
			args = append(args, path)
			nextArg++
			continue
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return "", nil, fmt.Errorf("encode field %q: %w", key, err)
		}
		expr = fmt.Sprintf("jsonb_set(%s, $%d, $%d::jsonb, true)", expr, nextArg, nextArg+1)
		args = append(args, path, string(encoded))
		nextArg += 2
	}
	return expr, args, nil
}

// ancestorPaths returns the distinct intermediate object paths needed by
// the dotted keys in fields, shallowest first so each seed finds its own
// parent already present. Delete sentinels need no seeding: removing a
// field under a missing parent is already a no-op.
func ancestorPaths(fields Fields) [][]string {
	seen := make(map[string][]string)
	for key, value := range fields {
		if _, isDelete := value.(deleteSentinel); isDelete {
			continue
		}
		parts := strings.Split(key, ".")
		for i := 1; i < len(parts); i++ {
			seen[strings.Join(parts[:i], ".")] = parts[:i]
		}
	}

	out := make([][]string, 0, len(seen))
	for _, parts := range seen {
		out = append(out, parts)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) < len(out[j])
		}
		return strings.Join(out[i], ".") < strings.Join(out[j], ".")
	})
	return out
}
