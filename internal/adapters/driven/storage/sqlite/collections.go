package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
)

// collectionStore implements driven.CollectionStore.
type collectionStore struct {
	store *Store
}

var _ driven.CollectionStore = (*collectionStore)(nil)

const collectionColumns = "id, name, created_at, updated_at"

// SaveCollection creates or updates a collection.
func (s *collectionStore) SaveCollection(ctx context.Context, col *domain.Collection) error {
	now := time.Now().UTC()
	if col.CreatedAt.IsZero() {
		col.CreatedAt = now
	}
	if col.UpdatedAt.IsZero() {
		col.UpdatedAt = now
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO collections (id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			updated_at = excluded.updated_at
	`, col.ID, col.Name, formatTime(col.CreatedAt), formatTime(col.UpdatedAt))
	return classifyError(err, fmt.Sprintf("saving collection %q", col.Name))
}

// GetCollection retrieves a collection by ID.
func (s *collectionStore) GetCollection(ctx context.Context, id string) (*domain.Collection, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+collectionColumns+" FROM collections WHERE id = ?", id)
	col, err := scanCollection(row)
	if err != nil {
		return nil, notFound(err, "collection "+id)
	}
	return col, nil
}

// GetCollectionByName retrieves a collection by its unique name.
func (s *collectionStore) GetCollectionByName(ctx context.Context, name string) (*domain.Collection, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+collectionColumns+" FROM collections WHERE name = ?", name)
	col, err := scanCollection(row)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("collection %q", name))
	}
	return col, nil
}

// ListCollections returns all collections ordered by name.
func (s *collectionStore) ListCollections(ctx context.Context) ([]domain.Collection, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+collectionColumns+" FROM collections ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("querying collections: %w", err)
	}
	defer rows.Close()

	var cols []domain.Collection //nolint:prealloc // size unknown from query
	for rows.Next() {
		col, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning collection: %w", err)
		}
		cols = append(cols, *col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating collections: %w", err)
	}
	return cols, nil
}

// DeleteCollection removes a collection with its documents and chunks.
func (s *collectionStore) DeleteCollection(ctx context.Context, id string) error {
	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		statements := []string{
			"DELETE FROM chunks WHERE collection_id = ?",
			"DELETE FROM documents WHERE collection_id = ?",
			"DELETE FROM collections WHERE id = ?",
		}
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return fmt.Errorf("deleting collection %s: %w", id, err)
			}
		}
		return nil
	})
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCollection(row rowScanner) (*domain.Collection, error) {
	var col domain.Collection
	var createdAt, updatedAt string
	if err := row.Scan(&col.ID, &col.Name, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	col.CreatedAt = parseTime(createdAt)
	col.UpdatedAt = parseTime(updatedAt)
	return &col, nil
}
