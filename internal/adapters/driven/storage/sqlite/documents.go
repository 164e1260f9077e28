package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
)

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

const documentColumns = `id, collection_id, name, doc_key, size_bytes, mime_type, content,
	content_hash, status, error_message, retry_count, created_at, updated_at`

const chunkColumns = `point_id, document_id, collection_id, chunk_index, content,
	content_hash, title_chain, embedding, status, error`

// SaveDocument stores or updates a document. The collection must exist.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			doc_key = excluded.doc_key,
			size_bytes = excluded.size_bytes,
			mime_type = excluded.mime_type,
			content = excluded.content,
			content_hash = excluded.content_hash,
			status = excluded.status,
			error_message = excluded.error_message,
			retry_count = excluded.retry_count,
			updated_at = excluded.updated_at
	`, doc.ID, doc.CollectionID, doc.Name, doc.Key, doc.SizeBytes, doc.MIMEType, doc.Content,
		doc.ContentHash, string(doc.Status), doc.ErrorMessage, doc.RetryCount,
		formatTime(doc.CreatedAt), formatTime(doc.UpdatedAt))
	return classifyError(err, "saving document "+doc.ID)
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id = ?", id)
	doc, err := scanDocument(row)
	if err != nil {
		return nil, notFound(err, "document "+id)
	}
	return doc, nil
}

// GetDocumentByKey retrieves a document by its logical key within a collection.
func (s *documentStore) GetDocumentByKey(ctx context.Context, collectionID, key string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE collection_id = ? AND doc_key = ?",
		collectionID, key)
	doc, err := scanDocument(row)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("document with key %q", key))
	}
	return doc, nil
}

// ListDocuments returns documents for a collection ordered by creation time.
func (s *documentStore) ListDocuments(ctx context.Context, collectionID string) ([]domain.Document, error) {
	return s.queryDocuments(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE collection_id = ? ORDER BY created_at, id",
		collectionID)
}

// ListDocumentsByStatus returns documents in the given state across all collections.
func (s *documentStore) ListDocumentsByStatus(ctx context.Context, status domain.DocumentStatus) ([]domain.Document, error) {
	return s.queryDocuments(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE status = ? ORDER BY created_at, id",
		string(status))
}

func (s *documentStore) queryDocuments(ctx context.Context, query string, args ...any) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// DeleteDocument removes a document and its chunks.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", id); err != nil {
			return fmt.Errorf("deleting chunks of %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id); err != nil {
			return fmt.Errorf("deleting document %s: %w", id, err)
		}
		return nil
	})
}

// SaveChunks stores or updates chunks keyed by point ID in one transaction.
func (s *documentStore) SaveChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chunks (`+chunkColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(point_id) DO UPDATE SET
				chunk_index = excluded.chunk_index,
				content = excluded.content,
				content_hash = excluded.content_hash,
				title_chain = excluded.title_chain,
				embedding = excluded.embedding,
				status = excluded.status,
				error = excluded.error
		`)
		if err != nil {
			return fmt.Errorf("preparing chunk insert: %w", err)
		}
		defer stmt.Close()

		for i := range chunks {
			c := &chunks[i]
			titleChain, err := json.Marshal(c.TitleChain)
			if err != nil {
				return fmt.Errorf("marshaling title chain: %w", err)
			}
			if c.TitleChain == nil {
				titleChain = []byte("[]")
			}
			if _, err := stmt.ExecContext(ctx, c.PointID, c.DocumentID, c.CollectionID, c.Index,
				c.Content, c.ContentHash, string(titleChain), float32SliceToBytes(c.Embedding),
				string(c.Status), c.Error); err != nil {
				return classifyError(err, "saving chunk "+c.PointID)
			}
		}
		return nil
	})
}

// GetChunks retrieves all chunks for a document ordered by index.
func (s *documentStore) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE document_id = ? ORDER BY chunk_index", documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// DeleteChunks removes chunks by point ID.
func (s *documentStore) DeleteChunks(ctx context.Context, pointIDs []string) error {
	if len(pointIDs) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(pointIDs)), ",")
	args := make([]any, len(pointIDs))
	for i, id := range pointIDs {
		args[i] = id
	}
	_, err := s.store.db.ExecContext(ctx,
		"DELETE FROM chunks WHERE point_id IN ("+placeholders+")", args...)
	if err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	return nil
}

// ListChunkStatuses returns the status of every chunk in a collection.
func (s *documentStore) ListChunkStatuses(ctx context.Context, collectionID string) (map[string]domain.ChunkStatus, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT point_id, status FROM chunks WHERE collection_id = ?", collectionID)
	if err != nil {
		return nil, fmt.Errorf("querying chunk statuses: %w", err)
	}
	defer rows.Close()

	result := make(map[string]domain.ChunkStatus)
	for rows.Next() {
		var pointID, status string
		if err := rows.Scan(&pointID, &status); err != nil {
			return nil, fmt.Errorf("scanning chunk status: %w", err)
		}
		result[pointID] = domain.ChunkStatus(status)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunk statuses: %w", err)
	}
	return result, nil
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var status, createdAt, updatedAt string
	if err := row.Scan(&doc.ID, &doc.CollectionID, &doc.Name, &doc.Key, &doc.SizeBytes,
		&doc.MIMEType, &doc.Content, &doc.ContentHash, &status, &doc.ErrorMessage,
		&doc.RetryCount, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	doc.Status = domain.DocumentStatus(status)
	doc.CreatedAt = parseTime(createdAt)
	doc.UpdatedAt = parseTime(updatedAt)
	return &doc, nil
}

func scanChunk(rows *sql.Rows) (*domain.Chunk, error) {
	var chunk domain.Chunk
	var titleChain, status string
	var embeddingBlob []byte

	if err := rows.Scan(&chunk.PointID, &chunk.DocumentID, &chunk.CollectionID, &chunk.Index,
		&chunk.Content, &chunk.ContentHash, &titleChain, &embeddingBlob, &status, &chunk.Error); err != nil {
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	chunk.Embedding = bytesToFloat32Slice(embeddingBlob)
	chunk.Status = domain.ChunkStatus(status)
	if titleChain != "" && titleChain != "[]" {
		if err := json.Unmarshal([]byte(titleChain), &chunk.TitleChain); err != nil {
			return nil, fmt.Errorf("unmarshaling title chain: %w", err)
		}
	}
	return &chunk, nil
}
