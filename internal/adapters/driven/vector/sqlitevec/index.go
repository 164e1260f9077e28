// Package sqlitevec implements the vector index gateway on a local SQLite
// file with the sqlite-vec extension.
//
// Embeddings live in one vec0 virtual table partitioned by collection ID.
// vec0 rows are keyed by integer rowid, so a regular table maps each
// (collection, point ID) pair to its rowid and holds the payload.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3" // SQLite driver with extension loading
	"go.uber.org/zap"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
	"github.com/custodia-labs/docsync/internal/logger"
)

var _ driven.VectorIndexGateway = (*Index)(nil)

// Config holds configuration for the sqlite-vec index.
type Config struct {
	// Path is the database file. Defaults to ~/.docsync/data/vectors.db.
	Path string

	// Dimensions is the embedding size. It is fixed when the file is created.
	Dimensions int
}

// Index is a VectorIndexGateway backed by sqlite-vec.
type Index struct {
	db         *sql.DB
	dimensions int
	log        *zap.SugaredLogger
}

// New opens or creates the vector database.
func New(cfg Config) (*Index, error) {
	// Register sqlite-vec with every new connection.
	sqlite_vec.Auto()

	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: sqlite-vec dimensions must be positive, got %d",
			domain.ErrInvalidInput, cfg.Dimensions)
	}

	path := cfg.Path
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, ".docsync", "data", "vectors.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Rows are drained before follow-up queries, so one connection suffices.
	db.SetMaxOpenConns(1)

	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	idx := &Index{db: db, dimensions: cfg.Dimensions, log: logger.Named("sqlitevec")}
	if err := idx.init(); err != nil {
		db.Close()
		return nil, err
	}

	idx.log.Infow("sqlite-vec vector index initialized",
		"path", path,
		"dimensions", cfg.Dimensions,
		"vec_version", vecVersion,
	)
	return idx, nil
}

func (x *Index) init() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS vec_meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS vec_collections (
			collection_id TEXT PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS vec_points (
			rowid         INTEGER PRIMARY KEY AUTOINCREMENT,
			collection_id TEXT NOT NULL,
			point_id      TEXT NOT NULL,
			doc_id        TEXT NOT NULL,
			chunk_index   INTEGER NOT NULL,
			content       TEXT NOT NULL,
			content_hash  TEXT NOT NULL,
			title_chain   TEXT NOT NULL DEFAULT '[]',
			UNIQUE (collection_id, point_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_vec_points_doc ON vec_points(collection_id, doc_id)`,
		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS vec_embeddings USING vec0(
			collection_id text partition key,
			embedding float[%d] distance_metric=cosine
		)`, x.dimensions),
	}
	for _, stmt := range stmts {
		if _, err := x.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating vector schema: %w", err)
		}
	}

	// The vec0 column size cannot change after creation.
	var stored string
	err := x.db.QueryRow(`SELECT value FROM vec_meta WHERE key = 'dimensions'`).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = x.db.Exec(`INSERT INTO vec_meta (key, value) VALUES ('dimensions', ?)`, strconv.Itoa(x.dimensions))
		if err != nil {
			return fmt.Errorf("recording dimensions: %w", err)
		}
	case err != nil:
		return fmt.Errorf("reading dimensions: %w", err)
	case stored != strconv.Itoa(x.dimensions):
		return fmt.Errorf("%w: vector database was created with %s dimensions, configured %d",
			domain.ErrInvalidInput, stored, x.dimensions)
	}
	return nil
}

// unavailable wraps a database failure as ErrIndexUnavailable.
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: sqlite-vec %s: %v", domain.ErrIndexUnavailable, op, err)
}

// EnsureCollection records the collection. Partitions need no setup.
func (x *Index) EnsureCollection(ctx context.Context, collectionID string) error {
	_, err := x.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO vec_collections (collection_id) VALUES (?)`, collectionID)
	if err != nil {
		return unavailable("ensure collection", err)
	}
	return nil
}

// UpsertCollection writes points in one transaction. vec0 does not support
// UPDATE, so an existing embedding is deleted and re-inserted.
func (x *Index) UpsertCollection(ctx context.Context, collectionID string, points []domain.Point) error {
	if len(points) == 0 {
		return nil
	}
	for i := range points {
		if len(points[i].Vector) != x.dimensions {
			return fmt.Errorf("%w: point %s has %d dimensions, want %d",
				domain.ErrInvalidInput, points[i].ID, len(points[i].Vector), x.dimensions)
		}
	}
	if err := x.EnsureCollection(ctx, collectionID); err != nil {
		return err
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin upsert", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range points {
		if err := upsertPoint(ctx, tx, collectionID, &points[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit upsert", err)
	}
	x.log.Debugw("upserted points", "collection", collectionID, "count", len(points))
	return nil
}

func upsertPoint(ctx context.Context, tx *sql.Tx, collectionID string, p *domain.Point) error {
	blob, err := sqlite_vec.SerializeFloat32(p.Vector)
	if err != nil {
		return fmt.Errorf("serializing embedding for point %s: %w", p.ID, err)
	}
	titleChain, err := json.Marshal(p.Payload.TitleChain)
	if err != nil {
		return fmt.Errorf("marshaling title chain: %w", err)
	}

	var rowID int64
	err = tx.QueryRowContext(ctx,
		`SELECT rowid FROM vec_points WHERE collection_id = ? AND point_id = ?`,
		collectionID, p.ID).Scan(&rowID)

	switch {
	case err == nil:
		if _, err := tx.ExecContext(ctx, `
			UPDATE vec_points
			SET doc_id = ?, chunk_index = ?, content = ?, content_hash = ?, title_chain = ?
			WHERE rowid = ?`,
			p.Payload.DocumentID, p.Payload.ChunkIndex, p.Payload.Content,
			p.Payload.ContentHash, string(titleChain), rowID); err != nil {
			return unavailable("update point "+p.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM vec_embeddings WHERE rowid = ?`, rowID); err != nil {
			return unavailable("delete embedding "+p.ID, err)
		}
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx, `
			INSERT INTO vec_points (collection_id, point_id, doc_id, chunk_index, content, content_hash, title_chain)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			collectionID, p.ID, p.Payload.DocumentID, p.Payload.ChunkIndex,
			p.Payload.Content, p.Payload.ContentHash, string(titleChain))
		if err != nil {
			return unavailable("insert point "+p.ID, err)
		}
		if rowID, err = res.LastInsertId(); err != nil {
			return unavailable("rowid for point "+p.ID, err)
		}
	default:
		return unavailable("lookup point "+p.ID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO vec_embeddings (rowid, collection_id, embedding) VALUES (?, ?, ?)`,
		rowID, collectionID, blob); err != nil {
		return unavailable("insert embedding "+p.ID, err)
	}
	return nil
}

const resultColumns = `p.point_id, p.doc_id, p.collection_id, p.chunk_index, p.content, p.title_chain`

// Search returns the nearest points by cosine similarity. Unfiltered
// queries use the vec0 KNN scan of the collection partition; filtered
// queries compute exact distances over the matching rows.
func (x *Index) Search(ctx context.Context, collectionID string, req domain.SearchRequest) ([]domain.SearchResult, error) {
	if len(req.Vector) != x.dimensions {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, want %d",
			domain.ErrInvalidInput, len(req.Vector), x.dimensions)
	}
	blob, err := sqlite_vec.SerializeFloat32(req.Vector)
	if err != nil {
		return nil, fmt.Errorf("serializing query: %w", err)
	}
	limit := req.EffectiveLimit()

	var rows *sql.Rows
	if req.Filter.IsEmpty() {
		rows, err = x.db.QueryContext(ctx, `
			WITH knn AS (
				SELECT rowid, distance
				FROM vec_embeddings
				WHERE embedding MATCH ?
					AND k = ?
					AND collection_id = ?
			)
			SELECT `+resultColumns+`, knn.distance
			FROM knn
			INNER JOIN vec_points p ON p.rowid = knn.rowid
			ORDER BY knn.distance, p.point_id
		`, blob, limit, collectionID)
	} else {
		where, args := filterClause(req.Filter)
		query := `
			SELECT ` + resultColumns + `, vec_distance_cosine(ve.embedding, ?) AS distance
			FROM vec_points p
			INNER JOIN vec_embeddings ve ON ve.rowid = p.rowid
			WHERE p.collection_id = ?` + where + `
			ORDER BY distance, p.point_id
			LIMIT ?`
		all := append([]any{blob, collectionID}, args...)
		rows, err = x.db.QueryContext(ctx, query, append(all, limit)...)
	}
	if err != nil {
		return nil, unavailable("search", err)
	}
	defer rows.Close()

	results := []domain.SearchResult{}
	for rows.Next() {
		var r domain.SearchResult
		var titleChain string
		var distance float64
		if err := rows.Scan(&r.PointID, &r.DocumentID, &r.CollectionID, &r.ChunkIndex,
			&r.Content, &titleChain, &distance); err != nil {
			return nil, unavailable("scan result", err)
		}
		if titleChain != "" && titleChain != "[]" && titleChain != "null" {
			if err := json.Unmarshal([]byte(titleChain), &r.TitleChain); err != nil {
				return nil, fmt.Errorf("unmarshaling title chain: %w", err)
			}
		}
		// Cosine distance is 1 - cosine similarity.
		r.Score = 1 - distance
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate results", err)
	}
	return results, nil
}

func filterClause(f *domain.SearchFilter) (string, []any) {
	var sb strings.Builder
	var args []any
	if len(f.DocumentIDs) > 0 {
		sb.WriteString(" AND p.doc_id IN (")
		sb.WriteString(strings.TrimSuffix(strings.Repeat("?,", len(f.DocumentIDs)), ","))
		sb.WriteString(")")
		for _, id := range f.DocumentIDs {
			args = append(args, id)
		}
	}
	if f.ChunkIndex != nil {
		sb.WriteString(" AND p.chunk_index = ?")
		args = append(args, *f.ChunkIndex)
	}
	return sb.String(), args
}

// DeletePointsByDoc removes every point of a document.
func (x *Index) DeletePointsByDoc(ctx context.Context, collectionID, documentID string) error {
	return x.deleteWhere(ctx, "delete document points",
		`collection_id = ? AND doc_id = ?`, collectionID, documentID)
}

// DeletePointsByCollection removes the collection and its points.
func (x *Index) DeletePointsByCollection(ctx context.Context, collectionID string) error {
	if err := x.deleteWhere(ctx, "delete collection points", `collection_id = ?`, collectionID); err != nil {
		return err
	}
	if _, err := x.db.ExecContext(ctx,
		`DELETE FROM vec_collections WHERE collection_id = ?`, collectionID); err != nil {
		return unavailable("delete collection", err)
	}
	return nil
}

// DeletePoints removes points by ID.
func (x *Index) DeletePoints(ctx context.Context, collectionID string, pointIDs []string) error {
	if len(pointIDs) == 0 {
		return nil
	}
	args := make([]any, 0, len(pointIDs)+1)
	args = append(args, collectionID)
	for _, id := range pointIDs {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(pointIDs)), ",")
	return x.deleteWhere(ctx, "delete points",
		`collection_id = ? AND point_id IN (`+placeholders+`)`, args...)
}

// deleteWhere removes matching vec_points rows and their embeddings.
func (x *Index) deleteWhere(ctx context.Context, op, where string, args ...any) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT rowid FROM vec_points WHERE `+where, args...)
	if err != nil {
		return unavailable(op, err)
	}
	var rowIDs []int64
	for rows.Next() {
		var rowID int64
		if err := rows.Scan(&rowID); err != nil {
			rows.Close()
			return unavailable(op, err)
		}
		rowIDs = append(rowIDs, rowID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return unavailable(op, err)
	}

	for _, rowID := range rowIDs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM vec_embeddings WHERE rowid = ?`, rowID); err != nil {
			return unavailable(op, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM vec_points WHERE `+where, args...); err != nil {
		return unavailable(op, err)
	}
	if err := tx.Commit(); err != nil {
		return unavailable(op, err)
	}

	if len(rowIDs) > 0 {
		x.log.Debugw("deleted points", "op", op, "count", len(rowIDs))
	}
	return nil
}

// GetAllPointIDsInCollection lists every point ID in the collection, sorted.
func (x *Index) GetAllPointIDsInCollection(ctx context.Context, collectionID string) ([]string, error) {
	rows, err := x.db.QueryContext(ctx,
		`SELECT point_id FROM vec_points WHERE collection_id = ? ORDER BY point_id`, collectionID)
	if err != nil {
		return nil, unavailable("list points", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, unavailable("scan point id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate point ids", err)
	}
	return ids, nil
}

// Close releases the database.
func (x *Index) Close() error {
	return x.db.Close()
}
