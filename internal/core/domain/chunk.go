package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/google/uuid"
)

// ChunkStatus is the per-chunk position in the sync sub-pipeline.
type ChunkStatus string

// Chunk states.
const (
	ChunkNew                ChunkStatus = "new"
	ChunkEmbeddingGenerated ChunkStatus = "embedding_generated"
	ChunkSynced             ChunkStatus = "synced"
	ChunkFailed             ChunkStatus = "failed"
)

// String returns the string representation.
func (s ChunkStatus) String() string {
	return string(s)
}

// pointNamespace seeds the name-based UUIDs used as point identifiers.
var pointNamespace = uuid.MustParse("6f0c4f2e-8a59-4c1e-9d8e-2b7f3c1a5d90")

// PointID derives the vector index point identifier for a chunk.
// The same document and index always produce the same identifier.
func PointID(documentID string, index int) string {
	return uuid.NewSHA1(pointNamespace, []byte(documentID+":"+strconv.Itoa(index))).String()
}

// ContentHash returns the hex SHA-256 of content.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Chunk is a content-addressed slice of a document, the unit of embedding.
type Chunk struct {
	// PointID identifies the chunk in the vector index. See PointID.
	PointID string

	// DocumentID links to the parent Document.
	DocumentID string

	// CollectionID links to the owning Collection.
	CollectionID string

	// Index is the 0-based position within the document.
	Index int

	// Content is the text of this chunk.
	Content string

	// ContentHash is the hash of Content.
	ContentHash string

	// TitleChain is the heading path enclosing the chunk, outermost first.
	TitleChain []string

	// Embedding is present once computed.
	Embedding []float32

	// Status is the chunk sync state.
	Status ChunkStatus

	// Error holds the last chunk-level failure, if any.
	Error string
}

// HasCurrentEmbedding reports whether the chunk already carries an embedding
// for its present content.
func (c *Chunk) HasCurrentEmbedding() bool {
	return len(c.Embedding) > 0 &&
		(c.Status == ChunkEmbeddingGenerated || c.Status == ChunkSynced)
}

// Point builds the vector index point for the chunk.
func (c *Chunk) Point() Point {
	return Point{
		ID:     c.PointID,
		Vector: c.Embedding,
		Payload: PointPayload{
			DocumentID:   c.DocumentID,
			CollectionID: c.CollectionID,
			ChunkIndex:   c.Index,
			Content:      c.Content,
			ContentHash:  c.ContentHash,
			TitleChain:   c.TitleChain,
		},
	}
}
