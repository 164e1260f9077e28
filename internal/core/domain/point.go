package domain

// Point is the unit stored in the vector index: one per synced chunk.
type Point struct {
	// ID equals the chunk PointID.
	ID string

	// Vector is the chunk embedding.
	Vector []float32

	// Payload is stored alongside the vector.
	Payload PointPayload
}

// PointPayload is the metadata stored with each point.
type PointPayload struct {
	DocumentID   string
	CollectionID string
	ChunkIndex   int
	Content      string
	ContentHash  string
	TitleChain   []string
}

// Payload keys shared by every vector index backend.
const (
	PayloadDocumentID   = "doc_id"
	PayloadCollectionID = "collection_id"
	PayloadChunkIndex   = "chunk_index"
	PayloadContent      = "content"
	PayloadContentHash  = "content_hash"
	PayloadTitleChain   = "title_chain"
)
