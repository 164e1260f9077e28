// Package domain defines the core business entities for docsync.
//
// This package is part of the hexagonal architecture's innermost layer.
// It defines the fundamental types:
//
//   - Collection: A named group of documents sharing one vector collection
//   - Document: An ingested file and its sync state
//   - Chunk: A content-addressed slice of a document, the unit of embedding
//   - SyncJob: One pass of the sync state machine over a document
//   - BatchOperationResult: The canonical outcome of a batch
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import the Go
// standard library and github.com/google/uuid (deterministic point ids).
// All other packages depend on domain, never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library, github.com/google/uuid
//   - Cannot Import: Any internal/ package
package domain
