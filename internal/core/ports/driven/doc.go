// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - DocumentParser: Extracts text from raw uploads
//   - Chunker: Splits text into chunks
//   - EmbeddingProvider: Turns chunk text into vectors
//   - VectorIndexGateway: Collection-scoped vector storage and search
//   - CollectionStore, DocumentStore: Bookkeeping persistence
//   - SyncJobStore: Sync job persistence
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EventPublisher: Sync event stream. Without it, events are dropped.
//   - BatchHistoryStore: Batch summaries. Without it, history is empty.
//   - SchedulerStore: Background task state.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or normaliser package
package driven
