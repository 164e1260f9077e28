package mcp

import (
	"github.com/custodia-labs/docsync/internal/core/ports/driving"
)

// Ports aggregates the driving ports the MCP server calls.
type Ports struct {
	// Version is reported to clients; empty means DefaultVersion.
	Version string

	// Search answers similarity queries.
	Search driving.SearchService

	// Ingestion manages collections and single documents.
	Ingestion driving.IngestionService

	// Batch runs and tracks bulk operations.
	Batch driving.BatchService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	if p.Ingestion == nil {
		return ErrMissingIngestionService
	}
	if p.Batch == nil {
		return ErrMissingBatchService
	}
	return nil
}
