package mcp

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driving"
	"github.com/custodia-labs/docsync/internal/normalisers"
)

// defaultSearchLimit applies when the caller omits limit.
const defaultSearchLimit = 10

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Collection  string   `json:"collection" jsonschema:"collection name or ID to search"`
	Query       string   `json:"query" jsonschema:"the search query"`
	Limit       int      `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 10)"`
	DocumentIDs []string `json:"document_ids,omitempty" jsonschema:"restrict results to these documents"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	DocumentID string   `json:"document_id"`
	ChunkIndex int      `json:"chunk_index"`
	Score      float64  `json:"score"`
	Headings   []string `json:"headings,omitempty"`
	Content    string   `json:"content"`
}

// SubmitDocumentInput is the input schema for the submit_document tool.
type SubmitDocumentInput struct {
	Collection    string `json:"collection" jsonschema:"collection name or ID"`
	Name          string `json:"name" jsonschema:"display name, usually a file name"`
	Key           string `json:"key,omitempty" jsonschema:"logical key; a document with the same key is replaced"`
	MIMEType      string `json:"mime_type,omitempty" jsonschema:"content type; detected from the name when omitted"`
	Content       string `json:"content,omitempty" jsonschema:"document body as text"`
	ContentBase64 string `json:"content_base64,omitempty" jsonschema:"document body as base64 for binary formats"`
}

// DocumentOutput is the output schema for tools that return one document.
type DocumentOutput struct {
	DocumentID   string `json:"document_id"`
	CollectionID string `json:"collection_id"`
	Name         string `json:"name"`
	Key          string `json:"key,omitempty"`
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
	RetryCount   int    `json:"retry_count"`
	Chunks       int    `json:"chunks"`
	SyncedChunks int    `json:"synced_chunks"`
}

// DocumentIDInput names one document.
type DocumentIDInput struct {
	DocumentID string `json:"document_id" jsonschema:"the document ID"`
}

// BatchSyncInput is the input schema for the batch_sync tool.
type BatchSyncInput struct {
	DocumentIDs   []string `json:"document_ids,omitempty" jsonschema:"documents to resync"`
	Collection    string   `json:"collection,omitempty" jsonschema:"resync every document of this collection when document_ids is empty"`
	Transactional bool     `json:"transactional,omitempty" jsonschema:"roll back all successes if any item fails"`
	Concurrency   int      `json:"concurrency,omitempty" jsonschema:"parallel items (default from settings)"`
}

// BatchSyncOutput is the output schema for the batch_sync tool.
type BatchSyncOutput struct {
	BatchID string `json:"batch_id"`
	Total   int    `json:"total"`
}

// BatchProgressInput is the input schema for the batch_progress tool.
type BatchProgressInput struct {
	BatchID string `json:"batch_id" jsonschema:"ID returned by batch_sync"`
}

// BatchProgressOutput is the output schema for the batch_progress tool.
type BatchProgressOutput struct {
	BatchID     string                   `json:"batch_id"`
	Kind        string                   `json:"kind"`
	Status      string                   `json:"status"`
	Total       int                      `json:"total"`
	Processed   int                      `json:"processed"`
	Successful  int                      `json:"successful"`
	Failed      int                      `json:"failed"`
	Percentage  float64                  `json:"percentage"`
	Error       string                   `json:"error,omitempty"`
	StartedAt   string                   `json:"started_at"`
	CompletedAt string                   `json:"completed_at,omitempty"`
	Failures    []domain.BatchItemResult `json:"failures,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Semantic search over the chunks of one collection",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "submit_document",
		Description: "Parse, chunk, embed and index a document into a collection",
	}, s.handleSubmitDocument)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "resync_document",
		Description: "Re-drive a document through the sync pipeline, re-embedding only changed chunks",
	}, s.handleResyncDocument)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "batch_sync",
		Description: "Start resyncing many documents in the background; poll with batch_progress",
	}, s.handleBatchSync)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "batch_progress",
		Description: "Report the progress of a background batch",
	}, s.handleBatchProgress)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "document_status",
		Description: "Show the sync status and chunk counts of a document",
	}, s.handleDocumentStatus)
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	col, err := s.ports.Ingestion.ResolveCollection(ctx, input.Collection)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	var filter *domain.SearchFilter
	if len(input.DocumentIDs) > 0 {
		filter = &domain.SearchFilter{DocumentIDs: input.DocumentIDs}
	}

	results, err := s.ports.Search.SearchText(ctx, col.ID, input.Query, limit, filter)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}
	for i := range results {
		output.Results[i] = SearchResultOutput{
			DocumentID: results[i].DocumentID,
			ChunkIndex: results[i].ChunkIndex,
			Score:      results[i].Score,
			Headings:   results[i].TitleChain,
			Content:    results[i].Content,
		}
	}

	return nil, output, nil
}

// handleSubmitDocument handles the submit_document tool invocation.
// A document that ends up failed or dead is reported, not returned as an error.
func (s *Server) handleSubmitDocument(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SubmitDocumentInput,
) (*mcp.CallToolResult, DocumentOutput, error) {
	content := []byte(input.Content)
	if input.ContentBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(input.ContentBase64)
		if err != nil {
			return nil, DocumentOutput{}, fmt.Errorf("%w: content_base64: %w", domain.ErrInvalidInput, err)
		}
		content = decoded
	}
	if len(content) == 0 {
		return nil, DocumentOutput{}, errMissingContent
	}

	col, err := s.ports.Ingestion.ResolveCollection(ctx, input.Collection)
	if err != nil {
		return nil, DocumentOutput{}, err
	}

	mimeType := input.MIMEType
	if mimeType == "" {
		mimeType = normalisers.DetectMIME(input.Name, content)
	}

	doc, err := s.ports.Ingestion.SubmitDocument(ctx, col.ID, domain.RawUpload{
		Name:     input.Name,
		Key:      input.Key,
		MIMEType: mimeType,
		Content:  content,
	})
	if doc == nil {
		return nil, DocumentOutput{}, err
	}
	return nil, s.documentOutput(ctx, doc), nil
}

// handleResyncDocument handles the resync_document tool invocation.
func (s *Server) handleResyncDocument(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DocumentIDInput,
) (*mcp.CallToolResult, DocumentOutput, error) {
	doc, err := s.ports.Ingestion.ResyncDocument(ctx, input.DocumentID)
	if doc == nil {
		return nil, DocumentOutput{}, err
	}
	return nil, s.documentOutput(ctx, doc), nil
}

// handleDocumentStatus handles the document_status tool invocation.
func (s *Server) handleDocumentStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DocumentIDInput,
) (*mcp.CallToolResult, DocumentOutput, error) {
	doc, err := s.ports.Ingestion.GetDocument(ctx, input.DocumentID)
	if err != nil {
		return nil, DocumentOutput{}, err
	}
	return nil, s.documentOutput(ctx, doc), nil
}

// documentOutput summarises doc and its chunks. Chunk counts are best effort.
func (s *Server) documentOutput(ctx context.Context, doc *domain.Document) DocumentOutput {
	out := DocumentOutput{
		DocumentID:   doc.ID,
		CollectionID: doc.CollectionID,
		Name:         doc.Name,
		Key:          doc.Key,
		Status:       doc.Status.String(),
		Error:        doc.ErrorMessage,
		RetryCount:   doc.RetryCount,
	}
	chunks, err := s.ports.Ingestion.GetChunks(ctx, doc.ID)
	if err != nil {
		return out
	}
	out.Chunks = len(chunks)
	for i := range chunks {
		if chunks[i].Status == domain.ChunkSynced {
			out.SyncedChunks++
		}
	}
	return out
}

// handleBatchSync handles the batch_sync tool invocation.
func (s *Server) handleBatchSync(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input BatchSyncInput,
) (*mcp.CallToolResult, BatchSyncOutput, error) {
	ids := input.DocumentIDs
	if len(ids) == 0 {
		if input.Collection == "" {
			return nil, BatchSyncOutput{}, fmt.Errorf("%w: document_ids or collection is required", domain.ErrInvalidInput)
		}
		col, err := s.ports.Ingestion.ResolveCollection(ctx, input.Collection)
		if err != nil {
			return nil, BatchSyncOutput{}, err
		}
		docs, err := s.ports.Ingestion.ListDocuments(ctx, col.ID)
		if err != nil {
			return nil, BatchSyncOutput{}, err
		}
		for i := range docs {
			ids = append(ids, docs[i].ID)
		}
	}

	// The batch outlives this request.
	batchID, err := s.ports.Batch.StartBatchSync(context.WithoutCancel(ctx), ids, driving.BatchRunOptions{
		Concurrency:   input.Concurrency,
		Transactional: input.Transactional,
	})
	if err != nil {
		return nil, BatchSyncOutput{}, err
	}
	return nil, BatchSyncOutput{BatchID: batchID, Total: len(ids)}, nil
}

// handleBatchProgress handles the batch_progress tool invocation.
func (s *Server) handleBatchProgress(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input BatchProgressInput,
) (*mcp.CallToolResult, BatchProgressOutput, error) {
	snap, err := s.ports.Batch.GetBatchProgress(ctx, input.BatchID)
	if err != nil {
		return nil, BatchProgressOutput{}, err
	}

	out := BatchProgressOutput{
		BatchID:    snap.BatchID,
		Kind:       string(snap.Kind),
		Status:     string(snap.Status),
		Total:      snap.Total,
		Processed:  snap.Processed,
		Successful: snap.Successful,
		Failed:     snap.Failed,
		Percentage: snap.Percentage,
		Error:      snap.Error,
		StartedAt:  snap.StartedAt.Format(time.RFC3339),
	}
	if !snap.CompletedAt.IsZero() {
		out.CompletedAt = snap.CompletedAt.Format(time.RFC3339)
	}
	if snap.Result != nil {
		for _, r := range snap.Result.Results {
			if !r.Success {
				out.Failures = append(out.Failures, r)
			}
		}
	}
	return nil, out, nil
}
