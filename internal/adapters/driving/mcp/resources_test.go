package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

func TestExtractCollectionID(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{"valid", "docsync://collections/col-123/documents", "col-123"},
		{"invalid prefix", "file://collections/col-123/documents", ""},
		{"missing documents suffix", "docsync://collections/col-123", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractCollectionID(tt.uri))
		})
	}
}

func TestExtractDocumentID(t *testing.T) {
	assert.Equal(t, "doc-456", extractDocumentID("docsync://documents/doc-456"))
	assert.Equal(t, "", extractDocumentID("docsync://collections/doc-456"))
	assert.Equal(t, "", extractDocumentID(""))
}

func makeReadResourceRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestServer_handleCollectionsResource(t *testing.T) {
	ctx := context.Background()

	server := newTestServer(nil, &mockIngestionService{collections: docsCollection()}, nil)
	result, err := server.handleCollectionsResource(ctx, makeReadResourceRequest("docsync://collections"))
	require.NoError(t, err)
	require.Len(t, result.Contents, 1)
	assert.Equal(t, "application/json", result.Contents[0].MIMEType)
	assert.Contains(t, result.Contents[0].Text, `"id": "col-1"`)
	assert.Contains(t, result.Contents[0].Text, `"name": "docs"`)

	server = newTestServer(nil, &mockIngestionService{err: errors.New("database error")}, nil)
	_, err = server.handleCollectionsResource(ctx, makeReadResourceRequest("docsync://collections"))
	assert.ErrorContains(t, err, "listing collections")
}

func TestServer_handleDocumentsResource(t *testing.T) {
	ctx := context.Background()
	server := newTestServer(nil, &mockIngestionService{documents: []domain.Document{
		{ID: "doc-1", CollectionID: "col-1", Name: "a.md", Status: domain.DocumentSynced},
	}}, nil)

	result, err := server.handleDocumentsResource(ctx, makeReadResourceRequest("docsync://collections/col-1/documents"))
	require.NoError(t, err)
	assert.Contains(t, result.Contents[0].Text, `"status": "synced"`)

	result, err = server.handleDocumentsResource(ctx, makeReadResourceRequest("docsync://collections/col-2/documents"))
	require.NoError(t, err)
	assert.Equal(t, "[]", result.Contents[0].Text)

	_, err = server.handleDocumentsResource(ctx, makeReadResourceRequest("docsync://collections/col-1"))
	assert.Error(t, err)
}

func TestServer_handleDocumentContentResource(t *testing.T) {
	ctx := context.Background()
	server := newTestServer(nil, &mockIngestionService{documents: []domain.Document{
		{ID: "doc-1", Content: "# Title\n\nbody"},
	}}, nil)

	result, err := server.handleDocumentContentResource(ctx, makeReadResourceRequest("docsync://documents/doc-1"))
	require.NoError(t, err)
	assert.Equal(t, "text/plain", result.Contents[0].MIMEType)
	assert.Equal(t, "# Title\n\nbody", result.Contents[0].Text)

	_, err = server.handleDocumentContentResource(ctx, makeReadResourceRequest("docsync://documents/missing"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = server.handleDocumentContentResource(ctx, makeReadResourceRequest("docsync://other"))
	assert.Error(t, err)
}
