// Package mcp provides an MCP (Model Context Protocol) server adapter for docsync.
// It lets AI assistants search collections, submit documents and drive batch syncs.
package mcp

import "errors"

// Errors returned by Ports.Validate.
var (
	ErrMissingSearchService    = errors.New("mcp: search service is required")
	ErrMissingIngestionService = errors.New("mcp: ingestion service is required")
	ErrMissingBatchService     = errors.New("mcp: batch service is required")
)

// errMissingContent is returned by submit_document without a body.
var errMissingContent = errors.New("either content or content_base64 is required")
