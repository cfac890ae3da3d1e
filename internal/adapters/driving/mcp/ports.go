package mcp

import (
	"github.com/custodia-labs/convorag/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Retrieval answers queries against conversation indexes.
	Retrieval driving.RetrievalService

	// Indexer rebuilds conversation indexes. Optional.
	Indexer driving.IndexBuilder

	// Documents lists conversations and their documents. Optional.
	Documents driving.DocumentService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	return nil
}
