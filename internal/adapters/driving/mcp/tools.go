package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/convorag/internal/core/domain"
)

// Search statuses reported to clients.
const (
	StatusOK    = "ok"
	StatusEmpty = "empty"
)

// SearchInput is the input schema for the search_conversation tool.
type SearchInput struct {
	ConversationID     string   `json:"conversation_id" jsonschema:"the conversation whose documents are searched"`
	Query              string   `json:"query" jsonschema:"the question or text to find related passages for"`
	TopK               int      `json:"top_k,omitempty" jsonschema:"maximum number of passages to return (default 5)"`
	Threshold          *float64 `json:"threshold,omitempty" jsonschema:"minimum similarity score between -1 and 1 (default 0.75)"`
	Window             *int     `json:"window,omitempty" jsonschema:"neighbouring chunks merged on each side of a match (default 1)"`
	DocLengthThreshold *int     `json:"doc_length_threshold,omitempty" jsonschema:"total text length below which the whole conversation is returned (default 1000)"`
}

// SearchOutput is the output schema for the search_conversation tool.
type SearchOutput struct {
	Status  string             `json:"status"`
	Hits    []domain.SearchHit `json:"hits"`
	Count   int                `json:"count"`
	Context string             `json:"context,omitempty"`
}

// RebuildInput is the input schema for the rebuild_index tool.
type RebuildInput struct {
	ConversationID string `json:"conversation_id" jsonschema:"the conversation whose index is rebuilt"`
}

// RebuildOutput is the output schema for the rebuild_index tool.
type RebuildOutput struct {
	Skipped   bool   `json:"skipped"`
	Documents int    `json:"documents"`
	Chunks    int    `json:"chunks"`
	Dimension int    `json:"dimension"`
	Version   string `json:"version,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_conversation",
		Description: "Find the passages of a conversation's documents most related to a query",
	}, s.handleSearch)
	s.tools = append(s.tools, "search_conversation")

	if s.ports.Indexer != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "rebuild_index",
			Description: "Rebuild the search index of a conversation from its current documents",
		}, s.handleRebuild)
		s.tools = append(s.tools, "rebuild_index")
	}
}

// options applies the input overrides to the defaults.
func (in SearchInput) options() domain.SearchOptions {
	opts := domain.DefaultSearchOptions()
	if in.TopK > 0 {
		opts.TopK = in.TopK
	}
	if in.Threshold != nil {
		opts.SimilarityThreshold = *in.Threshold
	}
	if in.Window != nil {
		opts.ContextWindow = *in.Window
	}
	if in.DocLengthThreshold != nil {
		opts.DocLengthThreshold = *in.DocLengthThreshold
	}
	return opts
}

// handleSearch handles the search_conversation tool invocation. A search
// without relevant passages succeeds with status "empty"; a conversation
// without an index is an error.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	if input.ConversationID == "" {
		return nil, SearchOutput{}, fmt.Errorf("%w: conversation_id is required", domain.ErrInvalidInput)
	}

	hits, err := s.ports.Retrieval.Search(ctx, input.ConversationID, input.Query, input.options())
	switch {
	case errors.Is(err, domain.ErrEmpty):
		return nil, SearchOutput{Status: StatusEmpty, Hits: []domain.SearchHit{}}, nil
	case errors.Is(err, domain.ErrNotFound):
		return nil, SearchOutput{}, fmt.Errorf("conversation %s has no index: %w", input.ConversationID, err)
	case err != nil:
		return nil, SearchOutput{}, err
	}

	texts := make([]string, len(hits))
	for i := range hits {
		texts[i] = hits[i].Text
	}

	return nil, SearchOutput{
		Status:  StatusOK,
		Hits:    hits,
		Count:   len(hits),
		Context: strings.Join(texts, "\n"),
	}, nil
}

// handleRebuild handles the rebuild_index tool invocation.
func (s *Server) handleRebuild(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RebuildInput,
) (*mcp.CallToolResult, RebuildOutput, error) {
	if s.ports.Indexer == nil {
		return nil, RebuildOutput{}, ErrIndexerUnavailable
	}
	if input.ConversationID == "" {
		return nil, RebuildOutput{}, fmt.Errorf("%w: conversation_id is required", domain.ErrInvalidInput)
	}

	result, err := s.ports.Indexer.RunPreprocessing(ctx, input.ConversationID)
	if err != nil {
		return nil, RebuildOutput{}, err
	}

	return nil, RebuildOutput{
		Skipped:   result.Skipped,
		Documents: result.Documents,
		Chunks:    result.Chunks,
		Dimension: result.Dimension,
		Version:   result.Version,
	}, nil
}
