package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// uriScheme is the custom URI scheme for convorag resources.
	uriScheme = "convorag://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "conversations",
		Name:        "conversations",
		Description: "Conversations that own documents",
		MIMEType:    "application/json",
	}, s.handleConversationsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "conversations/{conversationId}/documents",
		Name:        "conversation-documents",
		Description: "Documents of a specific conversation",
		MIMEType:    "application/json",
	}, s.handleDocumentsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "documents/{documentId}",
		Name:        "document-content",
		Description: "Content of a specific document",
		MIMEType:    "text/plain",
	}, s.handleDocumentContentResource)

	s.resources = append(s.resources,
		uriScheme+"conversations",
		uriScheme+"conversations/{conversationId}/documents",
		uriScheme+"documents/{documentId}",
	)
}

// handleConversationsResource lists every conversation with documents.
func (s *Server) handleConversationsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Documents == nil {
		return jsonResult(req.Params.URI, "[]"), nil
	}

	convs, err := s.ports.Documents.Conversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}

	type conversationInfo struct {
		ID        string    `json:"id"`
		Documents int       `json:"documents"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	infos := make([]conversationInfo, len(convs))
	for i, c := range convs {
		infos[i] = conversationInfo{
			ID:        c.ConversationID,
			Documents: c.Documents,
			UpdatedAt: c.UpdatedAt,
		}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling conversations: %w", err)
	}
	return jsonResult(req.Params.URI, string(data)), nil
}

// handleDocumentsResource returns the documents of one conversation.
func (s *Server) handleDocumentsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Documents == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	conversationID := extractConversationID(req.Params.URI)
	if conversationID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	docs, err := s.ports.Documents.List(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	type docInfo struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		Length int    `json:"length"`
		URI    string `json:"uri"`
	}

	infos := make([]docInfo, len(docs))
	for i := range docs {
		infos[i] = docInfo{
			ID:     docs[i].ID,
			Title:  docs[i].Title,
			Length: docs[i].Len(),
			URI:    uriScheme + "documents/" + docs[i].ID,
		}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling documents: %w", err)
	}
	return jsonResult(req.Params.URI, string(data)), nil
}

// handleDocumentContentResource returns the content of a specific document.
func (s *Server) handleDocumentContentResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Documents == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	docID := extractDocumentID(req.Params.URI)
	if docID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	doc, err := s.ports.Documents.Get(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     doc.Content,
		}},
	}, nil
}

func jsonResult(uri, text string) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     text,
		}},
	}
}

// extractConversationID extracts the ID from convorag://conversations/{id}/documents.
func extractConversationID(uri string) string {
	const prefix = uriScheme + "conversations/"
	const suffix = "/documents"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	uri = strings.TrimPrefix(uri, prefix)
	if !strings.HasSuffix(uri, suffix) {
		return ""
	}

	return strings.TrimSuffix(uri, suffix)
}

// extractDocumentID extracts the ID from convorag://documents/{id}.
func extractDocumentID(uri string) string {
	const prefix = uriScheme + "documents/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	return strings.TrimPrefix(uri, prefix)
}
