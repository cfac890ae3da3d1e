// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/convorag/internal/core/domain"
)

// SearchCompleted carries retrieval hits back to the model.
// Err is domain.ErrNotFound without an index and domain.ErrEmpty when
// nothing met the threshold.
type SearchCompleted struct {
	Query string
	Hits  []domain.SearchHit
	Err   error
}

// DocumentsLoaded carries the documents of the browsed conversation.
type DocumentsLoaded struct {
	ConversationID string
	Documents      []domain.Document
	Err            error
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewSearch is the query input and hit list.
	ViewSearch ViewType = iota
	// ViewDocuments lists the conversation's documents.
	ViewDocuments
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewSearch:
		return "search"
	case ViewDocuments:
		return "documents"
	default:
		return "unknown"
	}
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}
