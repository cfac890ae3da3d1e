// Package tui provides an interactive terminal browser for one conversation.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driving"
)

// Ports aggregates the driving ports and the conversation the TUI browses.
type Ports struct {
	// Retrieval answers queries. Nil leaves search unavailable while
	// documents stay browsable.
	Retrieval driving.RetrievalService

	// Document lists and reads the conversation's documents.
	Document driving.DocumentService

	// ConversationID is the browsed conversation.
	ConversationID string

	// Options are the retrieval settings used for every query.
	Options domain.SearchOptions
}

// Validate ensures the required ports are set.
func (p *Ports) Validate() error {
	if p.Document == nil {
		return ErrMissingDocumentService
	}
	if p.ConversationID == "" {
		return ErrMissingConversation
	}
	return p.Options.Validate()
}
