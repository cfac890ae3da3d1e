package tui

import "errors"

// ErrMissingDocumentService is returned when the document service is not provided.
var ErrMissingDocumentService = errors.New("tui: document service is required")

// ErrMissingConversation is returned when no conversation is selected.
var ErrMissingConversation = errors.New("tui: conversation id is required")
