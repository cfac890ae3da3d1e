package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Document is a piece of ingested text owned by exactly one conversation.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// ConversationID is the owning conversation.
	ConversationID string

	// Title is the human-readable title, usually the original file name.
	Title string

	// Content is the raw extracted text.
	Content string

	// CreatedAt is when the document was stored.
	CreatedAt time.Time

	// UpdatedAt is when the document content last changed.
	UpdatedAt time.Time
}

// Len returns the content length in characters.
func (d Document) Len() int {
	return utf8.RuneCountInString(d.Content)
}

// HasContent reports whether the document carries any non-whitespace text.
func (d Document) HasContent() bool {
	return strings.TrimSpace(d.Content) != ""
}

// Chunk is a bounded text segment of a single document.
type Chunk struct {
	// DocumentID links to the parent Document.
	DocumentID string

	// Position is the ordinal position within the document's chunk sequence.
	Position int

	// Content is the text span.
	Content string
}

// ChunkRecord is a chunk placed in a conversation's flattened chunk
// sequence. Position equals the row of its vector in the index.
type ChunkRecord struct {
	// Position is the global position, 0..N-1.
	Position int `json:"position"`

	// DocumentID is the source document.
	DocumentID string `json:"document_id"`

	// Text is the chunk text.
	Text string `json:"text"`
}

// ConversationSummary describes the document set of one conversation.
type ConversationSummary struct {
	// ConversationID identifies the conversation.
	ConversationID string

	// Documents is the number of documents with content.
	Documents int

	// UpdatedAt is the last time a document was added, changed or removed.
	UpdatedAt time.Time
}

// RawFile is the undecoded content of a file before text extraction.
type RawFile struct {
	// Path identifies the file, relative to its source root.
	Path string

	// MIMEType is the detected content type without parameters.
	MIMEType string

	// Content is the file bytes.
	Content []byte
}

// NormalisedText is the plain text extracted from a RawFile.
type NormalisedText struct {
	// Title is a title found inside the file, if any.
	Title string

	// Content is the extracted text.
	Content string

	// Format names the normaliser that produced the text.
	Format string
}
