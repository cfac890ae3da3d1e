package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// IndexManifest describes a persisted conversation index.
type IndexManifest struct {
	// ConversationID is the owning conversation.
	ConversationID string `json:"conversation_id"`

	// Version identifies one build of the index.
	Version string `json:"version"`

	// Dimension is the embedding vector size.
	Dimension int `json:"dimension"`

	// Rows is the number of vectors and chunk records.
	Rows int `json:"rows"`

	// Model is the embedding model used for the build.
	Model string `json:"model,omitempty"`

	// Documents is the number of documents that contributed chunks.
	Documents int `json:"documents"`

	// BuiltAt is when the build read the documents. Any document changed
	// after it is not part of the index.
	BuiltAt time.Time `json:"built_at"`
}

// ConversationIndex is the chunk side of a conversation's index.
// Records[i] always corresponds to vector row i.
type ConversationIndex struct {
	Manifest IndexManifest

	// Records is ordered by Position.
	Records []ChunkRecord
}

// Validate checks that records line up with the manifest.
func (c *ConversationIndex) Validate() error {
	if c.Manifest.ConversationID == "" {
		return fmt.Errorf("%w: missing conversation id", ErrIndexCorrupt)
	}
	if c.Manifest.Rows != len(c.Records) {
		return fmt.Errorf("%w: manifest has %d rows, found %d records",
			ErrIndexCorrupt, c.Manifest.Rows, len(c.Records))
	}
	for i, rec := range c.Records {
		if rec.Position != i {
			return fmt.Errorf("%w: record %d has position %d", ErrIndexCorrupt, i, rec.Position)
		}
	}
	return nil
}

// Texts returns the chunk texts in row order.
func (c *ConversationIndex) Texts() []string {
	texts := make([]string, len(c.Records))
	for i, rec := range c.Records {
		texts[i] = rec.Text
	}
	return texts
}

// FullText joins every chunk text with newlines, in row order.
func (c *ConversationIndex) FullText() string {
	return strings.Join(c.Texts(), "\n")
}

// TotalLength is the character length of FullText without building it.
func (c *ConversationIndex) TotalLength() int {
	if len(c.Records) == 0 {
		return 0
	}
	n := len(c.Records) - 1
	for _, rec := range c.Records {
		n += utf8.RuneCountInString(rec.Text)
	}
	return n
}

// BuildResult reports the outcome of one index build.
type BuildResult struct {
	// ConversationID is the conversation that was processed.
	ConversationID string

	// Skipped is true when there was nothing to index and no artifact was written.
	Skipped bool

	// Documents is the number of documents fetched.
	Documents int

	// Chunks is the number of chunk records indexed.
	Chunks int

	// Dimension is the embedding vector size.
	Dimension int

	// Version is the artifact version written.
	Version string

	// Duration is the wall time of the build.
	Duration time.Duration
}
