package driven

import (
	"context"

	"github.com/custodia-labs/convorag/internal/core/domain"
)

// Normaliser extracts plain text from files of specific MIME types.
type Normaliser interface {
	// SupportedMIMETypes returns the MIME types this normaliser handles.
	SupportedMIMETypes() []string

	// Priority returns the selection priority (higher = preferred).
	// Format-specific normalisers return 50-89, fallbacks 1-9.
	Priority() int

	// Normalise extracts the text of raw.
	Normalise(ctx context.Context, raw *domain.RawFile) (*domain.NormalisedText, error)
}

// NormaliserRegistry selects the best normaliser for a file.
type NormaliserRegistry interface {
	// Normalise extracts text using the highest-priority matching normaliser.
	Normalise(ctx context.Context, raw *domain.RawFile) (*domain.NormalisedText, error)

	// Register adds a normaliser.
	Register(n Normaliser)

	// Supports reports whether any normaliser handles mimeType.
	Supports(mimeType string) bool
}
