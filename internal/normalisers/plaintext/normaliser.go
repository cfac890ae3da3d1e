// Package plaintext passes text files through unchanged.
package plaintext

import (
	"context"
	"unicode/utf8"

	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles plain text and source files.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{
		"text/plain",
		"text/x-go",
		"text/x-python",
		"text/x-rust",
		"text/x-java",
		"text/x-c",
		"text/x-c++",
		"text/x-ruby",
		"text/x-shellscript",
		"text/x-sql",
		"text/csv",
		"text/yaml",
		"text/toml",
		"text/javascript",
		"text/javascript-jsx",
		"text/typescript",
		"text/typescript-jsx",
		"text/css",
		"text/markdown",
		"text/html",
		"application/json",
		"application/xml",
		"application/x-yaml",
		"application/toml",
	}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 5 // Fallback normaliser
}

// Normalise returns the content as is. Bytes that are not UTF-8 are
// rejected.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawFile) (*domain.NormalisedText, error) {
	if raw == nil || !utf8.Valid(raw.Content) {
		return nil, domain.ErrInvalidInput
	}
	return &domain.NormalisedText{
		Content: string(raw.Content),
		Format:  "plaintext",
	}, nil
}
