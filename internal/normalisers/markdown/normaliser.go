// Package markdown strips Markdown syntax, keeping the readable text.
package markdown

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles Markdown documents.
type Normaliser struct{}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise strips Markdown formatting. The first level-one heading
// becomes the title.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawFile) (*domain.NormalisedText, error) {
	if raw == nil || !utf8.Valid(raw.Content) {
		return nil, domain.ErrInvalidInput
	}
	content := string(raw.Content)
	return &domain.NormalisedText{
		Title:   heading(content),
		Content: Strip(content),
		Format:  "markdown",
	}, nil
}

func heading(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(line[2:])
		}
	}
	return ""
}

var (
	fencedCode    = regexp.MustCompile("(?s)```[^\n]*\n(.*?)```")
	inlineCode    = regexp.MustCompile("`([^`]+)`")
	images        = regexp.MustCompile(`!\[([^\]]*)\]\([^)]+\)`)
	links         = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	headings      = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	emphasis      = regexp.MustCompile(`(\*\*|__|\*|_)([^*_\n]+)(\*\*|__|\*|_)`)
	blockquotes   = regexp.MustCompile(`(?m)^>\s?`)
	rules         = regexp.MustCompile(`(?m)^\s*([-*_]\s*){3,}$`)
	bullets       = regexp.MustCompile(`(?m)^(\s*)[-*+]\s+`)
	numbered      = regexp.MustCompile(`(?m)^(\s*)\d+\.\s+`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

// Strip removes Markdown syntax. Code keeps its text; only fences and
// backticks are removed.
func Strip(content string) string {
	content = fencedCode.ReplaceAllString(content, "$1")
	content = inlineCode.ReplaceAllString(content, "$1")
	content = images.ReplaceAllString(content, "$1")
	content = links.ReplaceAllString(content, "$1")
	content = headings.ReplaceAllString(content, "")
	content = emphasis.ReplaceAllString(content, "$2")
	content = blockquotes.ReplaceAllString(content, "")
	content = rules.ReplaceAllString(content, "")
	content = bullets.ReplaceAllString(content, "$1")
	content = numbered.ReplaceAllString(content, "$1")
	content = multiNewlines.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}
