// Package html extracts the visible text of HTML pages.
package html

import (
	"context"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles HTML documents.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise strips markup, scripts and styles. The <title> element becomes
// the title.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawFile) (*domain.NormalisedText, error) {
	if raw == nil || !utf8.Valid(raw.Content) {
		return nil, domain.ErrInvalidInput
	}
	content := string(raw.Content)
	return &domain.NormalisedText{
		Title:   title(content),
		Content: Strip(content),
		Format:  "html",
	}, nil
}

var (
	titleTag      = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	invisible     = regexp.MustCompile(`(?is)<(script|style|noscript|head|svg)[^>]*>.*?</(script|style|noscript|head|svg)>`)
	comments      = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockBoundary = regexp.MustCompile(`(?i)</?(p|div|br|hr|h[1-6]|li|tr|blockquote|pre|table|section|article)(\s[^>]*)?/?>`)
	anyTag        = regexp.MustCompile(`<[^>]+>`)
	spaces        = regexp.MustCompile(`[ \t]+`)
)

func title(content string) string {
	if m := titleTag.FindStringSubmatch(content); len(m) > 1 {
		return strings.TrimSpace(html.UnescapeString(m[1]))
	}
	return ""
}

// Strip returns the text of an HTML fragment with one line per block
// element and blank lines removed.
func Strip(content string) string {
	content = invisible.ReplaceAllString(content, "")
	content = comments.ReplaceAllString(content, "")
	content = blockBoundary.ReplaceAllString(content, "\n")
	content = anyTag.ReplaceAllString(content, "")
	content = html.UnescapeString(content)
	content = spaces.ReplaceAllString(content, " ")

	lines := strings.Split(content, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
