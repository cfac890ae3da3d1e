package normalisers

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driven"
	"github.com/custodia-labs/convorag/internal/normalisers/docx"
	"github.com/custodia-labs/convorag/internal/normalisers/eml"
	"github.com/custodia-labs/convorag/internal/normalisers/html"
	"github.com/custodia-labs/convorag/internal/normalisers/markdown"
	"github.com/custodia-labs/convorag/internal/normalisers/plaintext"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry dispatches files to normalisers by MIME type.
type Registry struct {
	mu     sync.RWMutex
	byType map[string][]driven.Normaliser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byType: make(map[string][]driven.Normaliser)}
}

// NewDefaultRegistry returns a registry with every built-in normaliser.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(plaintext.New())
	r.Register(markdown.New())
	r.Register(html.New())
	r.Register(docx.New())
	r.Register(eml.New())
	return r
}

// Register adds n for each of its MIME types, keeping candidates ordered
// by descending priority.
func (r *Registry) Register(n driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range n.SupportedMIMETypes() {
		list := append(r.byType[t], n)
		sort.SliceStable(list, func(i, j int) bool { return list[i].Priority() > list[j].Priority() })
		r.byType[t] = list
	}
}

// Supports reports whether any normaliser handles mimeType.
func (r *Registry) Supports(mimeType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byType[mimeType]) > 0
}

// Normalise runs the highest-priority normaliser for the file's type.
func (r *Registry) Normalise(ctx context.Context, raw *domain.RawFile) (*domain.NormalisedText, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	r.mu.RLock()
	candidates := r.byType[raw.MIMEType]
	r.mu.RUnlock()
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, raw.MIMEType)
	}
	return candidates[0].Normalise(ctx, raw)
}

// MIMETypes returns every supported MIME type, sorted.
func (r *Registry) MIMETypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.byType))
	for t := range r.byType {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
