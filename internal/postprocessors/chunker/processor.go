// Package chunker provides a recursive, separator-aware text splitting processor.
package chunker

import (
	"context"
	"unicode"

	"github.com/custodia-labs/convorag/internal/core/domain"
)

// DefaultChunkSize is the default maximum number of characters per chunk.
const DefaultChunkSize = 500

// DefaultChunkOverlap is the default minimum number of characters shared by
// consecutive chunks.
const DefaultChunkOverlap = 100

// Processor splits document content into bounded, overlapping chunks.
// Each chunk ends at the highest-priority separator found in the upper part
// of its size budget and the next one starts after a separator inside the
// overlap region. Without a separator the text is cut at any character.
// It implements the PostProcessor interface.
type Processor struct {
	chunkSize  int
	overlap    int
	separators [][]rune
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// WithSeparators sets the separators in priority order.
func WithSeparators(seps []string) Option {
	return func(p *Processor) {
		if len(seps) > 0 {
			p.separators = toRunes(seps)
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: toRunes(domain.DefaultSeparators()),
	}

	for _, opt := range opts {
		opt(p)
	}

	// Overlap must leave room for progress.
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process splits the document content into chunks.
// Input chunks are ignored; this processor creates new chunks from document content.
func (p *Processor) Process(_ context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	texts := p.Split(doc.Content)
	if len(texts) == 0 {
		return nil, nil
	}

	chunks := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = domain.Chunk{
			DocumentID: doc.ID,
			Position:   i,
			Content:    text,
		}
	}
	return chunks, nil
}

// Split returns the chunk texts of content. Chunks never start or end with
// whitespace.
func (p *Processor) Split(content string) []string {
	runes := []rune(content)
	var out []string
	for _, s := range p.spans(runes) {
		out = append(out, string(runes[s.start:s.end]))
	}
	return out
}

type span struct {
	start, end int
}

// spans computes chunk windows over runes. A window is at most chunkSize
// long, ends past the end of the window before it and shares at least
// overlap characters with it.
func (p *Processor) spans(runes []rune) []span {
	n := trimRight(runes, 0, len(runes))
	start := skipSpace(runes, 0, n)
	var out []span
	for start < n {
		if n-start <= p.chunkSize {
			out = append(out, span{start: start, end: n})
			break
		}
		lo := start + p.minSpan()
		if len(out) > 0 {
			lo = max(lo, out[len(out)-1].end+1)
		}
		end := p.cutEnd(runes, start, lo, start+p.chunkSize)
		out = append(out, span{start: start, end: end})
		start = p.nextStart(runes, start, end, n)
	}
	return out
}

// minSpan is the shortest window that still leaves half of the non-overlap
// budget for new text.
func (p *Processor) minSpan() int {
	return p.overlap + (p.chunkSize-p.overlap+1)/2
}

// cutEnd returns the end of the window starting at start: the position after
// the last occurrence of the highest-priority separator whose trimmed end
// falls in [lo, hi]. Without a match it cuts at hi.
func (p *Processor) cutEnd(runes []rune, start, lo, hi int) int {
	for _, sep := range p.separators {
		if len(sep) == 0 {
			break
		}
		for i := min(hi, len(runes)-len(sep)); i >= start; i-- {
			if !hasAt(runes, i, sep) {
				continue
			}
			e := trimRight(runes, start, i+len(sep))
			if e < lo {
				break
			}
			if e <= hi {
				return e
			}
		}
	}
	if e := trimRight(runes, start, hi); e >= lo {
		return e
	}
	return hi
}

// nextStart returns where the window after [start, end) begins: directly
// after a separator, at least overlap characters before end. Separators
// close to that limit are preferred so the shared text stays short.
func (p *Processor) nextStart(runes []rune, start, end, n int) int {
	if p.overlap == 0 {
		return skipSpace(runes, end, n)
	}
	hi := end - p.overlap
	if t, ok := p.lastStart(runes, start, max(start+1, end-2*p.overlap), hi); ok {
		return t
	}
	if t, ok := p.lastStart(runes, start, start+1, hi); ok {
		return t
	}
	t := hi
	for t > start+1 && unicode.IsSpace(runes[t]) {
		t--
	}
	return t
}

// lastStart finds the latest position in [lo, hi] that directly follows the
// highest-priority separator and its trailing whitespace.
func (p *Processor) lastStart(runes []rune, start, lo, hi int) (int, bool) {
	for _, sep := range p.separators {
		if len(sep) == 0 {
			break
		}
		for i := hi - len(sep); i >= start; i-- {
			if !hasAt(runes, i, sep) {
				continue
			}
			t := skipSpace(runes, i+len(sep), len(runes))
			if t < lo {
				break
			}
			if t <= hi {
				return t, true
			}
		}
	}
	return 0, false
}

func hasAt(runes []rune, i int, sep []rune) bool {
	if i < 0 || i+len(sep) > len(runes) {
		return false
	}
	for j, r := range sep {
		if runes[i+j] != r {
			return false
		}
	}
	return true
}

func trimRight(runes []rune, lo, hi int) int {
	for hi > lo && unicode.IsSpace(runes[hi-1]) {
		hi--
	}
	return hi
}

func skipSpace(runes []rune, lo, hi int) int {
	for lo < hi && unicode.IsSpace(runes[lo]) {
		lo++
	}
	return lo
}

func toRunes(seps []string) [][]rune {
	out := make([][]rune, len(seps))
	for i, s := range seps {
		out[i] = []rune(s)
	}
	return out
}
