package domain

import "fmt"

// Retrieval defaults.
const (
	DefaultTopK               = 5
	DefaultSimilarity         = 0.75
	DefaultContextWindow      = 1
	DefaultDocLengthThreshold = 1000
)

// SearchOptions configures a retrieval query against one conversation.
type SearchOptions struct {
	// TopK is the number of nearest neighbours requested and the maximum
	// number of hits returned.
	TopK int

	// SimilarityThreshold is the minimum inner-product score kept.
	// A score equal to the threshold is kept.
	SimilarityThreshold float64

	// ContextWindow is how many neighbouring chunks on each side are merged
	// around a matched chunk. Zero disables expansion.
	ContextWindow int

	// DocLengthThreshold is the total text length below which search is
	// bypassed and the whole conversation text is returned.
	DocLengthThreshold int
}

// DefaultSearchOptions returns the standard retrieval settings.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		TopK:                DefaultTopK,
		SimilarityThreshold: DefaultSimilarity,
		ContextWindow:       DefaultContextWindow,
		DocLengthThreshold:  DefaultDocLengthThreshold,
	}
}

// Validate rejects options that cannot produce a meaningful search.
func (o SearchOptions) Validate() error {
	switch {
	case o.TopK < 1:
		return fmt.Errorf("%w: top_k must be at least 1", ErrInvalidInput)
	case o.ContextWindow < 0:
		return fmt.Errorf("%w: context_window must not be negative", ErrInvalidInput)
	case o.DocLengthThreshold < 0:
		return fmt.Errorf("%w: doc_length_threshold must not be negative", ErrInvalidInput)
	case o.SimilarityThreshold < -1 || o.SimilarityThreshold > 1:
		return fmt.Errorf("%w: similarity_threshold must be within [-1, 1]", ErrInvalidInput)
	}
	return nil
}

// SearchHit is one retrieval result.
type SearchHit struct {
	// Text is the matched chunk merged with its context window, or the full
	// conversation text for a bypass hit.
	Text string `json:"text"`

	// Score is the similarity of the matched row. Higher is better.
	// Bypass hits score 1.
	Score float64 `json:"score"`

	// Row is the matched row.
	Row int `json:"row"`

	// Start and End bound the consumed window, both inclusive.
	Start int `json:"start"`
	End   int `json:"end"`

	// DocumentIDs lists the source documents covered by the window, in order.
	DocumentIDs []string `json:"document_ids,omitempty"`

	// Bypass marks the single hit returned for short conversations.
	Bypass bool `json:"bypass,omitempty"`
}
