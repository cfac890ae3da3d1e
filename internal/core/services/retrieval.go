package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driven"
	"github.com/custodia-labs/convorag/internal/core/ports/driving"
	"github.com/custodia-labs/convorag/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// RetrievalService answers queries against persisted conversation indexes.
type RetrievalService struct {
	store    driven.IndexStore
	embedder driven.EmbeddingService
}

// NewRetrievalService creates a new retrieval service.
func NewRetrievalService(store driven.IndexStore, embedder driven.EmbeddingService) *RetrievalService {
	return &RetrievalService{
		store:    store,
		embedder: embedder,
	}
}

// Search loads the conversation's index and returns expanded hits best-first.
//
// Conversations whose total text is shorter than opts.DocLengthThreshold are
// returned whole as a single bypass hit without embedding the query.
// Otherwise the top_k nearest rows scoring at least the threshold are
// expanded with up to opts.ContextWindow neighbours on each side. Windows
// never share rows: a window only grows across rows no earlier hit claimed.
func (s *RetrievalService) Search(
	ctx context.Context,
	conversationID, query string,
	opts domain.SearchOptions,
) ([]domain.SearchHit, error) {
	logger.Section("Retrieval")
	logger.Debug("Conversation: %q, query: %q", conversationID, query)
	logger.Debug("Options: top_k=%d threshold=%.3f window=%d bypass_below=%d",
		opts.TopK, opts.SimilarityThreshold, opts.ContextWindow, opts.DocLengthThreshold)

	if strings.TrimSpace(conversationID) == "" {
		return nil, fmt.Errorf("%w: conversation id is required", domain.ErrInvalidInput)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	artifact, err := s.store.Load(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	index := &artifact.Index
	if len(index.Records) == 0 {
		return nil, domain.ErrEmpty
	}
	if artifact.Vectors == nil || artifact.Vectors.Len() != len(index.Records) {
		return nil, fmt.Errorf("load index: %w: vector rows do not match %d records",
			domain.ErrIndexCorrupt, len(index.Records))
	}

	if total := index.TotalLength(); total < opts.DocLengthThreshold {
		logger.Debug("Bypass: total length %d below %d", total, opts.DocLengthThreshold)
		return []domain.SearchHit{bypassHit(index)}, nil
	}

	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", asUpstream(err))
	}

	neighbours, err := artifact.Vectors.Search(ctx, vector, opts.TopK)
	if err != nil {
		if errors.Is(err, domain.ErrDimensionMismatch) {
			return nil, fmt.Errorf("search vectors: %w", err)
		}
		return nil, fmt.Errorf("search vectors: %w", asUpstream(err))
	}
	logger.Debug("Nearest neighbours: %d", len(neighbours))

	hits, err := expand(index.Records, neighbours, opts)
	if err != nil {
		return nil, err
	}
	logger.Debug("Returning %d hits", len(hits))
	return hits, nil
}

// ContextFor joins the hit texts with newlines.
// A search with no relevant results yields an empty context.
func (s *RetrievalService) ContextFor(
	ctx context.Context,
	conversationID, query string,
	opts domain.SearchOptions,
) (string, error) {
	hits, err := s.Search(ctx, conversationID, query, opts)
	if errors.Is(err, domain.ErrEmpty) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
	}
	return strings.Join(texts, "\n"), nil
}

func bypassHit(index *domain.ConversationIndex) domain.SearchHit {
	return domain.SearchHit{
		Text:        index.FullText(),
		Score:       1,
		Row:         0,
		Start:       0,
		End:         len(index.Records) - 1,
		DocumentIDs: documentIDs(index.Records),
		Bypass:      true,
	}
}

// expand filters neighbours by threshold and turns each surviving row into
// a window of unconsumed neighbouring rows.
func expand(
	records []domain.ChunkRecord,
	neighbours []driven.VectorHit,
	opts domain.SearchOptions,
) ([]domain.SearchHit, error) {
	kept := make([]driven.VectorHit, 0, len(neighbours))
	for _, n := range neighbours {
		if n.Row < 0 || n.Row >= len(records) {
			return nil, fmt.Errorf("%w: row %d outside %d records", domain.ErrIndexCorrupt, n.Row, len(records))
		}
		if n.Similarity >= opts.SimilarityThreshold {
			kept = append(kept, n)
		}
	}
	if len(kept) == 0 {
		return nil, domain.ErrEmpty
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Similarity > kept[j].Similarity
	})

	consumed := make([]bool, len(records))
	hits := make([]domain.SearchHit, 0, len(kept))
	for _, n := range kept {
		if len(hits) == opts.TopK {
			break
		}
		r := n.Row
		if consumed[r] {
			continue
		}

		lo := r
		for lo > 0 && r-lo < opts.ContextWindow && !consumed[lo-1] {
			lo--
		}
		hi := r
		for hi < len(records)-1 && hi-r < opts.ContextWindow && !consumed[hi+1] {
			hi++
		}

		texts := make([]string, 0, hi-lo+1)
		for i := lo; i <= hi; i++ {
			consumed[i] = true
			texts = append(texts, records[i].Text)
		}

		hits = append(hits, domain.SearchHit{
			Text:        strings.Join(texts, " "),
			Score:       n.Similarity,
			Row:         r,
			Start:       lo,
			End:         hi,
			DocumentIDs: documentIDs(records[lo : hi+1]),
		})
	}
	return hits, nil
}

// documentIDs lists the distinct document ids of records in first-seen order.
func documentIDs(records []domain.ChunkRecord) []string {
	var ids []string
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if rec.DocumentID == "" {
			continue
		}
		if _, ok := seen[rec.DocumentID]; ok {
			continue
		}
		seen[rec.DocumentID] = struct{}{}
		ids = append(ids, rec.DocumentID)
	}
	return ids
}
