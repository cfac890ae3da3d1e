package driven

import (
	"context"
	"io"
)

// VectorIndex is an immutable exact nearest-neighbour index.
// Row i of the index was the i-th vector passed to Build.
type VectorIndex interface {
	// Search returns at most k rows ordered by descending similarity.
	// Equal scores keep ascending row order.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// Len returns the number of rows.
	Len() int

	// Dimensions returns the vector size.
	Dimensions() int

	// WriteTo serialises the index. Row order and values are preserved.
	WriteTo(w io.Writer) (int64, error)
}

// VectorIndexFactory creates vector indexes.
type VectorIndexFactory interface {
	// Build creates an index from vectors in row order. The first vector
	// fixes the dimension; any other size fails with domain.ErrDimensionMismatch.
	Build(vectors [][]float32) (VectorIndex, error)

	// ReadFrom decodes an index written by VectorIndex.WriteTo.
	ReadFrom(r io.Reader) (VectorIndex, error)
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// Row is the matched row.
	Row int

	// Similarity is the inner product with the query. Higher is better.
	Similarity float64
}
