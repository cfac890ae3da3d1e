package flat

import (
	"context"
	"fmt"
	"sort"

	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driven"
)

var (
	_ driven.VectorIndex        = (*Index)(nil)
	_ driven.VectorIndexFactory = Factory{}
)

// Index is an immutable exact inner-product index.
type Index struct {
	dim  int
	rows int
	data []float32 // row-major, rows*dim values
}

// Factory builds and decodes flat indexes.
type Factory struct{}

// NewFactory returns a flat index factory.
func NewFactory() Factory {
	return Factory{}
}

// Build copies vectors into a new index. The first vector fixes the dimension.
func (Factory) Build(vectors [][]float32) (driven.VectorIndex, error) {
	x, err := Build(vectors)
	if err != nil {
		return nil, err
	}
	return x, nil
}

// Build copies vectors into a new index. The first vector fixes the dimension.
func Build(vectors [][]float32) (*Index, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: no vectors to index", domain.ErrInvalidInput)
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: zero-length vector", domain.ErrInvalidInput)
	}

	data := make([]float32, 0, len(vectors)*dim)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: row %d has %d dimensions, expected %d",
				domain.ErrDimensionMismatch, i, len(v), dim)
		}
		data = append(data, v...)
	}
	return &Index{dim: dim, rows: len(vectors), data: data}, nil
}

// Len returns the number of rows.
func (x *Index) Len() int {
	return x.rows
}

// Dimensions returns the vector size.
func (x *Index) Dimensions() int {
	return x.dim
}

// Row returns a copy of the vector stored at row i.
func (x *Index) Row(i int) []float32 {
	out := make([]float32, x.dim)
	copy(out, x.data[i*x.dim:(i+1)*x.dim])
	return out
}

// Search returns the k rows with the highest inner product with query.
func (x *Index) Search(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(query) != x.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrDimensionMismatch, len(query), x.dim)
	}
	if k <= 0 {
		return nil, nil
	}

	hits := make([]driven.VectorHit, x.rows)
	for row := 0; row < x.rows; row++ {
		hits[row] = driven.VectorHit{Row: row, Similarity: x.dot(row, query)}
	}
	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Similarity > hits[b].Similarity
	})

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

func (x *Index) dot(row int, q []float32) float64 {
	v := x.data[row*x.dim : (row+1)*x.dim]
	var s float64
	for i := range v {
		s += float64(v[i]) * float64(q[i])
	}
	return s
}
