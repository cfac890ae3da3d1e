// Package artifact encodes conversation indexes into the three parts every
// index store persists: a JSON manifest, the JSON chunk records and the
// binary vector index.
package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driven"
)

// Part names used as file or object names.
const (
	ManifestName = "manifest.json"
	ChunksName   = "chunks.json"
	VectorsName  = "index.vec"
)

// Parts is an encoded artifact.
type Parts struct {
	Manifest []byte
	Chunks   []byte
	Vectors  []byte
}

// Check rejects artifacts whose records and vectors do not line up.
func Check(a *driven.IndexArtifact) error {
	if a == nil {
		return fmt.Errorf("%w: artifact is nil", domain.ErrInvalidInput)
	}
	if err := a.Index.Validate(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	if a.Vectors == nil {
		return fmt.Errorf("%w: artifact has no vectors", domain.ErrInvalidInput)
	}
	if a.Vectors.Len() != a.Index.Manifest.Rows {
		return fmt.Errorf("%w: %d vectors for %d records",
			domain.ErrInvalidInput, a.Vectors.Len(), a.Index.Manifest.Rows)
	}
	if a.Vectors.Len() > 0 && a.Vectors.Dimensions() != a.Index.Manifest.Dimension {
		return fmt.Errorf("%w: manifest dimension %d, vectors have %d",
			domain.ErrInvalidInput, a.Index.Manifest.Dimension, a.Vectors.Dimensions())
	}
	return nil
}

// Encode checks and serialises an artifact.
func Encode(a *driven.IndexArtifact) (*Parts, error) {
	if err := Check(a); err != nil {
		return nil, err
	}

	manifest, err := json.MarshalIndent(a.Index.Manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	chunks, err := json.Marshal(a.Index.Records)
	if err != nil {
		return nil, fmt.Errorf("encode chunks: %w", err)
	}
	var vectors bytes.Buffer
	if _, err := a.Vectors.WriteTo(&vectors); err != nil {
		return nil, fmt.Errorf("encode vectors: %w", err)
	}

	return &Parts{Manifest: manifest, Chunks: chunks, Vectors: vectors.Bytes()}, nil
}

// Decode rebuilds an artifact. Any inconsistency is domain.ErrIndexCorrupt.
func Decode(p *Parts, factory driven.VectorIndexFactory) (*driven.IndexArtifact, error) {
	manifest, err := DecodeManifest(p.Manifest)
	if err != nil {
		return nil, err
	}

	idx := domain.ConversationIndex{Manifest: *manifest}
	if err := json.Unmarshal(p.Chunks, &idx.Records); err != nil {
		return nil, fmt.Errorf("%w: decode chunks: %w", domain.ErrIndexCorrupt, err)
	}
	if err := idx.Validate(); err != nil {
		return nil, err
	}

	vectors, err := factory.ReadFrom(bytes.NewReader(p.Vectors))
	if err != nil {
		return nil, fmt.Errorf("%w: decode vectors: %w", domain.ErrIndexCorrupt, err)
	}
	if vectors.Len() != len(idx.Records) {
		return nil, fmt.Errorf("%w: %d vectors for %d records",
			domain.ErrIndexCorrupt, vectors.Len(), len(idx.Records))
	}

	return &driven.IndexArtifact{Index: idx, Vectors: vectors}, nil
}

// DecodeManifest parses a manifest on its own.
func DecodeManifest(b []byte) (*domain.IndexManifest, error) {
	var m domain.IndexManifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("%w: decode manifest: %w", domain.ErrIndexCorrupt, err)
	}
	if m.ConversationID == "" || m.Rows < 0 {
		return nil, fmt.Errorf("%w: invalid manifest", domain.ErrIndexCorrupt)
	}
	return &m, nil
}
