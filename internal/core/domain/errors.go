package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// Adapters wrap their own failures with these so callers can branch
// with errors.Is.
var (
	// ErrNotFound indicates a requested entity does not exist.
	// At search time it means the conversation has no persisted index.
	ErrNotFound = errors.New("not found")

	// ErrEmpty indicates a search ran but no hit met the similarity threshold.
	ErrEmpty = errors.New("no relevant results")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates functionality is not available in this build.
	ErrNotImplemented = errors.New("not implemented")

	// ErrConfiguration indicates the settings cannot produce a working component.
	ErrConfiguration = errors.New("configuration error")

	// ErrDimensionMismatch indicates vectors of different sizes were mixed.
	// It is a configuration error: the provider and the index disagree.
	ErrDimensionMismatch = fmt.Errorf("%w: embedding dimension mismatch", ErrConfiguration)

	// ErrUpstream indicates the embedding provider or index library failed.
	ErrUpstream = errors.New("upstream failure")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrIndexCorrupt indicates a persisted artifact could not be decoded or
	// its vectors and texts disagree.
	ErrIndexCorrupt = errors.New("index artifact corrupt")

	// ErrUnsupportedFormat indicates no normaliser handles a file's type.
	ErrUnsupportedFormat = errors.New("unsupported format")
)
