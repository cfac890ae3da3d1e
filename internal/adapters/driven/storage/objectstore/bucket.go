package objectstore

import "context"

// Bucket is a flat key/value object namespace with "/" separated keys.
type Bucket interface {
	// Put writes an object atomically: readers see the old or new content.
	Put(ctx context.Context, key string, data []byte) error

	// Get reads an object. Returns domain.ErrNotFound if it does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// List returns all keys starting with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes objects. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
}
