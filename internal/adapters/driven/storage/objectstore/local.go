package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/custodia-labs/convorag/internal/core/domain"
)

const tempPrefix = ".tmp-"

// Ensure LocalBucket implements the interface.
var _ Bucket = (*LocalBucket)(nil)

// LocalBucket stores objects as files under a root directory.
type LocalBucket struct {
	root string
}

// NewLocalBucket creates the root directory if needed.
func NewLocalBucket(root string) (*LocalBucket, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: local bucket root is required", domain.ErrConfiguration)
	}
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	return &LocalBucket{root: root}, nil
}

// Root returns the root directory.
func (b *LocalBucket) Root() string {
	return b.root
}

// Put writes to a temporary file in the same directory and renames it
// into place.
func (b *LocalBucket) Put(_ context.Context, key string, data []byte) error {
	target, err := b.path(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("renaming %s: %w", key, err)
	}
	return nil
}

// Get reads a file.
func (b *LocalBucket) Get(_ context.Context, key string) ([]byte, error) {
	p, err := b.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return data, nil
}

// List walks the root and returns matching keys. Temporary files are skipped.
func (b *LocalBucket) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(b.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}
		rel, err := filepath.Rel(b.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", b.root, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete removes files and then any directories left empty.
func (b *LocalBucket) Delete(_ context.Context, keys ...string) error {
	dirs := make(map[string]struct{})
	for _, key := range keys {
		p, err := b.path(key)
		if err != nil {
			return err
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", key, err)
		}
		for dir := filepath.Dir(p); dir != b.root && strings.HasPrefix(dir, b.root); dir = filepath.Dir(dir) {
			dirs[dir] = struct{}{}
		}
	}

	// Deepest first; non-empty directories stay.
	ordered := make([]string, 0, len(dirs))
	for dir := range dirs {
		ordered = append(ordered, dir)
	}
	sort.Slice(ordered, func(i, j int) bool { return len(ordered[i]) > len(ordered[j]) })
	for _, dir := range ordered {
		_ = os.Remove(dir)
	}
	return nil
}

func (b *LocalBucket) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == "." || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("%w: invalid object key %q", domain.ErrInvalidInput, key)
	}
	return filepath.Join(b.root, clean), nil
}
