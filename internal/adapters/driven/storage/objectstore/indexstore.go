package objectstore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/custodia-labs/convorag/internal/adapters/driven/storage/artifact"
	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driven"
	"github.com/custodia-labs/convorag/internal/logger"
)

const (
	currentName = "CURRENT"
	// loadAttempts bounds retries when CURRENT moves during a load.
	loadAttempts = 3
)

// Ensure IndexStore implements the interface.
var _ driven.IndexStore = (*IndexStore)(nil)

// IndexStore implements driven.IndexStore on a Bucket.
type IndexStore struct {
	bucket  Bucket
	factory driven.VectorIndexFactory
}

// NewIndexStore creates an index store on bucket.
func NewIndexStore(bucket Bucket, factory driven.VectorIndexFactory) *IndexStore {
	return &IndexStore{bucket: bucket, factory: factory}
}

// Save writes a new version and then points CURRENT at it.
func (s *IndexStore) Save(ctx context.Context, a *driven.IndexArtifact) error {
	parts, err := artifact.Encode(a)
	if err != nil {
		return err
	}
	m := a.Index.Manifest
	if m.Version == "" || strings.ContainsAny(m.Version, "/\\") || m.Version == currentName {
		return fmt.Errorf("%w: invalid index version %q", domain.ErrInvalidInput, m.Version)
	}

	dir := conversationDir(m.ConversationID)
	previous, err := s.current(ctx, dir)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	versionDir := path.Join(dir, m.Version)
	// The manifest goes last: a version without one was never completed.
	for _, p := range []struct {
		name string
		data []byte
	}{
		{artifact.ChunksName, parts.Chunks},
		{artifact.VectorsName, parts.Vectors},
		{artifact.ManifestName, parts.Manifest},
	} {
		if err := s.bucket.Put(ctx, path.Join(versionDir, p.name), p.data); err != nil {
			return fmt.Errorf("write %s: %w", p.name, err)
		}
	}

	if err := s.bucket.Put(ctx, path.Join(dir, currentName), []byte(m.Version)); err != nil {
		return fmt.Errorf("switch current version: %w", err)
	}

	if err := s.prune(ctx, dir, m.Version, previous); err != nil {
		logger.Warn("pruning old index versions of %s: %v", m.ConversationID, err)
	}
	return nil
}

// Load reads the version CURRENT points at.
func (s *IndexStore) Load(ctx context.Context, conversationID string) (*driven.IndexArtifact, error) {
	dir := conversationDir(conversationID)

	var lastErr error
	for attempt := 0; attempt < loadAttempts; attempt++ {
		version, err := s.current(ctx, dir)
		if err != nil {
			return nil, err
		}

		a, err := s.loadVersion(ctx, path.Join(dir, version))
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}

		// A part vanished: either CURRENT moved on and the version was
		// pruned, or the version is incomplete.
		lastErr = err
		again, cerr := s.current(ctx, dir)
		if cerr != nil {
			return nil, cerr
		}
		if again == version {
			break
		}
	}
	return nil, fmt.Errorf("%w: %v", domain.ErrIndexCorrupt, lastErr)
}

// Stat reads the manifest of the current version.
func (s *IndexStore) Stat(ctx context.Context, conversationID string) (*domain.IndexManifest, error) {
	dir := conversationDir(conversationID)
	version, err := s.current(ctx, dir)
	if err != nil {
		return nil, err
	}
	data, err := s.bucket.Get(ctx, path.Join(dir, version, artifact.ManifestName))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: manifest of version %s missing", domain.ErrIndexCorrupt, version)
		}
		return nil, err
	}
	return artifact.DecodeManifest(data)
}

// Delete removes CURRENT first, so readers stop finding the index, then
// every version.
func (s *IndexStore) Delete(ctx context.Context, conversationID string) error {
	dir := conversationDir(conversationID)
	if err := s.bucket.Delete(ctx, path.Join(dir, currentName)); err != nil {
		return fmt.Errorf("delete current pointer: %w", err)
	}
	keys, err := s.bucket.List(ctx, dir+"/")
	if err != nil {
		return fmt.Errorf("list index objects: %w", err)
	}
	return s.bucket.Delete(ctx, keys...)
}

// List returns the manifests of all conversations that have a CURRENT pointer.
func (s *IndexStore) List(ctx context.Context) ([]domain.IndexManifest, error) {
	keys, err := s.bucket.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list index objects: %w", err)
	}

	var manifests []domain.IndexManifest
	for _, key := range keys {
		dir, name := path.Split(key)
		if name != currentName || strings.Count(dir, "/") != 1 {
			continue
		}
		conversationID, err := decodeConversation(strings.TrimSuffix(dir, "/"))
		if err != nil {
			continue
		}
		m, err := s.Stat(ctx, conversationID)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, *m)
	}
	sort.Slice(manifests, func(i, j int) bool {
		return manifests[i].ConversationID < manifests[j].ConversationID
	})
	return manifests, nil
}

func (s *IndexStore) current(ctx context.Context, dir string) (string, error) {
	data, err := s.bucket.Get(ctx, path.Join(dir, currentName))
	if err != nil {
		return "", err
	}
	version := strings.TrimSpace(string(data))
	if version == "" {
		return "", fmt.Errorf("%w: empty current pointer", domain.ErrIndexCorrupt)
	}
	return version, nil
}

func (s *IndexStore) loadVersion(ctx context.Context, versionDir string) (*driven.IndexArtifact, error) {
	var parts artifact.Parts
	for _, p := range []struct {
		name string
		dst  *[]byte
	}{
		{artifact.ManifestName, &parts.Manifest},
		{artifact.ChunksName, &parts.Chunks},
		{artifact.VectorsName, &parts.Vectors},
	} {
		data, err := s.bucket.Get(ctx, path.Join(versionDir, p.name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p.name, err)
		}
		*p.dst = data
	}
	return artifact.Decode(&parts, s.factory)
}

// prune deletes every version other than current and previous.
func (s *IndexStore) prune(ctx context.Context, dir, current, previous string) error {
	keys, err := s.bucket.List(ctx, dir+"/")
	if err != nil {
		return err
	}
	var stale []string
	for _, key := range keys {
		rel := strings.TrimPrefix(key, dir+"/")
		version, _, nested := strings.Cut(rel, "/")
		if !nested || version == current || version == previous {
			continue
		}
		stale = append(stale, key)
	}
	if len(stale) == 0 {
		return nil
	}
	logger.Debug("Pruning %d objects of old index versions in %s", len(stale), dir)
	return s.bucket.Delete(ctx, stale...)
}

func conversationDir(conversationID string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(conversationID))
}

func decodeConversation(dir string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(dir)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
