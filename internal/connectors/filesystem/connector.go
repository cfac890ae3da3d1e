// Package filesystem maps the text files of a local directory to the
// documents of one conversation and watches the directory for changes.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driven"
	"github.com/custodia-labs/convorag/internal/logger"
)

// Ensure Connector implements the interface.
var _ driven.DocumentSource = (*Connector)(nil)

// MaxFileSize is the largest file read into a document.
const MaxFileSize = 4 << 20

// ErrClosed is returned by Watch after Close.
var ErrClosed = errors.New("filesystem connector closed")

// Connector exposes a directory tree as conversation documents.
type Connector struct {
	conversationID string
	rootPath       string

	normalisers driven.NormaliserRegistry

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	closed  bool
}

// Option configures a Connector.
type Option func(*Connector)

// WithNormalisers extracts document text through reg, which also decides
// which files are read. Without it only UTF-8 text files are read, as is.
func WithNormalisers(reg driven.NormaliserRegistry) Option {
	return func(c *Connector) {
		c.normalisers = reg
	}
}

// New creates a connector for the directory at rootPath.
func New(conversationID, rootPath string, opts ...Option) *Connector {
	c := &Connector{
		conversationID: conversationID,
		rootPath:       rootPath,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ConversationID returns the conversation the documents belong to.
func (c *Connector) ConversationID() string {
	return c.conversationID
}

// RootPath returns the watched directory.
func (c *Connector) RootPath() string {
	return c.rootPath
}

// DocumentID returns the stable document ID for a file. The same
// conversation and relative path always give the same ID.
func DocumentID(conversationID, relPath string) string {
	name := "convorag:" + conversationID + ":" + filepath.ToSlash(relPath)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

// Validate checks that the root path is an existing directory.
func (c *Connector) Validate() error {
	info, err := os.Stat(c.rootPath)
	if err != nil {
		return fmt.Errorf("root path error: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root path error: %s is not a directory", c.rootPath)
	}
	return nil
}

// Snapshot reads every visible text file under the root, ordered by path.
func (c *Connector) Snapshot(ctx context.Context) ([]domain.Document, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	var docs []domain.Document
	err := filepath.WalkDir(c.rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path == c.rootPath {
			return nil
		}
		if isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		doc, ok := c.readDocument(path)
		if ok {
			docs = append(docs, *doc)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", c.rootPath, err)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Title < docs[j].Title })
	return docs, nil
}

// Watch streams document changes until ctx is cancelled. New
// subdirectories are watched as they appear.
func (c *Connector) Watch(ctx context.Context) (<-chan domain.DocumentChange, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := c.addTree(watcher, c.rootPath); err != nil {
		watcher.Close()
		return nil, err
	}
	if c.watcher != nil {
		c.watcher.Close()
	}
	c.watcher = watcher

	changes := make(chan domain.DocumentChange, 64)
	go c.loop(ctx, watcher, changes)
	return changes, nil
}

func (c *Connector) loop(ctx context.Context, watcher *fsnotify.Watcher, changes chan<- domain.DocumentChange) {
	defer close(changes)
	defer watcher.Close()
	log := logger.Named("watcher").With(zap.String("conversation", c.conversationID))

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) && !isHidden(filepath.Base(event.Name)) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := c.addTree(watcher, event.Name); err != nil {
						log.Warn("watch new directory", zap.String("path", event.Name), zap.Error(err))
					}
					continue
				}
			}
			change := c.handleFsEvent(event)
			if change == nil {
				continue
			}
			select {
			case changes <- *change:
			case <-ctx.Done():
				return
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warn("watch error", zap.Error(err))
		}
	}
}

// addTree watches dir and every visible directory below it.
func (c *Connector) addTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != c.rootPath && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// handleFsEvent maps an fsnotify event to a document change, or nil when
// the event does not concern a visible text file.
func (c *Connector) handleFsEvent(event fsnotify.Event) *domain.DocumentChange {
	rel, err := filepath.Rel(c.rootPath, event.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return nil
	}
	if isHidden(rel) {
		return nil
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return &domain.DocumentChange{
			Type: domain.ChangeDeleted,
			URI:  event.Name,
			Document: domain.Document{
				ID:             DocumentID(c.conversationID, rel),
				ConversationID: c.conversationID,
				Title:          filepath.ToSlash(rel),
			},
		}
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		doc, ok := c.readDocument(event.Name)
		if !ok {
			return nil
		}
		changeType := domain.ChangeUpdated
		if event.Has(fsnotify.Create) {
			changeType = domain.ChangeCreated
		}
		return &domain.DocumentChange{Type: changeType, Document: *doc, URI: event.Name}
	default:
		return nil
	}
}

// readDocument loads a file as a document. Directories, large files and
// files of unsupported types are skipped.
func (c *Connector) readDocument(path string) (*domain.Document, bool) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() > MaxFileSize {
		return nil, false
	}
	mimeType := DetectMIMEType(path)
	if !c.supports(mimeType) {
		return nil, false
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	rel, err := filepath.Rel(c.rootPath, path)
	if err != nil {
		return nil, false
	}

	content, ok := c.extract(&domain.RawFile{Path: filepath.ToSlash(rel), MIMEType: mimeType, Content: raw})
	if !ok {
		return nil, false
	}
	return &domain.Document{
		ID:             DocumentID(c.conversationID, rel),
		ConversationID: c.conversationID,
		Title:          filepath.ToSlash(rel),
		Content:        content,
	}, true
}

func (c *Connector) supports(mimeType string) bool {
	if c.normalisers != nil {
		return c.normalisers.Supports(mimeType)
	}
	return isText(mimeType)
}

func (c *Connector) extract(raw *domain.RawFile) (string, bool) {
	if c.normalisers == nil {
		return string(raw.Content), utf8.Valid(raw.Content)
	}
	text, err := c.normalisers.Normalise(context.Background(), raw)
	if err != nil {
		logger.Debug("skip %s: %v", raw.Path, err)
		return "", false
	}
	return text.Content, true
}

// Close stops any active watch.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.watcher == nil {
		return nil
	}
	err := c.watcher.Close()
	c.watcher = nil
	return err
}

// isHidden reports whether any element of path starts with a dot.
// "." and ".." are not hidden.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "" || part == "." || part == ".." {
			continue
		}
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

// fallbackTypes covers extensions the mime package does not know on
// every platform.
var fallbackTypes = map[string]string{
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".go":       "text/x-go",
	".py":       "text/x-python",
	".rs":       "text/x-rust",
	".ts":       "text/typescript",
	".tsx":      "text/typescript-jsx",
	".jsx":      "text/javascript-jsx",
	".yaml":     "text/yaml",
	".yml":      "text/yaml",
	".toml":     "text/toml",
	".sh":       "text/x-shellscript",
	".bash":     "text/x-shellscript",
	".sql":      "text/x-sql",
	".txt":      "text/plain",
	".csv":      "text/csv",
	".html":     "text/html",
	".htm":      "text/html",
	".eml":      "message/rfc822",
	".docx":     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// DetectMIMEType guesses the content type from the file extension,
// without parameters such as charset.
func DetectMIMEType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return "text/plain"
	}
	if t, ok := fallbackTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if i := strings.IndexByte(t, ';'); i >= 0 {
			t = t[:i]
		}
		return strings.TrimSpace(t)
	}
	return "application/octet-stream"
}

func isText(mimeType string) bool {
	if strings.HasPrefix(mimeType, "text/") {
		return true
	}
	switch mimeType {
	case "application/json", "application/xml", "application/x-yaml", "application/toml":
		return true
	}
	return false
}
