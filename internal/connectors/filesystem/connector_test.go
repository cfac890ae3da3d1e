package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/normalisers"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNew(t *testing.T) {
	c := New("conv-1", "/tmp/notes")

	assert.Equal(t, "conv-1", c.ConversationID())
	assert.Equal(t, "/tmp/notes", c.RootPath())
}

func TestDocumentID(t *testing.T) {
	a := DocumentID("conv-1", "notes/a.md")

	assert.Equal(t, a, DocumentID("conv-1", "notes/a.md"))
	assert.NotEqual(t, a, DocumentID("conv-2", "notes/a.md"))
	assert.NotEqual(t, a, DocumentID("conv-1", "notes/b.md"))
	assert.Len(t, a, 36)
}

func TestConnector_Validate(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	writeFile(t, file, "x")

	assert.NoError(t, New("c", dir).Validate())

	err := New("c", file).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")

	err = New("c", filepath.Join(dir, "missing")).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "root path error")
}

func TestConnector_Snapshot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.md"), "# B")
	writeFile(t, filepath.Join(dir, "a.txt"), "alpha")
	writeFile(t, filepath.Join(dir, "sub", "c.go"), "package c")
	writeFile(t, filepath.Join(dir, ".hidden.txt"), "secret")
	writeFile(t, filepath.Join(dir, ".git", "config"), "[core]")
	writeFile(t, filepath.Join(dir, "image.png"), "\x89PNG")
	writeFile(t, filepath.Join(dir, "bad.txt"), "\xff\xfe\xfd")

	docs, err := New("conv-1", dir).Snapshot(context.Background())

	require.NoError(t, err)
	titles := make([]string, len(docs))
	for i, d := range docs {
		titles[i] = d.Title
		assert.Equal(t, "conv-1", d.ConversationID)
		assert.Equal(t, DocumentID("conv-1", d.Title), d.ID)
	}
	assert.Equal(t, []string{"a.txt", "b.md", "sub/c.go"}, titles)
	assert.Equal(t, "alpha", docs[0].Content)
}

func TestConnector_Snapshot_WithNormalisers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.md"), "# Notes\n\nSome **bold** text.")
	writeFile(t, filepath.Join(dir, "b.html"), "<html><head><title>T</title></head><body><p>Hello</p></body></html>")
	writeFile(t, filepath.Join(dir, "c.eml"), "Subject: Hi\r\n\r\nMail body\r\n")
	writeFile(t, filepath.Join(dir, "d.txt"), "plain")
	writeFile(t, filepath.Join(dir, "e.txt"), "\xff\xfe\xfd")
	writeFile(t, filepath.Join(dir, "f.pdf"), "%PDF-1.4")

	c := New("conv-1", dir, WithNormalisers(normalisers.NewDefaultRegistry()))
	docs, err := c.Snapshot(context.Background())

	require.NoError(t, err)
	require.Len(t, docs, 4)
	assert.Equal(t, "a.md", docs[0].Title)
	assert.Equal(t, "Notes\n\nSome bold text.", docs[0].Content)
	assert.Equal(t, "Hello", docs[1].Content)
	assert.Equal(t, "Subject: Hi\n\nMail body", docs[2].Content)
	assert.Equal(t, "plain", docs[3].Content)
}

func TestConnector_Snapshot_SkipsLargeFiles(t *testing.T) {
	dir := t.TempDir()
	f, err := os.Create(filepath.Join(dir, "big.txt"))
	require.NoError(t, err)
	require.NoError(t, f.Truncate(MaxFileSize+1))
	require.NoError(t, f.Close())

	docs, err := New("c", dir).Snapshot(context.Background())

	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestConnector_Snapshot_Cancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "alpha")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New("c", dir).Snapshot(ctx)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestConnector_Watch(t *testing.T) {
	wait := func(t *testing.T, ch <-chan domain.DocumentChange, want domain.ChangeType) domain.DocumentChange {
		t.Helper()
		deadline := time.After(2 * time.Second)
		for {
			select {
			case change, ok := <-ch:
				require.True(t, ok, "channel closed")
				if change.Type == want {
					return change
				}
			case <-deadline:
				t.Fatalf("timeout waiting for %s event", want)
			}
		}
	}

	t.Run("create, modify and delete", func(t *testing.T) {
		dir := t.TempDir()
		c := New("conv-1", dir)
		defer c.Close()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		changes, err := c.Watch(ctx)
		require.NoError(t, err)

		file := filepath.Join(dir, "note.md")
		writeFile(t, file, "first")
		created := wait(t, changes, domain.ChangeCreated)
		assert.Equal(t, file, created.URI)
		assert.Equal(t, DocumentID("conv-1", "note.md"), created.Document.ID)

		writeFile(t, file, "second")
		updated := wait(t, changes, domain.ChangeUpdated)
		assert.Equal(t, "note.md", updated.Document.Title)

		require.NoError(t, os.Remove(file))
		deleted := wait(t, changes, domain.ChangeDeleted)
		assert.Equal(t, DocumentID("conv-1", "note.md"), deleted.Document.ID)
	})

	t.Run("new subdirectories are watched", func(t *testing.T) {
		dir := t.TempDir()
		c := New("conv-1", dir)
		defer c.Close()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		changes, err := c.Watch(ctx)
		require.NoError(t, err)

		sub := filepath.Join(dir, "sub")
		require.NoError(t, os.Mkdir(sub, 0o755))
		// Give the loop time to add the new directory.
		time.Sleep(100 * time.Millisecond)
		writeFile(t, filepath.Join(sub, "deep.txt"), "deep")

		change := wait(t, changes, domain.ChangeCreated)
		assert.Equal(t, "sub/deep.txt", change.Document.Title)
	})

	t.Run("missing directory", func(t *testing.T) {
		changes, err := New("c", "/non/existent/path").Watch(context.Background())

		assert.Nil(t, changes)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "root path error")
	})

	t.Run("closes channel on cancel", func(t *testing.T) {
		c := New("c", t.TempDir())
		defer c.Close()
		ctx, cancel := context.WithCancel(context.Background())

		changes, err := c.Watch(ctx)
		require.NoError(t, err)
		cancel()

		select {
		case _, ok := <-changes:
			assert.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("channel did not close after cancellation")
		}
	})

	t.Run("fails after close", func(t *testing.T) {
		c := New("c", t.TempDir())
		require.NoError(t, c.Close())

		changes, err := c.Watch(context.Background())

		assert.Nil(t, changes)
		assert.ErrorIs(t, err, ErrClosed)
	})
}

func TestHandleFsEvent(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		content  *string
		dir      bool
		op       fsnotify.Op
		want     bool
		wantType domain.ChangeType
	}{
		{name: "create", file: "a.txt", content: ptr("a"), op: fsnotify.Create, want: true, wantType: domain.ChangeCreated},
		{name: "write", file: "a.txt", content: ptr("a"), op: fsnotify.Write, want: true, wantType: domain.ChangeUpdated},
		{name: "write and chmod", file: "a.txt", content: ptr("a"), op: fsnotify.Write | fsnotify.Chmod, want: true, wantType: domain.ChangeUpdated},
		{name: "remove", file: "gone.txt", op: fsnotify.Remove, want: true, wantType: domain.ChangeDeleted},
		{name: "rename", file: "old.txt", op: fsnotify.Rename, want: true, wantType: domain.ChangeDeleted},
		{name: "chmod only", file: "a.txt", content: ptr("a"), op: fsnotify.Chmod},
		{name: "directory", file: "sub", dir: true, op: fsnotify.Create},
		{name: "hidden file", file: ".secret.txt", content: ptr("s"), op: fsnotify.Create},
		{name: "hidden remove", file: ".secret.txt", op: fsnotify.Remove},
		{name: "inside hidden dir", file: ".git/HEAD", content: ptr("ref"), op: fsnotify.Write},
		{name: "binary", file: "a.png", content: ptr("\x89PNG"), op: fsnotify.Create},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, tt.file)
			switch {
			case tt.dir:
				require.NoError(t, os.Mkdir(path, 0o755))
			case tt.content != nil:
				writeFile(t, path, *tt.content)
			}

			change := New("conv-1", dir).handleFsEvent(fsnotify.Event{Name: path, Op: tt.op})

			if !tt.want {
				assert.Nil(t, change)
				return
			}
			require.NotNil(t, change)
			assert.Equal(t, tt.wantType, change.Type)
			assert.Equal(t, path, change.URI)
			assert.Equal(t, "conv-1", change.Document.ConversationID)
			assert.Equal(t, DocumentID("conv-1", tt.file), change.Document.ID)
			if tt.content != nil {
				assert.Equal(t, *tt.content, change.Document.Content)
			}
		})
	}

	t.Run("outside root", func(t *testing.T) {
		c := New("c", t.TempDir())
		assert.Nil(t, c.handleFsEvent(fsnotify.Event{Name: "/etc/hosts", Op: fsnotify.Write}))
	})
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"file", "text/plain"},
		{"doc.md", "text/markdown"},
		{"FILE.MD", "text/markdown"},
		{"code.go", "text/x-go"},
		{"script.py", "text/x-python"},
		{"File.Yaml", "text/yaml"},
		{"config.toml", "text/toml"},
		{"query.sql", "text/x-sql"},
		{"data.json", "application/json"},
		{"doc.pdf", "application/pdf"},
		{"page.htm", "text/html"},
		{"mail.eml", "message/rfc822"},
		{"report.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		{"image.png", "image/png"},
		{"file.zzzzunknown", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectMIMEType(tt.filename))
		})
	}

	t.Run("strips parameters", func(t *testing.T) {
		for _, f := range []string{"page.html", "style.css"} {
			assert.NotContains(t, DetectMIMEType(f), ";")
		}
	})
}

func TestIsHidden(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{".hidden", true},
		{"path/to/.hidden", true},
		{"dir/.git/config", true},
		{".config/.cache/data", true},
		{"file.txt", false},
		{"path/to/file.txt", false},
		{"file.hidden", false},
		{".", false},
		{"..", false},
		{"path/../file", false},
		{"", false},
		{"/", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, isHidden(tt.path))
		})
	}
}

func ptr(s string) *string { return &s }
