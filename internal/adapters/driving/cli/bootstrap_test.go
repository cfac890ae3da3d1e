package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/convorag/internal/core/domain"
)

func writeConfig(t *testing.T, home, content string) string {
	t.Helper()
	path := filepath.Join(home, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestHomeDir(t *testing.T) {
	t.Run("option wins", func(t *testing.T) {
		t.Setenv(HomeEnv, "/from/env")
		got, err := homeDir(Options{Home: "/explicit"})
		require.NoError(t, err)
		assert.Equal(t, "/explicit", got)
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv(HomeEnv, "/from/env")
		got, err := homeDir(Options{})
		require.NoError(t, err)
		assert.Equal(t, "/from/env", got)
	})

	t.Run("user home", func(t *testing.T) {
		t.Setenv(HomeEnv, "")
		t.Setenv("HOME", "/home/someone")
		got, err := homeDir(Options{})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("/home/someone", ".convorag"), got)
	})
}

func TestBootstrap_Defaults(t *testing.T) {
	home := t.TempDir()

	a, err := Bootstrap(context.Background(), Options{Home: home})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	require.NoError(t, a.EmbeddingErr)
	assert.NotNil(t, a.Documents)
	assert.NotNil(t, a.Indexes)
	assert.NotNil(t, a.Indexer)
	assert.NotNil(t, a.Retrieval)
	assert.NotNil(t, a.Ingest)
	assert.NotNil(t, a.Refresher)
	assert.NotNil(t, a.Scheduler)
	assert.Len(t, a.closers, 2)
	assert.FileExists(t, filepath.Join(home, "data", "convorag.db"))
	assert.DirExists(t, filepath.Join(home, "indexes"))
	assert.Equal(t, filepath.Join(home, "config.toml"), a.Config.Path())
}

func TestBootstrap_MemoryBackends(t *testing.T) {
	home := t.TempDir()
	path := writeConfig(t, home, `
[storage]
backend = "memory"

[documents]
driver = "memory"
`)

	a, err := Bootstrap(context.Background(), Options{Home: home, ConfigPath: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Len(t, a.closers, 1)
	assert.NoFileExists(t, filepath.Join(home, "data", "convorag.db"))

	doc, err := a.Documents.Add(context.Background(), "conv-1", "a", "alpha")
	require.NoError(t, err)
	got, err := a.Documents.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.Content)
}

func TestBootstrap_SharedSQLite(t *testing.T) {
	home := t.TempDir()
	db := filepath.Join(home, "shared.db")
	path := writeConfig(t, home, `
[storage]
backend = "sqlite"
path = "`+filepath.ToSlash(db)+`"

[documents]
driver = "sqlite"
dsn = "`+filepath.ToSlash(db)+`"
`)

	a, err := Bootstrap(context.Background(), Options{Home: home, ConfigPath: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Len(t, a.closers, 2)
	assert.FileExists(t, db)
}

func TestBootstrap_EmbeddingUnavailable(t *testing.T) {
	home := t.TempDir()
	path := writeConfig(t, home, `
[embedding]
provider = "openai"

[storage]
backend = "memory"

[documents]
driver = "memory"
`)

	a, err := Bootstrap(context.Background(), Options{Home: home, ConfigPath: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.ErrorIs(t, a.EmbeddingErr, domain.ErrEmbeddingUnavailable)
	assert.NotNil(t, a.Documents)
	assert.Nil(t, a.Indexer)
	assert.Nil(t, a.Retrieval)
	assert.Nil(t, a.Scheduler)
}

func TestBootstrap_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config string
	}{
		{"unknown backend", "[storage]\nbackend = \"floppy\"\n"},
		{"bad chunking", "[chunking]\nsize = 100\noverlap = 200\n"},
		{"postgres without dsn", "[documents]\ndriver = \"postgres\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home := t.TempDir()
			path := writeConfig(t, home, tt.config)

			_, err := Bootstrap(context.Background(), Options{Home: home, ConfigPath: path})

			assert.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}
}

func TestAppClose(t *testing.T) {
	var order []int
	a := &App{closers: []func() error{
		func() error { order = append(order, 1); return nil },
		func() error { order = append(order, 2); return assert.AnError },
	}}

	err := a.Close()

	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, []int{2, 1}, order)
	assert.NoError(t, a.Close())
}
