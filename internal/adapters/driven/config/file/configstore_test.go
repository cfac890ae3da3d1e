package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *ConfigStore {
	t.Helper()
	store, err := NewConfigStore(filepath.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)
	store.lookup = func(string) (string, bool) { return "", false }
	return store
}

func TestNewConfigStore_Path(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	store, err := NewConfigStore(path)

	require.NoError(t, err)
	assert.Equal(t, path, store.Path())
	assert.DirExists(t, filepath.Dir(path))
}

func TestNewConfigStore_DefaultPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	store, err := NewConfigStore("")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".convorag", "config.toml"), store.Path())
}

func TestNewConfigStore_MkdirError(t *testing.T) {
	store, err := NewConfigStore("/dev/null/cannot/config.toml")
	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestNewConfigStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("this is not valid TOML {{{[["), 0o600))

	store, err := NewConfigStore(path)

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set("s", "hello"))
	require.NoError(t, store.Set("i", 42))
	require.NoError(t, store.Set("f", 0.25))
	require.NoError(t, store.Set("b", true))
	require.NoError(t, store.Set("list", []string{"\n\n", "\n"}))

	assert.Equal(t, "hello", store.GetString("s"))
	assert.Equal(t, 42, store.GetInt("i"))
	assert.Equal(t, 0.25, store.GetFloat("f"))
	assert.Equal(t, 42.0, store.GetFloat("i"))
	assert.True(t, store.GetBool("b"))
	assert.Equal(t, []string{"\n\n", "\n"}, store.GetStringSlice("list"))

	// Wrong types and missing keys yield zero values.
	assert.Equal(t, "", store.GetString("i"))
	assert.Equal(t, 0, store.GetInt("s"))
	assert.Equal(t, 0.0, store.GetFloat("missing"))
	assert.False(t, store.GetBool("s"))
	assert.Nil(t, store.GetStringSlice("s"))
}

func TestConfigStore_Reload(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set("retrieval.top_k", 7))
	require.NoError(t, store.Set("retrieval.similarity_threshold", 0.4))
	require.NoError(t, store.Set("chunking.separators", []string{". ", " "}))
	require.NoError(t, store.Set("storage.s3.path_style", true))
	require.NoError(t, store.Set("embedding.provider", "ollama"))

	reloaded, err := NewConfigStore(store.Path())
	require.NoError(t, err)
	reloaded.lookup = store.lookup

	// TOML integers come back as int64 and arrays as []any.
	assert.Equal(t, 7, reloaded.GetInt("retrieval.top_k"))
	assert.Equal(t, 0.4, reloaded.GetFloat("retrieval.similarity_threshold"))
	assert.Equal(t, []string{". ", " "}, reloaded.GetStringSlice("chunking.separators"))
	assert.True(t, reloaded.GetBool("storage.s3.path_style"))
	assert.Equal(t, "ollama", reloaded.GetString("embedding.provider"))
}

func TestConfigStore_WritesTables(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set("retrieval.top_k", 3))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "[retrieval]")
	assert.Contains(t, string(data), "top_k = 3")

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestConfigStore_LoadNestedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "[embedding]\nprovider = \"openai\"\n\n[storage.s3]\nbucket = \"indexes\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	store, err := NewConfigStore(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", store.GetString("embedding.provider"))
	assert.Equal(t, "indexes", store.GetString("storage.s3.bucket"))
}

func TestConfigStore_EnvOverride(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set("embedding.api_key", "from-file"))
	require.NoError(t, store.Set("retrieval.top_k", 3))

	env := map[string]string{
		"CONVORAG_EMBEDDING_API_KEY":              "from-env",
		"CONVORAG_RETRIEVAL_TOP_K":                "9",
		"CONVORAG_RETRIEVAL_SIMILARITY_THRESHOLD": "0.75",
		"CONVORAG_STORAGE_S3_PATH_STYLE":          "true",
	}
	store.lookup = func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	assert.Equal(t, "from-env", store.GetString("embedding.api_key"))
	assert.Equal(t, 9, store.GetInt("retrieval.top_k"))
	assert.Equal(t, 0.75, store.GetFloat("retrieval.similarity_threshold"))
	assert.True(t, store.GetBool("storage.s3.path_style"))

	_, ok := store.Get("retrieval.context_window")
	assert.False(t, ok)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "CONVORAG_EMBEDDING_API_KEY", EnvKey("embedding.api_key"))
	assert.Equal(t, "CONVORAG_STORAGE_S3_PATH_STYLE", EnvKey("storage.s3.path-style"))
}

func TestConfigStore_ConflictingKeys(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set("storage.s3.bucket", "b"))

	err := store.Set("storage.s3", "flat")

	assert.Error(t, err)
	_, ok := store.Get("storage.s3")
	assert.False(t, ok, "failed Set must not leave the value behind")
	assert.Equal(t, "b", store.GetString("storage.s3.bucket"))
}

func TestConfigStore_SetUnmarshallable(t *testing.T) {
	store := newTestStore(t)
	assert.Error(t, store.Set("channel", make(chan int)))
}

func TestConfigStore_SaveWriteError(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set("test", "value"))

	require.NoError(t, os.Remove(store.Path()))
	require.NoError(t, os.Mkdir(store.Path(), 0o700))

	assert.Error(t, store.Set("another", "value"))
}

func TestConfigStore_LoadInvalidTOML(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set("valid", "data"))
	require.NoError(t, os.WriteFile(store.Path(), []byte("invalid toml ][}{"), 0o600))

	assert.Error(t, store.Load())
}

func TestConfigStore_LoadMissingFileResets(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set("k", "v"))
	require.NoError(t, os.Remove(store.Path()))

	require.NoError(t, store.Load())

	_, ok := store.Get("k")
	assert.False(t, ok)
}
