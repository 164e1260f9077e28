package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*ConfigStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	return store, dir
}

func TestNewConfigStore_Success(t *testing.T) {
	store, dir := newTestStore(t)
	assert.Equal(t, filepath.Join(dir, FileName), store.Path())
}

func TestDefaultDir(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home directory")
	}

	dir, err := DefaultDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".docsync"), dir)
}

func TestNewConfigStore_CreatesNestedDirectory(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "a", "b")

	_, err := NewConfigStore(nested)
	require.NoError(t, err)

	info, err := os.Stat(nested)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}

func TestNewConfigStore_MkdirAllError(t *testing.T) {
	file := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0600))

	_, err := NewConfigStore(filepath.Join(file, "sub"))
	assert.Error(t, err)
}

func TestNewConfigStore_CorruptedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("[sync\nmax = "), 0600))

	_, err := NewConfigStore(dir)
	assert.Error(t, err)
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.Set("embedding.model", "nomic-embed-text"))
	require.NoError(t, store.Set("sync.max_retries", 5))
	require.NoError(t, store.Set("events.enabled", true))
	require.NoError(t, store.Set("events.brokers", []string{"a:9092", "b:9092"}))

	assert.Equal(t, "nomic-embed-text", store.GetString("embedding.model"))
	assert.Equal(t, 5, store.GetInt("sync.max_retries"))
	assert.True(t, store.GetBool("events.enabled"))
	assert.Equal(t, []string{"a:9092", "b:9092"}, store.GetStringSlice("events.brokers"))

	// Wrong types and missing keys return zero values.
	assert.Empty(t, store.GetString("sync.max_retries"))
	assert.Zero(t, store.GetInt("embedding.model"))
	assert.False(t, store.GetBool("missing"))
	assert.Nil(t, store.GetStringSlice("missing"))

	_, ok := store.Get("missing")
	assert.False(t, ok)
}

func TestConfigStore_GetInt_WholeFloat(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.Set("batch.concurrency", 10.0))
	require.NoError(t, store.Set("batch.fraction", 2.5))

	assert.Equal(t, 10, store.GetInt("batch.concurrency"))
	assert.Zero(t, store.GetInt("batch.fraction"))
}

func TestConfigStore_GetStringSlice_CommaSeparated(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Set("events.brokers", " a:9092, b:9092 ,,"))

	assert.Equal(t, []string{"a:9092", "b:9092"}, store.GetStringSlice("events.brokers"))
}

func TestConfigStore_WritesNestedTables(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.Set("sync.max_retries", 3))
	require.NoError(t, store.Set("embedding.provider", "ollama"))

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	content := string(raw)

	assert.Contains(t, content, "[sync]")
	assert.Contains(t, content, "[embedding]")
	assert.NotContains(t, content, `"sync.max_retries"`)
}

func TestConfigStore_ReadsHandWrittenFile(t *testing.T) {
	dir := t.TempDir()
	content := `
[sync]
max_retries = 7

[vector_index]
backend = "qdrant"
url = "localhost:6334"

[events]
enabled = true
brokers = ["k1:9092"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0600))

	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	assert.Equal(t, 7, store.GetInt("sync.max_retries"))
	assert.Equal(t, "qdrant", store.GetString("vector_index.backend"))
	assert.Equal(t, []string{"k1:9092"}, store.GetStringSlice("events.brokers"))
	assert.True(t, store.GetBool("events.enabled"))
}

func TestConfigStore_SaveReload_PreservesData(t *testing.T) {
	store, dir := newTestStore(t)

	require.NoError(t, store.Set("a.string", "value"))
	require.NoError(t, store.Set("a.int", int64(42)))
	require.NoError(t, store.Set("b.flag", true))
	require.NoError(t, store.Set("b.rate", 3.14159))

	reloaded, err := NewConfigStore(dir)
	require.NoError(t, err)

	assert.Equal(t, "value", reloaded.GetString("a.string"))
	assert.Equal(t, 42, reloaded.GetInt("a.int"))
	assert.True(t, reloaded.GetBool("b.flag"))
	rate, ok := reloaded.Get("b.rate")
	require.True(t, ok)
	assert.InDelta(t, 3.14159, rate, 0.00001)
}

func TestConfigStore_Set_InvalidKey(t *testing.T) {
	store, _ := newTestStore(t)

	assert.Error(t, store.Set("", 1))
	assert.Error(t, store.Set(".leading", 1))
	assert.Error(t, store.Set("trailing.", 1))
}

func TestConfigStore_Set_ConflictRollsBack(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.Set("sync", "scalar"))
	err := store.Set("sync.max_retries", 3)
	require.Error(t, err)

	_, ok := store.Get("sync.max_retries")
	assert.False(t, ok)
	assert.Equal(t, "scalar", store.GetString("sync"))
}

func TestConfigStore_Set_UnmarshallableValue(t *testing.T) {
	store, _ := newTestStore(t)

	err := store.Set("bad.value", make(chan int))
	assert.Error(t, err)

	_, ok := store.Get("bad.value")
	assert.False(t, ok)
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Set("k", "v"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	_, err = os.Stat(store.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestConfigStore_Load_MissingFileResets(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Set("k", "v"))
	require.NoError(t, os.Remove(store.Path()))

	require.NoError(t, store.Load())
	_, ok := store.Get("k")
	assert.False(t, ok)
}

func TestConfigStore_Load_CommentOnlyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("# nothing\n"), 0600))

	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Set("k", "v"))
	assert.Equal(t, "v", store.GetString("k"))
}

func TestConfigStore_Concurrency(t *testing.T) {
	store, _ := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_ = store.Set("batch.concurrency", n)
		}(i)
		go func() {
			defer wg.Done()
			_ = store.GetInt("batch.concurrency")
		}()
	}
	wg.Wait()

	_, ok := store.Get("batch.concurrency")
	assert.True(t, ok)
}

func TestUnflatten(t *testing.T) {
	nested, err := unflatten(map[string]any{"a.b.c": 1, "a.d": "x", "top": true})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"a":   map[string]any{"b": map[string]any{"c": 1}, "d": "x"},
		"top": true,
	}, nested)

	_, err = unflatten(map[string]any{"a": 1, "a.b": 2})
	assert.Error(t, err)
}

func TestFlattenMap(t *testing.T) {
	flat := flattenMap(map[string]any{
		"a": map[string]any{"b": map[string]any{"c": 1}},
		"d": "x",
	}, "")
	assert.Equal(t, map[string]any{"a.b.c": 1, "d": "x"}, flat)
}
