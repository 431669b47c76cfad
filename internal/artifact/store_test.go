package artifact

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"segweaver/internal/core"
	"segweaver/internal/table"
)

func testFrame(t *testing.T) *table.Frame {
	t.Helper()
	f, err := table.New(
		table.NumericColumn("col1", []float64{1.5, -0.25, 3.0 / 7.0}),
		table.NumericColumn("col2", []float64{0, 1e-9, 42}),
		table.CategoricalColumn("segment", []string{"a", "b", "c"}),
	)
	require.NoError(t, err)
	return f.WithMeta("k_best", "3")
}

const testKey = core.Fingerprint("0f1e2d3c4b5a69788796a5b4c3d2e1f00f1e2d3c4b5a69788796a5b4c3d2e1f0")

// runStoreContract exercises the behaviour every Store must share.
func runStoreContract(t *testing.T, s Store) {
	ctx := context.Background()

	ok, err := s.Has(ctx, testKey)
	require.NoError(t, err)
	assert.False(t, ok, "key should not exist initially")

	miss, err := s.Get(ctx, testKey)
	require.NoError(t, err)
	assert.Nil(t, miss)

	frame := testFrame(t)
	require.NoError(t, s.Put(ctx, &Entry{Key: testKey, Node: "reduce_dimension", Frame: frame}))

	ok, err = s.Has(ctx, testKey)
	require.NoError(t, err)
	assert.True(t, ok, "key should exist after Put")

	got, err := s.Get(ctx, testKey)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "reduce_dimension", got.Node)
	assert.True(t, table.Equal(frame, got.Frame), "payload did not round-trip")

	// Replacement, never in-place mutation.
	replacement, err := frame.WithColumn(table.NumericColumn("col2", []float64{7, 8, 9}))
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, &Entry{Key: testKey, Node: "reduce_dimension", Frame: replacement}))

	got, err = s.Get(ctx, testKey)
	require.NoError(t, err)
	assert.True(t, table.Equal(replacement, got.Frame))

	assert.Error(t, s.Put(ctx, nil))
	assert.Error(t, s.Put(ctx, &Entry{Key: testKey}))
}

func TestMemoryStore_Contract(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	frame := testFrame(t)
	require.NoError(t, s.Put(ctx, &Entry{Key: testKey, Frame: frame}))

	frame.Columns[0].Nums[0] = 999

	got, err := s.Get(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, 1.5, got.Frame.Columns[0].Nums[0])

	got.Frame.Columns[0].Nums[0] = 123
	again, err := s.Get(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, 1.5, again.Frame.Columns[0].Nums[0])
	assert.Equal(t, []core.Fingerprint{testKey}, s.Keys())
}

func TestFileStore_Contract(t *testing.T) {
	runStoreContract(t, NewFileStore(t.TempDir()))
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	frame := testFrame(t)

	require.NoError(t, NewFileStore(dir).Put(ctx, &Entry{Key: testKey, Node: "n", Frame: frame}))

	got, err := NewFileStore(dir).Get(ctx, testKey)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, table.Equal(frame, got.Frame))
}

func TestFileStore_LeavesNoTempDirectories(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewFileStore(dir)
	require.NoError(t, s.Put(ctx, &Entry{Key: testKey, Frame: testFrame(t)}))

	entries, err := os.ReadDir(filepath.Join(dir, string(testKey[:2])))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, string(testKey), entries[0].Name())
}

func TestFileStore_TruncatedPayloadIsCorrupt(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewFileStore(dir)
	require.NoError(t, s.Put(ctx, &Entry{Key: testKey, Frame: testFrame(t)}))

	payload := filepath.Join(s.entryPath(testKey), "frame.json")
	b, err := os.ReadFile(payload)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(payload, b[:len(b)/2], 0o644))

	_, err = s.Get(ctx, testKey)
	assert.ErrorIs(t, err, core.ErrCacheCorrupt)
}

func TestFileStore_WrongShapeIsCorrupt(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewFileStore(dir)
	require.NoError(t, s.Put(ctx, &Entry{Key: testKey, Frame: testFrame(t)}))

	// Ragged payload with a matching digest: decodes as JSON but not as a Frame.
	bad := []byte(`{"columns":[{"name":"a","kind":"numeric","nums":[1,2]},{"name":"b","kind":"numeric","nums":[1]}]}`)
	entryDir := s.entryPath(testKey)
	require.NoError(t, os.WriteFile(filepath.Join(entryDir, "frame.json"), bad, 0o644))
	meta := `{"key":"` + string(testKey) + `","node":"n","digest":"` + core.Digest(bad) + `"}`
	require.NoError(t, os.WriteFile(filepath.Join(entryDir, "metadata.json"), []byte(meta), 0o644))

	_, err := s.Get(ctx, testKey)
	assert.ErrorIs(t, err, core.ErrCacheCorrupt)
}
