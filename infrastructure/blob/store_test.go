package blob

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/tileqc/domain/cache"
)

type payload struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

func TestCodec_RoundTripKeepsFloatPrecision(t *testing.T) {
	in := payload{Name: "tile", Values: []float64{1.0 / 3.0, math.Pi, 0.1 + 0.2, 1e-12}}

	data, err := Encode(in)
	require.NoError(t, err)

	var out payload
	require.NoError(t, Decode(data, &out))
	assert.Equal(t, in, out)
}

func TestCodec_DecodeGarbage(t *testing.T) {
	var out payload
	assert.Error(t, Decode([]byte("not zstd at all"), &out))
}

func TestFileStore_WriteRead(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "abc", "base-quality", payload{Name: "x", Values: []float64{0.5}}))

	ok, err := store.Exists(ctx, "abc", "base-quality")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.FileExists(t, filepath.Join(store.Dir(), "abc.base-quality.blob"))

	var out payload
	require.NoError(t, store.Read(ctx, "abc", "base-quality", &out))
	assert.Equal(t, "x", out.Name)
}

func TestFileStore_ReadMissingAndCorrupt(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	var out payload
	assert.ErrorIs(t, store.Read(ctx, "abc", "tile-tree", &out), cache.ErrNotFound)

	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "abc.tile-tree.blob"), []byte("junk"), 0o600))
	assert.ErrorIs(t, store.Read(ctx, "abc", "tile-tree", &out), cache.ErrCorrupt)
}

func TestFileStore_RejectsBadNames(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, tt := range []struct{ basename, tag string }{{"", "t"}, {"b", ""}, {"../b", "t"}, {"b", "x.y"}} {
		assert.Error(t, store.Write(ctx, tt.basename, tt.tag, payload{}), "%q/%q", tt.basename, tt.tag)
	}
}

func TestFileStore_ListAndDelete(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "one", "tile-tree", payload{}))
	require.NoError(t, store.Write(ctx, "one", "n-content", payload{}))
	require.NoError(t, store.Write(ctx, "two", "tile-tree", payload{}))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "index.db"), []byte("db"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), ".tmp-123"), []byte("tmp"), 0o600))

	infos, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, infos, 3)
	for _, info := range infos {
		assert.Positive(t, info.Size)
	}

	require.NoError(t, store.DeleteAll(ctx, "one"))
	require.NoError(t, store.Delete(ctx, "two", "missing"))

	infos, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, cache.BlobInfo{Basename: "two", Tag: "tile-tree", Size: infos[0].Size, Modified: infos[0].Modified}, infos[0])
}

func TestFileStore_CanceledContext(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, store.Write(ctx, "b", "t", payload{}), context.Canceled)
}
