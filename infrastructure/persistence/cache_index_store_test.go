package persistence

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/tileqc/domain/cache"
	"github.com/helixml/tileqc/internal/database"
)

func newTestStore(t *testing.T) CacheIndexStore {
	t.Helper()
	ctx := context.Background()
	db, err := database.NewDatabase(ctx, "sqlite:///:memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, AutoMigrate(ctx, db))
	return NewCacheIndexStore(db)
}

func testFingerprint(path string) cache.Fingerprint {
	return cache.Fingerprint{Path: path, Size: 1024, ModifiedMillis: 1700000000000, MatrixSize: 10, QualityThreshold: 20}
}

func TestCacheIndexStore_InsertGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := cache.NewEntry(testFingerprint("/data/a.fq"), "b-1", []string{"base-quality", "n-content"}, created)

	inserted, err := store.Insert(ctx, entry)
	require.NoError(t, err)
	assert.True(t, inserted)

	got, err := store.Get(ctx, entry.Fingerprint)
	require.NoError(t, err)
	assert.True(t, entry.Equal(got), "got %+v", got)
}

func TestCacheIndexStore_InsertIsWriteIfAbsent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	fp := testFingerprint("/data/a.fq")

	first, err := store.Insert(ctx, cache.NewEntry(fp, "first", nil, time.Now()))
	require.NoError(t, err)
	second, err := store.Insert(ctx, cache.NewEntry(fp, "second", nil, time.Now()))
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
	got, err := store.Get(ctx, fp)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Basename)
}

func TestCacheIndexStore_FingerprintFieldsDistinguishEntries(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	fp := testFingerprint("/data/a.fq")
	other := fp
	other.MatrixSize = 20

	_, err := store.Insert(ctx, cache.NewEntry(fp, "n10", nil, time.Now()))
	require.NoError(t, err)

	_, err = store.Get(ctx, other)
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestCacheIndexStore_AllIsOldestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := store.Insert(ctx, cache.NewEntry(testFingerprint("/b"), "newer", nil, base.Add(time.Hour)))
	require.NoError(t, err)
	_, err = store.Insert(ctx, cache.NewEntry(testFingerprint("/a"), "older", nil, base))
	require.NoError(t, err)

	all, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "older", all[0].Basename)
	assert.Equal(t, "newer", all[1].Basename)
}

func TestCacheIndexStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for _, name := range []string{"x", "y", "z"} {
		_, err := store.Insert(ctx, cache.NewEntry(testFingerprint("/"+name), name, nil, time.Now()))
		require.NoError(t, err)
	}

	require.NoError(t, store.Delete(ctx, testFingerprint("/x")))
	require.NoError(t, store.Delete(ctx, testFingerprint("/missing")))
	require.NoError(t, store.DeleteByBasename(ctx, "y", "nope"))
	require.NoError(t, store.DeleteByBasename(ctx))

	all, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "z", all[0].Basename)
}

func TestCacheIndexStore_DeleteByBasenameBatches(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	names := make([]string, 0, 2*deleteBatch+1)
	for i := range cap(names) {
		name := fmt.Sprintf("b%04d", i)
		names = append(names, name)
		_, err := store.Insert(ctx, cache.NewEntry(testFingerprint("/"+name), name, nil, time.Now()))
		require.NoError(t, err)
	}
	_, err := store.Insert(ctx, cache.NewEntry(testFingerprint("/keep"), "keep", nil, time.Now()))
	require.NoError(t, err)

	require.NoError(t, store.DeleteByBasename(ctx, names...))

	all, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "keep", all[0].Basename)
}

func TestCacheEntryMapper_RoundTrip(t *testing.T) {
	entry := cache.NewEntry(testFingerprint("/a"), "b", []string{"read-quality"}, time.Unix(10, 0).UTC())
	model := CacheEntryMapper{}.ToModel(entry)

	assert.Equal(t, entry.Fingerprint.Key(), model.FingerprintKey)
	got, err := CacheEntryMapper{}.ToDomain(model)
	require.NoError(t, err)
	assert.True(t, entry.Equal(got))

	model.Tags = []byte("{broken")
	_, err = CacheEntryMapper{}.ToDomain(model)
	assert.Error(t, err)
}
