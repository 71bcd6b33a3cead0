package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFingerprint(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reads.fastq")
	content := []byte("@r\nA\n+\nI\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	mtime := time.UnixMilli(1700000000123)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	fp, err := NewFingerprint(path, 10, 20)
	require.NoError(t, err)
	assert.Equal(t, path, fp.Path)
	assert.Equal(t, int64(len(content)), fp.Size)
	assert.Equal(t, int64(1700000000123), fp.ModifiedMillis)

	other, err := NewFingerprint(path, 12, 20)
	require.NoError(t, err)
	assert.NotEqual(t, fp, other)
	assert.NotEqual(t, fp.Key(), other.Key())

	_, err = NewFingerprint(filepath.Join(dir, "missing"), 10, 20)
	assert.Error(t, err)
}

func TestEntry_Equal(t *testing.T) {
	fp := Fingerprint{Path: "/a", Size: 1, ModifiedMillis: 2, MatrixSize: 10, QualityThreshold: 20}
	now := time.Now()
	a := NewEntry(fp, "b1", []string{"tile-tree", "base-quality"}, now)
	b := NewEntry(fp, "b1", []string{"tile-tree", "base-quality"}, now)
	assert.True(t, a.Equal(b))

	b.Tags = b.Tags[:1]
	assert.False(t, a.Equal(b))
	assert.False(t, a.Equal(NewEntry(fp, "b2", a.Tags, now)))
}
