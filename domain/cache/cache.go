// Package cache defines the result cache entities and the storage ports
// the cache service is built on.
package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrNotFound indicates no cache entry exists for a fingerprint.
var ErrNotFound = errors.New("cache entry not found")

// ErrCorrupt indicates a stored blob could not be decoded.
var ErrCorrupt = errors.New("cache blob corrupt")

// Fingerprint identifies a reusable analysis result.
type Fingerprint struct {
	Path             string `json:"path"`
	Size             int64  `json:"size"`
	ModifiedMillis   int64  `json:"modified_millis"`
	MatrixSize       int    `json:"matrix_size"`
	QualityThreshold int    `json:"quality_threshold"`
}

// NewFingerprint stats path and builds its fingerprint.
func NewFingerprint(path string, matrixSize, qualityThreshold int) (Fingerprint, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("stat %s: %w", abs, err)
	}
	return Fingerprint{
		Path:             abs,
		Size:             info.Size(),
		ModifiedMillis:   info.ModTime().UnixMilli(),
		MatrixSize:       matrixSize,
		QualityThreshold: qualityThreshold,
	}, nil
}

// Key returns a stable string form usable as a unique index value.
func (f Fingerprint) Key() string {
	return fmt.Sprintf("%s|%d|%d|%d|%d", f.Path, f.Size, f.ModifiedMillis, f.MatrixSize, f.QualityThreshold)
}

// Entry maps a fingerprint to the basename of its blobs.
type Entry struct {
	Fingerprint Fingerprint `json:"fingerprint"`
	Basename    string      `json:"basename"`
	Tags        []string    `json:"tags"`
	CreatedAt   time.Time   `json:"created_at"`
}

// NewEntry creates an Entry.
func NewEntry(fp Fingerprint, basename string, tags []string, createdAt time.Time) Entry {
	return Entry{Fingerprint: fp, Basename: basename, Tags: append([]string(nil), tags...), CreatedAt: createdAt}
}

// Equal reports whether two entries are the same.
func (e Entry) Equal(other Entry) bool {
	if e.Fingerprint != other.Fingerprint || e.Basename != other.Basename || !e.CreatedAt.Equal(other.CreatedAt) {
		return false
	}
	if len(e.Tags) != len(other.Tags) {
		return false
	}
	for i := range e.Tags {
		if e.Tags[i] != other.Tags[i] {
			return false
		}
	}
	return true
}

// IndexStore persists cache entries, at most one per fingerprint.
type IndexStore interface {
	All(ctx context.Context) ([]Entry, error)
	Get(ctx context.Context, fp Fingerprint) (Entry, error)
	// Insert adds an entry. It returns false without error if the
	// fingerprint already has one.
	Insert(ctx context.Context, e Entry) (bool, error)
	Delete(ctx context.Context, fp Fingerprint) error
	DeleteByBasename(ctx context.Context, basenames ...string) error
}

// BlobInfo describes one stored blob.
type BlobInfo struct {
	Basename string
	Tag      string
	Size     int64
	Modified time.Time
}

// BlobStore stores encoded results, one blob per basename and tag.
// Read returns ErrNotFound for a missing blob and wraps ErrCorrupt for one
// that does not decode.
type BlobStore interface {
	Write(ctx context.Context, basename, tag string, v any) error
	Read(ctx context.Context, basename, tag string, v any) error
	Exists(ctx context.Context, basename, tag string) (bool, error)
	List(ctx context.Context) ([]BlobInfo, error)
	Delete(ctx context.Context, basename, tag string) error
	DeleteAll(ctx context.Context, basename string) error
}
