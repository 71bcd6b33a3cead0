package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/helixml/tileqc/domain/cache"
)

const suffix = ".blob"

// FileStore implements cache.BlobStore with one file per basename and tag,
// named <basename>.<tag>.blob.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory the store writes to.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(basename, tag string) string {
	return filepath.Join(s.dir, basename+"."+tag+suffix)
}

func validName(basename, tag string) error {
	if basename == "" || tag == "" {
		return errors.New("empty blob basename or tag")
	}
	if strings.ContainsAny(basename, "./\\") || strings.ContainsAny(tag, "./\\") {
		return fmt.Errorf("invalid blob name %q/%q", basename, tag)
	}
	return nil
}

// Write encodes v and stores it, replacing any previous blob atomically.
func (s *FileStore) Write(ctx context.Context, basename, tag string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validName(basename, tag); err != nil {
		return err
	}
	data, err := Encode(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", basename, tag, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp blob: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(basename, tag)); err != nil {
		return fmt.Errorf("rename blob: %w", err)
	}
	return nil
}

// Read decodes the blob of basename and tag into v.
func (s *FileStore) Read(ctx context.Context, basename, tag string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validName(basename, tag); err != nil {
		return err
	}
	data, err := os.ReadFile(s.path(basename, tag))
	if errors.Is(err, fs.ErrNotExist) {
		return cache.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read blob: %w", err)
	}
	if err := Decode(data, v); err != nil {
		return fmt.Errorf("%w: %s/%s: %w", cache.ErrCorrupt, basename, tag, err)
	}
	return nil
}

// Exists reports whether the blob is present.
func (s *FileStore) Exists(_ context.Context, basename, tag string) (bool, error) {
	if err := validName(basename, tag); err != nil {
		return false, err
	}
	_, err := os.Stat(s.path(basename, tag))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat blob: %w", err)
	}
	return true, nil
}

// List describes every blob in the store. Other files are ignored.
func (s *FileStore) List(ctx context.Context) ([]cache.BlobInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}
	infos := make([]cache.BlobInfo, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, suffix) {
			continue
		}
		basename, tag, ok := strings.Cut(strings.TrimSuffix(name, suffix), ".")
		if !ok || basename == "" || tag == "" {
			continue
		}
		fi, err := e.Info()
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("stat blob %s: %w", name, err)
		}
		infos = append(infos, cache.BlobInfo{
			Basename: basename,
			Tag:      tag,
			Size:     fi.Size(),
			Modified: fi.ModTime(),
		})
	}
	return infos, nil
}

// Delete removes one blob. A missing blob is not an error.
func (s *FileStore) Delete(_ context.Context, basename, tag string) error {
	if err := validName(basename, tag); err != nil {
		return err
	}
	if err := os.Remove(s.path(basename, tag)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// DeleteAll removes every blob of basename.
func (s *FileStore) DeleteAll(ctx context.Context, basename string) error {
	infos, err := s.List(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, info := range infos {
		if info.Basename != basename {
			continue
		}
		if err := s.Delete(ctx, info.Basename, info.Tag); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
