package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/helixml/tileqc/domain/analysis"
	"github.com/helixml/tileqc/domain/cache"
	"github.com/helixml/tileqc/domain/tile"
	"github.com/helixml/tileqc/infrastructure/metrics"
)

// TreeTag names the blob holding the tile tree of a cached result.
const TreeTag = "tile-tree"

// Cached is a result restored from the cache.
type Cached struct {
	Entry   cache.Entry
	Tree    *tile.Tree
	Modules []analysis.Module
}

// EvictionReport counts what one eviction removed.
type EvictionReport struct {
	Invalid    int
	Expired    int
	Oversize   int
	FreedBytes int64
}

// Blobs returns the number of blobs removed.
func (r EvictionReport) Blobs() int { return r.Invalid + r.Expired + r.Oversize }

// ResultCache stores finished analyses keyed by fingerprint, at most one
// result per fingerprint. One ResultCache serves a whole process; lookups
// may run concurrently, writes and evictions are serialised.
type ResultCache struct {
	index      cache.IndexStore
	blobs      cache.BlobStore
	maxSize    int64
	expiration time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
	basename   func() string

	mu      sync.RWMutex
	entries map[string]cache.Entry
	loaded  bool

	writeMu sync.Mutex
	group   singleflight.Group
}

// ResultCacheOption configures a ResultCache.
type ResultCacheOption func(*ResultCache)

// WithMaxSize caps the total size of cached blobs. Zero or less disables the cap.
func WithMaxSize(n int64) ResultCacheOption {
	return func(c *ResultCache) { c.maxSize = n }
}

// WithExpiration deletes blobs older than d. Zero or less disables expiry.
func WithExpiration(d time.Duration) ResultCacheOption {
	return func(c *ResultCache) { c.expiration = d }
}

// WithCacheLogger sets the logger.
func WithCacheLogger(l *slog.Logger) ResultCacheOption {
	return func(c *ResultCache) { c.logger = l }
}

// WithCacheMetrics sets the metrics.
func WithCacheMetrics(m *metrics.Metrics) ResultCacheOption {
	return func(c *ResultCache) { c.metrics = m }
}

// WithCacheClock sets the clock used for entry timestamps and expiry.
func WithCacheClock(now func() time.Time) ResultCacheOption {
	return func(c *ResultCache) { c.now = now }
}

// WithBasenames sets the generator of blob basenames.
func WithBasenames(next func() string) ResultCacheOption {
	return func(c *ResultCache) { c.basename = next }
}

// NewResultCache creates a cache over an index and a blob store.
func NewResultCache(index cache.IndexStore, blobs cache.BlobStore, opts ...ResultCacheOption) *ResultCache {
	c := &ResultCache{
		index:    index,
		blobs:    blobs,
		logger:   slog.Default(),
		metrics:  metrics.New(nil),
		now:      time.Now,
		basename: uuid.NewString,
		entries:  make(map[string]cache.Entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// load fills the in-memory index from the index store once.
func (c *ResultCache) load(ctx context.Context) error {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return nil
	}

	all, err := c.index.All(ctx)
	if err != nil {
		return fmt.Errorf("load cache index: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return nil
	}
	for _, e := range all {
		c.entries[e.Fingerprint.Key()] = e
	}
	c.loaded = true
	return nil
}

func (c *ResultCache) entry(fp cache.Fingerprint) (cache.Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[fp.Key()]
	return e, ok
}

func (c *ResultCache) forget(basenames ...string) {
	drop := make(map[string]struct{}, len(basenames))
	for _, b := range basenames {
		drop[b] = struct{}{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if _, ok := drop[e.Basename]; ok {
			delete(c.entries, key)
		}
	}
}

// Entries returns the live entries, oldest first.
func (c *ResultCache) Entries(ctx context.Context) ([]cache.Entry, error) {
	if err := c.load(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	out := make([]cache.Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	c.mu.RUnlock()
	slices.SortFunc(out, func(a, b cache.Entry) int {
		if r := a.CreatedAt.Compare(b.CreatedAt); r != 0 {
			return r
		}
		return cmp.Compare(a.Basename, b.Basename)
	})
	return out, nil
}

// decoded holds the blobs of one entry as read from disk.
type decoded struct {
	entry   cache.Entry
	tree    tile.TreeSnapshot
	modules map[analysis.Tag]analysis.Snapshot
}

// Lookup restores the result of fp for the modules tags name. It reports a
// miss when there is no entry, when the entry lacks one of the tags, or
// when any blob is missing or corrupt; in the last case the entry and its
// blobs are purged. Concurrent lookups of one fingerprint share the disk
// reads but restore independent modules.
func (c *ResultCache) Lookup(ctx context.Context, fp cache.Fingerprint, registry *analysis.Registry, settings analysis.Settings, tags []analysis.Tag) (Cached, bool) {
	if err := c.load(ctx); err != nil {
		c.logger.WarnContext(ctx, "result cache unavailable", slog.Any("error", err))
		c.metrics.CacheMisses.Inc()
		return Cached{}, false
	}
	entry, ok := c.entry(fp)
	if !ok || !hasTags(entry, tags) {
		c.metrics.CacheMisses.Inc()
		return Cached{}, false
	}

	v, err, _ := c.group.Do(fp.Key(), func() (any, error) {
		return c.read(ctx, entry)
	})
	if err != nil {
		c.purge(ctx, entry, err)
		c.metrics.CacheMisses.Inc()
		return Cached{}, false
	}
	d, ok := v.(decoded)
	if !ok {
		c.metrics.CacheMisses.Inc()
		return Cached{}, false
	}

	tree := tile.TreeFromSnapshot(d.tree)
	modules, err := registry.Build(settings, tags...)
	if err != nil {
		c.logger.WarnContext(ctx, "cannot build cached modules", slog.Any("error", err))
		c.metrics.CacheMisses.Inc()
		return Cached{}, false
	}
	for _, m := range modules {
		cm, ok := m.(analysis.Cacheable)
		if !ok {
			c.metrics.CacheMisses.Inc()
			return Cached{}, false
		}
		if err := cm.Restore(tree, d.modules[m.Tag()]); err != nil {
			c.purge(ctx, entry, fmt.Errorf("%w: restore %s: %w", cache.ErrCorrupt, m.Tag(), err))
			c.metrics.CacheMisses.Inc()
			return Cached{}, false
		}
	}

	c.metrics.CacheHits.Inc()
	c.logger.InfoContext(ctx, "result cache hit",
		slog.String("path", fp.Path),
		slog.String("basename", entry.Basename),
	)
	return Cached{Entry: entry, Tree: tree, Modules: modules}, true
}

func hasTags(e cache.Entry, tags []analysis.Tag) bool {
	for _, t := range tags {
		if !slices.Contains(e.Tags, string(t)) {
			return false
		}
	}
	return true
}

// read decodes every blob of an entry.
func (c *ResultCache) read(ctx context.Context, e cache.Entry) (decoded, error) {
	d := decoded{entry: e, modules: make(map[analysis.Tag]analysis.Snapshot, len(e.Tags))}
	for _, tag := range e.Tags {
		ok, err := c.blobs.Exists(ctx, e.Basename, tag)
		if err != nil {
			return decoded{}, err
		}
		if !ok {
			return decoded{}, fmt.Errorf("%w: blob %s missing", cache.ErrNotFound, tag)
		}
	}
	if err := c.blobs.Read(ctx, e.Basename, TreeTag, &d.tree); err != nil {
		return decoded{}, err
	}
	for _, tag := range e.Tags {
		var snap analysis.Snapshot
		if err := c.blobs.Read(ctx, e.Basename, tag, &snap); err != nil {
			return decoded{}, err
		}
		d.modules[analysis.Tag(tag)] = snap
	}
	return d, nil
}

// purge removes an entry whose blobs could not be used.
func (c *ResultCache) purge(ctx context.Context, e cache.Entry, cause error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.metrics.CacheCorruptions.Inc()
	c.logger.WarnContext(ctx, "discarding unusable cache entry",
		slog.String("basename", e.Basename),
		slog.Any("error", cause),
	)
	err := errors.Join(
		c.index.DeleteByBasename(ctx, e.Basename),
		c.blobs.DeleteAll(ctx, e.Basename),
	)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to purge cache entry", slog.String("basename", e.Basename), slog.Any("error", err))
	}
	c.forget(e.Basename)
}

// Store saves a finished result unless fp already has one. Failures are
// logged and reported as false; they never fail the analysis. A successful
// write is followed by an eviction, and Store reports whether the result
// survived it.
func (c *ResultCache) Store(ctx context.Context, fp cache.Fingerprint, tree *tile.Tree, modules []analysis.Module) bool {
	if err := c.load(ctx); err != nil {
		c.logger.WarnContext(ctx, "result cache unavailable", slog.Any("error", err))
		return false
	}

	stored, err := c.store(ctx, fp, tree, modules)
	if err != nil {
		c.logger.WarnContext(ctx, "result not cached", slog.String("path", fp.Path), slog.Any("error", err))
		return false
	}
	if !stored {
		return false
	}

	if _, err := c.Evict(ctx); err != nil {
		c.logger.WarnContext(ctx, "cache eviction failed", slog.Any("error", err))
	}
	_, live := c.entry(fp)
	return live
}

func (c *ResultCache) store(ctx context.Context, fp cache.Fingerprint, tree *tile.Tree, modules []analysis.Module) (bool, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, ok := c.entry(fp); ok {
		return false, nil
	}

	snaps := make([]analysis.Snapshot, 0, len(modules))
	tags := make([]string, 0, len(modules))
	for _, m := range modules {
		cm, ok := m.(analysis.Cacheable)
		if !ok {
			return false, fmt.Errorf("module %s cannot be cached", m.Tag())
		}
		snap, err := cm.Snapshot()
		if err != nil {
			return false, fmt.Errorf("snapshot %s: %w", m.Tag(), err)
		}
		snaps = append(snaps, snap)
		tags = append(tags, string(m.Tag()))
	}

	basename := c.basename()
	discard := func(cause error) (bool, error) {
		return false, errors.Join(cause, c.blobs.DeleteAll(ctx, basename))
	}

	if err := c.blobs.Write(ctx, basename, TreeTag, tree.Snapshot()); err != nil {
		return discard(err)
	}
	for i, snap := range snaps {
		if err := c.blobs.Write(ctx, basename, tags[i], snap); err != nil {
			return discard(err)
		}
	}

	entry := cache.NewEntry(fp, basename, tags, c.now())
	inserted, err := c.index.Insert(ctx, entry)
	if err != nil {
		return discard(err)
	}
	if !inserted {
		return discard(nil)
	}

	c.mu.Lock()
	c.entries[fp.Key()] = entry
	c.mu.Unlock()
	c.metrics.CacheWrites.Inc()
	c.logger.InfoContext(ctx, "result cached",
		slog.String("path", fp.Path),
		slog.String("basename", basename),
		slog.Int("blobs", len(tags)+1),
	)
	return true, nil
}

// Evict removes, in order: entries with missing blobs and blobs without an
// entry; blobs older than the expiration age; then the oldest blobs until
// the total size is within the cap. Removing any blob of a result removes
// the whole result.
func (c *ResultCache) Evict(ctx context.Context) (EvictionReport, error) {
	if err := c.load(ctx); err != nil {
		return EvictionReport{}, err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	var report EvictionReport
	infos, err := c.blobs.List(ctx)
	if err != nil {
		return report, fmt.Errorf("list blobs: %w", err)
	}
	groups := groupBlobs(infos)

	// Validity.
	c.mu.RLock()
	live := make(map[string]cache.Entry, len(c.entries))
	for _, e := range c.entries {
		live[e.Basename] = e
	}
	c.mu.RUnlock()

	var errs []error
	for basename, e := range live {
		if complete(e, groups[basename]) {
			continue
		}
		report.Invalid += len(groups[basename])
		report.FreedBytes += groups[basename].size()
		errs = append(errs, c.remove(ctx, basename, metrics.EvictInvalid, len(groups[basename])))
		delete(groups, basename)
	}
	for basename, g := range groups {
		if _, ok := live[basename]; ok {
			continue
		}
		report.Invalid += len(g)
		report.FreedBytes += g.size()
		errs = append(errs, c.remove(ctx, basename, metrics.EvictInvalid, len(g)))
		delete(groups, basename)
	}

	// Age.
	if c.expiration > 0 {
		cutoff := c.now().Add(-c.expiration)
		for basename, g := range groups {
			if !g.oldest().Before(cutoff) {
				continue
			}
			report.Expired += len(g)
			report.FreedBytes += g.size()
			errs = append(errs, c.remove(ctx, basename, metrics.EvictAge, len(g)))
			delete(groups, basename)
		}
	}

	// Size.
	if c.maxSize > 0 {
		var total int64
		ordered := make([]blobGroup, 0, len(groups))
		for _, g := range groups {
			total += g.size()
			ordered = append(ordered, g)
		}
		slices.SortFunc(ordered, func(a, b blobGroup) int {
			if r := a.oldest().Compare(b.oldest()); r != 0 {
				return r
			}
			return cmp.Compare(a[0].Basename, b[0].Basename)
		})
		for _, g := range ordered {
			if total <= c.maxSize {
				break
			}
			total -= g.size()
			report.Oversize += len(g)
			report.FreedBytes += g.size()
			errs = append(errs, c.remove(ctx, g[0].Basename, metrics.EvictSize, len(g)))
		}
	}

	if report.Blobs() > 0 {
		c.logger.InfoContext(ctx, "cache evicted",
			slog.Int("invalid", report.Invalid),
			slog.Int("expired", report.Expired),
			slog.Int("oversize", report.Oversize),
			slog.Int64("freed_bytes", report.FreedBytes),
		)
	}
	return report, errors.Join(errs...)
}

// remove deletes the entry and every blob of basename.
func (c *ResultCache) remove(ctx context.Context, basename, reason string, blobs int) error {
	err := errors.Join(
		c.index.DeleteByBasename(ctx, basename),
		c.blobs.DeleteAll(ctx, basename),
	)
	c.forget(basename)
	c.metrics.CacheEvictions.WithLabelValues(reason).Add(float64(blobs))
	return err
}

// blobGroup is every blob of one basename.
type blobGroup []cache.BlobInfo

func (g blobGroup) size() int64 {
	var n int64
	for _, b := range g {
		n += b.Size
	}
	return n
}

func (g blobGroup) oldest() time.Time {
	var t time.Time
	for i, b := range g {
		if i == 0 || b.Modified.Before(t) {
			t = b.Modified
		}
	}
	return t
}

func groupBlobs(infos []cache.BlobInfo) map[string]blobGroup {
	groups := make(map[string]blobGroup)
	for _, info := range infos {
		groups[info.Basename] = append(groups[info.Basename], info)
	}
	return groups
}

// complete reports whether g holds the tree blob and every module blob of e.
func complete(e cache.Entry, g blobGroup) bool {
	present := make(map[string]struct{}, len(g))
	for _, b := range g {
		present[b.Tag] = struct{}{}
	}
	if _, ok := present[TreeTag]; !ok {
		return false
	}
	for _, tag := range e.Tags {
		if _, ok := present[tag]; !ok {
			return false
		}
	}
	return true
}
