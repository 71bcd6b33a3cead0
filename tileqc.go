// Package tileqc analyses the quality of sequencing reads by their position
// on the flow cell, locates low quality regions and optionally masks them
// out of the data.
//
// Basic usage:
//
//	client, err := tileqc.New(
//	    tileqc.WithMatrixSize(10),
//	    tileqc.WithCacheDir(".tileqc/cache"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	result, err := client.Analyze(ctx, "run1.fastq.gz")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	mod, _ := result.Module(analysis.TagBaseQuality)
//
// Masking runs when a clear method is configured:
//
//	result, err := client.Analyze(ctx, "run1.fastq.gz",
//	    tileqc.WithMasking(selection.ClearChange, selection.MethodAuto),
//	)
package tileqc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/helixml/tileqc/application/service"
	"github.com/helixml/tileqc/domain/analysis"
	"github.com/helixml/tileqc/domain/cache"
	"github.com/helixml/tileqc/domain/read"
	"github.com/helixml/tileqc/domain/selection"
	"github.com/helixml/tileqc/infrastructure/blob"
	"github.com/helixml/tileqc/infrastructure/fastq"
	"github.com/helixml/tileqc/infrastructure/metrics"
	"github.com/helixml/tileqc/infrastructure/persistence"
	"github.com/helixml/tileqc/infrastructure/tracking"
	"github.com/helixml/tileqc/internal/config"
	"github.com/helixml/tileqc/internal/database"
)

// blobSubdir is the directory under the cache directory holding result blobs.
const blobSubdir = "blobs"

// Client is the main entry point for the tileqc library. One Client owns
// the result cache of a cache directory; analyses on one Client may run
// concurrently.
type Client struct {
	config   config.AppConfig
	db       *database.Database
	cache    *service.ResultCache
	pipeline *service.Pipeline
	metrics  *metrics.Metrics
	logger   *slog.Logger
	closed   atomic.Bool
	mu       sync.Mutex
}

// New creates a new Client with the given options.
func New(opts ...Option) (*Client, error) {
	cfg := newClientConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.app.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	m := metrics.New(cfg.registerer)

	client := &Client{
		config:  cfg.app,
		metrics: m,
		logger:  logger,
	}

	if cfg.app.UseCache() {
		if err := client.openCache(cfg, logger); err != nil {
			return nil, err
		}
	}

	pipelineOpts := []service.PipelineOption{
		service.WithRegistry(cfg.registry),
		service.WithLogger(logger),
		service.WithMetrics(m),
		service.WithClock(cfg.clock),
		service.WithReporters(tracking.NewLoggingReporter(logger)),
		service.WithReporters(cfg.reporters...),
	}
	if client.cache != nil {
		pipelineOpts = append(pipelineOpts, service.WithResultCache(client.cache))
	}
	client.pipeline = service.NewPipeline(pipelineOpts...)

	return client, nil
}

func (c *Client) openCache(cfg *clientConfig, logger *slog.Logger) error {
	ctx := context.Background()
	if err := cfg.app.EnsureCacheDir(); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	db, err := database.NewDatabaseWithLogger(ctx, cfg.app.CacheDBURL(), logger)
	if err != nil {
		return fmt.Errorf("open cache index: %w", err)
	}
	if err := persistence.AutoMigrate(ctx, db); err != nil {
		return errors.Join(fmt.Errorf("migrate cache index: %w", err), db.Close())
	}
	blobs, err := blob.NewFileStore(filepath.Join(cfg.app.CacheDir(), blobSubdir))
	if err != nil {
		return errors.Join(fmt.Errorf("open blob store: %w", err), db.Close())
	}

	c.db = &db
	c.cache = service.NewResultCache(persistence.NewCacheIndexStore(db), blobs,
		service.WithMaxSize(cfg.app.CacheMaxSizeBytes()),
		service.WithExpiration(cfg.app.CacheExpiration()),
		service.WithCacheLogger(logger),
		service.WithCacheMetrics(c.metrics),
		service.WithCacheClock(cfg.clock),
	)
	return nil
}

// Config returns the configuration the client was built with.
func (c *Client) Config() config.AppConfig {
	return c.config
}

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// analyzeConfig holds the options of one analysis.
type analyzeConfig struct {
	modules         []analysis.Tag
	opener          read.Opener
	clearMethod     selection.ClearMethod
	selectionMethod selection.Method
	document        *selection.Document
	selector        service.SelectFunc
	primaryPath     string
	failedPath      string
}

// AnalyzeOption configures one analysis.
type AnalyzeOption func(*analyzeConfig)

// WithModules restricts the analysis to the given modules.
func WithModules(tags ...analysis.Tag) AnalyzeOption {
	return func(a *analyzeConfig) { a.modules = tags }
}

// WithSource reads records from opener instead of parsing the path as FASTQ.
// The path still identifies the result in the cache.
func WithSource(opener read.Opener) AnalyzeOption {
	return func(a *analyzeConfig) { a.opener = opener }
}

// WithMasking overrides the configured clear and selection methods.
// selection.ClearNone skips masking.
func WithMasking(clearMethod selection.ClearMethod, selectionMethod selection.Method) AnalyzeOption {
	return func(a *analyzeConfig) {
		a.clearMethod = clearMethod
		a.selectionMethod = selectionMethod
	}
}

// WithSelectionDocument supplies the selection of the file method.
func WithSelectionDocument(doc selection.Document) AnalyzeOption {
	return func(a *analyzeConfig) { a.document = &doc }
}

// WithSelector supplies the selection of the user method.
func WithSelector(fn service.SelectFunc) AnalyzeOption {
	return func(a *analyzeConfig) { a.selector = fn }
}

// WithOutputs sets the masked output files. An empty path keeps the default
// next to the input.
func WithOutputs(primary, failed string) AnalyzeOption {
	return func(a *analyzeConfig) {
		a.primaryPath = primary
		a.failedPath = failed
	}
}

// Analyze runs one analysis of the read file at path.
func (c *Client) Analyze(ctx context.Context, path string, opts ...AnalyzeOption) (result service.Result, err error) {
	if c.closed.Load() {
		return service.Result{}, ErrClientClosed
	}

	ac := analyzeConfig{
		clearMethod:     c.config.ClearMethod(),
		selectionMethod: c.config.SelectionMethod(),
	}
	for _, opt := range opts {
		opt(&ac)
	}
	if ac.opener == nil {
		ac.opener = fastq.Opener(path)
	}

	req := service.Request{
		Path:   path,
		Opener: ac.opener,
		Settings: analysis.Settings{
			MatrixSize:        c.config.MatrixSize(),
			QualityThreshold:  c.config.QualityThreshold(),
			MappingThresholds: c.config.MappingThresholds(),
		},
		Modules:  ac.modules,
		ReadRate: c.config.ReadRate(),
		UseCache: c.cache != nil,
	}

	if ac.clearMethod != selection.ClearNone {
		masking, closers, merr := c.maskingRequest(path, ac)
		if merr != nil {
			return service.Result{}, merr
		}
		defer func() {
			for _, cl := range closers {
				err = errors.Join(err, cl.Close())
			}
		}()
		req.Masking = masking
	}

	return c.pipeline.Run(ctx, req)
}

func (c *Client) maskingRequest(path string, ac analyzeConfig) (*service.MaskingRequest, []io.Closer, error) {
	mr := &service.MaskingRequest{
		ClearMethod:  ac.clearMethod,
		Method:       ac.selectionMethod,
		RedAreaRatio: c.config.RedAreaRatio(),
		Document:     ac.document,
		Select:       ac.selector,
	}
	if mr.Method == selection.MethodFile && mr.Document == nil {
		doc, err := readSelection(c.config.SelectionFile())
		if err != nil {
			return nil, nil, err
		}
		mr.Document = &doc
	}

	primaryPath, failedPath := OutputPaths(path)
	if ac.primaryPath != "" {
		primaryPath = ac.primaryPath
	}
	if ac.failedPath != "" {
		failedPath = ac.failedPath
	}

	primary, err := fastq.Create(primaryPath)
	if err != nil {
		return nil, nil, fmt.Errorf("create masked output: %w", err)
	}
	mr.Primary = primary
	closers := []io.Closer{primary}
	if mr.ClearMethod == selection.ClearDelete {
		failed, err := fastq.Create(failedPath)
		if err != nil {
			return nil, nil, errors.Join(fmt.Errorf("create failed output: %w", err), primary.Close())
		}
		mr.Failed = failed
		closers = append(closers, failed)
	}
	return mr, closers, nil
}

func readSelection(path string) (selection.Document, error) {
	if path == "" {
		return selection.Document{}, errors.New("selection method file needs a selection file")
	}
	f, err := os.Open(path)
	if err != nil {
		return selection.Document{}, fmt.Errorf("open selection: %w", err)
	}
	defer func() { _ = f.Close() }()
	return selection.Decode(f)
}

// OutputPaths returns the default masked and failed output files of an input.
// A gzip input gets gzip outputs.
func OutputPaths(input string) (primary, failed string) {
	base, gz := strings.CutSuffix(input, ".gz")
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if ext == "" {
		ext = ".fastq"
	}
	suffix := ext
	if gz {
		suffix += ".gz"
	}
	return stem + ".masked" + suffix, stem + ".failed" + suffix
}

// ExportSelection writes the base quality selections of a result as a
// selection document.
func (c *Client) ExportSelection(result service.Result, w io.Writer) error {
	mod, ok := result.Module(analysis.TagBaseQuality)
	if !ok {
		return ErrNoBaseQuality
	}
	set, ok := mod.(selection.MatrixSet)
	if !ok {
		return ErrNoBaseQuality
	}
	return selection.Export(set, c.config.MatrixSize()).Encode(w)
}

// CacheEntries lists the cached results, oldest first.
func (c *Client) CacheEntries(ctx context.Context) ([]cache.Entry, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	if c.cache == nil {
		return nil, ErrCacheDisabled
	}
	return c.cache.Entries(ctx)
}

// PruneCache runs the cache eviction.
func (c *Client) PruneCache(ctx context.Context) (service.EvictionReport, error) {
	if c.closed.Load() {
		return service.EvictionReport{}, ErrClientClosed
	}
	if c.cache == nil {
		return service.EvictionReport{}, ErrCacheDisabled
	}
	return c.cache.Evict(ctx)
}

// Close releases the cache index.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClientClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			return fmt.Errorf("close cache index: %w", err)
		}
	}
	c.logger.Debug("tileqc client closed")
	return nil
}
