// Package service runs analyses: the streaming pipeline and the result cache it consults.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/helixml/tileqc/domain/analysis"
	"github.com/helixml/tileqc/domain/cache"
	"github.com/helixml/tileqc/domain/read"
	"github.com/helixml/tileqc/domain/run"
	"github.com/helixml/tileqc/domain/selection"
	"github.com/helixml/tileqc/domain/tile"
	"github.com/helixml/tileqc/infrastructure/metrics"
	"github.com/helixml/tileqc/infrastructure/tracking"
	"github.com/helixml/tileqc/internal/log"
)

// ErrNoSource indicates a request without a read source.
var ErrNoSource = errors.New("analysis request has no read source")

// SelectFunc marks bins for masking on the base quality matrices.
type SelectFunc func(ctx context.Context, mod selection.MatrixSet) error

// MaskingRequest asks for the masking stage.
type MaskingRequest struct {
	ClearMethod  selection.ClearMethod
	Method       selection.Method
	RedAreaRatio float64
	// Document is imported by the file method.
	Document *selection.Document
	// Select is called by the user method.
	Select SelectFunc
	// Primary and Failed receive the masked reads. Failed is only written
	// by the delete method. The caller closes both.
	Primary read.Writer
	Failed  read.Writer
}

// Request describes one analysis.
type Request struct {
	// Path is the input file. It identifies the result in the cache.
	Path     string
	Opener   read.Opener
	Settings analysis.Settings
	// Modules lists the modules to run; empty runs every registered module.
	Modules  []analysis.Tag
	ReadRate int
	UseCache bool
	Masking  *MaskingRequest
}

// MaskingResult describes the masking stage.
type MaskingResult struct {
	Summary selection.ChangeSummary
	// Selected counts the bins selected automatically.
	Selected int
	Import   *selection.ImportReport
}

// Result is the outcome of one analysis.
type Result struct {
	RunID     string
	Tree      *tile.Tree
	Modules   []analysis.Module
	FromCache bool
	Cached    bool
	Malformed int64
	Masking   *MaskingResult
}

// Module returns the module with tag.
func (r Result) Module(tag analysis.Tag) (analysis.Module, bool) {
	for _, m := range r.Modules {
		if m.Tag() == tag {
			return m, true
		}
	}
	return nil, false
}

// Pipeline streams a read file through discovery, aggregation and masking.
// A Pipeline may run several analyses; each run is sequential.
type Pipeline struct {
	registry  *analysis.Registry
	cache     *ResultCache
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	runID     func() string
	reporters []tracking.Reporter
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithRegistry sets the module registry.
func WithRegistry(r *analysis.Registry) PipelineOption {
	return func(p *Pipeline) { p.registry = r }
}

// WithResultCache sets the result cache. Without one nothing is cached.
func WithResultCache(c *ResultCache) PipelineOption {
	return func(p *Pipeline) { p.cache = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// WithMetrics sets the metrics.
func WithMetrics(m *metrics.Metrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

// WithClock sets the clock used for progress estimates.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

// WithRunIDs sets the generator of run identifiers.
func WithRunIDs(next func() string) PipelineOption {
	return func(p *Pipeline) { p.runID = next }
}

// WithReporters adds progress reporters to every run.
func WithReporters(r ...tracking.Reporter) PipelineOption {
	return func(p *Pipeline) { p.reporters = append(p.reporters, r...) }
}

// NewPipeline creates a pipeline.
func NewPipeline(opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		registry: analysis.DefaultRegistry(),
		logger:   slog.Default(),
		metrics:  metrics.New(nil),
		now:      time.Now,
		runID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one analysis. A failed masking stage returns the result of
// the earlier stages together with a *MaskingError.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	if req.Opener == nil {
		return Result{}, ErrNoSource
	}
	if req.Settings.MatrixSize < 1 {
		return Result{}, fmt.Errorf("matrix size must be at least 1, got %d", req.Settings.MatrixSize)
	}
	rate := max(req.ReadRate, 1)
	tags := p.tags(req)

	result := Result{RunID: p.runID()}
	ctx = log.WithRunID(ctx, result.RunID)
	tracker := tracking.NewTracker(result.RunID, p.logger, p.now)
	tracker.Subscribe(tracking.NewMetricsReporter(p.metrics))
	for _, r := range p.reporters {
		tracker.Subscribe(r)
	}
	bands := run.Bands(req.Masking != nil)

	fp, cacheable := p.fingerprint(ctx, req, rate)
	if cacheable {
		if hit, ok := p.cache.Lookup(ctx, fp, p.registry, req.Settings, tags); ok {
			result.Tree, result.Modules, result.FromCache = hit.Tree, hit.Modules, true
			tracker.SetProgress(ctx, run.StageAggregate, bands[run.StageAggregate].At(1), nil, "restored from cache")
		}
	}

	if !result.FromCache {
		tree, malformed, err := p.discover(ctx, tracker, req.Opener, bands[run.StageDiscovery])
		result.Malformed += malformed
		if err != nil {
			tracker.Fail(ctx, err.Error())
			return result, err
		}
		result.Tree = tree

		modules, malformed, err := p.aggregate(ctx, tracker, req, tags, rate, tree, bands[run.StageAggregate])
		result.Malformed += malformed
		if err != nil {
			tracker.Fail(ctx, err.Error())
			return result, err
		}
		result.Modules = modules

		if cacheable {
			result.Cached = p.cache.Store(ctx, fp, tree, modules)
		}
	}

	if req.Masking != nil {
		masking, malformed, err := p.mask(ctx, tracker, req, result, bands[run.StageMasking])
		result.Malformed += malformed
		result.Masking = masking
		if err != nil {
			tracker.Fail(ctx, err.Error())
			return result, err
		}
	}

	tracker.Complete(ctx)
	return result, nil
}

// tags returns the modules to run. Masking always needs base quality.
func (p *Pipeline) tags(req Request) []analysis.Tag {
	tags := slices.Clone(req.Modules)
	if len(tags) == 0 {
		tags = p.registry.Tags()
	}
	if req.Masking != nil && !slices.Contains(tags, analysis.TagBaseQuality) {
		tags = append(tags, analysis.TagBaseQuality)
	}
	return tags
}

// fingerprint reports whether the result of req may be cached, and under which key.
func (p *Pipeline) fingerprint(ctx context.Context, req Request, rate int) (cache.Fingerprint, bool) {
	if p.cache == nil || !req.UseCache || req.Path == "" || rate > 1 {
		return cache.Fingerprint{}, false
	}
	fp, err := cache.NewFingerprint(req.Path, req.Settings.MatrixSize, req.Settings.QualityThreshold)
	if err != nil {
		p.logger.WarnContext(ctx, "cannot fingerprint input, caching disabled", slog.Any("error", err))
		return cache.Fingerprint{}, false
	}
	return fp, true
}

func (p *Pipeline) discover(ctx context.Context, tracker *tracking.Tracker, opener read.Opener, band run.Band) (*tile.Tree, int64, error) {
	ctx = log.WithStage(ctx, string(run.StageDiscovery))
	tree := tile.NewTree()
	stats, err := p.stream(ctx, tracker, opener, run.StageDiscovery, band, "discovering tiles",
		func(_ int64, rec read.Record, id tile.Identifier) error {
			return tree.Add(id.Position, rec.Quality)
		}, nil)
	if err != nil {
		return nil, stats.malformed, fmt.Errorf("discovery: %w", err)
	}
	tree.Freeze()
	p.logger.InfoContext(ctx, "tiles discovered",
		slog.Int("tiles", len(tree.Coordinates())),
		slog.String("numeration", tree.Numeration().Name()),
		slog.Int64("records", stats.records),
	)
	return tree, stats.malformed, nil
}

func (p *Pipeline) aggregate(ctx context.Context, tracker *tracking.Tracker, req Request, tags []analysis.Tag, rate int, tree *tile.Tree, band run.Band) ([]analysis.Module, int64, error) {
	ctx = log.WithStage(ctx, string(run.StageAggregate))
	modules, err := p.registry.Build(req.Settings, tags...)
	if err != nil {
		return nil, 0, err
	}
	for _, m := range modules {
		if err := m.Init(tree); err != nil {
			return nil, 0, fmt.Errorf("init %s: %w", m.Tag(), err)
		}
	}

	var kept int64
	stats, err := p.stream(ctx, tracker, req.Opener, run.StageAggregate, band, "aggregating quality",
		func(index int64, rec read.Record, id tile.Identifier) error {
			if index%int64(rate) != 0 {
				return nil
			}
			kept++
			for _, m := range modules {
				if id.Filtered && m.IgnoreFiltered() {
					continue
				}
				if err := m.Consume(rec, id.Position); err != nil {
					return &read.MalformedRecordError{Index: index, ID: rec.ID, Err: fmt.Errorf("%s: %w", m.Tag(), err)}
				}
			}
			return nil
		}, nil)
	if err != nil {
		return nil, stats.malformed, fmt.Errorf("aggregate: %w", err)
	}
	for _, m := range modules {
		if err := m.Finish(); err != nil {
			return nil, stats.malformed, fmt.Errorf("finish %s: %w", m.Tag(), err)
		}
	}
	p.logger.InfoContext(ctx, "quality aggregated",
		slog.Int("modules", len(modules)),
		slog.Int64("records", kept),
		slog.Int("read_rate", rate),
	)
	return modules, stats.malformed, nil
}

// baseQuality is what masking needs from the base quality module.
type baseQuality interface {
	selection.MatrixSet
	selection.BaseMatrices
}

func (p *Pipeline) mask(ctx context.Context, tracker *tracking.Tracker, req Request, result Result, band run.Band) (*MaskingResult, int64, error) {
	ctx = log.WithStage(ctx, string(run.StageMasking))
	mr := req.Masking
	out := &MaskingResult{}

	mod, ok := result.Module(analysis.TagBaseQuality)
	bq, isBase := mod.(baseQuality)
	if !ok || !isBase {
		return out, 0, &MaskingError{Index: -1, Err: ErrNoBaseQuality}
	}

	switch mr.Method {
	case selection.MethodAuto, "":
		out.Selected = selection.SelectRedAreas(bq, mr.RedAreaRatio)
	case selection.MethodUser:
		if mr.Select != nil {
			if err := mr.Select(ctx, bq); err != nil {
				return out, 0, &MaskingError{Index: -1, Err: err}
			}
		}
	case selection.MethodFile:
		if mr.Document == nil {
			return out, 0, &MaskingError{Index: -1, Err: errors.New("no selection document")}
		}
		report, err := selection.Import(*mr.Document, bq, req.Settings.MatrixSize)
		if err != nil {
			return out, 0, &MaskingError{Index: -1, Err: err}
		}
		out.Import = &report
		if len(report.Missing) > 0 {
			p.logger.WarnContext(ctx, "selection entries without a matrix", slog.Int("missing", len(report.Missing)))
		}
	default:
		return out, 0, &MaskingError{Index: -1, Err: fmt.Errorf("unknown selection method %q", mr.Method)}
	}
	if mr.Primary == nil || (mr.ClearMethod == selection.ClearDelete && mr.Failed == nil) {
		return out, 0, &MaskingError{Index: -1, Err: errors.New("missing output writer")}
	}

	masker := selection.NewMasker(mr.ClearMethod, bq)
	stats, err := p.stream(ctx, tracker, req.Opener, run.StageMasking, band, "masking reads",
		func(index int64, rec read.Record, id tile.Identifier) error {
			if err := masker.Apply(rec, id.Position, mr.Primary, mr.Failed); err != nil {
				return &MaskingError{Index: index, Err: err}
			}
			return nil
		},
		func(index int64, rec read.Record) error {
			if err := masker.ApplyUnplaced(rec, mr.Primary, mr.Failed); err != nil {
				return &MaskingError{Index: index, Err: err}
			}
			return nil
		})
	out.Summary = masker.Summary()
	p.metrics.MaskedReads.Add(float64(out.Summary.ReadsChanged))
	p.metrics.MaskedBases.Add(float64(out.Summary.BasesChanged))
	if err != nil {
		var me *MaskingError
		if errors.As(err, &me) {
			return out, stats.malformed, me
		}
		return out, stats.malformed, &MaskingError{Index: -1, Err: err}
	}
	p.logger.InfoContext(ctx, "reads masked",
		slog.String("clear_method", string(mr.ClearMethod)),
		slog.Int64("reads", out.Summary.Reads),
		slog.Int64("reads_changed", out.Summary.ReadsChanged),
		slog.Int64("bases_changed", out.Summary.BasesChanged),
	)
	return out, stats.malformed, nil
}

type streamStats struct {
	records   int64
	malformed int64
}

// visitor handles one well-formed record. Returning a
// *read.MalformedRecordError skips the record; any other error stops the pass.
type visitor func(index int64, rec read.Record, id tile.Identifier) error

// stream makes one full pass over a freshly opened source. Records that fail
// to decode or carry no tile position are reported and skipped. A record
// without a tile position is still handed to unplaced when it is not nil.
// index counts the well-formed records.
func (p *Pipeline) stream(ctx context.Context, tracker *tracking.Tracker, opener read.Opener, stage run.Stage, band run.Band, message string, visit visitor, unplaced func(index int64, rec read.Record) error) (stats streamStats, err error) {
	src, err := opener.Open()
	if err != nil {
		return stats, fmt.Errorf("open source: %w", err)
	}
	defer func() {
		if cerr := src.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close source: %w", cerr)
		}
	}()

	m := newMeter(ctx, tracker, stage, band, p.now, message)
	processed := p.metrics.RecordsProcessed.WithLabelValues(string(stage))
	skip := func(index int64, id string, cause error) {
		stats.malformed++
		tracker.Malformed(ctx, stage, index, id, cause)
	}

	var index int64
	for {
		rec, nerr := src.Next()
		if errors.Is(nerr, io.EOF) {
			break
		}
		if nerr != nil {
			var bad *read.MalformedRecordError
			if errors.As(nerr, &bad) {
				skip(bad.Index, bad.ID, bad.Err)
				m.update(ctx, progressOf(src))
				continue
			}
			return stats, fmt.Errorf("read record: %w", nerr)
		}

		id, perr := tile.ParseIdentifier(rec.ID)
		if perr != nil {
			skip(index, rec.ID, perr)
			if unplaced != nil {
				if uerr := unplaced(index, rec); uerr != nil {
					return stats, uerr
				}
			}
			m.update(ctx, progressOf(src))
			continue
		}
		if verr := visit(index, rec, id); verr != nil {
			var bad *read.MalformedRecordError
			if !errors.As(verr, &bad) {
				return stats, verr
			}
			skip(bad.Index, bad.ID, bad.Err)
		}
		index++
		stats.records++
		processed.Inc()
		m.update(ctx, progressOf(src))
	}
	m.finish(ctx)
	return stats, nil
}

func progressOf(src read.Source) float64 {
	size := src.Size()
	if size <= 0 {
		return 0
	}
	return float64(src.BytesRead()) / float64(size)
}
