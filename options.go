package tileqc

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/helixml/tileqc/domain/analysis"
	"github.com/helixml/tileqc/infrastructure/tracking"
	"github.com/helixml/tileqc/internal/config"
)

// clientConfig holds configuration for Client construction.
type clientConfig struct {
	app        config.AppConfig
	logger     *slog.Logger
	registerer prometheus.Registerer
	registry   *analysis.Registry
	reporters  []tracking.Reporter
	clock      func() time.Time
}

func newClientConfig() *clientConfig {
	return &clientConfig{
		app:      config.NewAppConfig(),
		registry: analysis.DefaultRegistry(),
		clock:    time.Now,
	}
}

// Option configures the Client.
type Option func(*clientConfig)

// WithAppConfig replaces the whole configuration, typically one loaded from
// the environment.
func WithAppConfig(cfg config.AppConfig) Option {
	return func(c *clientConfig) { c.app = cfg }
}

// WithMatrixSize sets the number of bins per matrix side.
func WithMatrixSize(n int) Option {
	return func(c *clientConfig) { c.app = c.app.Apply(config.WithMatrixSize(n)) }
}

// WithQualityThreshold sets the score below which a base is low quality.
func WithQualityThreshold(q int) Option {
	return func(c *clientConfig) { c.app = c.app.Apply(config.WithQualityThreshold(q)) }
}

// WithReadRate analyses only every rate-th read. Rates above one disable caching.
func WithReadRate(rate int) Option {
	return func(c *clientConfig) { c.app = c.app.Apply(config.WithReadRate(rate)) }
}

// WithMappingThresholds sets the extra cut-offs of the mapping quality module.
func WithMappingThresholds(thresholds ...int) Option {
	return func(c *clientConfig) { c.app = c.app.Apply(config.WithMappingThresholds(thresholds)) }
}

// WithCacheDir stores cached results under dir.
func WithCacheDir(dir string) Option {
	return func(c *clientConfig) { c.app = c.app.Apply(config.WithCacheDir(dir), config.WithUseCache(true)) }
}

// WithCacheLimits sets the cache size cap and blob expiration age.
// Zero disables the corresponding eviction pass.
func WithCacheLimits(maxBytes int64, expiration time.Duration) Option {
	return func(c *clientConfig) {
		c.app = c.app.Apply(config.WithCacheMaxSizeBytes(maxBytes), config.WithCacheExpiration(expiration))
	}
}

// WithoutCache disables the result cache.
func WithoutCache() Option {
	return func(c *clientConfig) { c.app = c.app.Apply(config.WithUseCache(false)) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) { c.logger = l }
}

// WithMetricsRegisterer registers the prometheus collectors with reg.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(c *clientConfig) { c.registerer = reg }
}

// WithModuleRegistry replaces the built-in analysis modules.
func WithModuleRegistry(r *analysis.Registry) Option {
	return func(c *clientConfig) { c.registry = r }
}

// WithReporters adds progress reporters to every analysis.
func WithReporters(r ...tracking.Reporter) Option {
	return func(c *clientConfig) { c.reporters = append(c.reporters, r...) }
}

// WithClock sets the clock used for progress estimates and cache ages.
func WithClock(now func() time.Time) Option {
	return func(c *clientConfig) { c.clock = now }
}
