// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/helixml/tileqc/domain/selection"
)

// Default configuration values.
const (
	DefaultMatrixSize        = 10
	DefaultQualityThreshold  = 20
	DefaultReadRate          = 1
	DefaultRedAreaRatio      = selection.DefaultRedAreaRatio
	DefaultMappingThresholds = "0,10,20,30"
	DefaultCacheMaxSizeBytes = int64(1) << 30
	DefaultCacheExpiration   = 720 * time.Hour
	DefaultLogLevel          = "INFO"
	DefaultCacheSubdir       = "cache"
	DefaultIndexFile         = "index.db"
)

// LogFormat represents the log output format.
type LogFormat string

// LogFormat values.
const (
	LogFormatPretty LogFormat = "pretty"
	LogFormatJSON   LogFormat = "json"
)

// AppConfig holds the configuration of one tileqc process.
type AppConfig struct {
	matrixSize        int
	qualityThreshold  int
	readRate          int
	useCache          bool
	clearMethod       selection.ClearMethod
	selectionMethod   selection.Method
	selectionFile     string
	redAreaRatio      float64
	mappingThresholds []int
	cacheDir          string
	cacheMaxSizeBytes int64
	cacheExpiration   time.Duration
	logLevel          string
	logFormat         LogFormat
}

// DefaultDataDir returns the default data directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tileqc"
	}
	return filepath.Join(home, ".tileqc")
}

// DefaultCacheDir returns the default result cache directory.
func DefaultCacheDir() string {
	return filepath.Join(DefaultDataDir(), DefaultCacheSubdir)
}

// NewAppConfig creates a new AppConfig with defaults.
func NewAppConfig() AppConfig {
	thresholds, _ := ParseThresholds(DefaultMappingThresholds)
	return AppConfig{
		matrixSize:        DefaultMatrixSize,
		qualityThreshold:  DefaultQualityThreshold,
		readRate:          DefaultReadRate,
		useCache:          true,
		clearMethod:       selection.ClearNone,
		selectionMethod:   selection.MethodAuto,
		redAreaRatio:      DefaultRedAreaRatio,
		mappingThresholds: thresholds,
		cacheDir:          DefaultCacheDir(),
		cacheMaxSizeBytes: DefaultCacheMaxSizeBytes,
		cacheExpiration:   DefaultCacheExpiration,
		logLevel:          DefaultLogLevel,
		logFormat:         LogFormatPretty,
	}
}

// MatrixSize returns N, the number of bins per matrix side.
func (c AppConfig) MatrixSize() int { return c.matrixSize }

// QualityThreshold returns the score below which a base is low quality.
func (c AppConfig) QualityThreshold() int { return c.qualityThreshold }

// ReadRate returns the subsampling factor of the aggregate pass.
func (c AppConfig) ReadRate() int { return c.readRate }

// UseCache reports whether the result cache is consulted and written.
func (c AppConfig) UseCache() bool { return c.useCache }

// ClearMethod returns the masking output mode.
func (c AppConfig) ClearMethod() selection.ClearMethod { return c.clearMethod }

// SelectionMethod returns where the masking selection comes from.
func (c AppConfig) SelectionMethod() selection.Method { return c.selectionMethod }

// SelectionFile returns the selection document path for the file method.
func (c AppConfig) SelectionFile() string { return c.selectionFile }

// RedAreaRatio returns the low quality ratio of automatic selection.
func (c AppConfig) RedAreaRatio() float64 { return c.redAreaRatio }

// MappingThresholds returns the extra thresholds of the mapping quality module.
func (c AppConfig) MappingThresholds() []int {
	out := make([]int, len(c.mappingThresholds))
	copy(out, c.mappingThresholds)
	return out
}

// CacheDir returns the result cache directory.
func (c AppConfig) CacheDir() string { return c.cacheDir }

// CacheDBURL returns the URL of the cache index database.
func (c AppConfig) CacheDBURL() string {
	return "sqlite:///" + filepath.Join(c.cacheDir, DefaultIndexFile)
}

// CacheMaxSizeBytes returns the cache size cap.
func (c AppConfig) CacheMaxSizeBytes() int64 { return c.cacheMaxSizeBytes }

// CacheExpiration returns the age after which cache blobs are deleted.
func (c AppConfig) CacheExpiration() time.Duration { return c.cacheExpiration }

// LogLevel returns the log level.
func (c AppConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the log format.
func (c AppConfig) LogFormat() LogFormat { return c.logFormat }

// EnsureCacheDir creates the cache directory if it doesn't exist.
func (c AppConfig) EnsureCacheDir() error {
	return os.MkdirAll(c.cacheDir, 0o755)
}

// Validate reports the first invalid setting.
func (c AppConfig) Validate() error {
	var errs []error
	if c.matrixSize < 1 {
		errs = append(errs, fmt.Errorf("matrix size must be at least 1, got %d", c.matrixSize))
	}
	if c.readRate < 1 {
		errs = append(errs, fmt.Errorf("read rate must be at least 1, got %d", c.readRate))
	}
	if c.redAreaRatio < 0 || c.redAreaRatio > 1 {
		errs = append(errs, fmt.Errorf("red area ratio must be within [0,1], got %v", c.redAreaRatio))
	}
	if c.selectionMethod == selection.MethodFile && c.selectionFile == "" {
		errs = append(errs, errors.New("selection method file needs a selection file"))
	}
	if c.cacheMaxSizeBytes < 0 {
		errs = append(errs, fmt.Errorf("cache size cap must not be negative, got %d", c.cacheMaxSizeBytes))
	}
	return errors.Join(errs...)
}

// AppConfigOption is a functional option for AppConfig.
type AppConfigOption func(*AppConfig)

// WithMatrixSize sets N.
func WithMatrixSize(n int) AppConfigOption {
	return func(c *AppConfig) { c.matrixSize = n }
}

// WithQualityThreshold sets the low quality threshold.
func WithQualityThreshold(t int) AppConfigOption {
	return func(c *AppConfig) { c.qualityThreshold = t }
}

// WithReadRate sets the subsampling factor.
func WithReadRate(r int) AppConfigOption {
	return func(c *AppConfig) { c.readRate = r }
}

// WithUseCache enables or disables the result cache.
func WithUseCache(use bool) AppConfigOption {
	return func(c *AppConfig) { c.useCache = use }
}

// WithClearMethod sets the masking output mode.
func WithClearMethod(m selection.ClearMethod) AppConfigOption {
	return func(c *AppConfig) { c.clearMethod = m }
}

// WithSelectionMethod sets the selection source.
func WithSelectionMethod(m selection.Method) AppConfigOption {
	return func(c *AppConfig) { c.selectionMethod = m }
}

// WithSelectionFile sets the selection document path.
func WithSelectionFile(path string) AppConfigOption {
	return func(c *AppConfig) { c.selectionFile = path }
}

// WithRedAreaRatio sets the automatic selection ratio.
func WithRedAreaRatio(r float64) AppConfigOption {
	return func(c *AppConfig) { c.redAreaRatio = r }
}

// WithMappingThresholds sets the mapping quality thresholds.
func WithMappingThresholds(thresholds []int) AppConfigOption {
	return func(c *AppConfig) {
		c.mappingThresholds = make([]int, len(thresholds))
		copy(c.mappingThresholds, thresholds)
	}
}

// WithCacheDir sets the result cache directory.
func WithCacheDir(dir string) AppConfigOption {
	return func(c *AppConfig) { c.cacheDir = dir }
}

// WithCacheMaxSizeBytes sets the cache size cap.
func WithCacheMaxSizeBytes(n int64) AppConfigOption {
	return func(c *AppConfig) { c.cacheMaxSizeBytes = n }
}

// WithCacheExpiration sets the cache blob expiration age.
func WithCacheExpiration(d time.Duration) AppConfigOption {
	return func(c *AppConfig) { c.cacheExpiration = d }
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) AppConfigOption {
	return func(c *AppConfig) { c.logLevel = level }
}

// WithLogFormat sets the log format.
func WithLogFormat(format LogFormat) AppConfigOption {
	return func(c *AppConfig) { c.logFormat = format }
}

// NewAppConfigWithOptions creates an AppConfig with functional options.
func NewAppConfigWithOptions(opts ...AppConfigOption) AppConfig {
	return NewAppConfig().Apply(opts...)
}

// Apply returns a new AppConfig with the given options applied.
func (c AppConfig) Apply(opts ...AppConfigOption) AppConfig {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// LogAttrs returns slog attributes for logging the configuration.
func (c AppConfig) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Int("matrix_size", c.matrixSize),
		slog.Int("quality_threshold", c.qualityThreshold),
		slog.Int("read_rate", c.readRate),
		slog.Bool("use_cache", c.useCache),
		slog.String("clear_method", string(c.clearMethod)),
		slog.String("selection_method", string(c.selectionMethod)),
		slog.Float64("red_area_ratio", c.redAreaRatio),
		slog.String("cache_dir", c.cacheDir),
		slog.Int64("cache_max_size_bytes", c.cacheMaxSizeBytes),
		slog.Duration("cache_expiration", c.cacheExpiration),
		slog.String("log_level", c.logLevel),
	}
}

// ParseThresholds parses a comma-separated list of integers.
func ParseThresholds(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return []int{}, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			continue
		}
		v, err := strconv.Atoi(trimmed)
		if err != nil {
			return nil, fmt.Errorf("threshold %q: %w", trimmed, err)
		}
		out = append(out, v)
	}
	return out, nil
}
