package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/helixml/tileqc/domain/selection"
)

// EnvPrefix is the prefix of every tileqc environment variable.
const EnvPrefix = "TILEQC"

// EnvConfig holds all environment-based configuration.
// Field names map to environment variables with the TILEQC_ prefix removed.
type EnvConfig struct {
	// MatrixSize is the number of bins per matrix side.
	// Env: MATRIX_SIZE (default: 10)
	MatrixSize int `envconfig:"MATRIX_SIZE" default:"10"`

	// QualityThreshold is the score below which a base counts as low quality.
	// Env: QUALITY_THRESHOLD (default: 20)
	QualityThreshold int `envconfig:"QUALITY_THRESHOLD" default:"20"`

	// ReadRate keeps every ReadRate-th record during aggregation.
	// Env: READ_RATE (default: 1)
	ReadRate int `envconfig:"READ_RATE" default:"1"`

	// UseCache controls the result cache.
	// Env: USE_CACHE (default: true)
	UseCache bool `envconfig:"USE_CACHE" default:"true"`

	// ClearMethod is none, delete or change.
	// Env: CLEAR_METHOD (default: none)
	ClearMethod string `envconfig:"CLEAR_METHOD" default:"none"`

	// SelectionMethod is auto, user or file.
	// Env: SELECTION_METHOD (default: auto)
	SelectionMethod string `envconfig:"SELECTION_METHOD" default:"auto"`

	// SelectionFile is the selection document read by the file method.
	// Env: SELECTION_FILE
	SelectionFile string `envconfig:"SELECTION_FILE"`

	// RedAreaRatio is the low quality ratio of automatic selection.
	// Env: RED_AREA_RATIO (default: 0.5)
	RedAreaRatio float64 `envconfig:"RED_AREA_RATIO" default:"0.5"`

	// MappingThresholds is a comma-separated list of mapping quality cut-offs.
	// Env: MAPPING_THRESHOLDS (default: 0,10,20,30)
	MappingThresholds string `envconfig:"MAPPING_THRESHOLDS" default:"0,10,20,30"`

	// Cache configures the result cache.
	Cache CacheEnv `envconfig:"CACHE"`

	// LogLevel is the log verbosity level.
	// Env: LOG_LEVEL (default: INFO)
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// LogFormat is the log output format (pretty or json).
	// Env: LOG_FORMAT (default: pretty)
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
}

// CacheEnv holds result cache configuration.
type CacheEnv struct {
	// Dir is the cache directory.
	// Env: CACHE_DIR
	// Default: ~/.tileqc/cache
	Dir string `envconfig:"DIR"`

	// MaxSizeBytes caps the total size of cached blobs.
	// Env: CACHE_MAX_SIZE_BYTES (default: 1073741824)
	MaxSizeBytes int64 `envconfig:"MAX_SIZE_BYTES" default:"1073741824"`

	// Expiration is the age after which blobs are deleted.
	// Env: CACHE_EXPIRATION (default: 720h)
	Expiration time.Duration `envconfig:"EXPIRATION" default:"720h"`
}

// LoadFromEnv loads configuration from TILEQC_ prefixed environment variables.
func LoadFromEnv() (EnvConfig, error) {
	return LoadFromEnvWithPrefix(EnvPrefix)
}

// LoadFromEnvWithPrefix loads configuration with a custom prefix.
func LoadFromEnvWithPrefix(prefix string) (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// ToAppConfig converts EnvConfig to AppConfig.
func (e EnvConfig) ToAppConfig() (AppConfig, error) {
	cfg := NewAppConfig()

	clearMethod, err := selection.ParseClearMethod(strings.ToLower(e.ClearMethod))
	if err != nil {
		return AppConfig{}, err
	}
	method, err := selection.ParseMethod(strings.ToLower(e.SelectionMethod))
	if err != nil {
		return AppConfig{}, err
	}
	thresholds, err := ParseThresholds(e.MappingThresholds)
	if err != nil {
		return AppConfig{}, fmt.Errorf("mapping thresholds: %w", err)
	}

	cfg = applyOption(cfg, WithMatrixSize(e.MatrixSize))
	cfg = applyOption(cfg, WithQualityThreshold(e.QualityThreshold))
	cfg = applyOption(cfg, WithReadRate(e.ReadRate))
	cfg = applyOption(cfg, WithUseCache(e.UseCache))
	cfg = applyOption(cfg, WithClearMethod(clearMethod))
	cfg = applyOption(cfg, WithSelectionMethod(method))
	cfg = applyOption(cfg, WithSelectionFile(e.SelectionFile))
	cfg = applyOption(cfg, WithRedAreaRatio(e.RedAreaRatio))
	cfg = applyOption(cfg, WithMappingThresholds(thresholds))
	if e.Cache.Dir != "" {
		cfg = applyOption(cfg, WithCacheDir(e.Cache.Dir))
	}
	cfg = applyOption(cfg, WithCacheMaxSizeBytes(e.Cache.MaxSizeBytes))
	cfg = applyOption(cfg, WithCacheExpiration(e.Cache.Expiration))
	if e.LogLevel != "" {
		cfg = applyOption(cfg, WithLogLevel(e.LogLevel))
	}
	if e.LogFormat != "" {
		cfg = applyOption(cfg, WithLogFormat(parseLogFormat(e.LogFormat)))
	}

	return cfg, nil
}

// parseLogFormat converts a string to LogFormat.
func parseLogFormat(s string) LogFormat {
	switch strings.ToLower(s) {
	case "json":
		return LogFormatJSON
	default:
		return LogFormatPretty
	}
}

// applyOption applies a single option to a config.
func applyOption(cfg AppConfig, opt AppConfigOption) AppConfig {
	opt(&cfg)
	return cfg
}
