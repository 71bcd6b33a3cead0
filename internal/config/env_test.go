package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/tileqc/domain/selection"
)

var envKeys = []string{
	"MATRIX_SIZE", "QUALITY_THRESHOLD", "READ_RATE", "USE_CACHE",
	"CLEAR_METHOD", "SELECTION_METHOD", "SELECTION_FILE", "RED_AREA_RATIO",
	"MAPPING_THRESHOLDS", "CACHE_DIR", "CACHE_MAX_SIZE_BYTES", "CACHE_EXPIRATION",
	"LOG_LEVEL", "LOG_FORMAT",
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		name := EnvPrefix + "_" + key
		if old, ok := os.LookupEnv(name); ok {
			t.Cleanup(func() { _ = os.Setenv(name, old) })
		}
		_ = os.Unsetenv(name)
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnvVars(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.MatrixSize)
	assert.Equal(t, 20, cfg.QualityThreshold)
	assert.Equal(t, 1, cfg.ReadRate)
	assert.True(t, cfg.UseCache)
	assert.Equal(t, "none", cfg.ClearMethod)
	assert.Equal(t, "auto", cfg.SelectionMethod)
	assert.Equal(t, 0.5, cfg.RedAreaRatio)
	assert.Equal(t, "0,10,20,30", cfg.MappingThresholds)
	assert.Equal(t, "", cfg.Cache.Dir)
	assert.Equal(t, int64(1073741824), cfg.Cache.MaxSizeBytes)
	assert.Equal(t, 720*time.Hour, cfg.Cache.Expiration)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "pretty", cfg.LogFormat)
}

func TestEnvDefaults_MatchConfigDefaults(t *testing.T) {
	clearEnvVars(t)

	env, err := LoadFromEnv()
	require.NoError(t, err)
	fromEnv, err := env.ToAppConfig()
	require.NoError(t, err)
	defaults := NewAppConfig()

	assert.Equal(t, defaults.MatrixSize(), fromEnv.MatrixSize())
	assert.Equal(t, defaults.QualityThreshold(), fromEnv.QualityThreshold())
	assert.Equal(t, defaults.ReadRate(), fromEnv.ReadRate())
	assert.Equal(t, defaults.UseCache(), fromEnv.UseCache())
	assert.Equal(t, defaults.ClearMethod(), fromEnv.ClearMethod())
	assert.Equal(t, defaults.SelectionMethod(), fromEnv.SelectionMethod())
	assert.Equal(t, defaults.RedAreaRatio(), fromEnv.RedAreaRatio())
	assert.Equal(t, defaults.MappingThresholds(), fromEnv.MappingThresholds())
	assert.Equal(t, defaults.CacheDir(), fromEnv.CacheDir())
	assert.Equal(t, defaults.CacheMaxSizeBytes(), fromEnv.CacheMaxSizeBytes())
	assert.Equal(t, defaults.CacheExpiration(), fromEnv.CacheExpiration())
	assert.Equal(t, defaults.LogLevel(), fromEnv.LogLevel())
	assert.Equal(t, defaults.LogFormat(), fromEnv.LogFormat())
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearEnvVars(t)
	dir := t.TempDir()
	t.Setenv("TILEQC_MATRIX_SIZE", "25")
	t.Setenv("TILEQC_READ_RATE", "4")
	t.Setenv("TILEQC_USE_CACHE", "false")
	t.Setenv("TILEQC_CLEAR_METHOD", "DELETE")
	t.Setenv("TILEQC_SELECTION_METHOD", "file")
	t.Setenv("TILEQC_SELECTION_FILE", "sel.yaml")
	t.Setenv("TILEQC_MAPPING_THRESHOLDS", "5, 15")
	t.Setenv("TILEQC_CACHE_DIR", dir)
	t.Setenv("TILEQC_CACHE_EXPIRATION", "2h")
	t.Setenv("TILEQC_LOG_FORMAT", "json")

	env, err := LoadFromEnv()
	require.NoError(t, err)
	cfg, err := env.ToAppConfig()
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.MatrixSize())
	assert.Equal(t, 4, cfg.ReadRate())
	assert.False(t, cfg.UseCache())
	assert.Equal(t, selection.ClearDelete, cfg.ClearMethod())
	assert.Equal(t, selection.MethodFile, cfg.SelectionMethod())
	assert.Equal(t, "sel.yaml", cfg.SelectionFile())
	assert.Equal(t, []int{5, 15}, cfg.MappingThresholds())
	assert.Equal(t, dir, cfg.CacheDir())
	assert.Equal(t, "sqlite:///"+filepath.Join(dir, "index.db"), cfg.CacheDBURL())
	assert.Equal(t, 2*time.Hour, cfg.CacheExpiration())
	assert.Equal(t, LogFormatJSON, cfg.LogFormat())
	assert.NoError(t, cfg.Validate())
}

func TestToAppConfig_RejectsUnknownNames(t *testing.T) {
	tests := []struct {
		name string
		env  EnvConfig
	}{
		{"clear method", EnvConfig{ClearMethod: "shred", SelectionMethod: "auto"}},
		{"selection method", EnvConfig{ClearMethod: "none", SelectionMethod: "magic"}},
		{"thresholds", EnvConfig{ClearMethod: "none", SelectionMethod: "auto", MappingThresholds: "1,x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.env.ToAppConfig()
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_DotEnv(t *testing.T) {
	clearEnvVars(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TILEQC_QUALITY_THRESHOLD=30\nTILEQC_RED_AREA_RATIO=0.25\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("TILEQC_QUALITY_THRESHOLD")
		_ = os.Unsetenv("TILEQC_RED_AREA_RATIO")
	})

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.QualityThreshold())
	assert.Equal(t, 0.25, cfg.RedAreaRatio())
}

func TestLoadConfig_MissingDotEnvIsIgnored(t *testing.T) {
	clearEnvVars(t)

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestLoadConfig_Invalid(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("TILEQC_MATRIX_SIZE", "0")

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "matrix size")
}
