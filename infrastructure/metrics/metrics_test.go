package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordsProcessed.WithLabelValues("aggregate").Add(3)
	m.CacheEvictions.WithLabelValues(EvictAge).Inc()
	m.PercentComplete.Set(42)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.RecordsProcessed.WithLabelValues("aggregate")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.PercentComplete))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "tileqc_records_processed_total")
	assert.Contains(t, names, "tileqc_cache_evicted_blobs_total")
}

func TestNew_NilRegisterer(t *testing.T) {
	m := New(nil)
	m.CacheHits.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits))
}
