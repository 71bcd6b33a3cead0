// Package metrics holds the prometheus collectors of tileqc.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every collector. Create one per registry with New.
type Metrics struct {
	RecordsProcessed *prometheus.CounterVec
	MalformedRecords *prometheus.CounterVec
	PercentComplete  prometheus.Gauge

	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	CacheCorruptions prometheus.Counter
	CacheWrites      prometheus.Counter
	CacheEvictions   *prometheus.CounterVec

	MaskedReads prometheus.Counter
	MaskedBases prometheus.Counter
}

// New registers the collectors with reg. A nil reg registers nothing,
// which keeps collectors usable in tests and library callers that do not
// export metrics.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RecordsProcessed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tileqc_records_processed_total",
				Help: "Records consumed per pipeline stage",
			},
			[]string{"stage"},
		),
		MalformedRecords: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tileqc_records_malformed_total",
				Help: "Malformed records skipped per pipeline stage",
			},
			[]string{"stage"},
		),
		PercentComplete: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "tileqc_pipeline_percent_complete",
				Help: "Completion of the running analysis in percent",
			},
		),
		CacheHits: f.NewCounter(
			prometheus.CounterOpts{
				Name: "tileqc_cache_hits_total",
				Help: "Result cache lookups served from disk",
			},
		),
		CacheMisses: f.NewCounter(
			prometheus.CounterOpts{
				Name: "tileqc_cache_misses_total",
				Help: "Result cache lookups without a usable entry",
			},
		),
		CacheCorruptions: f.NewCounter(
			prometheus.CounterOpts{
				Name: "tileqc_cache_corruptions_total",
				Help: "Cache entries purged because a blob was missing or unreadable",
			},
		),
		CacheWrites: f.NewCounter(
			prometheus.CounterOpts{
				Name: "tileqc_cache_writes_total",
				Help: "Results stored in the cache",
			},
		),
		CacheEvictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tileqc_cache_evicted_blobs_total",
				Help: "Cache blobs removed by eviction, by reason",
			},
			[]string{"reason"},
		),
		MaskedReads: f.NewCounter(
			prometheus.CounterOpts{
				Name: "tileqc_masked_reads_total",
				Help: "Reads with at least one masked base",
			},
		),
		MaskedBases: f.NewCounter(
			prometheus.CounterOpts{
				Name: "tileqc_masked_bases_total",
				Help: "Bases replaced or dropped by masking",
			},
		),
	}
}

// Eviction reasons.
const (
	EvictInvalid = "invalid"
	EvictAge     = "age"
	EvictSize    = "size"
)
