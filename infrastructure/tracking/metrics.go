package tracking

import (
	"context"

	"github.com/helixml/tileqc/domain/run"
	"github.com/helixml/tileqc/infrastructure/metrics"
)

// MetricsReporter implements Reporter by updating prometheus collectors.
type MetricsReporter struct {
	metrics *metrics.Metrics
}

// NewMetricsReporter creates a new MetricsReporter.
func NewMetricsReporter(m *metrics.Metrics) *MetricsReporter {
	return &MetricsReporter{metrics: m}
}

// OnChange publishes the completion percent.
func (r *MetricsReporter) OnChange(_ context.Context, status run.Status) error {
	r.metrics.PercentComplete.Set(status.Percent())
	return nil
}

// OnMalformedRecord counts the skipped record.
func (r *MetricsReporter) OnMalformedRecord(_ context.Context, rec run.MalformedRecord) error {
	r.metrics.MalformedRecords.WithLabelValues(string(rec.Stage)).Inc()
	return nil
}
