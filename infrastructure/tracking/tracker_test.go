package tracking_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/helixml/tileqc/domain/run"
	"github.com/helixml/tileqc/infrastructure/metrics"
	"github.com/helixml/tileqc/infrastructure/tracking"
)

// fakeReporter records all statuses delivered to it.
type fakeReporter struct {
	mu        sync.Mutex
	statuses  []run.Status
	malformed []run.MalformedRecord
	err       error
}

func (f *fakeReporter) OnChange(_ context.Context, status run.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	return f.err
}

func (f *fakeReporter) OnMalformedRecord(_ context.Context, rec run.MalformedRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.malformed = append(f.malformed, rec)
	return f.err
}

func fixedClock() func() time.Time {
	now := time.Unix(1700000000, 0)
	return func() time.Time { return now }
}

func TestTracker_NotifiesAllSubscribers(t *testing.T) {
	failing := &fakeReporter{err: errors.New("boom")}
	ok := &fakeReporter{}
	tracker := tracking.NewTracker("run-1", slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), fixedClock())
	tracker.Subscribe(failing)
	tracker.Subscribe(ok)

	ctx := context.Background()
	remaining := 4 * time.Second
	tracker.SetProgress(ctx, run.StageDiscovery, 10, &remaining, "discovering tiles")
	tracker.Malformed(ctx, run.StageDiscovery, 3, "@bad", errors.New("no tile"))
	tracker.Complete(ctx)

	if len(ok.statuses) != 2 || len(failing.statuses) != 2 {
		t.Fatalf("expected 2 deliveries each, got %d and %d", len(ok.statuses), len(failing.statuses))
	}
	if d, has := ok.statuses[0].Remaining(); !has || d != remaining {
		t.Errorf("Remaining() = %v, %v", d, has)
	}
	if ok.statuses[1].State() != run.ReportingStateCompleted {
		t.Errorf("last state = %v", ok.statuses[1].State())
	}
	if len(ok.malformed) != 1 || ok.malformed[0].RunID != "run-1" || ok.malformed[0].Index != 3 {
		t.Errorf("malformed = %+v", ok.malformed)
	}
}

func TestTracker_Fail(t *testing.T) {
	fake := &fakeReporter{}
	tracker := tracking.NewTracker("run-2", nil, nil)
	tracker.Subscribe(fake)
	tracker.Fail(context.Background(), "disk full")

	if got := tracker.Status(); got.State() != run.ReportingStateFailed || got.Error() != "disk full" {
		t.Errorf("Status() = %v %q", got.State(), got.Error())
	}
}

func TestLoggingReporter(t *testing.T) {
	var buf bytes.Buffer
	r := tracking.NewLoggingReporter(slog.New(slog.NewJSONHandler(&buf, nil)))
	status := run.NewStatus("run-3", time.Now()).SetProgress(run.StageAggregate, 60, "", time.Now())

	if err := r.OnChange(context.Background(), status); err != nil {
		t.Fatal(err)
	}
	if err := r.OnMalformedRecord(context.Background(), run.MalformedRecord{RunID: "run-3", Stage: run.StageAggregate, ID: "@x"}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{`"run_id":"run-3"`, `"stage":"aggregate"`, `"completion_percent":60`, `"id":"@x"`} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Errorf("log output missing %s: %s", want, out)
		}
	}
}

func TestMetricsReporter(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	r := tracking.NewMetricsReporter(m)
	ctx := context.Background()

	_ = r.OnChange(ctx, run.NewStatus("r", time.Now()).SetProgress(run.StageMasking, 85, "", time.Now()))
	_ = r.OnMalformedRecord(ctx, run.MalformedRecord{Stage: run.StageMasking})

	if got := testutil.ToFloat64(m.PercentComplete); got != 85 {
		t.Errorf("percent = %v", got)
	}
	if got := testutil.ToFloat64(m.MalformedRecords.WithLabelValues("masking")); got != 1 {
		t.Errorf("malformed = %v", got)
	}
}
