package tracking

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/helixml/tileqc/domain/run"
)

// Tracker holds the status of one run and propagates every change to its
// subscribers.
type Tracker struct {
	status      run.Status
	subscribers []Reporter
	logger      *slog.Logger
	now         func() time.Time
	mu          sync.RWMutex
}

// NewTracker creates a tracker for runID.
func NewTracker(runID string, logger *slog.Logger, now func() time.Time) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		status:      run.NewStatus(runID, now()),
		subscribers: make([]Reporter, 0),
		logger:      logger,
		now:         now,
	}
}

// Status returns a copy of the current status.
func (t *Tracker) Status() run.Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Subscribe adds a reporter to receive notifications.
func (t *Tracker) Subscribe(reporter Reporter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subscribers = append(t.subscribers, reporter)
}

// SetProgress moves the run to stage at percent, with an optional estimate.
func (t *Tracker) SetProgress(ctx context.Context, stage run.Stage, percent float64, remaining *time.Duration, message string) {
	t.mu.Lock()
	t.status = t.status.SetProgress(stage, percent, message, t.now())
	if remaining != nil {
		t.status = t.status.SetRemaining(*remaining)
	}
	status := t.status
	t.mu.Unlock()

	t.notifySubscribers(ctx, status)
}

// Fail marks the run as failed.
func (t *Tracker) Fail(ctx context.Context, errMsg string) {
	t.mu.Lock()
	t.status = t.status.Fail(errMsg, t.now())
	status := t.status
	t.mu.Unlock()

	t.notifySubscribers(ctx, status)
}

// Complete marks the run as done.
func (t *Tracker) Complete(ctx context.Context) {
	t.mu.Lock()
	t.status = t.status.Complete(t.now())
	status := t.status
	t.mu.Unlock()

	t.notifySubscribers(ctx, status)
}

// Malformed reports a skipped record.
func (t *Tracker) Malformed(ctx context.Context, stage run.Stage, index int64, id string, err error) {
	rec := run.MalformedRecord{RunID: t.Status().RunID(), Stage: stage, Index: index, ID: id, Err: err}
	for _, subscriber := range t.snapshotSubscribers() {
		if nerr := subscriber.OnMalformedRecord(ctx, rec); nerr != nil {
			t.logger.Error("failed to notify subscriber",
				slog.String("error", nerr.Error()),
				slog.String("stage", string(stage)),
			)
		}
	}
}

func (t *Tracker) snapshotSubscribers() []Reporter {
	t.mu.RLock()
	defer t.mu.RUnlock()
	subscribers := make([]Reporter, len(t.subscribers))
	copy(subscribers, t.subscribers)
	return subscribers
}

// notifySubscribers sends the status to all reporters.
func (t *Tracker) notifySubscribers(ctx context.Context, status run.Status) {
	for _, subscriber := range t.snapshotSubscribers() {
		if err := subscriber.OnChange(ctx, status); err != nil {
			t.logger.Error("failed to notify subscriber",
				slog.String("error", err.Error()),
				slog.String("stage", string(status.Stage())),
			)
			// Continue notifying other subscribers even if one fails
		}
	}
}
