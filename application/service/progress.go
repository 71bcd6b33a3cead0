package service

import (
	"context"
	"time"

	"github.com/helixml/tileqc/domain/run"
	"github.com/helixml/tileqc/infrastructure/tracking"
)

const (
	notifyStep       = 5.0
	estimateInterval = time.Second
	estimateMinShare = 0.01
)

// meter turns the bytes consumed by one stage into run progress.
//
// Subscribers hear about a stage when it starts, when the total percent has
// risen by notifyStep since the last notification, and when it ends. The
// remaining time is re-estimated at most once per estimateInterval, once
// estimateMinShare of the stage has been read.
type meter struct {
	tracker      *tracking.Tracker
	stage        run.Stage
	band         run.Band
	now          func() time.Time
	started      time.Time
	lastEstimate time.Time
	estimated    bool
	remaining    time.Duration
	notified     float64
}

func newMeter(ctx context.Context, tracker *tracking.Tracker, stage run.Stage, band run.Band, now func() time.Time, message string) *meter {
	m := &meter{
		tracker:  tracker,
		stage:    stage,
		band:     band,
		now:      now,
		started:  now(),
		notified: band.Start,
	}
	tracker.SetProgress(ctx, stage, band.Start, nil, message)
	return m
}

// update records that fraction (0..1) of the stage has been consumed.
func (m *meter) update(ctx context.Context, fraction float64) {
	fraction = max(0, min(1, fraction))
	percent := m.band.At(fraction)
	now := m.now()

	if fraction >= estimateMinShare && (!m.estimated || now.Sub(m.lastEstimate) >= estimateInterval) {
		m.remaining = m.estimate(now, percent)
		m.lastEstimate = now
		m.estimated = true
	}

	if percent-m.notified < notifyStep {
		return
	}
	m.notified = percent
	m.publish(ctx, percent)
}

// estimate extrapolates the pace of the current stage over the rest of the run.
func (m *meter) estimate(now time.Time, percent float64) time.Duration {
	done := percent - m.band.Start
	elapsed := now.Sub(m.started)
	if done <= 0 || elapsed <= 0 {
		return 0
	}
	perPoint := float64(elapsed) / done
	return time.Duration(perPoint * (100 - percent))
}

func (m *meter) publish(ctx context.Context, percent float64) {
	if !m.estimated {
		m.tracker.SetProgress(ctx, m.stage, percent, nil, "")
		return
	}
	remaining := m.remaining
	m.tracker.SetProgress(ctx, m.stage, percent, &remaining, "")
}

// finish reports the end of the stage's band.
func (m *meter) finish(ctx context.Context) {
	end := m.band.At(1)
	m.notified = end
	m.publish(ctx, end)
}
