package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/tileqc/domain/run"
	"github.com/helixml/tileqc/infrastructure/tracking"
)

func TestMeter(t *testing.T) {
	t0 := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	now := t0
	clock := func() time.Time { return now }
	tracker := tracking.NewTracker("run-1", nil, clock)
	reporter := &recordingReporter{}
	tracker.Subscribe(reporter)
	ctx := context.Background()

	m := newMeter(ctx, tracker, run.StageDiscovery, run.Band{Start: 0, Width: 40}, clock, "discovering tiles")

	now = t0.Add(500 * time.Millisecond)
	m.update(ctx, 0.005)
	now = t0.Add(time.Second)
	m.update(ctx, 0.125)
	now = t0.Add(1500 * time.Millisecond)
	m.update(ctx, 0.25)
	now = t0.Add(2 * time.Second)
	m.update(ctx, 0.375)
	now = t0.Add(2100 * time.Millisecond)
	m.update(ctx, 0.4)
	m.finish(ctx)

	assert.Equal(t, []float64{0, 5, 10, 15, 40}, reporter.percents())
	require.Len(t, reporter.statuses, 5)

	_, ok := reporter.statuses[0].Remaining()
	assert.False(t, ok, "no estimate before 1% of the stage")

	remaining, ok := reporter.statuses[1].Remaining()
	require.True(t, ok)
	assert.Equal(t, 19*time.Second, remaining)

	remaining, _ = reporter.statuses[2].Remaining()
	assert.Equal(t, 19*time.Second, remaining, "estimate kept within one second")

	remaining, _ = reporter.statuses[3].Remaining()
	perPoint := float64(2*time.Second) / 15
	assert.Equal(t, time.Duration(perPoint*85), remaining)

	assert.Equal(t, run.StageDiscovery, reporter.last().Stage())
	assert.Equal(t, "discovering tiles", reporter.statuses[0].Message())
}
