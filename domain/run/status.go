// Package run describes the progress of one analysis run.
package run

import (
	"time"
)

// Stage is a pipeline stage.
type Stage string

// Stage values, in execution order.
const (
	StageDiscovery Stage = "discovery"
	StageAggregate Stage = "aggregate"
	StageMasking   Stage = "masking"
	StageDone      Stage = "done"
)

// ReportingState represents the state of a run.
type ReportingState string

// ReportingState values.
const (
	ReportingStateStarted    ReportingState = "started"
	ReportingStateInProgress ReportingState = "in_progress"
	ReportingStateCompleted  ReportingState = "completed"
	ReportingStateFailed     ReportingState = "failed"
)

// IsTerminal returns true if the state represents a final state.
func (s ReportingState) IsTerminal() bool {
	return s == ReportingStateCompleted || s == ReportingStateFailed
}

// Band is the share of total progress owned by one stage, in percent.
type Band struct {
	Start float64
	Width float64
}

// At returns the total percent after fraction (0..1) of the stage.
func (b Band) At(fraction float64) float64 {
	fraction = max(0, min(1, fraction))
	return b.Start + b.Width*fraction
}

// Bands returns the progress band of every stage that will run.
func Bands(masking bool) map[Stage]Band {
	if masking {
		return map[Stage]Band{
			StageDiscovery: {Start: 0, Width: 40},
			StageAggregate: {Start: 40, Width: 40},
			StageMasking:   {Start: 80, Width: 20},
		}
	}
	return map[Stage]Band{
		StageDiscovery: {Start: 0, Width: 50},
		StageAggregate: {Start: 50, Width: 50},
	}
}

// Status is an immutable snapshot of a run's progress.
type Status struct {
	runID        string
	stage        Stage
	state        ReportingState
	percent      float64
	remaining    time.Duration
	hasRemaining bool
	message      string
	errorMessage string
	createdAt    time.Time
	updatedAt    time.Time
}

// NewStatus creates the status of a run that has just started.
func NewStatus(runID string, now time.Time) Status {
	return Status{
		runID:     runID,
		stage:     StageDiscovery,
		state:     ReportingStateStarted,
		createdAt: now,
		updatedAt: now,
	}
}

// RunID returns the run identifier.
func (s Status) RunID() string { return s.runID }

// Stage returns the current stage.
func (s Status) Stage() Stage { return s.stage }

// State returns the current state.
func (s Status) State() ReportingState { return s.state }

// Percent returns the total completion, 0..100.
func (s Status) Percent() float64 { return s.percent }

// Remaining returns the estimated time left, if an estimate exists yet.
func (s Status) Remaining() (time.Duration, bool) { return s.remaining, s.hasRemaining }

// Message returns the status message.
func (s Status) Message() string { return s.message }

// Error returns the error message if the run failed.
func (s Status) Error() string { return s.errorMessage }

// CreatedAt returns when the run started.
func (s Status) CreatedAt() time.Time { return s.createdAt }

// UpdatedAt returns when the status last changed.
func (s Status) UpdatedAt() time.Time { return s.updatedAt }

// SetProgress moves the run to stage at percent.
func (s Status) SetProgress(stage Stage, percent float64, message string, now time.Time) Status {
	if s.stage != stage {
		s.hasRemaining = false
	}
	s.stage = stage
	s.state = ReportingStateInProgress
	s.percent = max(0, min(100, percent))
	if message != "" {
		s.message = message
	}
	s.updatedAt = now
	return s
}

// SetRemaining records a time-remaining estimate.
func (s Status) SetRemaining(d time.Duration) Status {
	s.remaining = max(0, d)
	s.hasRemaining = true
	return s
}

// Fail marks the run as failed in its current stage.
func (s Status) Fail(errorMsg string, now time.Time) Status {
	s.state = ReportingStateFailed
	s.errorMessage = errorMsg
	s.updatedAt = now
	return s
}

// Complete marks the run as done.
// If already in a terminal state, no change is made.
func (s Status) Complete(now time.Time) Status {
	if s.state.IsTerminal() {
		return s
	}
	s.stage = StageDone
	s.state = ReportingStateCompleted
	s.percent = 100
	s.remaining = 0
	s.hasRemaining = true
	s.updatedAt = now
	return s
}

// MalformedRecord describes a record skipped during a stage.
type MalformedRecord struct {
	RunID string
	Stage Stage
	Index int64
	ID    string
	Err   error
}
