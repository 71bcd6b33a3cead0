package run

import (
	"testing"
	"time"
)

func TestReportingState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    ReportingState
		terminal bool
	}{
		{ReportingStateStarted, false},
		{ReportingStateInProgress, false},
		{ReportingStateCompleted, true},
		{ReportingStateFailed, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestBands(t *testing.T) {
	with := Bands(true)
	if got := with[StageMasking].At(1); got != 100 {
		t.Errorf("masking end = %v, want 100", got)
	}
	if got := with[StageAggregate].At(0.5); got != 60 {
		t.Errorf("aggregate midpoint = %v, want 60", got)
	}
	without := Bands(false)
	if _, ok := without[StageMasking]; ok {
		t.Error("masking band without masking")
	}
	if got := without[StageAggregate].At(2); got != 100 {
		t.Errorf("fraction is clamped, got %v", got)
	}
}

func TestStatus_Lifecycle(t *testing.T) {
	now := time.Unix(1000, 0)
	s := NewStatus("run-1", now)
	if s.State() != ReportingStateStarted || s.Stage() != StageDiscovery {
		t.Fatalf("unexpected initial status %v %v", s.State(), s.Stage())
	}

	s = s.SetProgress(StageDiscovery, 25, "reading", now.Add(time.Second)).SetRemaining(3 * time.Second)
	if d, ok := s.Remaining(); !ok || d != 3*time.Second {
		t.Errorf("Remaining() = %v, %v", d, ok)
	}

	s = s.SetProgress(StageAggregate, 55, "", now.Add(2*time.Second))
	if _, ok := s.Remaining(); ok {
		t.Error("estimate should reset on stage change")
	}
	if s.Message() != "reading" {
		t.Errorf("Message() = %q, empty message keeps the old one", s.Message())
	}

	failed := s.Fail("disk full", now)
	if failed.State() != ReportingStateFailed || failed.Error() != "disk full" {
		t.Errorf("Fail() = %v %q", failed.State(), failed.Error())
	}
	if failed.Complete(now).State() != ReportingStateFailed {
		t.Error("Complete() must not override a terminal state")
	}

	done := s.Complete(now)
	if done.Percent() != 100 || done.Stage() != StageDone {
		t.Errorf("Complete() = %v %v", done.Percent(), done.Stage())
	}
}
