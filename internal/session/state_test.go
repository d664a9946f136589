package session

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	legal := [][2]Phase{
		{PhaseIdle, PhaseStarting},
		{PhaseStarting, PhaseRecording},
		{PhaseRecording, PhasePaused},
		{PhasePaused, PhaseRecording},
		{PhaseRecording, PhaseStopping},
		{PhasePaused, PhaseStopping},
		{PhaseStopping, PhaseUploading},
		{PhaseUploading, PhaseIdle},
		{PhaseIdle, PhaseUploading},
		{PhaseFailed, PhaseIdle},
		{PhaseIdle, PhaseFailed},
		{PhaseUploading, PhaseFailed},
	}
	for _, edge := range legal {
		if !CanTransition(edge[0], edge[1]) {
			t.Errorf("%s -> %s should be legal", edge[0], edge[1])
		}
	}
	illegal := [][2]Phase{
		{PhaseIdle, PhaseRecording},
		{PhaseStarting, PhaseIdle},
		{PhaseRecording, PhaseUploading},
		{PhaseStopping, PhaseRecording},
		{PhaseUploading, PhaseRecording},
		{PhaseFailed, PhaseFailed},
		{PhaseFailed, PhaseRecording},
	}
	for _, edge := range illegal {
		if CanTransition(edge[0], edge[1]) {
			t.Errorf("%s -> %s should be illegal", edge[0], edge[1])
		}
	}
}

func TestElapsedExcludesPauses(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := State{StartedAt: start, PausedFor: 5 * time.Second}
	if got := s.Elapsed(start.Add(20 * time.Second)); got != 15*time.Second {
		t.Fatalf("Elapsed = %v", got)
	}
	s.pausedAt = start.Add(18 * time.Second)
	if got := s.Elapsed(start.Add(20 * time.Second)); got != 13*time.Second {
		t.Fatalf("Elapsed while paused = %v", got)
	}
	if (State{}).Elapsed(start) != 0 {
		t.Fatal("zero state should report no elapsed time")
	}
}
