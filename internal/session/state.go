package session

import (
	"fmt"
	"time"

	"reelcap/internal/capture"
)

// Phase is the controller lifecycle state.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseStarting  Phase = "starting"
	PhaseRecording Phase = "recording"
	PhasePaused    Phase = "paused"
	PhaseStopping  Phase = "stopping"
	PhaseUploading Phase = "uploading"
	PhaseFailed    Phase = "failed"
)

// transitions lists the legal edges. Every phase may also move to Failed.
var transitions = map[Phase][]Phase{
	PhaseIdle:      {PhaseStarting, PhaseUploading},
	PhaseStarting:  {PhaseRecording},
	PhaseRecording: {PhasePaused, PhaseStopping},
	PhasePaused:    {PhaseRecording, PhaseStopping},
	PhaseStopping:  {PhaseUploading},
	PhaseUploading: {PhaseIdle},
	PhaseFailed:    {PhaseIdle},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to Phase) bool {
	if to == PhaseFailed {
		return from != PhaseFailed
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Active reports whether a capture is running in this phase.
func (p Phase) Active() bool {
	return p == PhaseRecording || p == PhasePaused
}

// State is a snapshot of the controller's session.
type State struct {
	Phase      Phase                   `json:"phase"`
	StartedAt  time.Time               `json:"started_at,omitzero"`
	Config     capture.RecordingConfig `json:"config"`
	ArtifactID string                  `json:"artifact_id,omitempty"`
	UploadID   string                  `json:"upload_id,omitempty"`
	Progress   float64                 `json:"progress"`
	StatusText string                  `json:"status_text,omitempty"`
	LastError  string                  `json:"last_error,omitempty"`
	ShareURL   string                  `json:"share_url,omitempty"`
	PausedFor  time.Duration           `json:"paused_for,omitempty"`
	pausedAt   time.Time
}

// Elapsed is the recorded time excluding pauses, measured at now.
func (s State) Elapsed(now time.Time) time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	paused := s.PausedFor
	if !s.pausedAt.IsZero() {
		paused += now.Sub(s.pausedAt)
	}
	d := now.Sub(s.StartedAt) - paused
	if d < 0 {
		return 0
	}
	return d
}

// Outcome describes a finished upload.
type Outcome struct {
	ArtifactID string        `json:"artifact_id"`
	ShareURL   string        `json:"share_url"`
	Duration   time.Duration `json:"duration"`
	Bytes      int64         `json:"bytes"`
	Parts      int           `json:"parts"`
}

type transitionError struct {
	from, to Phase
}

func (e transitionError) Error() string {
	return fmt.Sprintf("session: illegal transition %s -> %s", e.from, e.to)
}
