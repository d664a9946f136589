package notifications

import "time"

// Event identifies a lifecycle or progress notification.
type Event string

const (
	EventRecordingStarted Event = "RECORDING_STARTED"
	EventRecordingStopped Event = "RECORDING_STOPPED"
	EventUploadProgress   Event = "UPLOAD_PROGRESS"
	EventRecordingFailed  Event = "RECORDING_FAILED"
	EventDeviceRemoved    Event = "DEVICE_REMOVED"
	EventTest             Event = "TEST"
)

// Payload carries the event fields. Only the fields relevant to the event are
// populated.
type Payload struct {
	ArtifactID string        `json:"artifact_id,omitempty"`
	Mode       string        `json:"mode,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
	Progress   float64       `json:"progress"`
	Status     string        `json:"status,omitempty"`
	Message    string        `json:"message,omitempty"`
	Device     string        `json:"device,omitempty"`
	ShareURL   string        `json:"share_url,omitempty"`
}
