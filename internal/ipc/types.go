package ipc

import "time"

// SessionState is the wire form of a session snapshot.
type SessionState struct {
	Phase          string    `json:"phase"`
	Mode           string    `json:"mode,omitempty"`
	MicEnabled     bool      `json:"mic_enabled"`
	CameraEnabled  bool      `json:"camera_enabled"`
	ArtifactID     string    `json:"artifact_id,omitempty"`
	StartedAt      time.Time `json:"started_at,omitzero"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
	Progress       float64   `json:"progress"`
	StatusText     string    `json:"status_text,omitempty"`
	LastError      string    `json:"last_error,omitempty"`
	ShareURL       string    `json:"share_url,omitempty"`
}

// Outcome describes a finished upload.
type Outcome struct {
	ArtifactID      string  `json:"artifact_id"`
	ShareURL        string  `json:"share_url"`
	DurationSeconds float64 `json:"duration_seconds"`
	Bytes           int64   `json:"bytes"`
	Parts           int     `json:"parts"`
}

// Recording mirrors a ledger row.
type Recording struct {
	ArtifactID      string     `json:"artifact_id"`
	Status          string     `json:"status"`
	Mode            string     `json:"mode"`
	BlobPath        string     `json:"blob_path,omitempty"`
	BlobSize        int64      `json:"blob_size"`
	ShareURL        string     `json:"share_url,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	ProgressPercent float64    `json:"progress_percent"`
	Attempts        int        `json:"attempts"`
	DurationSeconds float64    `json:"duration_seconds"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	UploadedAt      *time.Time `json:"uploaded_at,omitempty"`
	Retryable       bool       `json:"retryable"`
}

// StartRequest begins a recording.
type StartRequest struct {
	Mode          string `json:"mode"`
	MicEnabled    bool   `json:"mic_enabled"`
	CameraEnabled bool   `json:"camera_enabled"`
	VideoDeviceID string `json:"video_device_id,omitempty"`
	AudioDeviceID string `json:"audio_device_id,omitempty"`
}

// StopRequest ends the recording and uploads it.
type StopRequest struct{}

// PauseRequest suspends the recording.
type PauseRequest struct{}

// ResumeRequest continues a paused recording.
type ResumeRequest struct{}

// TogglePauseRequest flips between recording and paused.
type TogglePauseRequest struct{}

// ToggleRecordingRequest stops an active recording or starts one with
// the given defaults.
type ToggleRecordingRequest struct {
	Mode          string `json:"mode"`
	MicEnabled    bool   `json:"mic_enabled"`
	CameraEnabled bool   `json:"camera_enabled"`
	VideoDeviceID string `json:"video_device_id,omitempty"`
	AudioDeviceID string `json:"audio_device_id,omitempty"`
}

// ToggleRecordingResponse reports which way the toggle went. Outcome is
// set only when a recording was stopped.
type ToggleRecordingResponse struct {
	Started bool         `json:"started"`
	Session SessionState `json:"session"`
	Outcome *Outcome     `json:"outcome,omitempty"`
}

// SessionResponse carries the session after a start or pause command.
type SessionResponse struct {
	Session SessionState `json:"session"`
}

// UploadResponse carries the result of a stop or retry.
type UploadResponse struct {
	Outcome Outcome `json:"outcome"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon and session status.
type StatusResponse struct {
	Running        bool         `json:"running"`
	PID            int          `json:"pid"`
	LockPath       string       `json:"lock_path"`
	LedgerPath     string       `json:"ledger_path"`
	WatcherRunning bool         `json:"watcher_running"`
	ActiveDevices  []string     `json:"active_devices"`
	Session        SessionState `json:"session"`
}

// RecordingsRequest filters the ledger listing.
type RecordingsRequest struct {
	Limit    int      `json:"limit"`
	Statuses []string `json:"statuses"`
}

// RecordingsResponse contains ledger rows, newest first.
type RecordingsResponse struct {
	Recordings []Recording `json:"recordings"`
}

// RetryUploadRequest reruns a failed upload.
type RetryUploadRequest struct {
	ArtifactID string `json:"artifact_id"`
}

// TestNotificationRequest triggers a test notification.
type TestNotificationRequest struct{}

// TestNotificationResponse reports the notification result.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// ShutdownRequest asks the daemon process to exit.
type ShutdownRequest struct{}

// ShutdownResponse acknowledges the shutdown.
type ShutdownResponse struct {
	Accepted bool `json:"accepted"`
}
