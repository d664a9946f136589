package capture

// Mode names a capture source kind.
type Mode string

const (
	ModeScreen Mode = "screen"
	ModeWindow Mode = "window"
	ModeTab    Mode = "tab"
	ModeCamera Mode = "camera"
)

// RecordingConfig is fixed for the lifetime of one session.
type RecordingConfig struct {
	Mode          Mode   `json:"mode" validate:"oneof=screen window tab camera"`
	MicEnabled    bool   `json:"mic_enabled"`
	CameraEnabled bool   `json:"camera_enabled"`
	VideoDeviceID string `json:"video_device_id,omitempty"`
	AudioDeviceID string `json:"audio_device_id,omitempty"`
}

// StreamHandle is the resolved source the agent captures from. For display
// modes Source is an X11 display and Geometry an optional WxH+X+Y region; for
// camera mode Source is a V4L2 device node.
type StreamHandle struct {
	Mode     Mode   `json:"mode" validate:"oneof=screen window tab camera"`
	Source   string `json:"source" validate:"required"`
	Geometry string `json:"geometry,omitempty" validate:"omitempty,geometry"`
}

// IsDisplay reports whether the handle grabs from the X display.
func (h StreamHandle) IsDisplay() bool {
	return h.Mode != ModeCamera
}
