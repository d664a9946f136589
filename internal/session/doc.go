// Package session implements the recording session controller.
//
// A Controller owns the single SessionState and moves it through
// idle -> starting -> recording <-> paused -> stopping -> uploading -> idle,
// with a failed -> idle escape from any phase. It talks to the capture agent
// only through the Agent message interface, hands the finished blob to an
// Uploader and reports lifecycle events to a notifications.Service. Commands
// run one at a time; a command arriving while another is in flight is
// rejected with ErrAlreadyRecording (start, retry) or ErrNotRecording
// (pause, resume, stop).
package session
