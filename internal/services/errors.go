package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAlreadyRecording       = errors.New("already recording")
	ErrNotRecording           = errors.New("not recording")
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrDeviceUnavailable      = errors.New("device unavailable")
	ErrNoSupportedFormat      = errors.New("no supported format")
	ErrNoActiveRecording      = errors.New("no active recording")
	ErrMissingETag            = errors.New("missing etag")
	ErrIncompleteUpload       = errors.New("incomplete upload")
	ErrNetworkFailure         = errors.New("network failure")
	ErrUnknownMessage         = errors.New("unknown message")
	ErrInvalidMessage         = errors.New("invalid message")
	ErrConfiguration          = errors.New("configuration error")
	ErrNotFound               = errors.New("not found")
)

// codes maps sentinel markers to the stable identifiers carried in
// cross-context responses and IPC replies.
var codes = []struct {
	code   string
	marker error
}{
	{"already_recording", ErrAlreadyRecording},
	{"not_recording", ErrNotRecording},
	{"authentication_required", ErrAuthenticationRequired},
	{"device_unavailable", ErrDeviceUnavailable},
	{"no_supported_format", ErrNoSupportedFormat},
	{"no_active_recording", ErrNoActiveRecording},
	{"missing_etag", ErrMissingETag},
	{"incomplete_upload", ErrIncompleteUpload},
	{"network_failure", ErrNetworkFailure},
	{"unknown_message", ErrUnknownMessage},
	{"invalid_message", ErrInvalidMessage},
	{"configuration", ErrConfiguration},
	{"not_found", ErrNotFound},
}

// Wrap builds an error message that includes component context while tagging
// it with the provided marker so callers can classify it with errors.Is. The
// marker should be one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrNetworkFailure
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Code returns the stable identifier for the first sentinel err matches, or
// "internal" when none match.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range codes {
		if errors.Is(err, entry.marker) {
			return entry.code
		}
	}
	return "internal"
}

// FromCode rebuilds an error carrying the sentinel identified by code. Unknown
// codes produce a plain error with the message.
func FromCode(code, message string) error {
	message = strings.TrimSpace(message)
	for _, entry := range codes {
		if entry.code != code {
			continue
		}
		if message == "" || message == entry.marker.Error() {
			return entry.marker
		}
		return fmt.Errorf("%w: %s", entry.marker, strings.TrimPrefix(message, entry.marker.Error()+": "))
	}
	if message == "" {
		message = "unknown failure"
	}
	return errors.New(message)
}

// UserMessage renders err as the short human-readable text shown in failure
// notifications.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthenticationRequired):
		return "Please sign in before recording"
	case errors.Is(err, ErrDeviceUnavailable):
		return "Capture device unavailable"
	case errors.Is(err, ErrNoSupportedFormat):
		return "No supported recording format"
	case errors.Is(err, ErrNoActiveRecording):
		return "No active recording"
	case errors.Is(err, ErrMissingETag), errors.Is(err, ErrIncompleteUpload), errors.Is(err, ErrNetworkFailure):
		return "Upload failed"
	default:
		return "Recording failed"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
