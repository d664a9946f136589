package services_test

import (
	"errors"
	"strings"
	"testing"

	"reelcap/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrNetworkFailure, "upload", "presign part", "part 3", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrNetworkFailure) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"upload", "presign part", "part 3"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutDetail(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrNetworkFailure) {
		t.Fatalf("expected default marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err)
	}
}

func TestCodeRoundTrip(t *testing.T) {
	markers := []error{
		services.ErrAlreadyRecording,
		services.ErrNotRecording,
		services.ErrAuthenticationRequired,
		services.ErrDeviceUnavailable,
		services.ErrNoSupportedFormat,
		services.ErrNoActiveRecording,
		services.ErrMissingETag,
		services.ErrIncompleteUpload,
		services.ErrNetworkFailure,
		services.ErrUnknownMessage,
	}
	for _, marker := range markers {
		wrapped := services.Wrap(marker, "capture", "start", "detail", nil)
		code := services.Code(wrapped)
		rebuilt := services.FromCode(code, wrapped.Error())
		if !errors.Is(rebuilt, marker) {
			t.Fatalf("code %q lost marker %v", code, marker)
		}
		if !strings.Contains(rebuilt.Error(), "detail") {
			t.Fatalf("expected message to survive, got %q", rebuilt)
		}
	}
}

func TestCodeUnknown(t *testing.T) {
	if got := services.Code(errors.New("plain")); got != "internal" {
		t.Fatalf("expected internal, got %q", got)
	}
	if got := services.Code(nil); got != "" {
		t.Fatalf("expected empty code for nil, got %q", got)
	}
	err := services.FromCode("internal", "kaboom")
	if err == nil || err.Error() != "kaboom" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{services.Wrap(services.ErrMissingETag, "upload", "put", "", nil), "Upload failed"},
		{services.ErrAuthenticationRequired, "Please sign in before recording"},
		{services.ErrNoActiveRecording, "No active recording"},
		{errors.New("other"), "Recording failed"},
	}
	for _, tt := range tests {
		if got := services.UserMessage(tt.err); got != tt.want {
			t.Fatalf("UserMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
