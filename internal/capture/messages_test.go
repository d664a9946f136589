package capture

import (
	"errors"
	"testing"

	"reelcap/internal/services"
)

func TestDecodeRequest(t *testing.T) {
	valid, err := EncodeRequest(MsgStartCapture, "req-1", StartCapturePayload{
		Handle: StreamHandle{Mode: ModeWindow, Source: ":1", Geometry: "800x600+10+20"},
		Config: RecordingConfig{Mode: ModeWindow, MicEnabled: true},
	})
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	badGeometry, _ := EncodeRequest(MsgStartCapture, "req-2", StartCapturePayload{
		Handle: StreamHandle{Mode: ModeWindow, Source: ":1", Geometry: "800x600"},
		Config: RecordingConfig{Mode: ModeWindow},
	})
	stop, _ := EncodeRequest(MsgStopCapture, "req-3", nil)

	tests := []struct {
		name    string
		data    []byte
		wantErr error
		wantID  string
	}{
		{name: "start", data: valid, wantID: "req-1"},
		{name: "stop", data: stop, wantID: "req-3"},
		{name: "bad geometry", data: badGeometry, wantErr: services.ErrInvalidMessage, wantID: "req-2"},
		{name: "unknown tag", data: []byte(`{"type":"RECORDING_STARTED","id":"x"}`), wantErr: services.ErrUnknownMessage, wantID: "x"},
		{name: "empty tag", data: []byte(`{}`), wantErr: services.ErrUnknownMessage},
		{name: "payload wrong shape", data: []byte(`{"type":"START_CAPTURE","payload":[1,2]}`), wantErr: services.ErrInvalidMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, payload, err := DecodeRequest(tt.data)
			if env.ID != tt.wantID {
				t.Fatalf("id = %q, want %q", env.ID, tt.wantID)
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if env.Type == MsgStartCapture {
				p, ok := payload.(StartCapturePayload)
				if !ok || p.Handle.Geometry != "800x600+10+20" || !p.Config.MicEnabled {
					t.Fatalf("payload = %#v", payload)
				}
			}
		})
	}
}

func TestResponseErrRestoresSentinel(t *testing.T) {
	resp := failure("id", services.Wrap(services.ErrNoSupportedFormat, "capture", "start", "", nil))
	if resp.Code != "no_supported_format" {
		t.Fatalf("code = %q", resp.Code)
	}
	if !errors.Is(resp.Err(), services.ErrNoSupportedFormat) {
		t.Fatalf("Err() = %v", resp.Err())
	}
	if (Response{Success: true}).Err() != nil {
		t.Fatal("successful response should carry no error")
	}
}

func TestValidateConfig(t *testing.T) {
	if err := ValidateConfig(RecordingConfig{Mode: ModeCamera}); err != nil {
		t.Fatalf("camera config rejected: %v", err)
	}
	if err := ValidateConfig(RecordingConfig{Mode: "desk"}); !errors.Is(err, services.ErrInvalidMessage) {
		t.Fatalf("err = %v", err)
	}
}
