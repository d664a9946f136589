package capture

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"reelcap/internal/media"
	"reelcap/internal/services"
)

// MessageType tags a request crossing into the capture agent.
type MessageType string

const (
	MsgStartCapture MessageType = "START_CAPTURE"
	MsgStopCapture  MessageType = "STOP_CAPTURE"
	MsgTogglePause  MessageType = "TOGGLE_PAUSE"
)

// Envelope is the serialized form of every request.
type Envelope struct {
	Type    MessageType     `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// StartCapturePayload accompanies START_CAPTURE.
type StartCapturePayload struct {
	Handle StreamHandle    `json:"stream_handle" validate:"required"`
	Config RecordingConfig `json:"config" validate:"required"`
}

// Response is the serialized reply to every request.
type Response struct {
	ID      string      `json:"id,omitempty"`
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
	Blob    *media.Blob `json:"blob,omitempty"`
	Paused  *bool       `json:"paused,omitempty"`
}

// Err rebuilds the sentinel-tagged error carried by a failed response.
func (r Response) Err() error {
	if r.Success {
		return nil
	}
	return services.FromCode(r.Code, r.Error)
}

func failure(id string, err error) Response {
	return Response{ID: id, Success: false, Error: err.Error(), Code: services.Code(err)}
}

var geometryPattern = regexp.MustCompile(`^\d+x\d+\+\d+\+\d+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("geometry", func(fl validator.FieldLevel) bool {
		return geometryPattern.MatchString(fl.Field().String())
	})
	return v
}

// EncodeRequest serializes a request envelope.
func EncodeRequest(msgType MessageType, id string, payload any) ([]byte, error) {
	env := Envelope{Type: msgType, ID: id}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", msgType, err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// DecodeRequest parses and validates an envelope. Unknown tags fail with
// ErrUnknownMessage and malformed payloads with ErrInvalidMessage; the
// returned envelope still carries the request id when it could be read.
func DecodeRequest(data []byte) (Envelope, any, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return env, nil, services.Wrap(services.ErrInvalidMessage, "capture", "decode", "malformed envelope", err)
	}
	switch env.Type {
	case MsgStartCapture:
		var payload StartCapturePayload
		if len(env.Payload) == 0 {
			return env, nil, services.Wrap(services.ErrInvalidMessage, "capture", "decode", "START_CAPTURE without payload", nil)
		}
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return env, nil, services.Wrap(services.ErrInvalidMessage, "capture", "decode", "START_CAPTURE payload", err)
		}
		if err := validate.Struct(payload); err != nil {
			return env, nil, services.Wrap(services.ErrInvalidMessage, "capture", "validate", "START_CAPTURE payload", err)
		}
		return env, payload, nil
	case MsgStopCapture, MsgTogglePause:
		return env, nil, nil
	default:
		return env, nil, services.Wrap(services.ErrUnknownMessage, "capture", "decode", fmt.Sprintf("type %q", env.Type), nil)
	}
}

// ValidateConfig checks a RecordingConfig before it is sent anywhere.
func ValidateConfig(cfg RecordingConfig) error {
	if err := validate.Struct(cfg); err != nil {
		return services.Wrap(services.ErrInvalidMessage, "capture", "validate", "recording config", err)
	}
	return nil
}
