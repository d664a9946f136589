package capture

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"reelcap/internal/media"
	"reelcap/internal/services"
)

// Client sends serialized requests to an Agent and decodes its replies.
type Client struct {
	calls chan<- call
}

// StartCapture asks the agent to begin capturing handle.
func (c *Client) StartCapture(ctx context.Context, handle StreamHandle, cfg RecordingConfig) error {
	resp, err := c.request(ctx, MsgStartCapture, StartCapturePayload{Handle: handle, Config: cfg})
	if err != nil {
		return err
	}
	return resp.Err()
}

// StopCapture finalizes the capture and returns the finished blob.
func (c *Client) StopCapture(ctx context.Context) (media.Blob, error) {
	resp, err := c.request(ctx, MsgStopCapture, nil)
	if err != nil {
		return media.Blob{}, err
	}
	if err := resp.Err(); err != nil {
		return media.Blob{}, err
	}
	if resp.Blob == nil {
		return media.Blob{}, services.Wrap(services.ErrInvalidMessage, "capture", "stop", "response missing blob", nil)
	}
	return *resp.Blob, nil
}

// TogglePause pauses a running capture or resumes a paused one, returning
// the new paused state.
func (c *Client) TogglePause(ctx context.Context) (bool, error) {
	resp, err := c.request(ctx, MsgTogglePause, nil)
	if err != nil {
		return false, err
	}
	if err := resp.Err(); err != nil {
		return false, err
	}
	return resp.Paused != nil && *resp.Paused, nil
}

func (c *Client) request(ctx context.Context, msgType MessageType, payload any) (Response, error) {
	id := uuid.NewString()
	data, err := EncodeRequest(msgType, id, payload)
	if err != nil {
		return Response{}, err
	}
	raw, err := c.Send(ctx, data)
	if err != nil {
		return Response{}, err
	}
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, services.Wrap(services.ErrInvalidMessage, "capture", "decode response", string(msgType), err)
	}
	if resp.ID != id {
		return Response{}, services.Wrap(services.ErrInvalidMessage, "capture", "decode response",
			fmt.Sprintf("reply id %q does not match request %q", resp.ID, id), nil)
	}
	return resp, nil
}

// Send delivers an already-encoded envelope and returns the raw reply.
func (c *Client) Send(ctx context.Context, data []byte) ([]byte, error) {
	reply := make(chan []byte, 1)
	select {
	case c.calls <- call{data: data, reply: reply}:
	case <-ctx.Done():
		return nil, fmt.Errorf("capture: send request: %w", ctx.Err())
	}
	// An accepted call is always answered.
	return <-reply, nil
}

func marshalResponse(resp Response) ([]byte, error) {
	return json.Marshal(resp)
}
