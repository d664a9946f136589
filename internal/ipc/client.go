package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

const dialTimeout = 2 * time.Second

// Client is the CLI side of the daemon socket. Errors returned by its
// methods keep their services sentinel, so callers branch with errors.Is.
type Client struct {
	rpc *rpc.Client
}

// Dial connects to the daemon socket at path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		return nil, err
	}
	return &Client{rpc: rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	if c == nil || c.rpc == nil {
		return nil
	}
	return c.rpc.Close()
}

func call[Resp any](c *Client, method string, req any) (*Resp, error) {
	var resp Resp
	if err := decodeError(c.rpc.Call(serviceName+"."+method, req, &resp)); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Start(req StartRequest) (*SessionResponse, error) {
	return call[SessionResponse](c, "Start", req)
}

// Stop ends the recording and blocks until its upload finishes.
func (c *Client) Stop() (*UploadResponse, error) {
	return call[UploadResponse](c, "Stop", StopRequest{})
}

func (c *Client) Pause() (*SessionResponse, error) {
	return call[SessionResponse](c, "Pause", PauseRequest{})
}

func (c *Client) Resume() (*SessionResponse, error) {
	return call[SessionResponse](c, "Resume", ResumeRequest{})
}

func (c *Client) TogglePause() (*SessionResponse, error) {
	return call[SessionResponse](c, "TogglePause", TogglePauseRequest{})
}

// ToggleRecording stops the active recording and waits for its upload, or
// starts a new one from req when the daemon is idle.
func (c *Client) ToggleRecording(req ToggleRecordingRequest) (*ToggleRecordingResponse, error) {
	return call[ToggleRecordingResponse](c, "ToggleRecording", req)
}

func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusResponse](c, "Status", StatusRequest{})
}

// Recordings lists ledger rows, newest first, optionally filtered by status.
func (c *Client) Recordings(limit int, statuses []string) (*RecordingsResponse, error) {
	return call[RecordingsResponse](c, "Recordings", RecordingsRequest{Limit: limit, Statuses: statuses})
}

// RetryUpload reruns a failed upload from scratch and blocks until it
// finishes.
func (c *Client) RetryUpload(artifactID string) (*UploadResponse, error) {
	return call[UploadResponse](c, "RetryUpload", RetryUploadRequest{ArtifactID: artifactID})
}

func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	return call[TestNotificationResponse](c, "TestNotification", TestNotificationRequest{})
}

// Shutdown asks the daemon process to exit.
func (c *Client) Shutdown() (*ShutdownResponse, error) {
	return call[ShutdownResponse](c, "Shutdown", ShutdownRequest{})
}
