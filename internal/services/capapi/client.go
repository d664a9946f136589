package capapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"reelcap/internal/config"
	"reelcap/internal/logging"
	"reelcap/internal/services"
)

const (
	component         = "capapi"
	sessionCookieName = "next-auth.session-token"
	userAgent         = "reelcap/0.1"
	maxErrorBody      = 2048
)

// HTTPDoer describes the HTTP client used by the API client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// User is the account a session token belongs to.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Session is the response of the auth session endpoint.
type Session struct {
	User    *User  `json:"user"`
	Expires string `json:"expires,omitempty"`
}

// CompletedPart is one acknowledged part in a complete request.
type CompletedPart struct {
	PartNumber int    `json:"partNumber"`
	ETag       string `json:"etag"`
	Size       int64  `json:"size"`
}

// Client talks to the recording service API: session checks, artifact
// allocation and the multipart upload endpoints.
type Client struct {
	baseURL  string
	token    string
	client   HTTPDoer
	transfer HTTPDoer
	sessions *cache.Cache
	logger   *slog.Logger
}

// New builds a client from configuration. api.request_timeout bounds each
// JSON call. Part transfers only bound connection setup by it; a part body
// takes as long as the uplink needs, and the caller's context is the only
// cancel.
func New(cfg *config.Config, logger *slog.Logger) *Client {
	timeout := cfg.APITimeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := NewClient(cfg.API.BaseURL, cfg.API.SessionToken, &http.Client{Timeout: timeout}, cfg.SessionCacheTTL(), logger)
	client.transfer = newTransferClient(timeout)
	return client
}

func newTransferClient(connectTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}).DialContext
	transport.TLSHandshakeTimeout = connectTimeout
	return &http.Client{Transport: transport}
}

// NewClient constructs a client with an explicit HTTP implementation. A
// sessionTTL of zero disables session caching.
func NewClient(baseURL, token string, doer HTTPDoer, sessionTTL time.Duration, logger *slog.Logger) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	var sessions *cache.Cache
	if sessionTTL > 0 {
		sessions = cache.New(sessionTTL, 2*sessionTTL)
	}
	return &Client{
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:    strings.TrimSpace(token),
		client:   doer,
		transfer: doer,
		sessions: sessions,
		logger:   logging.NewComponentLogger(logger, component),
	}
}

// BaseURL returns the normalized service root.
func (c *Client) BaseURL() string { return c.baseURL }

// ShareURL is the public page for an uploaded artifact.
func (c *Client) ShareURL(artifactID string) string {
	return c.baseURL + "/s/" + url.PathEscape(artifactID)
}

// CheckSession confirms the configured token maps to a signed-in user.
// Successful checks are cached; any authentication failure clears the cache.
func (c *Client) CheckSession(ctx context.Context) (*Session, error) {
	if c.token == "" {
		return nil, services.Wrap(services.ErrAuthenticationRequired, component, "check session", "no session token configured", nil)
	}
	if c.sessions != nil {
		if cached, ok := c.sessions.Get(c.token); ok {
			return cached.(*Session), nil
		}
	}

	var session Session
	if err := c.doJSON(ctx, http.MethodGet, "/api/auth/session", nil, &session, "check session"); err != nil {
		return nil, err
	}
	if session.User == nil {
		return nil, services.Wrap(services.ErrAuthenticationRequired, component, "check session", "session has no user", nil)
	}
	if c.sessions != nil {
		c.sessions.Set(c.token, &session, cache.DefaultExpiration)
	}
	return &session, nil
}

// CreateArtifact allocates a remote video record and returns its id.
func (c *Client) CreateArtifact(ctx context.Context) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/desktop/video/create", nil, &resp, "create artifact"); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.ID) == "" {
		return "", services.Wrap(services.ErrNetworkFailure, component, "create artifact", "response missing id", nil)
	}
	return resp.ID, nil
}

// DeleteArtifact discards an artifact that will never receive an upload.
func (c *Client) DeleteArtifact(ctx context.Context, artifactID string) error {
	path := "/api/desktop/video/delete?videoId=" + url.QueryEscape(artifactID)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil, "delete artifact")
}

// InitiateMultipart opens an upload session for the artifact.
func (c *Client) InitiateMultipart(ctx context.Context, artifactID, contentType string) (string, error) {
	req := struct {
		VideoID     string `json:"videoId"`
		ContentType string `json:"contentType"`
	}{artifactID, contentType}
	var resp struct {
		UploadID string `json:"uploadId"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/upload/multipart/initiate", req, &resp, "initiate upload"); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.UploadID) == "" {
		return "", services.Wrap(services.ErrNetworkFailure, component, "initiate upload", "response missing uploadId", nil)
	}
	return resp.UploadID, nil
}

// PresignPart returns the one-shot URL the given part must be PUT to.
func (c *Client) PresignPart(ctx context.Context, artifactID, uploadID string, partNumber int) (string, error) {
	req := struct {
		VideoID    string `json:"videoId"`
		UploadID   string `json:"uploadId"`
		PartNumber int    `json:"partNumber"`
	}{artifactID, uploadID, partNumber}
	var resp struct {
		PresignedURL string `json:"presignedUrl"`
	}
	op := fmt.Sprintf("presign part %d", partNumber)
	if err := c.doJSON(ctx, http.MethodPost, "/api/upload/multipart/presign-part", req, &resp, op); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.PresignedURL) == "" {
		return "", services.Wrap(services.ErrNetworkFailure, component, op, "response missing presignedUrl", nil)
	}
	return resp.PresignedURL, nil
}

// CompleteMultipart asks the service to assemble the acknowledged parts.
// Rejections of the part list surface as ErrIncompleteUpload.
func (c *Client) CompleteMultipart(ctx context.Context, artifactID, uploadID string, parts []CompletedPart) error {
	req := struct {
		VideoID  string          `json:"videoId"`
		UploadID string          `json:"uploadId"`
		Parts    []CompletedPart `json:"parts"`
	}{artifactID, uploadID, parts}
	err := c.doJSON(ctx, http.MethodPost, "/api/upload/multipart/complete", req, nil, "complete upload")
	var status *statusError
	if errors.As(err, &status) {
		switch status.code {
		case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
			return services.Wrap(services.ErrIncompleteUpload, component, "complete upload", status.Error(), nil)
		}
	}
	return err
}

// PutPart uploads one slice to a presigned URL and returns its ETag with
// quotes stripped.
func (c *Client) PutPart(ctx context.Context, presignedURL string, body io.Reader, size int64, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, presignedURL, body)
	if err != nil {
		return "", services.Wrap(services.ErrNetworkFailure, component, "put part", "build request", err)
	}
	req.ContentLength = size
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.transfer.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrNetworkFailure, component, "put part", "", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", services.Wrap(services.ErrNetworkFailure, component, "put part",
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(text))), nil)
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	etag := strings.ReplaceAll(resp.Header.Get("ETag"), `"`, "")
	if strings.TrimSpace(etag) == "" {
		return "", services.Wrap(services.ErrMissingETag, component, "put part", "response carried no ETag header", nil)
	}
	return etag, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("status %d", e.code)
	}
	return fmt.Sprintf("status %d: %s", e.code, e.body)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any, op string) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return services.Wrap(services.ErrNetworkFailure, component, op, "encode request", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return services.Wrap(services.ErrNetworkFailure, component, op, "build request", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: c.token})
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		req.Header.Set("X-Request-ID", rid)
	}

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrNetworkFailure, component, op, "", err)
	}
	defer resp.Body.Close()

	logging.WithContext(ctx, c.logger).Debug("api request",
		logging.String("method", method),
		logging.String("path", path),
		logging.Int("status", resp.StatusCode),
		logging.Duration("elapsed", time.Since(started)),
	)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		if c.sessions != nil {
			c.sessions.Delete(c.token)
		}
		return services.Wrap(services.ErrAuthenticationRequired, component, op, fmt.Sprintf("status %d", resp.StatusCode), nil)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return services.Wrap(services.ErrNetworkFailure, component, op, "", &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(text))})
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrNetworkFailure, component, op, "decode response", err)
	}
	return nil
}
