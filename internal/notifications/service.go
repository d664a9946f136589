package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reelcap/internal/config"
	"reelcap/internal/logging"
	"reelcap/internal/upload"
)

const userAgent = "reelcap/0.1"

// Service is the sink the session controller reports lifecycle and progress
// events to.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil || strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:  strings.TrimSpace(cfg.Notifications.NtfyTopic),
		client:    &http.Client{Timeout: timeout},
		recording: cfg.Notifications.Recording,
		progress:  cfg.Notifications.Progress,
		errors:    cfg.Notifications.Errors,
		sampler:   logging.NewProgressSampler(25),
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
	click    string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	recording bool
	progress  bool
	errors    bool
	sampler   *logging.ProgressSampler
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := n.format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) format(event Event, p Payload) (message, bool) {
	switch event {
	case EventRecordingStarted:
		if !n.recording {
			return message{}, false
		}
		mode := strings.TrimSpace(p.Mode)
		if mode == "" {
			mode = "screen"
		}
		return message{
			title: "Reelcap - Recording",
			body:  fmt.Sprintf("🔴 Recording started (%s)", mode),
			tags:  []string{"reelcap", "recording", "started"},
		}, true
	case EventRecordingStopped:
		if !n.recording {
			return message{}, false
		}
		duration := p.Duration.Round(time.Second)
		if duration < 0 {
			duration = 0
		}
		return message{
			title: "Reelcap - Recording",
			body:  fmt.Sprintf("⏹ Recording stopped after %s", duration),
			tags:  []string{"reelcap", "recording", "stopped"},
		}, true
	case EventUploadProgress:
		if !n.progress {
			return message{}, false
		}
		// The failure itself arrives as EventRecordingFailed.
		if n.errors && p.Status == upload.StatusFailed {
			return message{}, false
		}
		if !n.sampler.Sample(p.Progress, p.Status) {
			return message{}, false
		}
		body := fmt.Sprintf("%s %.0f%%", strings.TrimSpace(p.Status), p.Progress)
		msg := message{
			title: "Reelcap - Upload",
			body:  body,
			tags:  []string{"reelcap", "upload"},
		}
		if p.Progress >= 100 && p.ShareURL != "" {
			msg.body = fmt.Sprintf("✅ %s\n%s", strings.TrimSpace(p.Status), p.ShareURL)
			msg.click = p.ShareURL
			msg.priority = "high"
			msg.tags = append(msg.tags, "completed")
		}
		return msg, true
	case EventRecordingFailed:
		if !n.errors {
			return message{}, false
		}
		text := strings.TrimSpace(p.Message)
		if text == "" {
			text = "unknown failure"
		}
		return message{
			title:    "Reelcap - Error",
			body:     "❌ " + text,
			tags:     []string{"reelcap", "error", "alert"},
			priority: "high",
		}, true
	case EventDeviceRemoved:
		if !n.errors {
			return message{}, false
		}
		return message{
			title:    "Reelcap - Device Removed",
			body:     fmt.Sprintf("⚠️ Capture device removed: %s", strings.TrimSpace(p.Device)),
			tags:     []string{"reelcap", "device", "warning"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Reelcap - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"reelcap", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}
	if msg.click != "" {
		req.Header.Set("Click", msg.click)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
