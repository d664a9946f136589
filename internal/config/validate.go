package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
)

// CaptureModes lists the accepted capture.default_mode values.
var CaptureModes = []string{"screen", "window", "tab", "camera"}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateAPI() error {
	parsed, err := url.Parse(c.API.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute URL, got %q", c.API.BaseURL)
	}
	if c.API.RequestTimeout <= 0 {
		return errors.New("api.request_timeout must be positive")
	}
	if c.API.SessionCacheSeconds < 0 {
		return errors.New("api.session_cache_seconds must be zero or positive")
	}
	return nil
}

func (c *Config) validateCapture() error {
	if !slices.Contains(CaptureModes, c.Capture.DefaultMode) {
		return fmt.Errorf("capture.default_mode must be one of %v, got %q", CaptureModes, c.Capture.DefaultMode)
	}
	if c.Capture.Framerate <= 0 || c.Capture.Framerate > 120 {
		return errors.New("capture.framerate must be between 1 and 120")
	}
	if c.Capture.VideoBitrate <= 0 {
		return errors.New("capture.video_bitrate must be positive")
	}
	if c.Capture.SegmentBytes < 64*1024 {
		return errors.New("capture.segment_bytes must be at least 65536")
	}
	return nil
}

func (c *Config) validateUpload() error {
	// S3-compatible multipart uploads reject non-final parts under 5 MiB.
	if c.Upload.PartSizeMiB < 5 || c.Upload.PartSizeMiB > 5*1024 {
		return errors.New("upload.part_size_mib must be between 5 and 5120")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}
