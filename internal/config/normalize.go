package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeCapture()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		key      string
		value    *string
		fallback string
	}{
		{"paths.staging_dir", &c.Paths.StagingDir, defaultStagingDir},
		{"paths.state_dir", &c.Paths.StateDir, defaultStateDir},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
	}
	for _, f := range fields {
		if strings.TrimSpace(*f.value) == "" {
			*f.value = f.fallback
		}
		expanded, err := expandPath(strings.TrimSpace(*f.value))
		if err != nil {
			return fmt.Errorf("%s: %w", f.key, err)
		}
		*f.value = expanded
	}
	return nil
}

func (c *Config) normalizeAPI() {
	if value, ok := os.LookupEnv(apiBaseURLEnv); ok && strings.TrimSpace(value) != "" {
		c.API.BaseURL = value
	}
	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
	if c.API.BaseURL == "" {
		c.API.BaseURL = defaultAPIBaseURL
	}
	c.API.SessionToken = strings.TrimSpace(c.API.SessionToken)
	if c.API.SessionToken == "" {
		if value, ok := os.LookupEnv(sessionTokenEnv); ok {
			c.API.SessionToken = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeCapture() {
	c.Capture.DefaultMode = strings.ToLower(strings.TrimSpace(c.Capture.DefaultMode))
	if c.Capture.DefaultMode == "" {
		c.Capture.DefaultMode = defaultCaptureMode
	}
	c.Capture.FFmpegBinary = strings.TrimSpace(c.Capture.FFmpegBinary)
	if c.Capture.FFmpegBinary == "" {
		c.Capture.FFmpegBinary = defaultFFmpegBinary
	}
	if c.Capture.Display == "" {
		if value, ok := os.LookupEnv("DISPLAY"); ok && strings.TrimSpace(value) != "" {
			c.Capture.Display = strings.TrimSpace(value)
		} else {
			c.Capture.Display = defaultDisplay
		}
	}
	c.Capture.VideoDevice = strings.TrimSpace(c.Capture.VideoDevice)
	c.Capture.AudioDevice = strings.TrimSpace(c.Capture.AudioDevice)
	picker := c.Capture.PickerCommand[:0]
	for _, arg := range c.Capture.PickerCommand {
		if arg = strings.TrimSpace(arg); arg != "" {
			picker = append(picker, arg)
		}
	}
	c.Capture.PickerCommand = picker
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv(ntfyTopicEnv); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
