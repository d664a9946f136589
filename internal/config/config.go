package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	StateDir   string `toml:"state_dir"`
	LogDir     string `toml:"log_dir"`
}

// API contains configuration for the remote recording service.
type API struct {
	BaseURL             string `toml:"base_url"`
	SessionToken        string `toml:"session_token"`
	RequestTimeout      int    `toml:"request_timeout"`
	SessionCacheSeconds int    `toml:"session_cache_seconds"`
}

// Capture contains configuration for the ffmpeg-backed capture agent.
type Capture struct {
	DefaultMode   string `toml:"default_mode"`
	MicEnabled    bool   `toml:"mic_enabled"`
	CameraEnabled bool   `toml:"camera_enabled"`
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	Display       string `toml:"display"`
	VideoDevice   string `toml:"video_device"`
	AudioDevice   string `toml:"audio_device"`
	Framerate     int    `toml:"framerate"`
	VideoBitrate  int    `toml:"video_bitrate"`
	SegmentBytes  int64  `toml:"segment_bytes"`
	// PickerCommand selects a window or region; its stdout is used as the
	// stream handle and a non-zero exit means the user cancelled.
	PickerCommand []string `toml:"picker_command"`
	WatchDevices  bool     `toml:"watch_devices"`
}

// Upload contains configuration for the chunked upload pipeline.
type Upload struct {
	PartSizeMiB   int  `toml:"part_size_mib"`
	KeepLocalCopy bool `toml:"keep_local_copy"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Recording      bool   `toml:"recording"`
	Progress       bool   `toml:"progress"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for reelcap.
//
// Configuration sections by subsystem:
//   - Paths: staging, state and log directories
//   - API: remote service endpoint and session token
//   - Capture: capture modes, devices and encoder settings
//   - Upload: multipart part size and local copy retention
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	API           API           `toml:"api"`
	Capture       Capture       `toml:"capture"`
	Upload        Upload        `toml:"upload"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and environment overrides applied.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("reelcap.toml")
	if err != nil {
		return "", false, err
	}

	for _, candidate := range []string{defaultPath, projectPath} {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true, nil
		}
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SocketPath is the Unix socket the daemon serves IPC on.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "reelcap.sock")
}

// LockPath is the single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "reelcap.lock")
}

// PIDPath is where the running daemon records its process id.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "reelcap.pid")
}

// CurrentLogPath points at the most recent daemon run's log file.
func (c *Config) CurrentLogPath() string {
	return filepath.Join(c.Paths.LogDir, "reelcap.log")
}

// LedgerPath is the SQLite database holding the recordings ledger.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "recordings.db")
}

// PartSizeBytes returns the multipart part size in bytes.
func (c *Config) PartSizeBytes() int64 {
	return int64(c.Upload.PartSizeMiB) * 1024 * 1024
}

// APITimeout returns the per-request timeout for the remote service.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.RequestTimeout) * time.Second
}

// SessionCacheTTL returns how long a successful session check is trusted.
func (c *Config) SessionCacheTTL() time.Duration {
	return time.Duration(c.API.SessionCacheSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && pathValue[1] == '/' {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
