package config

const (
	defaultConfigPath          = "~/.config/reelcap/config.toml"
	defaultStagingDir          = "~/.local/share/reelcap/staging"
	defaultStateDir            = "~/.local/state/reelcap"
	defaultLogDir              = "~/.local/state/reelcap/logs"
	defaultAPIBaseURL          = "https://cap.so"
	defaultAPIRequestTimeout   = 30
	defaultSessionCacheSeconds = 300
	defaultCaptureMode         = "screen"
	defaultFFmpegBinary        = "ffmpeg"
	defaultDisplay             = ":0.0"
	defaultVideoDevice         = "/dev/video0"
	defaultAudioDevice         = "default"
	defaultFramerate           = 30
	defaultVideoBitrate        = 2500000
	defaultSegmentBytes        = 8 * 1024 * 1024
	defaultPartSizeMiB         = 5
	defaultNotifyTimeout       = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"

	sessionTokenEnv = "REELCAP_SESSION_TOKEN"
	apiBaseURLEnv   = "REELCAP_API_BASE_URL"
	ntfyTopicEnv    = "REELCAP_NTFY_TOPIC"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			StateDir:   defaultStateDir,
			LogDir:     defaultLogDir,
		},
		API: API{
			BaseURL:             defaultAPIBaseURL,
			RequestTimeout:      defaultAPIRequestTimeout,
			SessionCacheSeconds: defaultSessionCacheSeconds,
		},
		Capture: Capture{
			DefaultMode:  defaultCaptureMode,
			MicEnabled:   true,
			FFmpegBinary: defaultFFmpegBinary,
			Display:      defaultDisplay,
			VideoDevice:  defaultVideoDevice,
			AudioDevice:  defaultAudioDevice,
			Framerate:    defaultFramerate,
			VideoBitrate: defaultVideoBitrate,
			SegmentBytes: defaultSegmentBytes,
			WatchDevices: true,
		},
		Upload: Upload{
			PartSizeMiB: defaultPartSizeMiB,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Recording:      true,
			Progress:       true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
