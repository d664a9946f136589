package capture

import (
	"context"
	"io"

	"reelcap/internal/media"
)

// TrackKind separates video and audio inputs.
type TrackKind string

const (
	TrackVideo TrackKind = "video"
	TrackAudio TrackKind = "audio"
)

// Track is an acquired capture device. Stop releases it and must be safe to
// call more than once.
type Track interface {
	Kind() TrackKind
	Label() string
	// Device is the device node backing the track, or "" when there is none.
	Device() string
	Stop() error
}

// Devices acquires capture inputs.
type Devices interface {
	AcquireVideo(ctx context.Context, handle StreamHandle, cfg RecordingConfig) ([]Track, error)
	AcquireAudio(ctx context.Context, cfg RecordingConfig) (Track, error)
}

// Encoder is a running incremental encoder writing its container stream to
// the sink given at start.
type Encoder interface {
	Pause() error
	Resume() error
	// Finish flushes buffered data and waits for the encoder to exit.
	Finish(ctx context.Context) error
	// Abort terminates the encoder without finalizing output.
	Abort() error
	// Exited is closed once the encoder process has ended for any reason.
	Exited() <-chan struct{}
}

// EncoderFactory starts encoders and reports which formats it can produce.
type EncoderFactory interface {
	Supports(ctx context.Context, format media.Format) bool
	Start(ctx context.Context, tracks []Track, format media.Format, sink io.Writer) (Encoder, error)
}
