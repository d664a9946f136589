package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"reelcap/internal/fileutil"
	"reelcap/internal/logging"
	"reelcap/internal/media"
	"reelcap/internal/services"
)

// AgentOptions configures an Agent.
type AgentOptions struct {
	Devices      Devices
	Encoders     EncoderFactory
	StagingDir   string
	SegmentBytes int64
	// Formats overrides the format preference order.
	Formats []string
	Logger  *slog.Logger
}

type call struct {
	data  []byte
	reply chan []byte
}

type activeCapture struct {
	id        string
	tracks    []Track
	encoder   Encoder
	spool     *spool
	format    media.Format
	paused    bool
	startedAt time.Time
	exited    bool
}

// Agent owns capture devices and the encoder. All state is confined to the
// goroutine running Run; other goroutines reach it only through serialized
// messages.
type Agent struct {
	devices      Devices
	encoders     EncoderFactory
	stagingDir   string
	segmentBytes int64
	formats      []string
	logger       *slog.Logger

	calls   chan call
	active  *activeCapture
	devSnap atomic.Pointer[[]string]
	onExit  ExitHandler
}

// ExitHandler is told when an encoder ends while its capture is still
// active. It runs on its own goroutine and may message the agent.
type ExitHandler func(ctx context.Context, err error)

// NewAgent constructs an agent. Call Run to start processing messages.
func NewAgent(opts AgentOptions) *Agent {
	formats := opts.Formats
	if len(formats) == 0 {
		formats = media.PreferredFormats
	}
	segment := opts.SegmentBytes
	if segment <= 0 {
		segment = 8 * 1024 * 1024
	}
	return &Agent{
		devices:      opts.Devices,
		encoders:     opts.Encoders,
		stagingDir:   opts.StagingDir,
		segmentBytes: segment,
		formats:      formats,
		logger:       logging.NewComponentLogger(opts.Logger, "capture-agent"),
		calls:        make(chan call),
	}
}

// Client returns a handle for sending messages to the agent.
func (a *Agent) Client() *Client {
	return &Client{calls: a.calls}
}

// OnEncoderExit registers the handler for encoders that die mid-capture.
// It must be called before Run.
func (a *Agent) OnEncoderExit(fn ExitHandler) {
	a.onExit = fn
}

// ActiveDevices lists device nodes held by the current capture. It is safe
// to call from any goroutine.
func (a *Agent) ActiveDevices() []string {
	if snap := a.devSnap.Load(); snap != nil {
		return *snap
	}
	return nil
}

// Run processes messages until ctx is cancelled. An in-progress capture is
// aborted and its devices released on the way out.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Debug("capture agent started")
	for {
		var exited <-chan struct{}
		if a.active != nil && !a.active.exited {
			exited = a.active.encoder.Exited()
		}
		select {
		case <-ctx.Done():
			a.abort("agent shutting down")
			return nil
		case c := <-a.calls:
			c.reply <- a.handle(ctx, c.data)
		case <-exited:
			a.encoderExited(ctx)
		}
	}
}

// encoderExited records an encoder that ended without STOP_CAPTURE. The
// capture stays active so a later stop can still assemble what was spooled.
func (a *Agent) encoderExited(ctx context.Context) {
	active := a.active
	active.exited = true
	err := fmt.Errorf("encoder exited unexpectedly after %s", time.Since(active.startedAt).Round(time.Second))
	logging.ErrorWithContext(a.logger, "encoder exited mid-capture", "encoder_exited",
		logging.Error(err),
		logging.String("capture_id", active.id),
		logging.Int64("spooled_bytes", active.spool.Size()),
		logging.String(logging.FieldErrorHint, "check the ffmpeg log lines above and the capture devices"),
	)
	if a.onExit != nil {
		go a.onExit(ctx, err)
	}
}

func (a *Agent) handle(ctx context.Context, data []byte) []byte {
	env, payload, err := DecodeRequest(data)
	var resp Response
	if err != nil {
		logging.WarnWithContext(a.logger, "rejected capture message", "capture_message_rejected",
			logging.Error(err),
			logging.String("type", string(env.Type)),
			logging.String(logging.FieldImpact, "request ignored"),
		)
		resp = failure(env.ID, err)
	} else {
		switch env.Type {
		case MsgStartCapture:
			resp = a.startCapture(ctx, env.ID, payload.(StartCapturePayload))
		case MsgStopCapture:
			resp = a.stopCapture(ctx, env.ID)
		case MsgTogglePause:
			resp = a.togglePause(env.ID)
		}
	}
	out, err := marshalResponse(resp)
	if err != nil {
		out, _ = marshalResponse(failure(env.ID, err))
	}
	return out
}

func (a *Agent) startCapture(ctx context.Context, id string, p StartCapturePayload) Response {
	if a.active != nil {
		return failure(id, services.Wrap(services.ErrAlreadyRecording, "capture", "start", "a capture is already running", nil))
	}

	tracks, err := a.devices.AcquireVideo(ctx, p.Handle, p.Config)
	if err != nil {
		releaseTracks(tracks)
		if !errors.Is(err, services.ErrDeviceUnavailable) {
			err = services.Wrap(services.ErrDeviceUnavailable, "capture", "acquire video", "", err)
		}
		return failure(id, err)
	}
	if len(tracks) == 0 {
		return failure(id, services.Wrap(services.ErrDeviceUnavailable, "capture", "acquire video", "no video track", nil))
	}

	if p.Config.MicEnabled {
		audio, err := a.devices.AcquireAudio(ctx, p.Config)
		if err != nil {
			logging.WarnWithContext(a.logger, "microphone unavailable; recording without audio", "microphone_unavailable",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check capture.audio_device and the PulseAudio/PipeWire server"),
				logging.String(logging.FieldImpact, "recording continues video-only"),
			)
		} else if audio != nil {
			tracks = append(tracks, audio)
		}
	}

	format, ok := a.pickFormat(ctx)
	if !ok {
		releaseTracks(tracks)
		return failure(id, services.Wrap(services.ErrNoSupportedFormat, "capture", "select format",
			fmt.Sprintf("none of %v is supported", a.formats), nil))
	}

	captureID := uuid.NewString()
	sp, err := newSpool(filepath.Join(a.stagingDir, "spool-"+captureID), a.segmentBytes)
	if err != nil {
		releaseTracks(tracks)
		return failure(id, err)
	}
	encoder, err := a.encoders.Start(ctx, tracks, format, sp)
	if err != nil {
		releaseTracks(tracks)
		_ = sp.Discard()
		return failure(id, fmt.Errorf("capture: start encoder: %w", err))
	}

	a.active = &activeCapture{
		id:        captureID,
		tracks:    tracks,
		encoder:   encoder,
		spool:     sp,
		format:    format,
		startedAt: time.Now(),
	}
	a.publishDevices(tracks)
	a.logger.Info("capture started",
		logging.String(logging.FieldEventType, "capture_started"),
		logging.String("capture_id", captureID),
		logging.String("mode", string(p.Handle.Mode)),
		logging.String("format", format.MIME),
		logging.Int("tracks", len(tracks)),
		logging.Bool("audio", hasKind(tracks, TrackAudio)),
	)
	return Response{ID: id, Success: true}
}

func (a *Agent) pickFormat(ctx context.Context) (media.Format, bool) {
	for _, mime := range a.formats {
		format := media.ParseFormat(mime)
		if a.encoders.Supports(ctx, format) {
			return format, true
		}
	}
	return media.Format{}, false
}

func (a *Agent) stopCapture(ctx context.Context, id string) Response {
	active := a.active
	if active == nil {
		return failure(id, services.Wrap(services.ErrNoActiveRecording, "capture", "stop", "No active recording", nil))
	}
	a.active = nil
	a.publishDevices(nil)

	finishErr := active.encoder.Finish(ctx)
	var result *multierror.Error
	if err := releaseTracks(active.tracks); err != nil {
		result = multierror.Append(result, err)
	}
	if err := active.spool.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close spool: %w", err))
	}
	if finishErr != nil && active.spool.Size() == 0 {
		result = multierror.Append(result, fmt.Errorf("finalize encoder: %w", finishErr))
	}
	if err := result.ErrorOrNil(); err != nil {
		_ = active.spool.Discard()
		return failure(id, err)
	}

	blobPath := filepath.Join(a.stagingDir, active.id+media.ExtensionFor(active.format.ContentType()))
	size, err := fileutil.ConcatFiles(blobPath, active.spool.Segments())
	_ = active.spool.Discard()
	if err != nil {
		return failure(id, fmt.Errorf("capture: assemble recording: %w", err))
	}

	blob := media.Blob{Path: blobPath, Size: size, ContentType: active.format.ContentType(), Truncated: finishErr != nil}
	if finishErr != nil {
		logging.WarnWithContext(a.logger, "encoder did not finalize; keeping spooled data", "capture_truncated",
			logging.Error(finishErr),
			logging.String("capture_id", active.id),
			logging.Int64("bytes", size),
			logging.String(logging.FieldImpact, "recording may lack its container index"),
		)
	}
	a.logger.Info("capture stopped",
		logging.String(logging.FieldEventType, "capture_stopped"),
		logging.String("capture_id", active.id),
		logging.String("path", blobPath),
		logging.Int64("bytes", size),
		logging.Duration("duration", time.Since(active.startedAt)),
	)
	return Response{ID: id, Success: true, Blob: &blob}
}

func (a *Agent) togglePause(id string) Response {
	active := a.active
	if active == nil {
		return failure(id, services.Wrap(services.ErrNoActiveRecording, "capture", "toggle pause", "No active recording", nil))
	}
	var err error
	if active.paused {
		err = active.encoder.Resume()
	} else {
		err = active.encoder.Pause()
	}
	if err != nil {
		return failure(id, fmt.Errorf("capture: toggle pause: %w", err))
	}
	active.paused = !active.paused
	a.logger.Info("capture pause toggled",
		logging.String("capture_id", active.id),
		logging.Bool("paused", active.paused),
	)
	paused := active.paused
	return Response{ID: id, Success: true, Paused: &paused}
}

func (a *Agent) abort(reason string) {
	active := a.active
	if active == nil {
		return
	}
	a.active = nil
	a.publishDevices(nil)

	var result *multierror.Error
	if err := active.encoder.Abort(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := releaseTracks(active.tracks); err != nil {
		result = multierror.Append(result, err)
	}
	if err := active.spool.Discard(); err != nil {
		result = multierror.Append(result, err)
	}
	attrs := []logging.Attr{
		logging.String("capture_id", active.id),
		logging.String("reason", reason),
		logging.String(logging.FieldImpact, "recording discarded"),
	}
	if err := result.ErrorOrNil(); err != nil {
		attrs = append(attrs, logging.Error(err))
	}
	logging.WarnWithContext(a.logger, "capture aborted", "capture_aborted", attrs...)
}

func (a *Agent) publishDevices(tracks []Track) {
	devices := make([]string, 0, len(tracks))
	for _, t := range tracks {
		if dev := t.Device(); dev != "" {
			devices = append(devices, dev)
		}
	}
	a.devSnap.Store(&devices)
}

// releaseTracks stops every track, continuing past failures.
func releaseTracks(tracks []Track) error {
	var result *multierror.Error
	for _, t := range tracks {
		if t == nil {
			continue
		}
		if err := t.Stop(); err != nil {
			result = multierror.Append(result, fmt.Errorf("release %s track %s: %w", t.Kind(), t.Label(), err))
		}
	}
	return result.ErrorOrNil()
}

func hasKind(tracks []Track, kind TrackKind) bool {
	for _, t := range tracks {
		if t.Kind() == kind {
			return true
		}
	}
	return false
}

// RemoveOrphanSpools deletes spool directories left by a crashed daemon.
func RemoveOrphanSpools(stagingDir string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(stagingDir, "spool-*"))
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, dir := range matches {
		if err := os.RemoveAll(dir); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
