package capture

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"reelcap/internal/logging"
	"reelcap/internal/media"
	"reelcap/internal/services"
)

// CommandRunner executes a short-lived command and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// FFmpegOptions configures the ffmpeg capture backend.
type FFmpegOptions struct {
	Binary       string
	Display      string
	VideoDevice  string
	AudioDevice  string
	Framerate    int
	VideoBitrate int
	Logger       *slog.Logger
	// Runner overrides command execution for the encoder probe.
	Runner CommandRunner
}

// FFmpegBackend acquires X11, V4L2 and PulseAudio inputs and encodes them
// with an ffmpeg child process. It implements both Devices and
// EncoderFactory.
type FFmpegBackend struct {
	opts   FFmpegOptions
	logger *slog.Logger
	runner CommandRunner

	probeOnce sync.Once
	encoders  map[string]bool
	probeErr  error
}

// NewFFmpegBackend returns a backend using opts, filling defaults.
func NewFFmpegBackend(opts FFmpegOptions) *FFmpegBackend {
	if strings.TrimSpace(opts.Binary) == "" {
		opts.Binary = "ffmpeg"
	}
	if opts.Framerate <= 0 {
		opts.Framerate = 30
	}
	runner := opts.Runner
	if runner == nil {
		runner = execRunner
	}
	return &FFmpegBackend{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "ffmpeg"),
		runner: runner,
	}
}

// AcquireVideo opens the video inputs for handle. Display modes also pick up
// the camera overlay when CameraEnabled is set.
func (b *FFmpegBackend) AcquireVideo(_ context.Context, handle StreamHandle, cfg RecordingConfig) ([]Track, error) {
	var tracks []Track
	if handle.IsDisplay() {
		track, err := openDisplay(handle)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
		if cfg.CameraEnabled {
			camera, err := openCamera(b.cameraDevice(cfg))
			if err != nil {
				return tracks, err
			}
			tracks = append(tracks, camera)
		}
		return tracks, nil
	}
	camera, err := openCamera(handle.Source)
	if err != nil {
		return nil, err
	}
	return []Track{camera}, nil
}

// AcquireAudio connects to the PulseAudio source named by the config.
func (b *FFmpegBackend) AcquireAudio(_ context.Context, cfg RecordingConfig) (Track, error) {
	source := strings.TrimSpace(cfg.AudioDeviceID)
	if source == "" {
		source = b.opts.AudioDevice
	}
	if source == "" {
		source = "default"
	}
	if os.Getenv("PULSE_SERVER") == "" {
		socket := filepath.Join(os.Getenv("XDG_RUNTIME_DIR"), "pulse", "native")
		if _, err := os.Stat(socket); err != nil {
			return nil, services.Wrap(services.ErrDeviceUnavailable, "capture", "acquire audio", "pulse server not reachable", err)
		}
	}
	return &pulseTrack{source: source}, nil
}

func (b *FFmpegBackend) cameraDevice(cfg RecordingConfig) string {
	if dev := strings.TrimSpace(cfg.VideoDeviceID); dev != "" {
		return dev
	}
	return b.opts.VideoDevice
}

// Supports reports whether the local ffmpeg build has the encoders format
// needs. WebM cannot carry H.264, so those formats are never supported.
func (b *FFmpegBackend) Supports(ctx context.Context, format media.Format) bool {
	if format.Container != "webm" {
		return false
	}
	encoders, err := b.probe(ctx)
	if err != nil {
		return false
	}
	if format.VideoCodec == "" {
		return encoders["libvpx"] || encoders["libvpx-vp9"]
	}
	video, ok := videoEncoders[format.VideoCodec]
	if !ok || !encoders[video] {
		return false
	}
	if format.AudioCodec != "" {
		audio, ok := audioEncoders[format.AudioCodec]
		if !ok || !encoders[audio] {
			return false
		}
	}
	return true
}

func (b *FFmpegBackend) probe(ctx context.Context) (map[string]bool, error) {
	b.probeOnce.Do(func() {
		probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		out, err := b.runner(probeCtx, b.opts.Binary, "-hide_banner", "-encoders")
		if err != nil {
			b.probeErr = fmt.Errorf("probe ffmpeg encoders: %w", err)
			logging.WarnWithContext(b.logger, "ffmpeg encoder probe failed", "ffmpeg_probe_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "install ffmpeg or set capture.ffmpeg_binary"),
				logging.String(logging.FieldImpact, "recording unavailable"),
			)
			return
		}
		b.encoders = parseEncoders(out)
		b.logger.Debug("ffmpeg encoders probed", logging.Int("count", len(b.encoders)))
	})
	return b.encoders, b.probeErr
}

var videoEncoders = map[string]string{
	"vp9": "libvpx-vp9",
	"vp8": "libvpx",
}

var audioEncoders = map[string]string{
	"opus":   "libopus",
	"vorbis": "libvorbis",
}

// parseEncoders reads the encoder table printed by `ffmpeg -encoders`.
func parseEncoders(out []byte) map[string]bool {
	encoders := make(map[string]bool)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	inTable := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !inTable {
			if strings.HasPrefix(line, "------") {
				inTable = true
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields[0]) != 6 {
			continue
		}
		encoders[fields[1]] = true
	}
	return encoders
}

// Start launches ffmpeg streaming the encoded container to sink.
func (b *FFmpegBackend) Start(_ context.Context, tracks []Track, format media.Format, sink io.Writer) (Encoder, error) {
	args, err := buildArgs(b.settings(), tracks, format)
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(b.opts.Binary, args...)
	cmd.Stdout = sink
	stderr := &tailBuffer{limit: 4096}
	cmd.Stderr = stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", b.opts.Binary, err)
	}
	b.logger.Debug("ffmpeg started",
		logging.Int("pid", cmd.Process.Pid),
		logging.String("args", strings.Join(args, " ")),
	)
	enc := &ffmpegEncoder{cmd: cmd, stdin: stdin, stderr: stderr, done: make(chan struct{})}
	go func() {
		enc.waitErr = cmd.Wait()
		close(enc.done)
	}()
	return enc, nil
}

func (b *FFmpegBackend) settings() encodeSettings {
	return encodeSettings{
		Framerate:    b.opts.Framerate,
		VideoBitrate: b.opts.VideoBitrate,
	}
}

type encodeSettings struct {
	Framerate    int
	VideoBitrate int
}

// buildArgs assembles the ffmpeg command line for tracks. The first video
// track is the primary picture; a second video track is overlaid in the
// bottom-right corner.
func buildArgs(s encodeSettings, tracks []Track, format media.Format) ([]string, error) {
	// stdin stays open: Finish sends 'q' there.
	args := []string{"-hide_banner", "-loglevel", "error", "-nostats"}

	var videoInputs, audioInputs []int
	input := 0
	for _, t := range tracks {
		switch tr := t.(type) {
		case *displayTrack:
			args = append(args, "-f", "x11grab", "-framerate", strconv.Itoa(s.Framerate))
			if tr.size != "" {
				args = append(args, "-video_size", tr.size)
			}
			args = append(args, "-i", tr.input())
			videoInputs = append(videoInputs, input)
		case *v4l2Track:
			args = append(args, "-f", "v4l2", "-framerate", strconv.Itoa(s.Framerate), "-i", tr.path)
			videoInputs = append(videoInputs, input)
		case *pulseTrack:
			args = append(args, "-f", "pulse", "-i", tr.source)
			audioInputs = append(audioInputs, input)
		default:
			return nil, fmt.Errorf("ffmpeg: unsupported %s track %q", t.Kind(), t.Label())
		}
		input++
	}
	if len(videoInputs) == 0 {
		return nil, services.Wrap(services.ErrDeviceUnavailable, "capture", "build encoder", "no video input", nil)
	}

	if len(videoInputs) > 1 {
		filter := fmt.Sprintf("[%d:v]scale=320:-2[cam];[%d:v][cam]overlay=W-w-16:H-h-16[v]", videoInputs[1], videoInputs[0])
		args = append(args, "-filter_complex", filter, "-map", "[v]")
	} else {
		args = append(args, "-map", fmt.Sprintf("%d:v", videoInputs[0]))
	}
	if len(audioInputs) > 0 {
		args = append(args, "-map", fmt.Sprintf("%d:a", audioInputs[0]))
	}

	video := videoEncoders[format.VideoCodec]
	if video == "" {
		video = "libvpx"
	}
	args = append(args, "-c:v", video, "-deadline", "realtime", "-cpu-used", "8")
	if s.VideoBitrate > 0 {
		args = append(args, "-b:v", strconv.Itoa(s.VideoBitrate))
	}
	if len(audioInputs) > 0 {
		audio := audioEncoders[format.AudioCodec]
		if audio == "" {
			audio = "libopus"
		}
		args = append(args, "-c:a", audio)
	}
	args = append(args, "-f", "webm", "pipe:1")
	return args, nil
}

type ffmpegEncoder struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *tailBuffer

	mu      sync.Mutex
	paused  bool
	done    chan struct{}
	waitErr error
}

func (e *ffmpegEncoder) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.paused {
		return nil
	}
	if err := unix.Kill(e.cmd.Process.Pid, unix.SIGSTOP); err != nil {
		return fmt.Errorf("pause ffmpeg: %w", err)
	}
	e.paused = true
	return nil
}

func (e *ffmpegEncoder) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resumeLocked()
}

func (e *ffmpegEncoder) resumeLocked() error {
	if !e.paused {
		return nil
	}
	if err := unix.Kill(e.cmd.Process.Pid, unix.SIGCONT); err != nil {
		return fmt.Errorf("resume ffmpeg: %w", err)
	}
	e.paused = false
	return nil
}

func (e *ffmpegEncoder) Finish(ctx context.Context) error {
	e.mu.Lock()
	if err := e.resumeLocked(); err != nil {
		e.mu.Unlock()
		_ = e.Abort()
		return err
	}
	e.mu.Unlock()

	_, _ = io.WriteString(e.stdin, "q")
	_ = e.stdin.Close()

	select {
	case <-e.done:
	case <-ctx.Done():
		_ = e.cmd.Process.Kill()
		<-e.done
		return fmt.Errorf("ffmpeg finalize: %w", ctx.Err())
	}
	if e.waitErr != nil {
		if detail := strings.TrimSpace(e.stderr.String()); detail != "" {
			return fmt.Errorf("ffmpeg exited: %w: %s", e.waitErr, detail)
		}
		return fmt.Errorf("ffmpeg exited: %w", e.waitErr)
	}
	return nil
}

func (e *ffmpegEncoder) Exited() <-chan struct{} { return e.done }

func (e *ffmpegEncoder) Abort() error {
	select {
	case <-e.done:
		return nil
	default:
	}
	e.mu.Lock()
	_ = e.resumeLocked()
	e.mu.Unlock()
	if err := e.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill ffmpeg: %w", err)
	}
	<-e.done
	return nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
