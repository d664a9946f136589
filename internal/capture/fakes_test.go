package capture

import (
	"context"
	"errors"
	"io"
	"sync"

	"reelcap/internal/media"
)

type fakeTrack struct {
	kind   TrackKind
	label  string
	device string

	mu    sync.Mutex
	stops int
}

func (t *fakeTrack) Kind() TrackKind { return t.kind }
func (t *fakeTrack) Label() string   { return t.label }
func (t *fakeTrack) Device() string  { return t.device }

func (t *fakeTrack) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stops++
	return nil
}

func (t *fakeTrack) stopCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stops
}

type fakeDevices struct {
	video    []*fakeTrack
	videoErr error
	audio    *fakeTrack
	audioErr error
}

func (d *fakeDevices) AcquireVideo(context.Context, StreamHandle, RecordingConfig) ([]Track, error) {
	tracks := make([]Track, 0, len(d.video))
	for _, t := range d.video {
		tracks = append(tracks, t)
	}
	return tracks, d.videoErr
}

func (d *fakeDevices) AcquireAudio(context.Context, RecordingConfig) (Track, error) {
	if d.audioErr != nil {
		return nil, d.audioErr
	}
	return d.audio, nil
}

type fakeEncoder struct {
	sink      io.Writer
	trailer   []byte
	finishErr error

	mu      sync.Mutex
	paused  bool
	aborted bool
	toggles int
	exited  chan struct{}
	once    sync.Once
}

func (e *fakeEncoder) Exited() <-chan struct{} { return e.exited }

// die simulates the encoder process ending on its own.
func (e *fakeEncoder) die() {
	e.once.Do(func() { close(e.exited) })
}

func (e *fakeEncoder) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = true
	e.toggles++
	return nil
}

func (e *fakeEncoder) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = false
	e.toggles++
	return nil
}

func (e *fakeEncoder) Finish(context.Context) error {
	if e.finishErr != nil {
		return e.finishErr
	}
	_, err := e.sink.Write(e.trailer)
	return err
}

func (e *fakeEncoder) Abort() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.aborted = true
	return nil
}

type fakeEncoders struct {
	supported map[string]bool
	header    []byte
	trailer   []byte
	startErr  error
	finishErr error

	mu      sync.Mutex
	started []*fakeEncoder
	formats []media.Format
	tracks  int
}

func (f *fakeEncoders) Supports(_ context.Context, format media.Format) bool {
	return f.supported[format.MIME]
}

func (f *fakeEncoders) Start(_ context.Context, tracks []Track, format media.Format, sink io.Writer) (Encoder, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	if _, err := sink.Write(f.header); err != nil {
		return nil, err
	}
	enc := &fakeEncoder{sink: sink, trailer: f.trailer, finishErr: f.finishErr, exited: make(chan struct{})}
	f.mu.Lock()
	f.started = append(f.started, enc)
	f.formats = append(f.formats, format)
	f.tracks = len(tracks)
	f.mu.Unlock()
	return enc, nil
}

func (f *fakeEncoders) last() *fakeEncoder {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.started) == 0 {
		return nil
	}
	return f.started[len(f.started)-1]
}

var errFakeDevice = errors.New("device busy")
