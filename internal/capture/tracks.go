package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"reelcap/internal/services"
)

// displayTrack grabs an X11 display, optionally a sub-region.
type displayTrack struct {
	display string
	size    string
	offset  string
}

// x11SocketDir is where X servers create their listening sockets.
var x11SocketDir = "/tmp/.X11-unix"

func openDisplay(handle StreamHandle) (*displayTrack, error) {
	display := strings.TrimSpace(handle.Source)
	num, err := displayNumber(display)
	if err != nil {
		return nil, services.Wrap(services.ErrDeviceUnavailable, "capture", "open display", display, err)
	}
	// Remote displays (host:N) have no local socket to check.
	if strings.HasPrefix(display, ":") {
		socket := filepath.Join(x11SocketDir, "X"+strconv.Itoa(num))
		if _, err := os.Stat(socket); err != nil {
			return nil, services.Wrap(services.ErrDeviceUnavailable, "capture", "open display", display, err)
		}
	}
	track := &displayTrack{display: display}
	if handle.Geometry != "" {
		size, offset, _ := strings.Cut(handle.Geometry, "+")
		track.size = size
		track.offset = strings.Replace(offset, "+", ",", 1)
	}
	return track, nil
}

// displayNumber extracts N from "[host]:N[.screen]".
func displayNumber(display string) (int, error) {
	_, rest, ok := strings.Cut(display, ":")
	if !ok {
		return 0, fmt.Errorf("display %q has no ':'", display)
	}
	rest, _, _ = strings.Cut(rest, ".")
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("display %q: bad display number", display)
	}
	return n, nil
}

func (t *displayTrack) input() string {
	if t.offset == "" {
		return t.display
	}
	return t.display + "+" + t.offset
}

func (t *displayTrack) Kind() TrackKind { return TrackVideo }
func (t *displayTrack) Label() string   { return t.input() }
func (t *displayTrack) Device() string  { return "" }
func (t *displayTrack) Stop() error     { return nil }

// v4l2Track holds an open descriptor on a V4L2 node for the lifetime of the
// capture so removal is noticed and the node stays claimed.
type v4l2Track struct {
	path string

	once sync.Once
	fd   int
}

func openCamera(path string) (*v4l2Track, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, services.Wrap(services.ErrDeviceUnavailable, "capture", "open camera", "no camera device configured", nil)
	}
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, services.Wrap(services.ErrDeviceUnavailable, "capture", "open camera", path, err)
	}
	return &v4l2Track{path: path, fd: fd}, nil
}

func (t *v4l2Track) Kind() TrackKind { return TrackVideo }
func (t *v4l2Track) Label() string   { return t.path }
func (t *v4l2Track) Device() string  { return t.path }

func (t *v4l2Track) Stop() error {
	var err error
	t.once.Do(func() {
		if cerr := unix.Close(t.fd); cerr != nil {
			err = fmt.Errorf("close %s: %w", t.path, cerr)
		}
	})
	return err
}

// pulseTrack names a PulseAudio or PipeWire source.
type pulseTrack struct {
	source string
}

func (t *pulseTrack) Kind() TrackKind { return TrackAudio }
func (t *pulseTrack) Label() string   { return t.source }

func (t *pulseTrack) Device() string {
	if strings.HasPrefix(t.source, "/dev/") {
		return t.source
	}
	return ""
}

func (t *pulseTrack) Stop() error { return nil }
