package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"reelcap/internal/capture"
	"reelcap/internal/media"
	"reelcap/internal/notifications"
	"reelcap/internal/services"
	"reelcap/internal/services/capapi"
	"reelcap/internal/upload"
)

type fakeAgent struct {
	dir string

	mu         sync.Mutex
	starts     int
	stops      int
	toggles    int
	active     bool
	paused     bool
	startErr   error
	stopErr    error
	toggleErr  error
	startGate  chan struct{}
	lastHandle capture.StreamHandle
	blobs      []media.Blob
}

func (a *fakeAgent) StartCapture(ctx context.Context, handle capture.StreamHandle, _ capture.RecordingConfig) error {
	a.mu.Lock()
	a.starts++
	a.lastHandle = handle
	gate := a.startGate
	a.mu.Unlock()
	if gate != nil {
		<-gate
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.startErr != nil {
		return a.startErr
	}
	a.active = true
	return nil
}

func (a *fakeAgent) StopCapture(context.Context) (media.Blob, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stops++
	if !a.active {
		return media.Blob{}, services.Wrap(services.ErrNoActiveRecording, "capture", "stop", "", nil)
	}
	a.active = false
	a.paused = false
	if a.stopErr != nil {
		return media.Blob{}, a.stopErr
	}
	path := filepath.Join(a.dir, "blob-"+string(rune('a'+a.stops))+".webm")
	data := []byte("recorded-bytes")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return media.Blob{}, err
	}
	blob := media.Blob{Path: path, Size: int64(len(data)), ContentType: "video/webm"}
	a.blobs = append(a.blobs, blob)
	return blob, nil
}

func (a *fakeAgent) TogglePause(context.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.toggles++
	if !a.active {
		return false, services.Wrap(services.ErrNoActiveRecording, "capture", "toggle", "", nil)
	}
	if a.toggleErr != nil {
		return a.paused, a.toggleErr
	}
	a.paused = !a.paused
	return a.paused, nil
}

func (a *fakeAgent) counts() (starts, stops, toggles int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.starts, a.stops, a.toggles
}

type fakeResolver struct {
	err   error
	calls int
}

func (r *fakeResolver) Resolve(_ context.Context, cfg capture.RecordingConfig) (capture.StreamHandle, error) {
	r.calls++
	if r.err != nil {
		return capture.StreamHandle{}, r.err
	}
	return capture.StreamHandle{Mode: cfg.Mode, Source: ":0.0"}, nil
}

type fakeAPI struct {
	mu         sync.Mutex
	sessionErr error
	createErr  error
	created    int
	deleted    []string
}

func (f *fakeAPI) CheckSession(context.Context) (*capapi.Session, error) {
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	return &capapi.Session{User: &capapi.User{ID: "u1"}}, nil
}

func (f *fakeAPI) CreateArtifact(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created++
	return "art-" + string(rune('0'+f.created)), nil
}

func (f *fakeAPI) DeleteArtifact(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeAPI) ShareURL(id string) string { return "https://cap.test/s/" + id }

type fakeUploader struct {
	mu    sync.Mutex
	err   error
	gate  chan struct{}
	calls int
}

func (u *fakeUploader) Upload(_ context.Context, artifactID string, blob media.Blob, hooks upload.Hooks) (upload.Result, error) {
	u.mu.Lock()
	u.calls++
	gate := u.gate
	err := u.err
	u.mu.Unlock()

	hooks.Progress(0, upload.StatusPreparing)
	if gate != nil {
		<-gate
	}
	if err != nil {
		hooks.Progress(0, upload.StatusFailed)
		return upload.Result{}, err
	}
	hooks.Initiated("up-" + artifactID)
	hooks.Progress(50, upload.StatusUploading)
	hooks.Progress(100, upload.StatusUploading)
	hooks.Progress(100, upload.StatusComplete)
	return upload.Result{
		UploadID: "up-" + artifactID,
		Parts:    []upload.Part{{Number: 1, Start: 0, End: blob.Size, ETag: "e1"}},
		ShareURL: "https://cap.test/s/" + artifactID,
	}, nil
}

type published struct {
	event   notifications.Event
	payload notifications.Payload
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []published
}

func (n *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, published{event: event, payload: payload})
	return nil
}

func (n *recordingNotifier) list() []published {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]published(nil), n.events...)
}

func (n *recordingNotifier) kinds() []notifications.Event {
	var out []notifications.Event
	for _, p := range n.list() {
		out = append(out, p.event)
	}
	return out
}
