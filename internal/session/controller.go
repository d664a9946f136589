package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"reelcap/internal/capture"
	"reelcap/internal/logging"
	"reelcap/internal/media"
	"reelcap/internal/notifications"
	"reelcap/internal/recordings"
	"reelcap/internal/services"
	"reelcap/internal/services/capapi"
	"reelcap/internal/upload"
)

// Agent is the message interface of the capture agent.
type Agent interface {
	StartCapture(ctx context.Context, handle capture.StreamHandle, cfg capture.RecordingConfig) error
	StopCapture(ctx context.Context) (media.Blob, error)
	TogglePause(ctx context.Context) (bool, error)
}

// Resolver maps a config to a capture handle.
type Resolver interface {
	Resolve(ctx context.Context, cfg capture.RecordingConfig) (capture.StreamHandle, error)
}

// API is the part of the remote service the controller calls directly.
type API interface {
	CheckSession(ctx context.Context) (*capapi.Session, error)
	CreateArtifact(ctx context.Context) (string, error)
	DeleteArtifact(ctx context.Context, artifactID string) error
	ShareURL(artifactID string) string
}

// Uploader transfers finished blobs.
type Uploader interface {
	Upload(ctx context.Context, artifactID string, blob media.Blob, hooks upload.Hooks) (upload.Result, error)
}

// Ledger persists recording progress.
type Ledger interface {
	Begin(ctx context.Context, artifactID, mode string) error
	MarkUploading(ctx context.Context, artifactID string, blob media.Blob, duration time.Duration) error
	SetUploadID(ctx context.Context, artifactID, uploadID string) error
	UpdateProgress(ctx context.Context, artifactID string, percent float64) error
	MarkUploaded(ctx context.Context, artifactID, shareURL string, keepBlob bool) error
	MarkFailed(ctx context.Context, artifactID string, status recordings.Status, message string) error
	Get(ctx context.Context, artifactID string) (*recordings.Recording, error)
}

// Options wires a Controller.
type Options struct {
	Agent         Agent
	Resolver      Resolver
	API           API
	Uploader      Uploader
	Ledger        Ledger
	Notifier      notifications.Service
	KeepLocalCopy bool
	Logger        *slog.Logger
	// Clock overrides time.Now in tests.
	Clock func() time.Time
}

// Controller is the recording session state machine. It accepts one command
// at a time; a command that arrives while another is being resolved is
// rejected immediately.
type Controller struct {
	agent     Agent
	resolver  Resolver
	api       API
	uploader  Uploader
	ledger    Ledger
	notifier  notifications.Service
	keepLocal bool
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	state    State
	inFlight bool
}

// New constructs a controller in the idle phase.
func New(opts Options) *Controller {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.Multi()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Controller{
		agent:     opts.Agent,
		resolver:  opts.Resolver,
		api:       opts.API,
		uploader:  opts.Uploader,
		ledger:    opts.Ledger,
		notifier:  notifier,
		keepLocal: opts.KeepLocalCopy,
		logger:    logging.NewComponentLogger(opts.Logger, "session"),
		now:       clock,
		state:     State{Phase: PhaseIdle},
	}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

type command int

const (
	cmdStart command = iota
	cmdRetry
	cmdPause
	cmdResume
	cmdToggle
	cmdStop
	cmdToggleRecording
)

func (cmd command) String() string {
	switch cmd {
	case cmdStart:
		return "start"
	case cmdRetry:
		return "retry-upload"
	case cmdPause:
		return "pause"
	case cmdResume:
		return "resume"
	case cmdToggle:
		return "toggle-pause"
	case cmdToggleRecording:
		return "toggle-recording"
	default:
		return "stop"
	}
}

// rejection returns the error a command gets when it cannot run now.
func (cmd command) rejection(phase Phase) error {
	switch cmd {
	case cmdStart, cmdRetry, cmdToggleRecording:
		return services.Wrap(services.ErrAlreadyRecording, "session", cmd.String(), fmt.Sprintf("session is %s", phase), nil)
	default:
		return services.Wrap(services.ErrNotRecording, "session", cmd.String(), fmt.Sprintf("session is %s", phase), nil)
	}
}

func (cmd command) allowed(phase Phase) bool {
	switch cmd {
	case cmdStart, cmdRetry:
		return phase == PhaseIdle
	case cmdPause:
		return phase == PhaseRecording
	case cmdResume:
		return phase == PhasePaused
	case cmdToggleRecording:
		return phase == PhaseIdle || phase.Active()
	default:
		return phase.Active()
	}
}

// begin claims the single command slot. The caller must call end.
func (c *Controller) begin(cmd command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight || !cmd.allowed(c.state.Phase) {
		c.logger.Debug("command rejected",
			logging.String("command", cmd.String()),
			logging.String("phase", string(c.state.Phase)),
			logging.Bool("in_flight", c.inFlight),
		)
		return cmd.rejection(c.state.Phase)
	}
	c.inFlight = true
	return nil
}

func (c *Controller) end() {
	c.mu.Lock()
	c.inFlight = false
	c.mu.Unlock()
}

// transition moves to phase to, applying mutate under the lock.
func (c *Controller) transition(to Phase, mutate func(*State)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	from := c.state.Phase
	if !CanTransition(from, to) {
		return transitionError{from: from, to: to}
	}
	c.state.Phase = to
	if mutate != nil {
		mutate(&c.state)
	}
	c.logger.Debug("phase changed",
		logging.String("from", string(from)),
		logging.String("to", string(to)),
		logging.ArtifactID(c.state.ArtifactID),
	)
	return nil
}

// Start begins a recording. It resolves the capture handle, then allocates
// the artifact and starts the capture concurrently. A partial start is
// rolled back and the controller returns to idle.
func (c *Controller) Start(ctx context.Context, cfg capture.RecordingConfig) (State, error) {
	if err := capture.ValidateConfig(cfg); err != nil {
		return State{}, err
	}
	if err := c.begin(cmdStart); err != nil {
		return State{}, err
	}
	defer c.end()
	return c.start(ctx, cfg)
}

func (c *Controller) start(ctx context.Context, cfg capture.RecordingConfig) (State, error) {
	if _, err := c.api.CheckSession(ctx); err != nil {
		return State{}, c.fail(ctx, err, "")
	}
	handle, err := c.resolver.Resolve(ctx, cfg)
	if err != nil {
		return State{}, c.fail(ctx, err, "")
	}

	if err := c.transition(PhaseStarting, func(s *State) {
		s.Config = cfg
		s.StartedAt = c.now()
		s.LastError = ""
		s.ShareURL = ""
	}); err != nil {
		return State{}, err
	}

	var (
		wg         sync.WaitGroup
		artifactID string
		createErr  error
		captureErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		artifactID, createErr = c.api.CreateArtifact(ctx)
	}()
	go func() {
		defer wg.Done()
		captureErr = c.agent.StartCapture(ctx, handle, cfg)
	}()
	wg.Wait()

	if createErr != nil || captureErr != nil {
		c.rollbackStart(ctx, artifactID, createErr == nil, captureErr == nil)
		err := captureErr
		if err == nil {
			err = createErr
		} else if createErr != nil {
			c.logger.Warn("artifact allocation also failed",
				logging.Error(createErr),
				logging.String(logging.FieldEventType, "artifact_create_failed"),
			)
		}
		return State{}, c.fail(ctx, err, "")
	}

	ctx = services.WithArtifactID(ctx, artifactID)
	if err := c.ledger.Begin(ctx, artifactID, string(cfg.Mode)); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, c.logger), "ledger insert failed", "ledger_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "recording will not be listed until it is uploaded"),
		)
	}
	if err := c.transition(PhaseRecording, func(s *State) { s.ArtifactID = artifactID }); err != nil {
		return State{}, err
	}

	state := c.Snapshot()
	logging.WithContext(ctx, c.logger).Info("recording started",
		logging.String(logging.FieldEventType, "recording_started"),
		logging.String("mode", string(cfg.Mode)),
		logging.String("source", handle.Source),
		logging.Bool("mic", cfg.MicEnabled),
		logging.Bool("camera", cfg.CameraEnabled),
	)
	c.notify(ctx, notifications.EventRecordingStarted, notifications.Payload{
		ArtifactID: artifactID,
		Mode:       string(cfg.Mode),
	})
	return state, nil
}

// rollbackStart undoes the half of a start that succeeded. Stopping the
// capture is mandatory; deleting the artifact is best-effort.
func (c *Controller) rollbackStart(ctx context.Context, artifactID string, created, captured bool) {
	if captured {
		blob, err := c.agent.StopCapture(ctx)
		if err != nil {
			logging.ErrorWithContext(c.logger, "failed to stop capture during rollback", "rollback_stop_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "restart the daemon to release capture devices"),
			)
		} else if err := blob.Remove(); err != nil {
			c.logger.Warn("failed to discard rollback blob", logging.Error(err), logging.String("path", blob.Path))
		}
	}
	if created && artifactID != "" {
		if err := c.api.DeleteArtifact(ctx, artifactID); err != nil {
			logging.WarnWithContext(c.logger, "failed to delete artifact during rollback", "rollback_delete_failed",
				logging.Error(err),
				logging.ArtifactID(artifactID),
				logging.String(logging.FieldImpact, "an empty recording may remain on the server"),
			)
		}
	}
}

// Pause pauses a running recording.
func (c *Controller) Pause(ctx context.Context) (State, error) {
	return c.toggle(ctx, cmdPause)
}

// Resume resumes a paused recording.
func (c *Controller) Resume(ctx context.Context) (State, error) {
	return c.toggle(ctx, cmdResume)
}

// TogglePause pauses or resumes depending on the current phase.
func (c *Controller) TogglePause(ctx context.Context) (State, error) {
	return c.toggle(ctx, cmdToggle)
}

func (c *Controller) toggle(ctx context.Context, cmd command) (State, error) {
	if err := c.begin(cmd); err != nil {
		return State{}, err
	}
	defer c.end()

	artifactID := c.Snapshot().ArtifactID
	ctx = services.WithArtifactID(ctx, artifactID)
	paused, err := c.agent.TogglePause(ctx)
	if err != nil {
		// The capture keeps running in its previous state.
		logging.ErrorWithContext(logging.WithContext(ctx, c.logger), "toggle pause failed", "pause_failed", logging.Error(err))
		c.notify(ctx, notifications.EventRecordingFailed, notifications.Payload{
			ArtifactID: artifactID,
			Message:    services.UserMessage(err),
		})
		return State{}, err
	}

	now := c.now()
	target := PhaseRecording
	if paused {
		target = PhasePaused
	}
	if c.Snapshot().Phase != target {
		if err := c.transition(target, func(s *State) {
			if paused {
				s.pausedAt = now
				return
			}
			if !s.pausedAt.IsZero() {
				s.PausedFor += now.Sub(s.pausedAt)
				s.pausedAt = time.Time{}
			}
		}); err != nil {
			return State{}, err
		}
	}
	logging.WithContext(ctx, c.logger).Info("recording pause toggled",
		logging.String(logging.FieldEventType, "recording_pause_toggled"),
		logging.Bool("paused", paused),
	)
	return c.Snapshot(), nil
}

// Stop finalizes the capture and uploads it, returning once the upload has
// completed or failed.
func (c *Controller) Stop(ctx context.Context) (Outcome, error) {
	if err := c.begin(cmdStop); err != nil {
		return Outcome{}, err
	}
	defer c.end()
	return c.stop(ctx)
}

func (c *Controller) stop(ctx context.Context) (Outcome, error) {
	now := c.now()
	var duration time.Duration
	if err := c.transition(PhaseStopping, func(s *State) {
		duration = s.Elapsed(now)
	}); err != nil {
		return Outcome{}, err
	}
	state := c.Snapshot()
	ctx = services.WithArtifactID(ctx, state.ArtifactID)

	blob, err := c.agent.StopCapture(ctx)
	if err != nil {
		c.ledgerFailed(ctx, state.ArtifactID, recordings.StatusDiscarded, err)
		return Outcome{}, c.fail(ctx, err, state.ArtifactID)
	}
	c.notify(ctx, notifications.EventRecordingStopped, notifications.Payload{
		ArtifactID: state.ArtifactID,
		Duration:   duration,
	})
	logging.WithContext(ctx, c.logger).Info("recording stopped",
		logging.String(logging.FieldEventType, "recording_stopped"),
		logging.Duration("duration", duration),
		logging.Int64("bytes", blob.Size),
		logging.Bool("truncated", blob.Truncated),
	)
	return c.upload(ctx, state.ArtifactID, blob, duration)
}

// ToggleResult reports which way ToggleRecording went.
type ToggleResult struct {
	Started bool
	State   State
	Outcome Outcome
}

// ToggleRecording is the single hotkey action: it stops and uploads an
// active recording, or starts one with defaults when idle. While a session
// is starting, stopping or uploading it fails with ErrAlreadyRecording.
func (c *Controller) ToggleRecording(ctx context.Context, defaults capture.RecordingConfig) (ToggleResult, error) {
	if err := c.begin(cmdToggleRecording); err != nil {
		return ToggleResult{}, err
	}
	defer c.end()

	if c.Snapshot().Phase.Active() {
		outcome, err := c.stop(ctx)
		return ToggleResult{Outcome: outcome, State: c.Snapshot()}, err
	}
	if err := capture.ValidateConfig(defaults); err != nil {
		return ToggleResult{}, err
	}
	state, err := c.start(ctx, defaults)
	return ToggleResult{Started: err == nil, State: state}, err
}

// RetryUpload reruns the whole upload for a recording whose previous upload
// failed. The retained blob is read from the ledger.
func (c *Controller) RetryUpload(ctx context.Context, artifactID string) (Outcome, error) {
	if err := c.begin(cmdRetry); err != nil {
		return Outcome{}, err
	}
	defer c.end()
	ctx = services.WithArtifactID(ctx, artifactID)

	rec, err := c.ledger.Get(ctx, artifactID)
	if err != nil {
		return Outcome{}, err
	}
	if rec == nil {
		return Outcome{}, services.Wrap(services.ErrNotFound, "session", "retry-upload", "unknown artifact "+artifactID, nil)
	}
	blob, ok := rec.Blob()
	if !rec.Retryable() || !ok {
		return Outcome{}, services.Wrap(services.ErrNotFound, "session", "retry-upload",
			fmt.Sprintf("artifact %s has no retained recording (status %s)", artifactID, rec.Status), nil)
	}
	if err := blob.Stat(); err != nil {
		return Outcome{}, services.Wrap(services.ErrNotFound, "session", "retry-upload", "retained recording is missing", err)
	}

	c.mu.Lock()
	c.state = State{
		Phase:      PhaseIdle,
		Config:     capture.RecordingConfig{Mode: capture.Mode(rec.Mode)},
		ArtifactID: artifactID,
	}
	c.mu.Unlock()
	logging.WithContext(ctx, c.logger).Info("retrying upload",
		logging.String(logging.FieldEventType, "upload_retry"),
		logging.Int("previous_attempts", rec.Attempts),
	)
	return c.upload(ctx, artifactID, blob, 0)
}

func (c *Controller) upload(ctx context.Context, artifactID string, blob media.Blob, duration time.Duration) (Outcome, error) {
	if err := c.transition(PhaseUploading, func(s *State) {
		s.Progress = 0
		s.StatusText = upload.StatusPreparing
		s.UploadID = ""
	}); err != nil {
		return Outcome{}, err
	}
	logger := logging.WithContext(ctx, c.logger)
	if err := c.ledger.MarkUploading(ctx, artifactID, blob, duration); err != nil {
		logging.WarnWithContext(logger, "ledger update failed", "ledger_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "retry-upload may not find this recording"),
		)
	}

	shareURL := c.api.ShareURL(artifactID)
	hooks := upload.Hooks{
		Initiated: func(uploadID string) {
			c.mu.Lock()
			c.state.UploadID = uploadID
			c.mu.Unlock()
			if err := c.ledger.SetUploadID(ctx, artifactID, uploadID); err != nil {
				logger.Debug("ledger upload id not stored", logging.Error(err))
			}
		},
		Progress: func(percent float64, status string) {
			c.mu.Lock()
			c.state.Progress = percent
			c.state.StatusText = status
			c.mu.Unlock()
			if err := c.ledger.UpdateProgress(ctx, artifactID, percent); err != nil {
				logger.Debug("ledger progress not stored", logging.Error(err))
			}
			payload := notifications.Payload{ArtifactID: artifactID, Progress: percent, Status: status}
			if percent >= 100 {
				payload.ShareURL = shareURL
			}
			c.notify(ctx, notifications.EventUploadProgress, payload)
		},
	}

	result, err := c.uploader.Upload(ctx, artifactID, blob, hooks)
	if err != nil {
		c.ledgerFailed(ctx, artifactID, recordings.StatusUploadFailed, err)
		return Outcome{}, c.fail(ctx, err, artifactID)
	}

	keep := c.keepLocal
	if !keep {
		if err := blob.Remove(); err != nil {
			keep = true
			c.logger.Warn("failed to remove uploaded recording", logging.Error(err), logging.String("path", blob.Path))
		}
	}
	if err := c.ledger.MarkUploaded(ctx, artifactID, result.ShareURL, keep); err != nil {
		logging.WarnWithContext(logger, "ledger update failed", "ledger_write_failed", logging.Error(err))
	}

	if err := c.transition(PhaseIdle, nil); err != nil {
		return Outcome{}, err
	}
	c.mu.Lock()
	c.state = State{Phase: PhaseIdle, ShareURL: result.ShareURL, Progress: 100, StatusText: upload.StatusComplete}
	c.mu.Unlock()

	return Outcome{
		ArtifactID: artifactID,
		ShareURL:   result.ShareURL,
		Duration:   duration,
		Bytes:      blob.Size,
		Parts:      len(result.Parts),
	}, nil
}

// fail moves to Failed, notifies, and resets to Idle. It returns err.
func (c *Controller) fail(ctx context.Context, err error, artifactID string) error {
	message := services.UserMessage(err)
	if terr := c.transition(PhaseFailed, func(s *State) { s.LastError = message }); terr != nil {
		c.logger.Error("failure transition rejected", logging.Error(terr))
	}
	logging.ErrorWithContext(logging.WithContext(ctx, c.logger), "recording session failed", "session_failed",
		logging.Error(err),
		logging.String("reason", message),
		logging.String(logging.FieldErrorHint, hintFor(err)),
	)
	c.notify(ctx, notifications.EventRecordingFailed, notifications.Payload{ArtifactID: artifactID, Message: message})

	c.mu.Lock()
	c.state = State{Phase: PhaseIdle, LastError: message, ArtifactID: artifactID}
	c.mu.Unlock()
	return err
}

func (c *Controller) ledgerFailed(ctx context.Context, artifactID string, status recordings.Status, cause error) {
	if artifactID == "" {
		return
	}
	if err := c.ledger.MarkFailed(ctx, artifactID, status, cause.Error()); err != nil {
		c.logger.Debug("ledger failure not stored", logging.Error(err))
	}
}

// HandleDeviceRemoved reports a device that vanished mid-recording.
func (c *Controller) HandleDeviceRemoved(ctx context.Context, device string) {
	state := c.Snapshot()
	if !state.Phase.Active() {
		return
	}
	c.notify(ctx, notifications.EventDeviceRemoved, notifications.Payload{
		ArtifactID: state.ArtifactID,
		Device:     device,
	})
}

// HandleEncoderExit reports an encoder that ended mid-recording, then stops
// the session so the spooled portion is still uploaded.
func (c *Controller) HandleEncoderExit(ctx context.Context, cause error) {
	state := c.Snapshot()
	if !state.Phase.Active() {
		return
	}
	ctx = services.WithArtifactID(ctx, state.ArtifactID)
	logging.ErrorWithContext(logging.WithContext(ctx, c.logger), "encoder exited mid-recording", "encoder_exited",
		logging.Error(cause),
		logging.String(logging.FieldImpact, "recording ends early; the captured part is uploaded"),
	)
	c.notify(ctx, notifications.EventRecordingFailed, notifications.Payload{
		ArtifactID: state.ArtifactID,
		Message:    "Recording stopped unexpectedly; uploading what was captured",
	})
	if _, err := c.Stop(ctx); err != nil {
		c.logger.Debug("stop after encoder exit did not complete", logging.Error(err))
	}
}

func (c *Controller) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := c.notifier.Publish(ctx, event, payload); err != nil {
		c.logger.Warn("notification failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "notification_failed"),
			logging.String("notification", string(event)),
			logging.String(logging.FieldImpact, "status update not delivered"),
		)
	}
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, services.ErrAuthenticationRequired):
		return "set api.session_token or REELCAP_SESSION_TOKEN"
	case errors.Is(err, services.ErrDeviceUnavailable):
		return "check capture.display, capture.video_device and the picker command"
	case errors.Is(err, services.ErrNoSupportedFormat):
		return "install an ffmpeg build with libvpx and libopus"
	case errors.Is(err, services.ErrMissingETag), errors.Is(err, services.ErrIncompleteUpload), errors.Is(err, services.ErrNetworkFailure):
		return "the recording is kept locally; run `reelcap retry-upload`"
	default:
		return "check logs for details"
	}
}
