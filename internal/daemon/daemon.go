package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"reelcap/internal/capture"
	"reelcap/internal/config"
	"reelcap/internal/logging"
	"reelcap/internal/notifications"
	"reelcap/internal/recordings"
	"reelcap/internal/session"
)

// ErrNotRunning is returned by recording commands issued before Start or
// after Stop.
var ErrNotRunning = errors.New("daemon not running")

// Options wires a Daemon. Watcher may be nil.
type Options struct {
	Config     *config.Config
	Logger     *slog.Logger
	Ledger     *recordings.Store
	Controller *session.Controller
	Agent      *capture.Agent
	Watcher    *capture.DeviceWatcher
}

// Daemon owns the recording services and enforces single-instance execution.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	ledger     *recordings.Store
	controller *session.Controller
	agent      *capture.Agent
	watcher    *capture.DeviceWatcher

	lockPath string
	lock     *flock.Flock

	running  atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	agentWG  sync.WaitGroup
	stopMu   sync.Mutex
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	Session        session.State
	LedgerPath     string
	LockFilePath   string
	WatcherRunning bool
	ActiveDevices  []string
}

// New constructs a daemon with initialized dependencies.
func New(opts Options) (*Daemon, error) {
	if opts.Config == nil || opts.Ledger == nil || opts.Controller == nil || opts.Agent == nil {
		return nil, errors.New("daemon requires config, ledger, controller, and capture agent")
	}
	lockPath := opts.Config.LockPath()
	return &Daemon{
		cfg:        opts.Config,
		logger:     logging.NewComponentLogger(opts.Logger, "daemon"),
		ledger:     opts.Ledger,
		controller: opts.Controller,
		agent:      opts.Agent,
		watcher:    opts.Watcher,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, reconciles leftovers from a previous run
// and launches the capture agent.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another reelcap daemon instance is already running")
	}

	d.reconcile(ctx)

	d.ctx, d.cancel = context.WithCancel(ctx)
	runCtx := d.ctx
	d.agentWG.Add(1)
	go func() {
		defer d.agentWG.Done()
		if err := d.agent.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			logging.ErrorWithContext(d.logger, "capture agent exited", "capture_agent_failed", logging.Error(err))
		}
	}()

	if d.cfg.Capture.WatchDevices && d.watcher != nil {
		if err := d.watcher.Start(d.ctx); err != nil {
			d.logger.Warn("device watcher unavailable", logging.Error(err))
		}
	}

	d.running.Store(true)
	d.logger.Info("reelcap daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
	)
	return nil
}

func (d *Daemon) reconcile(ctx context.Context) {
	recovered, err := d.ledger.RecoverInterrupted(ctx)
	if err != nil {
		logging.WarnWithContext(d.logger, "failed to reconcile interrupted recordings", "ledger_recover_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale rows keep their previous status"),
		)
	} else if recovered > 0 {
		d.logger.Info("reconciled interrupted recordings",
			logging.String(logging.FieldEventType, "ledger_recovered"),
			logging.Int64("count", recovered),
		)
	}

	removed, err := capture.RemoveOrphanSpools(d.cfg.Paths.StagingDir)
	if err != nil {
		logging.WarnWithContext(d.logger, "failed to remove orphaned spool directories", "spool_cleanup_failed",
			logging.Error(err),
			logging.String("staging_dir", d.cfg.Paths.StagingDir),
		)
	} else if removed > 0 {
		d.logger.Info("removed orphaned spool directories", logging.Int("count", removed))
	}
}

// Stop aborts any capture in progress, stops background services and
// releases the daemon lock.
func (d *Daemon) Stop() {
	d.stopMu.Lock()
	defer d.stopMu.Unlock()
	if !d.running.Load() {
		return
	}

	d.watcher.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.agentWG.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("reelcap daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.ledger != nil {
		return d.ledger.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(context.Context) Status {
	return Status{
		Running:        d.running.Load(),
		Session:        d.controller.Snapshot(),
		LedgerPath:     d.ledger.Path(),
		LockFilePath:   d.lockPath,
		WatcherRunning: d.watcher.Running(),
		ActiveDevices:  d.agent.ActiveDevices(),
	}
}

// StartRecording begins a recording session.
func (d *Daemon) StartRecording(ctx context.Context, cfg capture.RecordingConfig) (session.State, error) {
	if !d.running.Load() {
		return session.State{}, ErrNotRunning
	}
	return d.controller.Start(ctx, cfg)
}

// StopRecording ends the session and uploads the result.
func (d *Daemon) StopRecording(ctx context.Context) (session.Outcome, error) {
	if !d.running.Load() {
		return session.Outcome{}, ErrNotRunning
	}
	return d.controller.Stop(ctx)
}

// Pause suspends the active recording.
func (d *Daemon) Pause(ctx context.Context) (session.State, error) {
	if !d.running.Load() {
		return session.State{}, ErrNotRunning
	}
	return d.controller.Pause(ctx)
}

// Resume continues a paused recording.
func (d *Daemon) Resume(ctx context.Context) (session.State, error) {
	if !d.running.Load() {
		return session.State{}, ErrNotRunning
	}
	return d.controller.Resume(ctx)
}

// TogglePause flips between recording and paused.
func (d *Daemon) TogglePause(ctx context.Context) (session.State, error) {
	if !d.running.Load() {
		return session.State{}, ErrNotRunning
	}
	return d.controller.TogglePause(ctx)
}

// ToggleRecording stops an active session or starts one with defaults.
func (d *Daemon) ToggleRecording(ctx context.Context, defaults capture.RecordingConfig) (session.ToggleResult, error) {
	if !d.running.Load() {
		return session.ToggleResult{}, ErrNotRunning
	}
	return d.controller.ToggleRecording(ctx, defaults)
}

// RetryUpload reruns a failed upload from its retained blob.
func (d *Daemon) RetryUpload(ctx context.Context, artifactID string) (session.Outcome, error) {
	if !d.running.Load() {
		return session.Outcome{}, ErrNotRunning
	}
	artifactID = strings.TrimSpace(artifactID)
	if artifactID == "" {
		return session.Outcome{}, errors.New("artifact id is required")
	}
	return d.controller.RetryUpload(ctx, artifactID)
}

// Recordings lists ledger rows, newest first.
func (d *Daemon) Recordings(ctx context.Context, limit int, statuses []recordings.Status) ([]*recordings.Recording, error) {
	return d.ledger.List(ctx, limit, statuses...)
}

// TestNotification sends a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg == nil {
		return false, "configuration unavailable", errors.New("configuration unavailable")
	}
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.Publish(ctx, notifications.EventTest, notifications.Payload{Message: "reelcap test notification"}); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}
