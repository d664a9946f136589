package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"reelcap/internal/capture"
	"reelcap/internal/config"
	"reelcap/internal/daemon"
	"reelcap/internal/deps"
	"reelcap/internal/ipc"
	"reelcap/internal/logging"
	"reelcap/internal/notifications"
	"reelcap/internal/recordings"
	"reelcap/internal/services/capapi"
	"reelcap/internal/session"
	"reelcap/internal/upload"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// SocketPath overrides the configured IPC socket location.
	SocketPath string
}

// Run starts the reelcap daemon and blocks until a signal or an IPC
// shutdown request arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, stopSignals := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()
	runCtx, shutdown := context.WithCancel(signalCtx)
	defer shutdown()

	logPath := logging.RunLogPath(cfg.Paths.LogDir, time.Now())
	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		File:        logPath,
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.CurrentLogPath(), logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update reelcap.log link: %v\n", err)
	}
	logDependencySnapshot(logger, cfg)

	ledger, err := recordings.Open(cfg)
	if err != nil {
		logger.Error("open recordings ledger", logging.Error(err))
		return err
	}

	d, err := assemble(cfg, ledger, logger)
	if err != nil {
		_ = ledger.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(runCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	// Written only once the lock is held so a losing instance leaves the
	// running daemon's file alone.
	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	socketPath := strings.TrimSpace(opts.SocketPath)
	if socketPath == "" {
		socketPath = cfg.SocketPath()
	}
	ipcServer, err := ipc.NewServer(runCtx, socketPath, d, logger, shutdown)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	logger.Info("reelcap daemon ready",
		logging.String(logging.FieldEventType, "daemon_ready"),
		logging.String("socket", socketPath),
		logging.Int("pid", os.Getpid()),
	)
	<-runCtx.Done()
	logger.Info("reelcap daemon shutting down")
	return nil
}

// assemble builds the capture, upload and session stack around ledger.
func assemble(cfg *config.Config, ledger *recordings.Store, logger *slog.Logger) (*daemon.Daemon, error) {
	backend := capture.NewFFmpegBackend(capture.FFmpegOptions{
		Binary:       cfg.Capture.FFmpegBinary,
		Display:      cfg.Capture.Display,
		VideoDevice:  cfg.Capture.VideoDevice,
		AudioDevice:  cfg.Capture.AudioDevice,
		Framerate:    cfg.Capture.Framerate,
		VideoBitrate: cfg.Capture.VideoBitrate,
		Logger:       logger,
	})
	agent := capture.NewAgent(capture.AgentOptions{
		Devices:      backend,
		Encoders:     backend,
		StagingDir:   cfg.Paths.StagingDir,
		SegmentBytes: cfg.Capture.SegmentBytes,
		Logger:       logger,
	})
	resolver := capture.NewResolver(capture.ResolverOptions{
		Display:     cfg.Capture.Display,
		VideoDevice: cfg.Capture.VideoDevice,
		Picker:      cfg.Capture.PickerCommand,
		Logger:      logger,
	})

	api := capapi.New(cfg, logger)
	notifier := notifications.Multi(notifications.NewService(cfg), notifications.NewLogService(logger))
	controller := session.New(session.Options{
		Agent:         agent.Client(),
		Resolver:      resolver,
		API:           api,
		Uploader:      upload.NewPipeline(api, cfg.PartSizeBytes(), logger),
		Ledger:        ledger,
		Notifier:      notifier,
		KeepLocalCopy: cfg.Upload.KeepLocalCopy,
		Logger:        logger,
	})
	agent.OnEncoderExit(controller.HandleEncoderExit)
	watcher := capture.NewDeviceWatcher(logger, agent.ActiveDevices, controller.HandleDeviceRemoved)

	return daemon.New(daemon.Options{
		Config:     cfg,
		Logger:     logger,
		Ledger:     ledger,
		Controller: controller,
		Agent:      agent,
		Watcher:    watcher,
	})
}

func ensureCurrentLogPointer(current, target string) error {
	if current == "" || target == "" {
		return nil
	}
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	statuses := deps.CheckBinaries(deps.Requirements(cfg))
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("session_token_present", strings.TrimSpace(cfg.API.SessionToken) != ""),
		logging.String("api_base_url", cfg.API.BaseURL),
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.Bool("watch_devices", cfg.Capture.WatchDevices),
	}
	for _, status := range statuses {
		attrs = append(attrs,
			logging.Bool(strings.ToLower(strings.ReplaceAll(status.Name, " ", "_"))+"_available", status.Available),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
	for _, missing := range deps.Missing(statuses) {
		logger.Warn("required dependency missing",
			logging.String(logging.FieldEventType, "dependency_missing"),
			logging.String("dependency", missing.Name),
			logging.String("command", missing.Command),
			logging.String("detail", missing.Detail),
			logging.String(logging.FieldImpact, "recordings cannot start until it is installed"),
		)
	}
}
