package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"reelcap/internal/capture"
	"reelcap/internal/daemon"
	"reelcap/internal/logging"
	"reelcap/internal/recordings"
	"reelcap/internal/services"
)

// serviceName is the JSON-RPC receiver name clients address.
const serviceName = "Reelcap"

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path. shutdown is
// invoked when a client requests daemon exit; it may be nil.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger, shutdown func()) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{
		daemon:   d,
		logger:   logging.NewComponentLogger(logger, "ipc"),
		ctx:      ctx,
		shutdown: shutdown,
	}
	if err := rpcServer.RegisterName(serviceName, srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or rerun reelcap daemon"))
	}
}

type service struct {
	daemon   *daemon.Daemon
	logger   *slog.Logger
	ctx      context.Context
	shutdown func()
}

// request derives a per-call context carrying a fresh request id.
func (s *service) request() (context.Context, *slog.Logger) {
	ctx := services.WithRequestID(s.ctx, uuid.NewString())
	return ctx, logging.WithContext(ctx, s.logger)
}

func (s *service) Start(req StartRequest, resp *SessionResponse) error {
	ctx, logger := s.request()
	logger.Debug("start recording requested", logging.String("mode", req.Mode))
	state, err := s.daemon.StartRecording(ctx, capture.RecordingConfig{
		Mode:          capture.Mode(req.Mode),
		MicEnabled:    req.MicEnabled,
		CameraEnabled: req.CameraEnabled,
		VideoDeviceID: req.VideoDeviceID,
		AudioDeviceID: req.AudioDeviceID,
	})
	if err != nil {
		return encodeError(err)
	}
	resp.Session = sessionState(state, time.Now())
	return nil
}

func (s *service) Stop(_ StopRequest, resp *UploadResponse) error {
	ctx, logger := s.request()
	logger.Debug("stop recording requested")
	outcome, err := s.daemon.StopRecording(ctx)
	if err != nil {
		return encodeError(err)
	}
	resp.Outcome = outcomeDTO(outcome)
	return nil
}

func (s *service) Pause(_ PauseRequest, resp *SessionResponse) error {
	ctx, _ := s.request()
	state, err := s.daemon.Pause(ctx)
	if err != nil {
		return encodeError(err)
	}
	resp.Session = sessionState(state, time.Now())
	return nil
}

func (s *service) Resume(_ ResumeRequest, resp *SessionResponse) error {
	ctx, _ := s.request()
	state, err := s.daemon.Resume(ctx)
	if err != nil {
		return encodeError(err)
	}
	resp.Session = sessionState(state, time.Now())
	return nil
}

func (s *service) TogglePause(_ TogglePauseRequest, resp *SessionResponse) error {
	ctx, _ := s.request()
	state, err := s.daemon.TogglePause(ctx)
	if err != nil {
		return encodeError(err)
	}
	resp.Session = sessionState(state, time.Now())
	return nil
}

func (s *service) ToggleRecording(req ToggleRecordingRequest, resp *ToggleRecordingResponse) error {
	ctx, logger := s.request()
	logger.Debug("toggle recording requested")
	res, err := s.daemon.ToggleRecording(ctx, capture.RecordingConfig{
		Mode:          capture.Mode(req.Mode),
		MicEnabled:    req.MicEnabled,
		CameraEnabled: req.CameraEnabled,
		VideoDeviceID: req.VideoDeviceID,
		AudioDeviceID: req.AudioDeviceID,
	})
	if err != nil {
		return encodeError(err)
	}
	resp.Started = res.Started
	resp.Session = sessionState(res.State, time.Now())
	if !res.Started {
		outcome := outcomeDTO(res.Outcome)
		resp.Outcome = &outcome
	}
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = os.Getpid()
	resp.LockPath = status.LockFilePath
	resp.LedgerPath = status.LedgerPath
	resp.WatcherRunning = status.WatcherRunning
	resp.ActiveDevices = status.ActiveDevices
	resp.Session = sessionState(status.Session, time.Now())
	return nil
}

func (s *service) Recordings(req RecordingsRequest, resp *RecordingsResponse) error {
	statuses := make([]recordings.Status, 0, len(req.Statuses))
	for _, raw := range req.Statuses {
		status, ok := recordings.ParseStatus(raw)
		if !ok {
			return fmt.Errorf("unknown recording status %q", raw)
		}
		statuses = append(statuses, status)
	}
	rows, err := s.daemon.Recordings(s.ctx, req.Limit, statuses)
	if err != nil {
		return encodeError(err)
	}
	resp.Recordings = make([]Recording, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		resp.Recordings = append(resp.Recordings, FromRecording(row))
	}
	return nil
}

func (s *service) RetryUpload(req RetryUploadRequest, resp *UploadResponse) error {
	ctx, logger := s.request()
	logger.Info("upload retry requested",
		logging.String(logging.FieldEventType, "upload_retry_requested"),
		logging.ArtifactID(req.ArtifactID),
	)
	outcome, err := s.daemon.RetryUpload(ctx, req.ArtifactID)
	if err != nil {
		return encodeError(err)
	}
	resp.Outcome = outcomeDTO(outcome)
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	ctx, _ := s.request()
	sent, message, err := s.daemon.TestNotification(ctx)
	resp.Sent = sent
	resp.Message = message
	return encodeError(err)
}

func (s *service) Shutdown(_ ShutdownRequest, resp *ShutdownResponse) error {
	s.logger.Info("daemon shutdown requested via IPC",
		logging.String(logging.FieldEventType, "daemon_shutdown_requested"))
	if s.shutdown == nil {
		resp.Accepted = false
		return nil
	}
	resp.Accepted = true
	s.shutdown()
	return nil
}
