package ipc_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"reelcap/internal/capture"
	"reelcap/internal/daemon"
	"reelcap/internal/ipc"
	"reelcap/internal/logging"
	"reelcap/internal/recordings"
	"reelcap/internal/services"
	"reelcap/internal/session"
	"reelcap/internal/testsupport"
)

type harness struct {
	client   *ipc.Client
	ledger   *recordings.Store
	shutdown *atomic.Bool
}

func newHarness(t *testing.T) harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	ledger := testsupport.MustOpenLedger(t, cfg)
	logger := logging.NewNop()
	agent := capture.NewAgent(capture.AgentOptions{StagingDir: cfg.Paths.StagingDir, Logger: logger})
	controller := session.New(session.Options{Agent: agent.Client(), Ledger: ledger, Logger: logger})
	d, err := daemon.New(daemon.Options{
		Config:     cfg,
		Logger:     logger,
		Ledger:     ledger,
		Controller: controller,
		Agent:      agent,
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}

	shutdown := new(atomic.Bool)
	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger, func() { shutdown.Store(true) })
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	time.Sleep(50 * time.Millisecond)

	client, err := ipc.Dial(cfg.SocketPath())
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})
	return harness{client: client, ledger: ledger, shutdown: shutdown}
}

func TestIPCStatus(t *testing.T) {
	h := newHarness(t)

	status, err := h.client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running {
		t.Fatal("expected daemon to be running")
	}
	if status.PID != os.Getpid() {
		t.Fatalf("pid = %d, want %d", status.PID, os.Getpid())
	}
	if status.Session.Phase != string(session.PhaseIdle) {
		t.Fatalf("expected idle session, got %q", status.Session.Phase)
	}
	if status.LedgerPath == "" || status.LockPath == "" {
		t.Fatalf("expected ledger and lock paths, got %+v", status)
	}
}

func TestIPCErrorsKeepTaxonomy(t *testing.T) {
	h := newHarness(t)

	if _, err := h.client.Stop(); !errors.Is(err, services.ErrNotRecording) {
		t.Fatalf("Stop while idle: expected ErrNotRecording, got %v", err)
	}
	if _, err := h.client.Pause(); !errors.Is(err, services.ErrNotRecording) {
		t.Fatalf("Pause while idle: expected ErrNotRecording, got %v", err)
	}
	if _, err := h.client.Start(ipc.StartRequest{Mode: "hologram"}); !errors.Is(err, services.ErrInvalidMessage) {
		t.Fatalf("Start with bad mode: expected ErrInvalidMessage, got %v", err)
	}
	if _, err := h.client.ToggleRecording(ipc.ToggleRecordingRequest{Mode: "hologram"}); !errors.Is(err, services.ErrInvalidMessage) {
		t.Fatalf("ToggleRecording with bad mode: expected ErrInvalidMessage, got %v", err)
	}
	if _, err := h.client.RetryUpload("missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("RetryUpload unknown: expected ErrNotFound, got %v", err)
	}

	// The connection stays usable after server-side errors.
	if _, err := h.client.Status(); err != nil {
		t.Fatalf("Status after errors: %v", err)
	}
}

func TestIPCRecordings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.ledger.Begin(ctx, "art-old", "screen"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := h.ledger.MarkFailed(ctx, "art-old", recordings.StatusDiscarded, "device lost"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if err := h.ledger.Begin(ctx, "art-new", "camera"); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	all, err := h.client.Recordings(0, nil)
	if err != nil {
		t.Fatalf("Recordings: %v", err)
	}
	if len(all.Recordings) != 2 {
		t.Fatalf("expected 2 recordings, got %d", len(all.Recordings))
	}

	discarded, err := h.client.Recordings(0, []string{"discarded"})
	if err != nil {
		t.Fatalf("Recordings filtered: %v", err)
	}
	if len(discarded.Recordings) != 1 || discarded.Recordings[0].ArtifactID != "art-old" {
		t.Fatalf("unexpected filtered recordings: %+v", discarded.Recordings)
	}
	if discarded.Recordings[0].ErrorMessage != "device lost" {
		t.Fatalf("error message = %q", discarded.Recordings[0].ErrorMessage)
	}

	if _, err := h.client.Recordings(0, []string{"pending"}); err == nil {
		t.Fatal("expected unknown status to be rejected")
	}
}

func TestIPCTestNotificationAndShutdown(t *testing.T) {
	h := newHarness(t)

	notify, err := h.client.TestNotification()
	if err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if notify.Sent {
		t.Fatal("expected no notification without a topic")
	}

	resp, err := h.client.Shutdown()
	if err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if !resp.Accepted || !h.shutdown.Load() {
		t.Fatal("expected shutdown callback to run")
	}
}
