package daemon_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"reelcap/internal/capture"
	"reelcap/internal/config"
	"reelcap/internal/daemon"
	"reelcap/internal/logging"
	"reelcap/internal/recordings"
	"reelcap/internal/session"
	"reelcap/internal/testsupport"
)

func newDaemon(t *testing.T, cfg *config.Config) (*daemon.Daemon, *recordings.Store) {
	t.Helper()
	ledger := testsupport.MustOpenLedger(t, cfg)
	logger := logging.NewNop()
	agent := capture.NewAgent(capture.AgentOptions{StagingDir: cfg.Paths.StagingDir, Logger: logger})
	controller := session.New(session.Options{
		Agent:  agent.Client(),
		Ledger: ledger,
		Logger: logger,
	})
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
	return d, ledger
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := daemon.New(daemon.Options{}); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.Session.Phase != session.PhaseIdle {
		t.Fatalf("expected idle session, got %s", status.Session.Phase)
	}
	if status.LedgerPath != cfg.LedgerPath() {
		t.Fatalf("ledger path = %q, want %q", status.LedgerPath, cfg.LedgerPath())
	}
	if status.LockFilePath != cfg.LockPath() {
		t.Fatalf("lock path = %q, want %q", status.LockFilePath, cfg.LockPath())
	}
	if status.WatcherRunning {
		t.Fatal("watcher should not run when disabled")
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
	if _, err := d.StopRecording(ctx); !errors.Is(err, daemon.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning after stop, got %v", err)
	}
}

func TestSecondInstanceCannotLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, _ := newDaemon(t, cfg)
	second, _ := newDaemon(t, cfg)

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	err := second.Start(ctx)
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock contention error, got %v", err)
	}

	first.Stop()
	if err := second.Start(ctx); err != nil {
		t.Fatalf("second Start after release: %v", err)
	}
}

func TestStartReconcilesPreviousRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, ledger := newDaemon(t, cfg)
	ctx := context.Background()

	if err := ledger.Begin(ctx, "abandoned", "screen"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := ledger.Begin(ctx, "interrupted", "camera"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	blob := testsupport.WriteBlob(t, cfg.Paths.StagingDir, "interrupted", 32)
	if err := ledger.MarkUploading(ctx, "interrupted", blob, 0); err != nil {
		t.Fatalf("MarkUploading: %v", err)
	}
	spoolDir := filepath.Join(cfg.Paths.StagingDir, "spool-leftover")
	if err := os.MkdirAll(spoolDir, 0o755); err != nil {
		t.Fatalf("mkdir spool: %v", err)
	}

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	abandoned, err := ledger.Get(ctx, "abandoned")
	if err != nil || abandoned == nil {
		t.Fatalf("Get abandoned: %v", err)
	}
	if abandoned.Status != recordings.StatusDiscarded {
		t.Fatalf("abandoned status = %s, want discarded", abandoned.Status)
	}
	interrupted, err := ledger.Get(ctx, "interrupted")
	if err != nil || interrupted == nil {
		t.Fatalf("Get interrupted: %v", err)
	}
	if !interrupted.Retryable() {
		t.Fatalf("expected interrupted upload to be retryable, got %s", interrupted.Status)
	}
	if _, err := os.Stat(spoolDir); !os.IsNotExist(err) {
		t.Fatalf("expected orphan spool removed, stat err = %v", err)
	}

	rows, err := d.Recordings(ctx, 0, []recordings.Status{recordings.StatusUploadFailed})
	if err != nil {
		t.Fatalf("Recordings: %v", err)
	}
	if len(rows) != 1 || rows[0].ArtifactID != "interrupted" {
		t.Fatalf("unexpected failed recordings: %+v", rows)
	}
}

func TestRetryUploadRequiresArtifactID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newDaemon(t, cfg)
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := d.RetryUpload(ctx, "  "); err == nil {
		t.Fatal("expected error for blank artifact id")
	}
}

func TestTestNotification(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		cfg := testsupport.NewConfig(t)
		d, _ := newDaemon(t, cfg)
		sent, message, err := d.TestNotification(context.Background())
		if err != nil {
			t.Fatalf("TestNotification: %v", err)
		}
		if sent || message != "ntfy topic not configured" {
			t.Fatalf("unexpected result sent=%v message=%q", sent, message)
		}
	})

	t.Run("delivered", func(t *testing.T) {
		var (
			mu     sync.Mutex
			bodies []string
		)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, _ := io.ReadAll(r.Body)
			mu.Lock()
			bodies = append(bodies, string(data))
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		cfg := testsupport.NewConfig(t, testsupport.WithNtfyTopic(srv.URL))
		d, _ := newDaemon(t, cfg)
		sent, _, err := d.TestNotification(context.Background())
		if err != nil {
			t.Fatalf("TestNotification: %v", err)
		}
		if !sent {
			t.Fatal("expected notification to be sent")
		}
		mu.Lock()
		defer mu.Unlock()
		if len(bodies) != 1 {
			t.Fatalf("expected one ntfy request, got %d", len(bodies))
		}
	})
}
