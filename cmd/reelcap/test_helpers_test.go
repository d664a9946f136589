package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"reelcap/internal/capture"
	"reelcap/internal/config"
	"reelcap/internal/daemon"
	"reelcap/internal/ipc"
	"reelcap/internal/logging"
	"reelcap/internal/recordings"
	"reelcap/internal/services/capapi"
	"reelcap/internal/session"
	"reelcap/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	ledger     *recordings.Store
	socketPath string
	configPath string
}

// setupConfig writes cfg to a config file under a fresh HOME.
func setupConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	homeDir := filepath.Join(testsupport.BaseDir(cfg), "home")
	t.Setenv("HOME", homeDir)
	t.Setenv("REELCAP_SESSION_TOKEN", "")
	t.Setenv("REELCAP_API_BASE_URL", "")
	t.Setenv("REELCAP_NTFY_TOPIC", "")

	configPath := filepath.Join(homeDir, ".config", "reelcap", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfg, configPath
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	cfg, configPath := setupConfig(t)
	ledger := testsupport.MustOpenLedger(t, cfg)

	logger := logging.NewNop()
	agent := capture.NewAgent(capture.AgentOptions{StagingDir: cfg.Paths.StagingDir, Logger: logger})
	controller := session.New(session.Options{
		Agent:    agent.Client(),
		Resolver: capture.NewResolver(capture.ResolverOptions{Display: ":99"}),
		API:      capapi.New(cfg, logger),
		Ledger:   ledger,
		Logger:   logger,
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

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}

	socketPath := cfg.SocketPath()
	srv, err := ipc.NewServer(ctx, socketPath, d, logger, nil)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	return &cliTestEnv{
		cfg:        cfg,
		ledger:     ledger,
		socketPath: socketPath,
		configPath: configPath,
	}
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
