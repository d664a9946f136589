package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"reelcap/internal/daemonctl"
	"reelcap/internal/daemonrun"
)

const (
	daemonStartTimeout  = 10 * time.Second
	daemonShutdownGrace = 15 * time.Second
)

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	cmd := &cobra.Command{
		Use:          "daemon",
		Short:        "Run the reelcap daemon in the foreground",
		Hidden:       true,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:   logLevel,
				SocketPath: ctx.socketPath(),
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level for this run")
	return cmd
}

func newShutdownCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "shutdown",
		Short: "Stop the background daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			result, err := daemonctl.Shutdown(ctx.socketPath(), cfg.PIDPath(), cfg.LockPath(), daemonShutdownGrace)
			out := cmd.OutOrStdout()
			if err != nil {
				if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
					fmt.Fprintln(out, "Daemon is not running")
					return nil
				}
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(out, "Daemon did not exit in time; killed pid %d\n", result.PID)
				return nil
			}
			fmt.Fprintln(out, "Daemon stopped")
			return nil
		},
	}
}

// launchOptions describes how `reelcap start` spawns a missing daemon.
func (c *commandContext) launchOptions() (string, daemonctl.LaunchOptions, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", daemonctl.LaunchOptions{}, fmt.Errorf("resolve executable: %w", err)
	}
	return exe, daemonctl.LaunchOptions{
		SocketPath: c.socketPath(),
		ConfigPath: c.configPath(),
	}, nil
}
