package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reelcap/internal/config"
	"reelcap/internal/deps"
	"reelcap/internal/ipc"
	"reelcap/internal/recordings"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and recording status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			status := &ipc.StatusResponse{}
			if client, dialErr := ipc.Dial(ctx.socketPath()); dialErr == nil {
				resp, statusErr := client.Status()
				client.Close()
				if statusErr == nil && resp != nil {
					status = resp
				}
			}
			failed := countFailedUploads(cmd.Context(), cfg)
			dependencies := deps.CheckBinaries(deps.Requirements(cfg))

			if jsonOutput {
				return writeJSON(cmd, struct {
					*ipc.StatusResponse
					FailedUploads int           `json:"failed_uploads"`
					Dependencies  []deps.Status `json:"dependencies"`
				}{status, failed, dependencies})
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			lines := renderSectionHeader("System Status", colorize)
			if status.Running {
				lines = append(lines, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
			} else {
				lines = append(lines, renderStatusLine("Daemon", statusWarn, "Not running (launched by `reelcap start`)", colorize))
			}
			if strings.TrimSpace(cfg.API.SessionToken) != "" {
				lines = append(lines, renderStatusLine("Session token", statusOK, "Configured", colorize))
			} else {
				lines = append(lines, renderStatusLine("Session token", statusError, "Missing (set api.session_token)", colorize))
			}
			if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
				lines = append(lines, renderStatusLine("Notifications", statusOK, "Configured", colorize))
			} else {
				lines = append(lines, renderStatusLine("Notifications", statusInfo, "Log only", colorize))
			}
			switch {
			case status.WatcherRunning:
				lines = append(lines, renderStatusLine("Device watcher", statusOK, "Active", colorize))
			case !cfg.Capture.WatchDevices:
				lines = append(lines, renderStatusLine("Device watcher", statusInfo, "Disabled", colorize))
			case status.Running:
				lines = append(lines, renderStatusLine("Device watcher", statusWarn, "Netlink unavailable", colorize))
			default:
				lines = append(lines, renderStatusLine("Device watcher", statusInfo, "Inactive (daemon not running)", colorize))
			}
			if failed > 0 {
				lines = append(lines, renderStatusLine("Failed uploads", statusWarn, fmt.Sprintf("%d (see `reelcap recordings --status upload_failed`)", failed), colorize))
			}

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
			lines = append(lines, dependencyLines(dependencies, colorize)...)

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Session", colorize)...)
			lines = append(lines, sessionLines(status, colorize)...)
			fmt.Fprintln(out, strings.Join(lines, "\n"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func sessionLines(status *ipc.StatusResponse, colorize bool) []string {
	if !status.Running {
		return []string{renderStatusLine("State", statusInfo, "Unknown", colorize)}
	}
	s := status.Session
	kind := statusInfo
	switch s.Phase {
	case "recording", "uploading":
		kind = statusOK
	case "paused", "starting", "stopping":
		kind = statusWarn
	case "failed":
		kind = statusError
	}
	lines := []string{renderStatusLine("State", kind, describeSession(s), colorize)}
	if s.ArtifactID != "" {
		lines = append(lines, renderStatusLine("Artifact", statusInfo, s.ArtifactID, colorize))
	}
	if s.Phase != "idle" && (s.MicEnabled || s.CameraEnabled) {
		lines = append(lines, renderStatusLine("Inputs", statusInfo,
			fmt.Sprintf("mic %s, camera %s", onOff(s.MicEnabled), onOff(s.CameraEnabled)), colorize))
	}
	if len(status.ActiveDevices) > 0 {
		lines = append(lines, renderStatusLine("Devices", statusInfo, strings.Join(status.ActiveDevices, ", "), colorize))
	}
	if s.StatusText != "" {
		lines = append(lines, renderStatusLine("Upload", statusInfo, s.StatusText, colorize))
	}
	if s.ShareURL != "" {
		lines = append(lines, renderStatusLine("Last share link", statusOK, s.ShareURL, colorize))
	}
	if s.LastError != "" {
		lines = append(lines, renderStatusLine("Last error", statusError, s.LastError, colorize))
	}
	return lines
}

func dependencyLines(statuses []deps.Status, colorize bool) []string {
	lines := make([]string, 0, len(statuses))
	for _, dep := range statuses {
		switch {
		case dep.Available:
			lines = append(lines, renderStatusLine(dep.Name, statusOK, "Available ("+dep.Command+")", colorize))
		case dep.Optional:
			lines = append(lines, renderStatusLine(dep.Name, statusWarn, "Optional: "+dep.Detail, colorize))
		default:
			lines = append(lines, renderStatusLine(dep.Name, statusError, "Missing: "+dep.Detail, colorize))
		}
	}
	return lines
}

// countFailedUploads reads the ledger directly so the count is available
// whether or not the daemon is running.
func countFailedUploads(ctx context.Context, cfg *config.Config) int {
	queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	store, err := recordings.Open(cfg)
	if err != nil {
		return 0
	}
	defer store.Close()
	rows, err := store.List(queryCtx, 0, recordings.StatusUploadFailed)
	if err != nil {
		return 0
	}
	return len(rows)
}
