package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reelcap/internal/config"
	"reelcap/internal/ipc"
	"reelcap/internal/recordings"
)

func newRecordingsCommand(ctx *commandContext) *cobra.Command {
	var (
		statuses   []string
		limit      int
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:     "recordings",
		Aliases: []string{"ls"},
		Short:   "List recorded sessions, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rows, err := listRecordings(cmd.Context(), ctx, cfg, limit, statuses)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, rows)
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No recordings")
				return nil
			}
			fmt.Fprintln(out, renderRecordingsTable(rows))
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (recording, uploading, uploaded, upload_failed, discarded)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum rows to show (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// listRecordings asks the daemon, falling back to reading the ledger when
// the daemon is not running.
func listRecordings(ctx context.Context, cmdCtx *commandContext, cfg *config.Config, limit int, statuses []string) ([]ipc.Recording, error) {
	client, err := ipc.Dial(cmdCtx.socketPath())
	if err == nil {
		defer client.Close()
		resp, err := client.Recordings(limit, statuses)
		if err != nil {
			return nil, err
		}
		return resp.Recordings, nil
	}

	parsed := make([]recordings.Status, 0, len(statuses))
	for _, raw := range statuses {
		status, ok := recordings.ParseStatus(raw)
		if !ok {
			return nil, fmt.Errorf("unknown recording status %q", raw)
		}
		parsed = append(parsed, status)
	}
	store, err := recordings.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open recordings ledger: %w", err)
	}
	defer store.Close()
	rows, err := store.List(ctx, limit, parsed...)
	if err != nil {
		return nil, err
	}
	out := make([]ipc.Recording, 0, len(rows))
	for _, row := range rows {
		out = append(out, ipc.FromRecording(row))
	}
	return out, nil
}

func renderRecordingsTable(rows []ipc.Recording) string {
	headers := []string{"Artifact", "Status", "Mode", "Size", "Length", "Created", "Link / Error"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft}
	body := make([][]string, 0, len(rows))
	for _, r := range rows {
		detail := r.ShareURL
		if detail == "" {
			detail = r.ErrorMessage
		}
		if r.Status == string(recordings.StatusUploading) {
			detail = fmt.Sprintf("%.0f%%", r.ProgressPercent)
		}
		size := "-"
		if r.BlobSize > 0 {
			size = formatBytes(r.BlobSize)
		}
		status := phaseLabel(r.Status)
		if r.Retryable {
			status += " (retryable)"
		}
		body = append(body, []string{
			r.ArtifactID,
			status,
			modeLabel(r.Mode),
			size,
			formatSeconds(r.DurationSeconds),
			formatTimestamp(r.CreatedAt),
			truncate(detail, 60),
		})
	}
	return renderTable(headers, body, aligns)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
