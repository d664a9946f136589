package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reelcap/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int

	cmd := &cobra.Command{
		Use:     "logs",
		Aliases: []string{"show"},
		Short:   "Display daemon logs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.CurrentLogPath()
			out := cmd.OutOrStdout()

			if follow {
				return logs.Follow(cmd.Context(), path, lines, func(line string) error {
					_, err := fmt.Fprintln(out, line)
					return err
				})
			}

			opts := logs.TailOptions{Offset: -1, Limit: lines}
			if lines <= 0 {
				opts.Offset = 0
			}
			result, err := logs.Tail(cmd.Context(), path, opts)
			if err != nil {
				return fmt.Errorf("tail logs: %w", err)
			}
			if len(result.Lines) == 0 {
				fmt.Fprintf(out, "No log entries available (%s)\n", path)
				return nil
			}
			for _, line := range result.Lines {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 10, "Number of lines to show (0 for all)")
	return cmd
}
