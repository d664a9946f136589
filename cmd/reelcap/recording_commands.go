package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"reelcap/internal/daemonctl"
	"reelcap/internal/ipc"
)

func newRecordingCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newStartCommand(ctx),
		newStopCommand(ctx),
		newToggleRecordingCommand(ctx),
		newSessionCommand(ctx, "pause", "Pause the active recording", (*ipc.Client).Pause),
		newSessionCommand(ctx, "resume", "Resume a paused recording", (*ipc.Client).Resume),
		newSessionCommand(ctx, "toggle", "Pause or resume the active recording", (*ipc.Client).TogglePause),
	}
}

func newStartCommand(ctx *commandContext) *cobra.Command {
	var (
		mode        string
		mic         bool
		camera      bool
		videoDevice string
		audioDevice string
	)
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start recording, launching the daemon if needed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			req := ipc.StartRequest{
				Mode:          strings.ToLower(strings.TrimSpace(mode)),
				MicEnabled:    cfg.Capture.MicEnabled,
				CameraEnabled: cfg.Capture.CameraEnabled,
				VideoDeviceID: strings.TrimSpace(videoDevice),
				AudioDeviceID: strings.TrimSpace(audioDevice),
			}
			if req.Mode == "" {
				req.Mode = cfg.Capture.DefaultMode
			}
			if cmd.Flags().Changed("mic") {
				req.MicEnabled = mic
			}
			if cmd.Flags().Changed("camera") {
				req.CameraEnabled = camera
			}

			exe, opts, err := ctx.launchOptions()
			if err != nil {
				return err
			}
			client, launched, err := daemonctl.EnsureStarted(ctx.socketPath(), exe, opts, daemonStartTimeout)
			if err != nil {
				return err
			}
			defer client.Close()

			out := cmd.OutOrStdout()
			if launched {
				fmt.Fprintln(out, "Daemon started")
			}
			resp, err := client.Start(req)
			if err != nil {
				return err
			}
			s := resp.Session
			fmt.Fprintf(out, "Recording started (%s, mic %s, camera %s)\n",
				modeLabel(s.Mode), onOff(s.MicEnabled), onOff(s.CameraEnabled))
			if s.ArtifactID != "" {
				fmt.Fprintf(out, "Artifact: %s\n", s.ArtifactID)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Capture mode: screen, window, tab or camera (default capture.default_mode)")
	cmd.Flags().BoolVar(&mic, "mic", true, "Record the microphone")
	cmd.Flags().BoolVar(&camera, "camera", false, "Overlay the camera on display captures")
	cmd.Flags().StringVar(&videoDevice, "video-device", "", "Camera device node for camera mode or the overlay")
	cmd.Flags().StringVar(&audioDevice, "audio-device", "", "PulseAudio source for the microphone")
	return cmd
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop recording and upload it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				fmt.Fprintln(cmd.OutOrStdout(), "Stopping and uploading...")
				resp, err := client.Stop()
				if err != nil {
					return err
				}
				printOutcome(cmd.OutOrStdout(), resp.Outcome)
				return nil
			})
		},
	}
}

func newToggleRecordingCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle-recording",
		Short: "Stop the active recording, or start one with the configured defaults",
		Long: "Stops and uploads the active recording. When nothing is recording, starts a new\n" +
			"one from capture.default_mode, capture.mic_enabled and capture.camera_enabled,\n" +
			"launching the daemon if needed. Suited for binding to a global hotkey.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			exe, opts, err := ctx.launchOptions()
			if err != nil {
				return err
			}
			client, launched, err := daemonctl.EnsureStarted(ctx.socketPath(), exe, opts, daemonStartTimeout)
			if err != nil {
				return err
			}
			defer client.Close()

			out := cmd.OutOrStdout()
			if launched {
				fmt.Fprintln(out, "Daemon started")
			}
			resp, err := client.ToggleRecording(ipc.ToggleRecordingRequest{
				Mode:          cfg.Capture.DefaultMode,
				MicEnabled:    cfg.Capture.MicEnabled,
				CameraEnabled: cfg.Capture.CameraEnabled,
			})
			if err != nil {
				return err
			}
			if resp.Started {
				s := resp.Session
				fmt.Fprintf(out, "Recording started (%s, mic %s, camera %s)\n",
					modeLabel(s.Mode), onOff(s.MicEnabled), onOff(s.CameraEnabled))
				return nil
			}
			if resp.Outcome != nil {
				printOutcome(out, *resp.Outcome)
			}
			return nil
		},
	}
}

func newRetryUploadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry-upload <artifact-id>",
		Short: "Upload a recording whose previous upload failed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RetryUpload(args[0])
				if err != nil {
					return err
				}
				printOutcome(cmd.OutOrStdout(), resp.Outcome)
				return nil
			})
		},
	}
}

type sessionCall func(*ipc.Client) (*ipc.SessionResponse, error)

func newSessionCommand(ctx *commandContext, use, short string, call sessionCall) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := call(client)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), describeSession(resp.Session))
				return nil
			})
		},
	}
}

func printOutcome(out io.Writer, o ipc.Outcome) {
	line := fmt.Sprintf("Uploaded %s in %d parts", formatBytes(o.Bytes), o.Parts)
	if o.DurationSeconds > 0 {
		line += fmt.Sprintf(" (%s recorded)", formatSeconds(o.DurationSeconds))
	}
	fmt.Fprintln(out, line)
	if o.ShareURL != "" {
		fmt.Fprintf(out, "Share link: %s\n", o.ShareURL)
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
