package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"reelcap/internal/services"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
			if hint := errorHint(err); hint != "" {
				fmt.Fprintln(os.Stderr, "hint:", hint)
			}
		}
		os.Exit(1)
	}
}

func errorHint(err error) string {
	switch {
	case errors.Is(err, services.ErrAuthenticationRequired):
		return "set api.session_token in the config or export REELCAP_SESSION_TOKEN"
	case errors.Is(err, services.ErrDeviceUnavailable):
		return "check the display, camera and microphone settings in the capture section"
	case errors.Is(err, services.ErrNoSupportedFormat):
		return "install an ffmpeg build with libvpx and libopus"
	case errors.Is(err, services.ErrNetworkFailure), errors.Is(err, services.ErrIncompleteUpload):
		return "the recording was kept; run `reelcap recordings --status upload_failed` and `reelcap retry-upload <id>`"
	default:
		return ""
	}
}
