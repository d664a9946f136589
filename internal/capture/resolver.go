package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"reelcap/internal/logging"
	"reelcap/internal/services"
)

// ResolverOptions configures a Resolver.
type ResolverOptions struct {
	Display     string
	VideoDevice string
	// Picker is an optional region/window selector (for example
	// `slop -f %wx%h+%x+%y`). It prints WxH+X+Y and exits non-zero on cancel.
	Picker []string
	Runner CommandRunner
	Logger *slog.Logger
}

// Resolver turns a RecordingConfig into the StreamHandle the agent
// captures from.
type Resolver struct {
	display     string
	videoDevice string
	picker      []string
	run         CommandRunner
	logger      *slog.Logger
}

// NewResolver constructs a resolver.
func NewResolver(opts ResolverOptions) *Resolver {
	run := opts.Runner
	if run == nil {
		run = execRunner
	}
	display := strings.TrimSpace(opts.Display)
	if display == "" {
		display = os.Getenv("DISPLAY")
	}
	return &Resolver{
		display:     display,
		videoDevice: strings.TrimSpace(opts.VideoDevice),
		picker:      opts.Picker,
		run:         run,
		logger:      logging.NewComponentLogger(opts.Logger, "resolver"),
	}
}

// Resolve maps cfg to a handle. Window and tab modes need the picker; screen
// mode uses it when configured and otherwise grabs the whole display.
func (r *Resolver) Resolve(ctx context.Context, cfg RecordingConfig) (StreamHandle, error) {
	switch cfg.Mode {
	case ModeCamera:
		device := strings.TrimSpace(cfg.VideoDeviceID)
		if device == "" {
			device = r.videoDevice
		}
		if device == "" {
			return StreamHandle{}, services.Wrap(services.ErrDeviceUnavailable, "resolver", "camera", "no camera device configured", nil)
		}
		if _, err := os.Stat(device); err != nil {
			return StreamHandle{}, services.Wrap(services.ErrDeviceUnavailable, "resolver", "camera", device, err)
		}
		return StreamHandle{Mode: ModeCamera, Source: device}, nil
	case ModeScreen, ModeWindow, ModeTab:
		if r.display == "" {
			return StreamHandle{}, services.Wrap(services.ErrDeviceUnavailable, "resolver", string(cfg.Mode), "no X display (set capture.display or DISPLAY)", nil)
		}
		handle := StreamHandle{Mode: cfg.Mode, Source: r.display}
		if len(r.picker) == 0 {
			if cfg.Mode != ModeScreen {
				return StreamHandle{}, services.Wrap(services.ErrDeviceUnavailable, "resolver", string(cfg.Mode),
					"capture.picker_command is required for this mode", nil)
			}
			return handle, nil
		}
		geometry, err := r.pick(ctx)
		if err != nil {
			return StreamHandle{}, err
		}
		handle.Geometry = geometry
		return handle, nil
	default:
		return StreamHandle{}, services.Wrap(services.ErrInvalidMessage, "resolver", "resolve", fmt.Sprintf("unknown mode %q", cfg.Mode), nil)
	}
}

func (r *Resolver) pick(ctx context.Context) (string, error) {
	out, err := r.run(ctx, r.picker[0], r.picker[1:]...)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			r.logger.Info("picker cancelled", logging.Int("exit_code", exitErr.ExitCode()))
			return "", services.Wrap(services.ErrDeviceUnavailable, "resolver", "pick", "selection cancelled", nil)
		}
		return "", services.Wrap(services.ErrDeviceUnavailable, "resolver", "pick", "run picker", err)
	}
	geometry := strings.TrimSpace(string(out))
	if !geometryPattern.MatchString(geometry) {
		return "", services.Wrap(services.ErrDeviceUnavailable, "resolver", "pick", fmt.Sprintf("unexpected picker output %q", geometry), nil)
	}
	return geometry, nil
}
