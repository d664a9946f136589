package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"reelcap/internal/config"
)

// Requirement names an external binary the capture agent shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the binaries a recording session needs under cfg.
// The region picker is only required when one is configured.
func Requirements(cfg *config.Config) []Requirement {
	ffmpeg := "ffmpeg"
	if cfg != nil && strings.TrimSpace(cfg.Capture.FFmpegBinary) != "" {
		ffmpeg = cfg.Capture.FFmpegBinary
	}
	reqs := []Requirement{{
		Name:        "FFmpeg",
		Command:     ffmpeg,
		Description: "Screen, camera and microphone capture",
	}}
	if cfg != nil && len(cfg.Capture.PickerCommand) > 0 {
		reqs = append(reqs, Requirement{
			Name:        "Region picker",
			Command:     cfg.Capture.PickerCommand[0],
			Description: "Window and region selection",
			Optional:    true,
		})
	}
	return reqs
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch {
		case cmd == "":
			status.Detail = "command not configured"
		default:
			if _, err := exec.LookPath(cmd); err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", cmd)
			} else {
				status.Available = true
			}
		}
		results = append(results, status)
	}
	return results
}

// Missing returns the required entries that are unavailable.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			missing = append(missing, s)
		}
	}
	return missing
}
