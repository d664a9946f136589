package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"reelcap/internal/ipc"
)

var titleCaser = cases.Title(language.English)

// modeLabel renders a capture mode for humans ("screen" -> "Screen").
func modeLabel(mode string) string {
	mode = strings.TrimSpace(mode)
	if mode == "" {
		return "-"
	}
	return titleCaser.String(mode)
}

// phaseLabel renders a session phase or ledger status ("upload_failed" ->
// "Upload Failed").
func phaseLabel(value string) string {
	value = strings.TrimSpace(strings.ReplaceAll(value, "_", " "))
	if value == "" {
		return "-"
	}
	return titleCaser.String(value)
}

func formatSeconds(seconds float64) string {
	if seconds <= 0 {
		return "0s"
	}
	d := time.Duration(math.Round(seconds)) * time.Second
	return d.String()
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

// describeSession summarizes a session snapshot in one line.
func describeSession(s ipc.SessionState) string {
	parts := []string{phaseLabel(s.Phase)}
	if s.Mode != "" && s.Phase != "idle" {
		parts = append(parts, modeLabel(s.Mode))
	}
	switch s.Phase {
	case "recording", "paused":
		parts = append(parts, formatSeconds(s.ElapsedSeconds))
	case "uploading":
		parts = append(parts, fmt.Sprintf("%.0f%%", s.Progress))
	}
	return strings.Join(parts, " · ")
}
