package deps

import (
	"os"
	"path/filepath"
	"testing"

	"reelcap/internal/config"
	"reelcap/internal/testsupport"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for blank command: %q", results[2].Detail)
	}
}

func TestRequirementsFollowConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Capture.FFmpegBinary = "/opt/ffmpeg/bin/ffmpeg"
	cfg.Capture.PickerCommand = nil

	reqs := Requirements(&cfg)
	if len(reqs) != 1 || reqs[0].Command != "/opt/ffmpeg/bin/ffmpeg" {
		t.Fatalf("unexpected requirements: %#v", reqs)
	}

	cfg.Capture.PickerCommand = []string{"slop", "-f", "%g"}
	reqs = Requirements(&cfg)
	if len(reqs) != 2 || reqs[1].Command != "slop" || !reqs[1].Optional {
		t.Fatalf("expected optional picker requirement, got %#v", reqs)
	}
}

func TestMissingSkipsOptional(t *testing.T) {
	statuses := []Status{
		{Name: "FFmpeg", Available: false},
		{Name: "Region picker", Optional: true},
		{Name: "Other", Available: true},
	}
	missing := Missing(statuses)
	if len(missing) != 1 || missing[0].Name != "FFmpeg" {
		t.Fatalf("unexpected missing set: %#v", missing)
	}
}

func TestRequirementsAgainstStubbedPath(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("ffmpeg", "slop"))
	cfg.Capture.FFmpegBinary = ""
	cfg.Capture.PickerCommand = []string{"slop", "-f", "%g"}

	statuses := CheckBinaries(Requirements(cfg))
	for _, status := range statuses {
		if !status.Available {
			t.Fatalf("expected %s to resolve on PATH, got %#v", status.Name, status)
		}
	}
	if missing := Missing(statuses); len(missing) != 0 {
		t.Fatalf("unexpected missing dependencies: %#v", missing)
	}
}
